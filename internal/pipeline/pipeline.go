// Package pipeline wires the full flow: discover PDFs on the
// municipality site, store them deduplicated, extract text, build the
// lexical index, and fill the requested indicator cells.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/catalog"
	"github.com/opencivica/comune-extractor/internal/config"
	"github.com/opencivica/comune-extractor/internal/external"
	"github.com/opencivica/comune-extractor/internal/index"
	"github.com/opencivica/comune-extractor/internal/llm"
	"github.com/opencivica/comune-extractor/internal/logging"
	"github.com/opencivica/comune-extractor/internal/output"
	"github.com/opencivica/comune-extractor/internal/paths"
	"github.com/opencivica/comune-extractor/internal/pdftext"
	"github.com/opencivica/comune-extractor/internal/store"
	"github.com/opencivica/comune-extractor/internal/year"
)

// StageStats records one pipeline stage's outcome for the run report.
type StageStats struct {
	Name     string
	Duration time.Duration
	Items    int
}

// Result summarizes a full run.
type Result struct {
	RunID    string
	Stages   []StageStats
	Download store.Stats
	Filled   int
	NotFound int
}

// Pipeline holds the long-lived collaborators of a run.
type Pipeline struct {
	cfg       config.Config
	logger    *zap.Logger
	layout    paths.Layout
	catalog   *catalog.Catalog
	store     *store.Store
	extractor *pdftext.Extractor
	llm       *llm.Extractor
	external  *external.Registry
}

// New builds a pipeline from configuration, opening the catalog and
// assembling the extraction engine chain.
func New(cfg config.Config, logger *zap.Logger) (*Pipeline, error) {
	layout := paths.NewLayout(cfg.Workspace, cfg.Comune)

	cat, err := catalog.Open(layout.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	engines := []pdftext.Engine{pdftext.LedongthucEngine{}}
	if fallback := pdftext.NewPdftotextEngine(cfg.Extract.PdftotextPath); fallback.Available() {
		engines = append(engines, fallback)
	} else {
		logger.Warn("pdftotext not found, running without a fallback engine")
	}
	extractor := pdftext.New(logger, engines...)

	resolver := year.NewResolver(extractor)

	st := store.New(cat, layout, resolver, store.Config{
		UserAgent:      cfg.Crawler.UserAgent,
		Timeout:        cfg.Download.Timeout(),
		MaxRetries:     cfg.Download.MaxRetries,
		BackoffInitial: time.Duration(cfg.Download.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.Download.BackoffMaxMs) * time.Millisecond,
	}, logger)

	p := &Pipeline{
		cfg:       cfg,
		logger:    logger,
		layout:    layout,
		catalog:   cat,
		store:     st,
		extractor: extractor,
	}
	if cfg.LLM.Enabled {
		client := llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.Model)
		p.llm = llm.NewExtractor(client, cfg.LLM.Model, cfg.LLM.ConfidenceThreshold, cat, layout, logger)
	}
	if cfg.External.Enabled {
		p.external = external.NewRegistry(external.DefaultSources()...)
	}
	return p, nil
}

// Close releases the catalog connection.
func (p *Pipeline) Close() error {
	return p.catalog.Close()
}

// Download stores every URL with the configured concurrency.
func (p *Pipeline) Download(ctx context.Context, urls []string) store.Stats {
	return p.store.DownloadAll(ctx, urls, p.cfg.Download.Concurrency)
}

// CatalogStats reports row counts per catalog table.
func (p *Pipeline) CatalogStats(ctx context.Context) (map[string]int, error) {
	return p.catalog.Stats(ctx)
}

// DocumentsByYear lists cataloged documents for one year partition.
// Year 0 lists the unknown partition.
func (p *Pipeline) DocumentsByYear(ctx context.Context, year int) ([]catalog.PDFRecord, error) {
	return p.catalog.PDFsByYear(ctx, year)
}

// Run executes every stage and writes the result tables to the output
// directory.
func (p *Pipeline) Run(ctx context.Context, indicators []string) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	logger := p.logger.With(zap.String("run_id", res.RunID), zap.String("comune", p.cfg.Comune))
	logger.Info("pipeline starting", zap.Strings("indicators", indicators), zap.Ints("years", p.cfg.Years))

	var pdfURLs []string
	_, err := p.timed(logger, &res, "crawl", func() (int, error) {
		urls, _, err := p.Crawl(ctx)
		pdfURLs = urls
		return len(urls), err
	})
	if err != nil {
		return res, err
	}

	_, err = p.timed(logger, &res, "download", func() (int, error) {
		res.Download = p.Download(ctx, pdfURLs)
		return res.Download.Total, nil
	})
	if err != nil {
		return res, err
	}

	_, err = p.timed(logger, &res, "extract", func() (int, error) {
		return p.ExtractTexts(ctx)
	})
	if err != nil {
		return res, err
	}

	var idx *index.Index
	_, err = p.timed(logger, &res, "index", func() (int, error) {
		idx, err = p.BuildIndex(ctx)
		if err != nil {
			return 0, err
		}
		return idx.Len(), nil
	})
	if err != nil {
		return res, err
	}

	var sources []output.SourceRecord
	var queryRows []output.QueryRecord
	_, err = p.timed(logger, &res, "fill", func() (int, error) {
		sources, queryRows = p.FillCells(ctx, idx, indicators)
		return len(sources), nil
	})
	if err != nil {
		return res, err
	}
	for _, s := range sources {
		if s.Method == output.MethodNotFound {
			res.NotFound++
		} else {
			res.Filled++
		}
	}

	if err := output.WriteSources(filepath.Join(p.cfg.OutputDir, "sources.csv"), sources); err != nil {
		return res, err
	}
	if err := output.WriteQueries(filepath.Join(p.cfg.OutputDir, "queries.csv"), queryRows); err != nil {
		return res, err
	}

	logger.Info("pipeline finished", zap.Int("filled", res.Filled), zap.Int("not_found", res.NotFound))
	return res, nil
}

func (p *Pipeline) timed(logger *zap.Logger, res *Result, name string, fn func() (int, error)) (int, error) {
	start := time.Now()
	items, err := fn()
	took := time.Since(start)
	res.Stages = append(res.Stages, StageStats{Name: name, Duration: took, Items: items})
	if err == nil {
		logging.Stage(logger, name).Info("stage finished",
			zap.Duration("took", took),
			zap.Int("items", items),
		)
	}
	return items, err
}
