package pipeline

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/catalog"
	"github.com/opencivica/comune-extractor/internal/crawler"
	"github.com/opencivica/comune-extractor/internal/index"
	"github.com/opencivica/comune-extractor/internal/metrics"
	"github.com/opencivica/comune-extractor/internal/pdftext"
	"github.com/opencivica/comune-extractor/internal/robots"
	"github.com/opencivica/comune-extractor/internal/workpool"
	"github.com/opencivica/comune-extractor/internal/year"
)

// Crawl discovers PDF and HTML URLs on the municipality site under the
// configured caps and robots policy.
func (p *Pipeline) Crawl(ctx context.Context) ([]string, []string, error) {
	cfg := p.cfg.Crawler

	policy := robots.Unloaded(cfg.UserAgent, cfg.CrawlDelay())
	if cfg.RespectRobots {
		client := &http.Client{Timeout: cfg.Timeout()}
		policy = robots.Load(ctx, client, p.cfg.BaseURL, cfg.UserAgent, cfg.CrawlDelay(), p.logger)
	}

	fetcher := crawler.NewCollyFetcher(cfg.UserAgent, cfg.Timeout())
	session, err := crawler.NewSession(crawler.SessionConfig{
		BaseURL:   p.cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		MaxPages:  cfg.MaxPages,
		MaxPDFs:   cfg.MaxPDFs,
		Timeout:   cfg.Timeout(),
	}, policy, fetcher, p.logger)
	if err != nil {
		return nil, nil, err
	}
	return session.Run(ctx)
}

// ExtractTexts extracts text for every stored PDF that has no text record
// yet, writing per-page and whole-document files into the year-partitioned
// text cache. Returns how many documents were freshly extracted.
func (p *Pipeline) ExtractTexts(ctx context.Context) (int, error) {
	records, err := p.catalog.AllPDFs(ctx)
	if err != nil {
		return 0, err
	}

	var pending []catalog.PDFRecord
	for _, rec := range records {
		_, err := p.catalog.TextByHash(ctx, rec.SHA1)
		if errors.Is(err, catalog.ErrNotFound) {
			pending = append(pending, rec)
			continue
		}
		if err != nil {
			return 0, err
		}
		metrics.TextCacheHits.Inc()
	}

	var (
		mu        sync.Mutex
		extracted int
	)
	workpool.ForEach(ctx, p.cfg.Extract.Concurrency, pending, func(ctx context.Context, rec catalog.PDFRecord) {
		textDir := p.layout.TextDir(rec.DetectedYear)

		whole, err := p.extractor.Extract(rec.LocalPath, textDir, rec.SHA1)
		if err != nil {
			metrics.ExtractionFailures.Inc()
			p.logger.Warn("text extraction failed", zap.String("sha1", rec.SHA1), zap.Error(err))
			return
		}
		pages, err := p.extractor.ExtractPerPage(rec.LocalPath, textDir, rec.SHA1, 0)
		if err != nil {
			metrics.ExtractionFailures.Inc()
			p.logger.Warn("page extraction failed", zap.String("sha1", rec.SHA1), zap.Error(err))
			return
		}

		engine := whole.Engine
		if engine == pdftext.EngineCache {
			engine = pages.Engine
		}
		if err := p.catalog.AddText(ctx, catalog.TextRecord{
			SHA1:        rec.SHA1,
			TextPath:    pdftext.WholeTextPath(textDir, rec.SHA1),
			ExtractedAt: time.Now().UTC(),
			Extractor:   engine,
			Pages:       len(pages.Pages),
			TextLen:     len(whole.Text),
		}); err != nil {
			p.logger.Warn("record text", zap.String("sha1", rec.SHA1), zap.Error(err))
			return
		}
		metrics.TextsExtracted.Inc()

		// Second chance for documents whose year the store could not
		// resolve: the full text often names the reporting year.
		if rec.DetectedYear == 0 {
			if y, ok := year.FromText(whole.Text); ok {
				if err := p.catalog.UpdateYear(ctx, rec.SHA1, y); err != nil {
					p.logger.Warn("update year", zap.String("sha1", rec.SHA1), zap.Error(err))
				} else {
					p.logger.Info("year resolved from text",
						zap.String("sha1", rec.SHA1), zap.Int("year", y))
				}
			}
		}

		mu.Lock()
		extracted++
		mu.Unlock()
	})
	return extracted, nil
}

// BuildIndex loads the persisted index when it still matches the corpus,
// otherwise rebuilds from the text cache and saves the artifacts.
func (p *Pipeline) BuildIndex(ctx context.Context) (*index.Index, error) {
	chunks, err := p.collectChunks(ctx)
	if err != nil {
		return nil, err
	}

	if idx, err := index.Load(p.layout.IndexDir()); err == nil && idx.Fingerprint() == index.Fingerprint(chunks) {
		p.logger.Info("index loaded", zap.Int("chunks", idx.Len()))
		return idx, nil
	} else if err != nil && !errors.Is(err, index.ErrNotFound) {
		p.logger.Warn("index load failed, rebuilding", zap.Error(err))
	}

	idx := index.Build(chunks)
	if err := idx.Save(p.layout.IndexDir()); err != nil {
		return nil, err
	}
	p.logger.Info("index built", zap.Int("chunks", idx.Len()))
	return idx, nil
}

// collectChunks turns every extracted document into page-level chunks.
// Documents whose page files went missing fall back to one whole-document
// chunk (page 0).
func (p *Pipeline) collectChunks(ctx context.Context) ([]index.Chunk, error) {
	records, err := p.catalog.AllPDFs(ctx)
	if err != nil {
		return nil, err
	}

	var chunks []index.Chunk
	for _, rec := range records {
		text, err := p.catalog.TextByHash(ctx, rec.SHA1)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		// The text cache stays where extraction wrote it even if the
		// detected year was re-assigned afterwards.
		textDir := filepath.Dir(text.TextPath)
		if pages, ok := pdftext.ReadPages(textDir, rec.SHA1, text.Pages); ok {
			for i, page := range pages {
				chunks = append(chunks, index.Chunk{
					SHA1:     rec.SHA1,
					Page:     i + 1,
					Year:     rec.DetectedYear,
					URL:      rec.URL,
					Filename: rec.OriginalName,
					Text:     page,
				})
			}
			continue
		}
		if whole, ok := pdftext.ReadWholeText(textDir, rec.SHA1); ok {
			chunks = append(chunks, index.Chunk{
				SHA1:     rec.SHA1,
				Page:     0,
				Year:     rec.DetectedYear,
				URL:      rec.URL,
				Filename: rec.OriginalName,
				Text:     whole,
			})
		}
	}
	return chunks, nil
}
