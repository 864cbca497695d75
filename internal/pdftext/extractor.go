package pdftext

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// EngineCache is the engine name recorded when a result came from the
// disk cache rather than a fresh extraction.
const EngineCache = "cache"

// Result is a whole-document extraction outcome.
type Result struct {
	Text   string
	Pages  int
	Engine string
}

// PageResult is a per-page extraction outcome.
type PageResult struct {
	Pages  []string
	Engine string
}

// Extractor runs an ordered engine chain: the primary engine's output is
// accepted only when non-empty; the final engine's output is accepted
// as-is, even empty. Both engines erroring is terminal for the document.
type Extractor struct {
	engines []Engine
	logger  *zap.Logger
}

// New builds an extractor over the given engine chain.
func New(logger *zap.Logger, engines ...Engine) *Extractor {
	return &Extractor{engines: engines, logger: logger}
}

// Extract returns the document text, consulting the whole-text disk cache
// under cacheDir first and persisting after a fresh extraction.
func (e *Extractor) Extract(pdfPath, cacheDir, hash string) (Result, error) {
	if text, ok := ReadWholeText(cacheDir, hash); ok {
		return Result{Text: text, Engine: EngineCache}, nil
	}

	res, err := e.extract(pdfPath)
	if err != nil {
		return Result{}, err
	}
	if err := WriteWholeText(cacheDir, hash, res.Text); err != nil {
		return Result{}, err
	}
	return res, nil
}

// ExtractPerPage returns per-page text, consulting the per-page disk
// cache first. expectedPages comes from the catalog when the document was
// extracted before; zero always misses.
func (e *Extractor) ExtractPerPage(pdfPath, cacheDir, hash string, expectedPages int) (PageResult, error) {
	if pages, ok := ReadPages(cacheDir, hash, expectedPages); ok {
		return PageResult{Pages: pages, Engine: EngineCache}, nil
	}

	res, err := e.extractPerPage(pdfPath)
	if err != nil {
		return PageResult{}, err
	}
	if err := WritePages(cacheDir, hash, res.Pages); err != nil {
		return PageResult{}, err
	}
	return res, nil
}

// FirstPagesText extracts the leading pages with the same engine chain,
// for year inference. Results are not cached: the text stage will extract
// the full document later anyway.
func (e *Extractor) FirstPagesText(path string, maxPages int) (string, error) {
	var lastErr error
	for i, engine := range e.engines {
		text, err := engine.ExtractFirstPages(path, maxPages)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) != "" || i == len(e.engines)-1 {
			return text, nil
		}
	}
	return "", fmt.Errorf("first pages of %s: %w", path, lastErr)
}

func (e *Extractor) extract(pdfPath string) (Result, error) {
	var lastErr error
	for i, engine := range e.engines {
		text, pages, err := engine.Extract(pdfPath)
		if err != nil {
			lastErr = err
			e.logger.Debug("engine failed",
				zap.String("engine", engine.Name()), zap.String("path", pdfPath), zap.Error(err))
			continue
		}
		last := i == len(e.engines)-1
		if strings.TrimSpace(text) == "" && !last {
			// Empty primary output usually means a scanned PDF; let the
			// fallback engine have a go.
			continue
		}
		return Result{Text: text, Pages: pages, Engine: engine.Name()}, nil
	}
	return Result{}, fmt.Errorf("extract %s: all engines failed: %w", pdfPath, lastErr)
}

func (e *Extractor) extractPerPage(pdfPath string) (PageResult, error) {
	var lastErr error
	for i, engine := range e.engines {
		pages, err := engine.ExtractPages(pdfPath)
		if err != nil {
			lastErr = err
			e.logger.Debug("engine failed",
				zap.String("engine", engine.Name()), zap.String("path", pdfPath), zap.Error(err))
			continue
		}
		last := i == len(e.engines)-1
		if !anyPageNonEmpty(pages) && !last {
			continue
		}
		return PageResult{Pages: pages, Engine: engine.Name()}, nil
	}
	return PageResult{}, fmt.Errorf("extract pages %s: all engines failed: %w", pdfPath, lastErr)
}

func anyPageNonEmpty(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
