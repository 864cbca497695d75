// Package store downloads PDFs into the content-addressed catalog:
// byte-identical documents are stored once regardless of how many URLs
// serve them.
package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/catalog"
	"github.com/opencivica/comune-extractor/internal/metrics"
	"github.com/opencivica/comune-extractor/internal/paths"
	"github.com/opencivica/comune-extractor/internal/workpool"
	"github.com/opencivica/comune-extractor/internal/year"
)

// Outcome classifies one store call.
type Outcome string

// Store outcomes.
const (
	OutcomeDownloaded   Outcome = "downloaded"
	OutcomeCached       Outcome = "cached"
	OutcomeDeduplicated Outcome = "deduplicated"
	OutcomeFailed       Outcome = "failed"
)

// Stats summarizes a download batch.
type Stats struct {
	Total        int
	Downloaded   int
	Cached       int
	Deduplicated int
	Failed       int
}

// Config tunes download behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Store performs deduplicated PDF downloads.
type Store struct {
	catalog  *catalog.Catalog
	layout   paths.Layout
	resolver *year.Resolver
	client   *http.Client
	cfg      Config
	logger   *zap.Logger
}

// New builds a Store.
func New(cat *catalog.Catalog, layout paths.Layout, resolver *year.Resolver, cfg Config, logger *zap.Logger) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}
	return &Store{
		catalog:  cat,
		layout:   layout,
		resolver: resolver,
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		logger:   logger,
	}
}

// DownloadAll stores every URL using a bounded worker pool and returns
// batch stats. Individual failures never abort the batch.
func (s *Store) DownloadAll(ctx context.Context, urls []string, workers int) Stats {
	stats := Stats{Total: len(urls)}
	var mu sync.Mutex

	workpool.ForEach(ctx, workers, urls, func(ctx context.Context, rawURL string) {
		outcome, err := s.Store(ctx, rawURL)
		if err != nil {
			s.logger.Warn("store failed", zap.String("url", rawURL), zap.Error(err))
		}
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case OutcomeDownloaded:
			stats.Downloaded++
		case OutcomeCached:
			stats.Cached++
		case OutcomeDeduplicated:
			stats.Deduplicated++
		default:
			stats.Failed++
		}
	})
	return stats
}

// Store fetches one URL into the catalog. Outcomes: Cached (URL already
// known and its file still on disk, no network call), Deduplicated (bytes
// already stored under another URL), Downloaded, or Failed.
func (s *Store) Store(ctx context.Context, rawURL string) (Outcome, error) {
	if rec, err := s.catalog.PDFByURL(ctx, rawURL); err == nil {
		if _, statErr := os.Stat(rec.LocalPath); statErr == nil {
			metrics.PDFCacheHits.Inc()
			return OutcomeCached, nil
		}
	} else if !errors.Is(err, catalog.ErrNotFound) {
		metrics.PDFFailures.Inc()
		return OutcomeFailed, err
	}

	originalName := originalNameFromURL(rawURL)

	tempPath, hash, size, contentType, err := s.fetchToTemp(ctx, rawURL)
	if err != nil {
		metrics.PDFFailures.Inc()
		return OutcomeFailed, err
	}

	// Fast path: content already stored under another URL.
	if existing, err := s.catalog.PDFByHash(ctx, hash); err == nil {
		if rmErr := os.Remove(tempPath); rmErr != nil {
			s.logger.Debug("remove temp file", zap.Error(rmErr))
		}
		if err := s.catalog.AddAlias(ctx, rawURL, originalName, contentType, existing); err != nil {
			return OutcomeFailed, err
		}
		metrics.PDFsDeduplicated.Inc()
		return OutcomeDeduplicated, nil
	}

	detectedYear := s.resolver.Resolve(year.Document{
		URL:      rawURL,
		Filename: originalName,
		Path:     tempPath,
	})

	pdfDir := s.layout.PDFDir(detectedYear)
	if err := os.MkdirAll(pdfDir, 0o750); err != nil {
		return OutcomeFailed, fmt.Errorf("create pdf dir: %w", err)
	}
	finalName := fmt.Sprintf("%s_%s", hash[:8], paths.SanitizeFilename(originalName, 200))
	finalPath := filepath.Join(pdfDir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return OutcomeFailed, fmt.Errorf("move pdf into place: %w", err)
	}

	rec := catalog.PDFRecord{
		SHA1:         hash,
		URL:          rawURL,
		OriginalName: originalName,
		LocalPath:    finalPath,
		DetectedYear: detectedYear,
		DownloadedAt: time.Now().UTC(),
		ContentType:  contentType,
		SizeBytes:    size,
	}
	winner, inserted, err := s.catalog.InsertOrGetPDF(ctx, rec)
	if err != nil {
		return OutcomeFailed, err
	}
	if !inserted {
		// Another worker stored this content first; fall back to the
		// deduplicated outcome rather than overwriting its record.
		if finalPath != winner.LocalPath {
			if rmErr := os.Remove(finalPath); rmErr != nil {
				s.logger.Debug("remove losing duplicate", zap.Error(rmErr))
			}
		}
		if err := s.catalog.AddAlias(ctx, rawURL, originalName, contentType, winner); err != nil {
			return OutcomeFailed, err
		}
		metrics.PDFsDeduplicated.Inc()
		return OutcomeDeduplicated, nil
	}

	metrics.PDFsDownloaded.Inc()
	return OutcomeDownloaded, nil
}

// fetchToTemp downloads the URL body to a staging file, hashing the full
// byte stream as it is written. Partial hashes would break dedup, so the
// hash and the file always cover identical bytes.
func (s *Store) fetchToTemp(ctx context.Context, rawURL string) (string, string, int64, string, error) {
	tempDir := s.layout.TempDir()
	if err := os.MkdirAll(tempDir, 0o750); err != nil {
		return "", "", 0, "", fmt.Errorf("create temp dir: %w", err)
	}

	var (
		tempPath    string
		hash        string
		size        int64
		contentType string
	)

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("User-Agent", s.cfg.UserAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		defer resp.Body.Close()

		if retryableStatus(resp.StatusCode) {
			return fmt.Errorf("fetch %s: transient status %d", rawURL, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode))
		}

		contentType = resp.Header.Get("Content-Type")
		if !strings.Contains(strings.ToLower(contentType), "pdf") && !urlHasPDFSuffix(rawURL) {
			return backoff.Permanent(fmt.Errorf("fetch %s: not a pdf (content-type %q)", rawURL, contentType))
		}

		tmp, err := os.CreateTemp(tempDir, "download-*.pdf")
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create temp file: %w", err))
		}
		hasher := sha1.New()
		n, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
		closeErr := tmp.Close()
		if err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("read body %s: %w", rawURL, err)
		}
		if closeErr != nil {
			os.Remove(tmp.Name())
			return backoff.Permanent(fmt.Errorf("close temp file: %w", closeErr))
		}

		tempPath = tmp.Name()
		hash = hex.EncodeToString(hasher.Sum(nil))
		size = n
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newExponential(s.cfg), uint64(s.cfg.MaxRetries)), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return "", "", 0, "", err
	}
	return tempPath, hash, size, contentType, nil
}

func newExponential(cfg Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BackoffInitial
	b.MaxInterval = cfg.BackoffMax
	return b
}

// retryableStatus covers the transient status codes that earn a bounded
// retry; everything else is terminal for the URL.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// urlHasPDFSuffix reports whether the URL path (query and fragment
// stripped) names a .pdf resource.
func urlHasPDFSuffix(rawURL string) bool {
	u := rawURL
	if idx := strings.IndexAny(u, "?#"); idx >= 0 {
		u = u[:idx]
	}
	return strings.HasSuffix(strings.ToLower(u), ".pdf")
}

// originalNameFromURL derives the stored filename from the URL path,
// stripping any query string and ensuring a .pdf extension.
func originalNameFromURL(rawURL string) string {
	name := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		name = parsed.Path
	}
	if idx := strings.IndexAny(name, "?#"); idx >= 0 {
		name = name[:idx]
	}
	name = name[strings.LastIndex(name, "/")+1:]
	if name == "" {
		name = "document"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
