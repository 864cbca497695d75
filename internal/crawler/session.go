package crawler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/opencivica/comune-extractor/internal/metrics"
	"github.com/opencivica/comune-extractor/internal/robots"
)

// SessionConfig bounds a single discovery run.
type SessionConfig struct {
	BaseURL   string
	UserAgent string
	MaxPages  int
	MaxPDFs   int
	Timeout   time.Duration
}

// Session owns all mutable state for one discovery run: the visited set,
// the FIFO queue, and the accumulated URL lists. Each run gets a fresh
// Session; nothing here is shared across runs.
type Session struct {
	cfg     SessionConfig
	host    string
	policy  *robots.Policy
	fetcher Fetcher
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	visited  map[string]struct{}
	seenMaps map[string]struct{}
	pdfURLs  []string
	htmlURLs []string
}

// NewSession builds a session. The politeness limiter interval comes from
// the robots policy's crawl delay (which already honors the configured
// floor). Discovery is single-threaded by design: the delay is a global
// pacing constraint against one origin server.
func NewSession(cfg SessionConfig, policy *robots.Policy, fetcher Fetcher, logger *zap.Logger) (*Session, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	delay := policy.CrawlDelay()
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Session{
		cfg:      cfg,
		host:     strings.ToLower(parsed.Hostname()),
		policy:   policy,
		fetcher:  fetcher,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
		logger:   logger,
		visited:  make(map[string]struct{}),
		seenMaps: make(map[string]struct{}),
	}, nil
}

// Run discovers PDF and HTML URLs: sitemap seeding first, then a
// breadth-first crawl from the base URL if neither cap was reached.
// Returns the PDF URL list truncated to the cap and the full HTML list.
func (s *Session) Run(ctx context.Context) ([]string, []string, error) {
	for _, sm := range s.policy.SitemapURLs() {
		s.seedFromSitemap(ctx, sm)
	}

	if len(s.pdfURLs) < s.cfg.MaxPDFs && len(s.visited) < s.cfg.MaxPages {
		if err := s.bfsCrawl(ctx); err != nil {
			return nil, nil, err
		}
	}

	pdfs := s.pdfURLs
	if len(pdfs) > s.cfg.MaxPDFs {
		pdfs = pdfs[:s.cfg.MaxPDFs]
	}
	s.logger.Info("discovery finished",
		zap.Int("pdf_urls", len(pdfs)),
		zap.Int("html_urls", len(s.htmlURLs)),
		zap.Int("visited", len(s.visited)),
	)
	return pdfs, s.htmlURLs, nil
}

// seedFromSitemap consumes one sitemap document, classifying listed URLs
// and recursing into nested sitemap indexes.
func (s *Session) seedFromSitemap(ctx context.Context, sitemapURL string) {
	if _, seen := s.seenMaps[sitemapURL]; seen {
		return
	}
	s.seenMaps[sitemapURL] = struct{}{}

	doc, err := fetchSitemap(ctx, s.client, s.cfg.UserAgent, sitemapURL)
	if err != nil {
		s.logger.Warn("sitemap fetch failed", zap.String("url", sitemapURL), zap.Error(err))
		return
	}

	for _, entry := range doc.URLs {
		if entry.Loc != "" {
			s.classify(strings.TrimSpace(entry.Loc))
		}
	}
	for _, nested := range doc.Sitemaps {
		if loc := strings.TrimSpace(nested.Loc); loc != "" {
			s.seedFromSitemap(ctx, loc)
		}
	}
}

// classify records a sitemap-listed URL as PDF or HTML, subject to the
// PDF cap and the robots policy.
func (s *Session) classify(rawURL string) {
	if _, ok := s.visited[rawURL]; ok {
		return
	}
	if len(s.pdfURLs) >= s.cfg.MaxPDFs {
		return
	}
	s.visited[rawURL] = struct{}{}

	if hasPDFSuffix(rawURL) {
		if s.policy.CanFetch(rawURL) {
			s.pdfURLs = append(s.pdfURLs, rawURL)
		}
		return
	}
	s.htmlURLs = append(s.htmlURLs, rawURL)
}

// bfsCrawl walks the site breadth-first from the base URL using an
// explicit FIFO queue, visiting only same-host URLs allowed by robots.
func (s *Session) bfsCrawl(ctx context.Context) error {
	queue := []string{s.cfg.BaseURL}

	for len(queue) > 0 && len(s.visited) < s.cfg.MaxPages && len(s.pdfURLs) < s.cfg.MaxPDFs {
		rawURL := queue[0]
		queue = queue[1:]

		if _, ok := s.visited[rawURL]; ok {
			continue
		}
		if !s.sameHost(rawURL) {
			continue
		}
		if !s.policy.CanFetch(rawURL) {
			continue
		}
		s.visited[rawURL] = struct{}{}

		if hasPDFSuffix(rawURL) {
			s.pdfURLs = append(s.pdfURLs, rawURL)
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		metrics.CrawlRequests.Inc()
		page, err := s.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.CrawlErrors.Inc()
			s.logger.Debug("unreachable during crawl", zap.String("url", rawURL), zap.Error(err))
			continue
		}

		contentType := strings.ToLower(page.ContentType)
		switch {
		case strings.Contains(contentType, "pdf"):
			s.pdfURLs = append(s.pdfURLs, rawURL)
		case strings.Contains(contentType, "html"):
			s.htmlURLs = append(s.htmlURLs, rawURL)
			for _, link := range page.Links {
				if _, ok := s.visited[link]; !ok && s.sameHost(link) {
					queue = append(queue, link)
				}
			}
		}
	}
	return nil
}

func (s *Session) sameHost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), s.host)
}

func hasPDFSuffix(rawURL string) bool {
	u := rawURL
	if idx := strings.IndexAny(u, "?#"); idx >= 0 {
		u = u[:idx]
	}
	return strings.HasSuffix(strings.ToLower(u), ".pdf")
}
