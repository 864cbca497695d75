// Package robots evaluates robots.txt rules, crawl delay, and sitemap
// directives for a single origin.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const maxRobotsBytes = 1 << 20

// Policy answers allow/deny, crawl-delay, and sitemap questions for one
// origin. An unloaded policy (no robots.txt, or a fetch failure) is
// fail-open: every URL is allowed and no sitemaps are known.
type Policy struct {
	userAgent string
	minDelay  time.Duration
	logger    *zap.Logger

	loaded bool
	group  *robotstxt.Group
	raw    string
}

// Load fetches {scheme}://{host}/robots.txt once and parses it. Fetch or
// parse failures leave the policy unloaded rather than returning an error;
// the crawl proceeds with allow-all semantics.
func Load(ctx context.Context, client *http.Client, baseURL, userAgent string, minDelay time.Duration, logger *zap.Logger) *Policy {
	p := &Policy{
		userAgent: userAgent,
		minDelay:  minDelay,
		logger:    logger,
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		logger.Warn("invalid base URL; robots unloaded", zap.String("base_url", baseURL), zap.Error(err))
		return p
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		logger.Warn("build robots request failed", zap.Error(err))
		return p
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("robots fetch failed; allowing all", zap.String("url", robotsURL), zap.Error(err))
		return p
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		logger.Info("no robots.txt; allowing all", zap.Int("status", resp.StatusCode))
		return p
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		logger.Warn("read robots body failed; allowing all", zap.Error(err))
		return p
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		logger.Warn("parse robots failed; allowing all", zap.Error(err))
		return p
	}

	p.loaded = true
	p.raw = string(body)
	p.group = data.FindGroup(userAgent)
	return p
}

// Unloaded builds a fail-open policy with only the configured delay floor.
func Unloaded(userAgent string, minDelay time.Duration) *Policy {
	return &Policy{userAgent: userAgent, minDelay: minDelay, logger: zap.NewNop()}
}

// Loaded reports whether a robots.txt was fetched and parsed.
func (p *Policy) Loaded() bool {
	return p.loaded
}

// CanFetch evaluates allow/disallow rules for the configured agent.
// Unloaded policies allow everything.
func (p *Policy) CanFetch(rawURL string) bool {
	if !p.loaded || p.group == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return p.group.Test(path)
}

// CrawlDelay returns the declared Crawl-delay clamped so it is never
// smaller than the configured minimum: the configured delay is a floor,
// not a ceiling.
func (p *Policy) CrawlDelay() time.Duration {
	if p.loaded && p.group != nil && p.group.CrawlDelay > p.minDelay {
		return p.group.CrawlDelay
	}
	return p.minDelay
}

// SitemapURLs returns every Sitemap directive found in the raw robots.txt
// text, matched by case-insensitive line prefix. Empty when unloaded.
func (p *Policy) SitemapURLs() []string {
	if !p.loaded {
		return nil
	}
	var sitemaps []string
	for _, line := range strings.Split(p.raw, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < len("sitemap:") {
			continue
		}
		if !strings.EqualFold(line[:len("sitemap:")], "sitemap:") {
			continue
		}
		if loc := strings.TrimSpace(line[len("sitemap:"):]); loc != "" {
			sitemaps = append(sitemaps, loc)
		}
	}
	return sitemaps
}
