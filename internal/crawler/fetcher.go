// Package crawler implements sitemap-seeded, breadth-first discovery of
// PDF and HTML URLs on a single origin.
package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

// Page is the result of fetching a single URL during discovery.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Links       []string
}

// Fetcher fetches one URL and returns the body plus discovered links.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// CollyFetcher implements Fetcher using the Colly collector. Robots rules
// are enforced by the Session, not here, so the collector itself ignores
// robots.txt to avoid a second fetch per host.
type CollyFetcher struct {
	userAgent string
	timeout   time.Duration
	base      *colly.Collector
}

// NewCollyFetcher builds a fetcher with the given agent string and timeout.
func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CollyFetcher{
		userAgent: userAgent,
		timeout:   timeout,
		base:      c,
	}
}

// Fetch executes a single HTTP GET. Outbound <a href> links are resolved
// against the page URL and returned on the Page; they are only populated
// for HTML responses.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	var (
		page     Page
		fetchErr error
	)

	collector := f.base.Clone()
	if f.userAgent != "" {
		collector.UserAgent = f.userAgent
	}
	collector.SetRequestTimeout(f.timeout)

	collector.OnResponse(func(r *colly.Response) {
		page = Page{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if link := e.Request.AbsoluteURL(e.Attr("href")); link != "" {
			page.Links = append(page.Links, link)
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			page.StatusCode = r.StatusCode
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Page{}, fmt.Errorf("visit %s: %w", rawURL, err)
		}
		if fetchErr != nil {
			return Page{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
	}

	if page.StatusCode != 0 && page.StatusCode != 200 {
		return Page{}, fmt.Errorf("fetch %s: unexpected status %d", rawURL, page.StatusCode)
	}
	return page, nil
}
