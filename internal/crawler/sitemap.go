package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
)

const maxSitemapBytes = 16 << 20

// sitemapDoc decodes both <urlset> and <sitemapindex> documents; the
// element local names differ so one shape covers both.
type sitemapDoc struct {
	URLs     []sitemapEntry `xml:"url"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// fetchSitemap downloads and decodes one sitemap document. Sitemap
// fetches are exempt from the politeness limiter: they are not paced
// against the crawl target's page budget.
func fetchSitemap(ctx context.Context, client *http.Client, userAgent, sitemapURL string) (sitemapDoc, error) {
	var doc sitemapDoc

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return doc, fmt.Errorf("build sitemap request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return doc, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return doc, fmt.Errorf("fetch sitemap %s: status %d", sitemapURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return doc, fmt.Errorf("read sitemap %s: %w", sitemapURL, err)
	}

	if err := xml.Unmarshal(body, &doc); err != nil {
		return doc, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}
	return doc, nil
}
