package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/robots"
)

// fakeFetcher serves canned pages and records which URLs were fetched.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]Page
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	f.mu.Unlock()

	page, ok := f.pages[rawURL]
	if !ok {
		return Page{}, fmt.Errorf("no page for %s", rawURL)
	}
	return page, nil
}

func htmlPage(url string, links ...string) Page {
	return Page{URL: url, StatusCode: 200, ContentType: "text/html; charset=utf-8", Links: links}
}

func newTestSession(t *testing.T, cfg SessionConfig, fetcher Fetcher) *Session {
	t.Helper()
	if cfg.UserAgent == "" {
		cfg.UserAgent = "test-agent"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	s, err := NewSession(cfg, robots.Unloaded(cfg.UserAgent, 0), fetcher, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestBFSDiscoversPDFLinks(t *testing.T) {
	base := "https://comune.example.it/"
	f := &fakeFetcher{pages: map[string]Page{
		base: htmlPage(base,
			"https://comune.example.it/bilanci",
			"https://comune.example.it/doc/bilancio_2021.pdf",
		),
		"https://comune.example.it/bilanci": htmlPage("https://comune.example.it/bilanci",
			"https://comune.example.it/doc/consuntivo_2020.pdf",
		),
	}}

	s := newTestSession(t, SessionConfig{BaseURL: base, MaxPages: 100, MaxPDFs: 100}, f)
	pdfs, htmls, err := s.Run(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		"https://comune.example.it/doc/bilancio_2021.pdf",
		"https://comune.example.it/doc/consuntivo_2020.pdf",
	}, pdfs)
	require.Len(t, htmls, 2)
}

func TestBFSRespectsMaxPagesExactly(t *testing.T) {
	base := "https://comune.example.it/p0"
	pages := map[string]Page{}
	for i := 0; i < 30; i++ {
		url := fmt.Sprintf("https://comune.example.it/p%d", i)
		next := fmt.Sprintf("https://comune.example.it/p%d", i+1)
		pages[url] = htmlPage(url, next)
	}
	f := &fakeFetcher{pages: pages}

	s := newTestSession(t, SessionConfig{BaseURL: base, MaxPages: 10, MaxPDFs: 100}, f)
	_, _, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, f.fetched, 10)
}

func TestBFSRespectsMaxPDFs(t *testing.T) {
	base := "https://comune.example.it/"
	links := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		links = append(links, fmt.Sprintf("https://comune.example.it/doc%d.pdf", i))
	}
	f := &fakeFetcher{pages: map[string]Page{base: htmlPage(base, links...)}}

	s := newTestSession(t, SessionConfig{BaseURL: base, MaxPages: 100, MaxPDFs: 3}, f)
	pdfs, _, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, pdfs, 3)
}

func TestBFSStaysOnHost(t *testing.T) {
	base := "https://comune.example.it/"
	f := &fakeFetcher{pages: map[string]Page{
		base: htmlPage(base,
			"https://other.example.com/page",
			"https://other.example.com/doc.pdf",
		),
	}}

	s := newTestSession(t, SessionConfig{BaseURL: base, MaxPages: 100, MaxPDFs: 100}, f)
	pdfs, _, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, pdfs)
	require.Len(t, f.fetched, 1, "cross-host links are never fetched")
}

func TestContentTypeClassifiesPDFWithoutSuffix(t *testing.T) {
	base := "https://comune.example.it/"
	docURL := "https://comune.example.it/download?id=42"
	f := &fakeFetcher{pages: map[string]Page{
		base:   htmlPage(base, docURL),
		docURL: {URL: docURL, StatusCode: 200, ContentType: "application/pdf"},
	}}

	s := newTestSession(t, SessionConfig{BaseURL: base, MaxPages: 100, MaxPDFs: 100}, f)
	pdfs, _, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{docURL}, pdfs)
}

func TestUnreachablePagesAreSkippedNotFatal(t *testing.T) {
	base := "https://comune.example.it/"
	f := &fakeFetcher{pages: map[string]Page{
		base: htmlPage(base, "https://comune.example.it/broken", "https://comune.example.it/doc.pdf"),
	}}

	s := newTestSession(t, SessionConfig{BaseURL: base, MaxPages: 100, MaxPDFs: 100}, f)
	pdfs, _, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"https://comune.example.it/doc.pdf"}, pdfs)
}

func TestSitemapSeedingBeforeBFS(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nAllow: /\nSitemap: %s/sitemap.xml\n", srvURL)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/documenti/bilancio_2021.pdf</loc></url>
  <url><loc>%s/pagina</loc></url>
</urlset>`, srvURL, srvURL)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	policy := robots.Load(context.Background(), srv.Client(), srv.URL, "test-agent", 0, zap.NewNop())
	require.True(t, policy.Loaded())

	f := &fakeFetcher{pages: map[string]Page{}}
	s, err := NewSession(SessionConfig{
		BaseURL:   srv.URL,
		UserAgent: "test-agent",
		MaxPages:  100,
		MaxPDFs:   100,
		Timeout:   time.Second,
	}, policy, f, zap.NewNop())
	require.NoError(t, err)

	pdfs, htmls, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{srvURL + "/documenti/bilancio_2021.pdf"}, pdfs)
	require.Contains(t, htmls, srvURL+"/pagina")
}

func TestHasPDFSuffixStripsQueryAndFragment(t *testing.T) {
	require.True(t, hasPDFSuffix("https://x.it/doc.pdf"))
	require.True(t, hasPDFSuffix("https://x.it/doc.PDF?v=1"))
	require.True(t, hasPDFSuffix("https://x.it/doc.pdf#page=3"))
	require.False(t, hasPDFSuffix("https://x.it/doc.pdfx"))
	require.False(t, hasPDFSuffix("https://x.it/page?file=doc.pdf")) // query stripped first
}
