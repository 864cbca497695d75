package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/catalog"
	"github.com/opencivica/comune-extractor/internal/paths"
	"github.com/opencivica/comune-extractor/internal/year"
)

var pdfBytes = []byte("%PDF-1.4 test document body")

func newTestStore(t *testing.T) (*Store, *catalog.Catalog, paths.Layout) {
	t.Helper()
	layout := paths.NewLayout(t.TempDir(), "testcomune")
	cat, err := catalog.Open(layout.CatalogPath())
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	s := New(cat, layout, year.NewResolver(nil), Config{
		UserAgent:  "test-agent",
		MaxRetries: 2,
	}, zap.NewNop())
	return s, cat, layout
}

func servePDF(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdfBytes) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStoreDownloadsAndPartitionsByYear(t *testing.T) {
	s, cat, layout := newTestStore(t)
	srv := servePDF(t, nil)

	url := srv.URL + "/documenti/bilancio_2021.pdf"
	outcome, err := s.Store(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, OutcomeDownloaded, outcome)

	rec, err := cat.PDFByURL(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, 2021, rec.DetectedYear)
	require.Equal(t, filepath.Dir(rec.LocalPath), layout.PDFDir(2021))

	data, err := os.ReadFile(rec.LocalPath)
	require.NoError(t, err)
	require.Equal(t, pdfBytes, data)

	base := filepath.Base(rec.LocalPath)
	require.Equal(t, rec.SHA1[:8]+"_bilancio_2021.pdf", base)
}

func TestStoreSecondCallIsCachedWithoutNetwork(t *testing.T) {
	s, _, _ := newTestStore(t)
	var hits atomic.Int64
	srv := servePDF(t, &hits)

	url := srv.URL + "/doc_2020.pdf"
	outcome, err := s.Store(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, OutcomeDownloaded, outcome)

	outcome, err = s.Store(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, OutcomeCached, outcome)
	require.Equal(t, int64(1), hits.Load(), "cached call must not refetch")
}

func TestStoreDeduplicatesIdenticalContentAcrossURLs(t *testing.T) {
	s, cat, _ := newTestStore(t)
	srv := servePDF(t, nil)

	first := srv.URL + "/a/bilancio_2021.pdf"
	second := srv.URL + "/b/copia_2021.pdf"

	outcome, err := s.Store(context.Background(), first)
	require.NoError(t, err)
	require.Equal(t, OutcomeDownloaded, outcome)

	outcome, err = s.Store(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, OutcomeDeduplicated, outcome)

	n, err := cat.CountPDFs(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n, "byte-identical content stored once")

	rec, err := cat.PDFByURL(context.Background(), second)
	require.NoError(t, err)
	require.FileExists(t, rec.LocalPath)
}

func TestStoreFailsOnNotFound(t *testing.T) {
	s, _, _ := newTestStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	outcome, err := s.Store(context.Background(), srv.URL+"/missing.pdf")
	require.Error(t, err)
	require.Equal(t, OutcomeFailed, outcome)
}

func TestStoreRetriesTransientErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdfBytes) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	s, _, _ := newTestStore(t)
	outcome, err := s.Store(context.Background(), srv.URL+"/retry_2021.pdf")
	require.NoError(t, err)
	require.Equal(t, OutcomeDownloaded, outcome)
	require.Equal(t, int64(2), hits.Load())
}

func TestStoreRejectsNonPDFContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>")) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	s, _, _ := newTestStore(t)
	outcome, err := s.Store(context.Background(), srv.URL+"/page")
	require.Error(t, err)
	require.Equal(t, OutcomeFailed, outcome)
}

func TestDownloadAllAggregatesOutcomes(t *testing.T) {
	s, _, _ := newTestStore(t)
	srv := servePDF(t, nil)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(bad.Close)

	urls := []string{
		srv.URL + "/a_2021.pdf",
		srv.URL + "/b_2021.pdf", // same bytes: deduplicated
		bad.URL + "/missing.pdf",
	}
	stats := s.DownloadAll(context.Background(), urls, 1)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 1, stats.Downloaded)
	require.Equal(t, 1, stats.Deduplicated)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 0, stats.Cached)
}

func TestOriginalNameFromURL(t *testing.T) {
	require.Equal(t, "bilancio.pdf", originalNameFromURL("https://x.it/docs/bilancio.pdf?v=2"))
	require.Equal(t, "doc.pdf", originalNameFromURL("https://x.it/docs/doc"))
	require.Equal(t, "document.pdf", originalNameFromURL("https://x.it/"))
}
