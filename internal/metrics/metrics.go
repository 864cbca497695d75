// Package metrics exposes Prometheus counters for the pipeline stages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CrawlRequests tracks HTTP requests dispatched during discovery.
	CrawlRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_crawl_requests_total",
		Help: "The total number of HTTP requests sent during crawl discovery.",
	})
	// CrawlErrors tracks discovery requests that failed or timed out.
	CrawlErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_crawl_errors_total",
		Help: "The total number of failed discovery requests.",
	})
	// PDFsDownloaded tracks PDFs fetched and stored for the first time.
	PDFsDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_pdfs_downloaded_total",
		Help: "The total number of PDFs downloaded and stored.",
	})
	// PDFsDeduplicated tracks downloads recognized as byte-identical content.
	PDFsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_pdfs_deduplicated_total",
		Help: "The total number of downloads deduplicated by content hash.",
	})
	// PDFCacheHits tracks store calls satisfied without a network fetch.
	PDFCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_pdf_cache_hits_total",
		Help: "The total number of store calls answered from the catalog.",
	})
	// PDFFailures tracks downloads that failed terminally.
	PDFFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_pdf_failures_total",
		Help: "The total number of PDF downloads that failed.",
	})
	// TextsExtracted tracks successful text extractions.
	TextsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_texts_extracted_total",
		Help: "The total number of documents whose text was extracted.",
	})
	// TextCacheHits tracks extractions served from the disk cache.
	TextCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_text_cache_hits_total",
		Help: "The total number of extractions answered from the text cache.",
	})
	// ExtractionFailures tracks documents where both engines raised.
	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_extraction_failures_total",
		Help: "The total number of documents that failed both extraction engines.",
	})
	// ValueCacheHits tracks LLM value lookups answered from the cache.
	ValueCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_value_cache_hits_total",
		Help: "The total number of LLM extractions answered from the value cache.",
	})
)
