// Package pdftext extracts text from PDF documents using a primary
// in-process engine with a poppler pdftotext fallback, caching results on
// disk keyed by content hash.
package pdftext

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Engine extracts text from a PDF on disk.
type Engine interface {
	Name() string
	// Extract returns the whole document text and the page count.
	Extract(path string) (string, int, error)
	// ExtractPages returns per-page text, preserving page boundaries.
	ExtractPages(path string) ([]string, error)
	// ExtractFirstPages returns the concatenated text of the leading pages.
	ExtractFirstPages(path string, maxPages int) (string, error)
}

// LedongthucEngine extracts text in-process.
type LedongthucEngine struct{}

// Name identifies the engine in catalog records.
func (LedongthucEngine) Name() string { return "ledongthuc" }

// Extract implements Engine.
func (e LedongthucEngine) Extract(path string) (string, int, error) {
	pages, err := e.ExtractPages(path)
	if err != nil {
		return "", 0, err
	}
	return strings.Join(pages, "\n\n"), len(pages), nil
}

// ExtractPages implements Engine.
func (e LedongthucEngine) ExtractPages(path string) ([]string, error) {
	return e.readPages(path, 0)
}

// ExtractFirstPages implements Engine.
func (e LedongthucEngine) ExtractFirstPages(path string, maxPages int) (string, error) {
	pages, err := e.readPages(path, maxPages)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}

func (LedongthucEngine) readPages(path string, limit int) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	if limit > 0 && limit < total {
		total = limit
	}
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d of %s: %w", i, path, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// CommandRunner executes an external command and returns its stdout.
// It exists so tests can substitute the pdftotext binary.
type CommandRunner interface {
	Run(name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(name string, args ...string) ([]byte, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}

// PdftotextEngine shells out to poppler's pdftotext binary.
type PdftotextEngine struct {
	bin    string
	runner CommandRunner
}

// NewPdftotextEngine builds the fallback engine. bin defaults to
// "pdftotext" resolved on PATH.
func NewPdftotextEngine(bin string) *PdftotextEngine {
	if bin == "" {
		bin = "pdftotext"
	}
	return &PdftotextEngine{bin: bin, runner: execRunner{}}
}

// WithRunner substitutes the command runner, for tests.
func (e *PdftotextEngine) WithRunner(r CommandRunner) *PdftotextEngine {
	e.runner = r
	return e
}

// Name identifies the engine in catalog records.
func (e *PdftotextEngine) Name() string { return "pdftotext" }

// Available reports whether the binary can be resolved.
func (e *PdftotextEngine) Available() bool {
	_, err := exec.LookPath(e.bin)
	return err == nil
}

// Extract implements Engine.
func (e *PdftotextEngine) Extract(path string) (string, int, error) {
	pages, err := e.ExtractPages(path)
	if err != nil {
		return "", 0, err
	}
	return strings.Join(pages, "\n\n"), len(pages), nil
}

// ExtractPages implements Engine. pdftotext separates pages with form
// feeds on stdout.
func (e *PdftotextEngine) ExtractPages(path string) ([]string, error) {
	out, err := e.runner.Run(e.bin, "-enc", "UTF-8", "-layout", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext %s: %w", path, err)
	}
	return splitFormFeeds(string(out)), nil
}

// ExtractFirstPages implements Engine.
func (e *PdftotextEngine) ExtractFirstPages(path string, maxPages int) (string, error) {
	out, err := e.runner.Run(e.bin, "-enc", "UTF-8", "-layout",
		"-f", "1", "-l", fmt.Sprintf("%d", maxPages), path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext %s: %w", path, err)
	}
	return strings.Join(splitFormFeeds(string(out)), "\n\n"), nil
}

// splitFormFeeds splits pdftotext output into pages; poppler emits a
// trailing form feed after the final page.
func splitFormFeeds(out string) []string {
	pages := strings.Split(out, "\f")
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages
}
