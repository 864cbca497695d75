package pdftext

import (
	"fmt"
	"os"
	"path/filepath"
)

// WholeTextPath is the cache location for a document's full text.
func WholeTextPath(dir, hash string) string {
	return filepath.Join(dir, hash+".txt")
}

// PageTextPath is the cache location for one page's text (1-based).
func PageTextPath(dir, hash string, page int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_p%d.txt", hash, page))
}

// ReadWholeText returns the cached full text, or false on any miss or
// read failure (cache corruption is a miss, never an error).
func ReadWholeText(dir, hash string) (string, bool) {
	data, err := os.ReadFile(WholeTextPath(dir, hash))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// WriteWholeText persists the full text for a hash.
func WriteWholeText(dir, hash, text string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create text dir: %w", err)
	}
	if err := os.WriteFile(WholeTextPath(dir, hash), []byte(text), 0o600); err != nil {
		return fmt.Errorf("write text cache: %w", err)
	}
	return nil
}

// ReadPages returns the cached per-page texts. Any absent or unreadable
// expected page file makes the whole read a miss.
func ReadPages(dir, hash string, expectedPages int) ([]string, bool) {
	if expectedPages <= 0 {
		return nil, false
	}
	pages := make([]string, 0, expectedPages)
	for i := 1; i <= expectedPages; i++ {
		data, err := os.ReadFile(PageTextPath(dir, hash, i))
		if err != nil {
			return nil, false
		}
		pages = append(pages, string(data))
	}
	return pages, true
}

// WritePages persists one file per (hash, page number).
func WritePages(dir, hash string, pages []string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create text dir: %w", err)
	}
	for i, text := range pages {
		if err := os.WriteFile(PageTextPath(dir, hash, i+1), []byte(text), 0o600); err != nil {
			return fmt.Errorf("write page cache: %w", err)
		}
	}
	return nil
}
