// Package paths defines the on-disk workspace layout. Everything the
// pipeline stores for one municipality lives under a single root,
// partitioned by detected year.
package paths

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// unknownPartition holds documents whose year could not be detected
// (year sentinel 0).
const unknownPartition = "unknown"

var unsafeChars = regexp.MustCompile(`[^\w\-.]`)

// Layout resolves workspace paths for one municipality.
type Layout struct {
	base   string
	comune string
}

// NewLayout roots a layout at base for the named municipality.
func NewLayout(base, comune string) Layout {
	return Layout{base: base, comune: strings.ToLower(strings.TrimSpace(comune))}
}

// Root is the municipality's workspace directory.
func (l Layout) Root() string {
	return filepath.Join(l.base, l.comune)
}

// PDFDir is the PDF partition for a detected year (0 = unknown).
func (l Layout) PDFDir(year int) string {
	return filepath.Join(l.Root(), "pdfs", yearPartition(year))
}

// TextDir is the extracted-text partition for a detected year.
func (l Layout) TextDir(year int) string {
	return filepath.Join(l.Root(), "texts", yearPartition(year))
}

// ValueCacheDir is the cached-extraction partition for a year.
func (l Layout) ValueCacheDir(year int) string {
	return filepath.Join(l.Root(), "values", yearPartition(year))
}

// IndexDir holds the persisted lexical index artifacts.
func (l Layout) IndexDir() string {
	return filepath.Join(l.Root(), "index")
}

// CatalogPath is the sqlite catalog file.
func (l Layout) CatalogPath() string {
	return filepath.Join(l.Root(), "catalog.sqlite")
}

// TempDir stages in-flight downloads before they are content-addressed.
func (l Layout) TempDir() string {
	return filepath.Join(l.Root(), "tmp")
}

func yearPartition(year int) string {
	if year == 0 {
		return unknownPartition
	}
	return strconv.Itoa(year)
}

// SanitizeFilename makes a name filesystem-safe, replacing anything
// outside [\w.-] and capping length while preserving the extension.
func SanitizeFilename(name string, maxLength int) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	if maxLength <= 0 || len(name) <= maxLength {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= maxLength {
		return name[:maxLength]
	}
	return name[:maxLength-len(ext)] + ext
}
