package paths

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutPartitionsByYear(t *testing.T) {
	l := NewLayout("/data", "Firenze")

	require.Equal(t, filepath.Join("/data", "firenze", "pdfs", "2021"), l.PDFDir(2021))
	require.Equal(t, filepath.Join("/data", "firenze", "pdfs", "unknown"), l.PDFDir(0))
	require.Equal(t, filepath.Join("/data", "firenze", "texts", "2019"), l.TextDir(2019))
	require.Equal(t, filepath.Join("/data", "firenze", "values", "unknown"), l.ValueCacheDir(0))
	require.Equal(t, filepath.Join("/data", "firenze", "index"), l.IndexDir())
	require.Equal(t, filepath.Join("/data", "firenze", "catalog.sqlite"), l.CatalogPath())
}

func TestSanitizeFilenameReplacesUnsafeChars(t *testing.T) {
	got := SanitizeFilename("bilancio (copia) 2021/finale?.pdf", 200)
	require.False(t, strings.ContainsAny(got, "()/? "))
	require.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestSanitizeFilenameCapsLengthKeepingExtension(t *testing.T) {
	long := strings.Repeat("a", 300) + ".pdf"
	got := SanitizeFilename(long, 200)
	require.Len(t, got, 200)
	require.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestSanitizeFilenameKeepsShortNames(t *testing.T) {
	require.Equal(t, "doc_2021.pdf", SanitizeFilename("doc_2021.pdf", 200))
}
