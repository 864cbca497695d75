package pdftext

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner substitutes the pdftotext binary.
type fakeRunner struct {
	out     []byte
	err     error
	gotName string
	gotArgs []string
}

func (f *fakeRunner) Run(name string, args ...string) ([]byte, error) {
	f.gotName = name
	f.gotArgs = args
	return f.out, f.err
}

func TestPdftotextSplitsPagesOnFormFeed(t *testing.T) {
	runner := &fakeRunner{out: []byte("pagina uno\fpagina due\f")}
	e := NewPdftotextEngine("pdftotext").WithRunner(runner)

	pages, err := e.ExtractPages("/tmp/doc.pdf")
	require.NoError(t, err)
	require.Equal(t, []string{"pagina uno", "pagina due"}, pages)
	require.Equal(t, "pdftotext", runner.gotName)
	require.Contains(t, runner.gotArgs, "-layout")
}

func TestPdftotextExtractJoinsPages(t *testing.T) {
	runner := &fakeRunner{out: []byte("uno\fdue\f")}
	e := NewPdftotextEngine("").WithRunner(runner)

	text, pages, err := e.Extract("/tmp/doc.pdf")
	require.NoError(t, err)
	require.Equal(t, 2, pages)
	require.Equal(t, "uno\n\ndue", text)
}

func TestPdftotextFirstPagesPassesRange(t *testing.T) {
	runner := &fakeRunner{out: []byte("uno\f")}
	e := NewPdftotextEngine("").WithRunner(runner)

	_, err := e.ExtractFirstPages("/tmp/doc.pdf", 2)
	require.NoError(t, err)
	require.Contains(t, runner.gotArgs, "-f")
	require.Contains(t, runner.gotArgs, "-l")
	require.Contains(t, runner.gotArgs, "2")
}

func TestPdftotextPropagatesRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	e := NewPdftotextEngine("").WithRunner(runner)

	_, err := e.ExtractPages("/tmp/doc.pdf")
	require.Error(t, err)
}

func TestSplitFormFeedsKeepsInteriorEmptyPages(t *testing.T) {
	pages := splitFormFeeds("uno\f\ftre\f")
	require.Equal(t, []string{"uno", "", "tre"}, pages)
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteWholeText(dir, "h1", "testo intero"))
	got, ok := ReadWholeText(dir, "h1")
	require.True(t, ok)
	require.Equal(t, "testo intero", got)

	_, ok = ReadWholeText(dir, "missing")
	require.False(t, ok)

	require.NoError(t, WritePages(dir, "h1", []string{"p1", "p2"}))
	pages, ok := ReadPages(dir, "h1", 2)
	require.True(t, ok)
	require.Equal(t, []string{"p1", "p2"}, pages)

	_, ok = ReadPages(dir, "h1", 3)
	require.False(t, ok, "an absent expected page is a miss")

	_, ok = ReadPages(dir, "h1", 0)
	require.False(t, ok)
}
