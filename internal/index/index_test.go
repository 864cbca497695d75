package index

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testChunks() []Chunk {
	return []Chunk{
		{SHA1: "aaa", Page: 1, Year: 2021, Filename: "bilancio.pdf", Text: "bilancio di previsione spesa corrente del comune"},
		{SHA1: "aaa", Page: 2, Year: 2021, Filename: "bilancio.pdf", Text: "popolazione residente e dati anagrafici"},
		{SHA1: "bbb", Page: 1, Year: 2020, Filename: "rifiuti.pdf", Text: "raccolta differenziata dei rifiuti urbani percentuale"},
		{SHA1: "ccc", Page: 1, Year: 2019, Filename: "verbale.pdf", Text: "verbale della seduta del consiglio comunale"},
	}
}

func TestSearchRanksMatchingChunkFirst(t *testing.T) {
	idx := Build(testChunks())

	got := idx.Search("raccolta differenziata rifiuti", 10, 0, 0)
	require.NotEmpty(t, got)
	require.Equal(t, "bbb", got[0].SHA1)
	require.Equal(t, 1, got[0].Page)
}

func TestSearchOrdersDescending(t *testing.T) {
	idx := Build(testChunks())

	got := idx.Search("spesa comune", 10, 0, 0)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestSearchHonorsTopK(t *testing.T) {
	idx := Build(testChunks())
	got := idx.Search("comune", 2, 0, 0)
	require.LessOrEqual(t, len(got), 2)
}

func TestSearchYearFilter(t *testing.T) {
	chunks := append(testChunks(), Chunk{
		SHA1: "ddd", Page: 1, Year: 0, Filename: "allegato.pdf",
		Text: "spesa corrente del comune senza anno",
	})
	idx := Build(chunks)

	got := idx.Search("spesa corrente comune", 10, 2021, 0)
	require.NotEmpty(t, got)
	for _, sc := range got {
		require.Equal(t, 2021, sc.Year, "unknown-year chunks are excluded under a concrete filter")
	}

	unfiltered := idx.Search("spesa corrente comune", 10, 0, 0)
	require.Greater(t, len(unfiltered), len(got))
}

func TestSearchMinScoreFilters(t *testing.T) {
	idx := Build(testChunks())
	got := idx.Search("spesa", 10, 0, 1000)
	require.Empty(t, got)
}

func TestSearchOnEmptyIndex(t *testing.T) {
	idx := Build(nil)
	require.Empty(t, idx.Search("anything", 10, 0, 0))
}

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	got := Tokenize("Bilancio 2021: Spesa corrente, €1.234")
	require.Equal(t, []string{"bilancio", "2021", "spesa", "corrente", "1", "234"}, got)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	idx := Build(testChunks())
	require.NoError(t, idx.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, idx.Len(), loaded.Len())

	orig := idx.Search("raccolta differenziata", 3, 0, 0)
	got := loaded.Search("raccolta differenziata", 3, 0, 0)
	require.Equal(t, orig, got)
}

func TestLoadMissingArtifactsReturnsErrNotFound(t *testing.T) {
	_, err := Load(t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFingerprintTracksChunkContent(t *testing.T) {
	chunks := testChunks()
	fp := Fingerprint(chunks)
	require.Equal(t, fp, Build(chunks).Fingerprint())

	reYeared := testChunks()
	reYeared[0].Year = 2022
	require.NotEqual(t, fp, Fingerprint(reYeared), "a year re-assignment with equal count must not match")

	edited := testChunks()
	edited[0].Text = "testo sostituito con altro contenuto qualsiasi"
	require.NotEqual(t, fp, Fingerprint(edited))
}

func TestAddRefitsCorpus(t *testing.T) {
	idx := Build(testChunks()[:2])
	require.Empty(t, idx.Search("rifiuti", 10, 0, 0))

	idx.Add(testChunks()[2:])
	got := idx.Search("rifiuti", 10, 0, 0)
	require.NotEmpty(t, got)
	require.Equal(t, "bbb", got[0].SHA1)
}
