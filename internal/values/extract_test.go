package values

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleText = `Nel 2021 la spesa corrente del comune è stata di € 1.234.567,89
come riportato nel bilancio consuntivo. La spesa per il personale
ammonta a 456.789,00 euro. Popolazione residente: 15.234 abitanti.`

func TestExtractFindsKeywordAdjacentNumbers(t *testing.T) {
	e := Extractor{}
	got := e.Extract(sampleText, []string{"spesa"}, 2021, Range{})
	require.NotEmpty(t, got)

	values := make([]float64, 0, len(got))
	for _, c := range got {
		values = append(values, c.Value)
	}
	require.Contains(t, values, 1234567.89)
}

func TestExtractOrdersByScoreDescending(t *testing.T) {
	e := Extractor{}
	got := e.Extract(sampleText, []string{"spesa", "bilancio"}, 2021, Range{})
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestExtractHonorsTopK(t *testing.T) {
	e := Extractor{TopK: 1}
	got := e.Extract(sampleText, []string{"spesa"}, 2021, Range{})
	require.Len(t, got, 1)
}

func TestCandidatesNotDuplicatedAcrossOverlappingWindows(t *testing.T) {
	e := Extractor{}
	got := e.Candidates("spesa e spesa totale 1.000,00", []string{"spesa"})
	count := 0
	for _, c := range got {
		if c.Value == 1000 {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestScoreMonotonicity(t *testing.T) {
	base := Candidate{Value: 500, Snippet: "testo senza parole chiave"}
	withKeyword := Candidate{Value: 500, Snippet: "la spesa è stata 500"}
	withKeywordAndYear := Candidate{Value: 500, Snippet: "la spesa 2021 è stata 500"}

	kws := []string{"spesa"}
	s0 := Score(base, kws, 2021, Range{})
	s1 := Score(withKeyword, kws, 2021, Range{})
	s2 := Score(withKeywordAndYear, kws, 2021, Range{})
	require.Greater(t, s1, s0)
	require.Greater(t, s2, s1)
}

func TestScoreRangeBonusAndPenalty(t *testing.T) {
	c := Candidate{Value: 500, Snippet: "spesa 500"}
	kws := []string{"spesa"}
	rng := Range{Min: 0, Max: 1000, Valid: true}

	inRange := Score(c, kws, 0, rng)
	outOfRange := Score(Candidate{Value: 5000, Snippet: "spesa 5000"}, kws, 0, rng)
	require.Greater(t, inRange, outOfRange)
	require.InDelta(t, 3.0, inRange-outOfRange, 1e-9)
}

func TestScorePenalizesYearValuedCandidates(t *testing.T) {
	yearLike := Score(Candidate{Value: 2021, Snippet: "spesa 2021"}, []string{"spesa"}, 0, Range{})
	datum := Score(Candidate{Value: 1234.56, Snippet: "spesa 1.234,56"}, []string{"spesa"}, 0, Range{})
	require.Greater(t, datum, yearLike)
}

func TestScorePenalizesImplausibleMagnitude(t *testing.T) {
	tiny := Score(Candidate{Value: 0.001, Snippet: "spesa 0,001"}, []string{"spesa"}, 0, Range{})
	normal := Score(Candidate{Value: 100, Snippet: "spesa 100"}, []string{"spesa"}, 0, Range{})
	require.Greater(t, normal, tiny)
}

func TestScorePenalizesExactZero(t *testing.T) {
	zero := Score(Candidate{Value: 0, Snippet: "spesa 0"}, []string{"spesa"}, 0, Range{})
	normal := Score(Candidate{Value: 100, Snippet: "spesa 100"}, []string{"spesa"}, 0, Range{})
	require.InDelta(t, 1.5, normal-zero, 1e-9)
}

func TestYearPenaltyCanBeDisabled(t *testing.T) {
	text := "la spesa nel 2021"
	kws := []string{"spesa"}

	deflt := Extractor{}.Extract(text, kws, 0, Range{})
	disabled := Extractor{YearPenalty: -1}.Extract(text, kws, 0, Range{})
	require.NotEmpty(t, deflt)
	require.NotEmpty(t, disabled)
	require.InDelta(t, DefaultYearPenalty, disabled[0].Score-deflt[0].Score, 1e-9)
}
