package queries

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	cases := []struct {
		indicator string
		want      Category
	}{
		{"spesa corrente pro capite", CategoryFinancial},
		{"popolazione residente", CategoryDemographic},
		{"percentuale raccolta differenziata", CategoryEnvironmental},
		{"km di strade illuminate", CategoryInfrastructure},
		{"indice di qualità della vita", CategoryGeneral},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Categorize(tc.indicator), "indicator %q", tc.indicator)
	}
}

func TestGenerateNeverExceedsMaxQueries(t *testing.T) {
	got := Generate("spesa per rifiuti e entrata tributaria", 2021)
	require.LessOrEqual(t, len(got), MaxQueries)
	require.NotEmpty(t, got)
}

func TestGeneratePrimaryQueryCarriesYearAndContext(t *testing.T) {
	got := Generate("spesa corrente", 2021)
	require.Contains(t, got[0], "spesa corrente")
	require.Contains(t, got[0], "2021")
	require.Contains(t, got[0], "bilancio comunale")
}

func TestGenerateSynonymVariant(t *testing.T) {
	got := Generate("spesa corrente", 2021)
	require.Len(t, got, 2)
	require.Contains(t, got[1], "costo corrente")
}

func TestGenerateWithoutSynonym(t *testing.T) {
	got := Generate("verbali del consiglio", 2020)
	require.Len(t, got, 1)
}

func TestGenerateUnknownYearOmitsYearToken(t *testing.T) {
	got := Generate("spesa corrente", 0)
	for _, q := range got {
		require.False(t, strings.ContainsAny(q, "0123456789"), "query %q", q)
	}
}

func TestKeywordsIncludeSynonymTerms(t *testing.T) {
	got := Keywords("spesa per rifiuti")
	require.Contains(t, got, "spesa")
	require.Contains(t, got, "rifiuti")
	require.Contains(t, got, "costo")
	require.Contains(t, got, "differenziata")
}

func TestKeywordsDeduplicated(t *testing.T) {
	got := Keywords("spesa spesa")
	count := 0
	for _, k := range got {
		if k == "spesa" {
			count++
		}
	}
	require.Equal(t, 1, count)
}
