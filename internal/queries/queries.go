// Package queries builds Italian search queries for (indicator, year)
// cells, categorizing indicators and expanding common synonyms so a second
// query can catch documents phrased differently.
package queries

import (
	"fmt"
	"strings"
)

// MaxQueries bounds the query list per cell; each extra query costs a
// full retrieval pass.
const MaxQueries = 2

// Category groups indicators by theme to pick context terms.
type Category string

// Indicator categories.
const (
	CategoryFinancial      Category = "financial"
	CategoryDemographic    Category = "demographic"
	CategoryEnvironmental  Category = "environmental"
	CategoryInfrastructure Category = "infrastructure"
	CategoryGeneral        Category = "general"
)

var categoryTerms = map[Category][]string{
	CategoryFinancial:      {"spesa", "costo", "bilancio", "entrata", "uscita", "euro", "importo", "pagamento", "tributo", "imposta"},
	CategoryDemographic:    {"abitanti", "popolazione", "residenti", "famiglie", "nascite", "decessi", "anagrafe"},
	CategoryEnvironmental:  {"rifiuti", "raccolta", "differenziata", "ambiente", "verde", "emissioni", "energia"},
	CategoryInfrastructure: {"strade", "illuminazione", "scuole", "edifici", "manutenzione", "lavori", "opere"},
}

var categoryContext = map[Category]string{
	CategoryFinancial:      "bilancio comunale",
	CategoryDemographic:    "statistiche demografiche",
	CategoryEnvironmental:  "ambiente comune",
	CategoryInfrastructure: "opere pubbliche comune",
	CategoryGeneral:        "comune",
}

// synonyms drives the variant query: the first term of an indicator that
// has a known synonym gets substituted. Ordered so the variant picked for
// a multi-term indicator is stable.
var synonyms = []struct{ term, sub string }{
	{"spesa", "costo"},
	{"abitanti", "popolazione"},
	{"rifiuti", "raccolta differenziata"},
	{"entrata", "introito"},
}

// Categorize assigns the indicator to the first category any of whose
// terms appears in it.
func Categorize(indicator string) Category {
	lower := strings.ToLower(indicator)
	for _, cat := range []Category{CategoryFinancial, CategoryDemographic, CategoryEnvironmental, CategoryInfrastructure} {
		for _, term := range categoryTerms[cat] {
			if strings.Contains(lower, term) {
				return cat
			}
		}
	}
	return CategoryGeneral
}

// Generate returns at most MaxQueries queries for the cell: the primary
// query (indicator + year + category context) and, when a synonym
// applies, one variant with the synonym substituted.
func Generate(indicator string, year int) []string {
	cat := Categorize(indicator)

	primary := buildQuery(indicator, year, cat)
	out := []string{primary}

	if variant, ok := synonymVariant(indicator); ok {
		q := buildQuery(variant, year, cat)
		if q != primary {
			out = append(out, q)
		}
	}
	if len(out) > MaxQueries {
		out = out[:MaxQueries]
	}
	return out
}

func buildQuery(indicator string, year int, cat Category) string {
	parts := []string{strings.TrimSpace(indicator)}
	if year > 0 {
		parts = append(parts, fmt.Sprintf("%d", year))
	}
	parts = append(parts, categoryContext[cat])
	return strings.Join(parts, " ")
}

func synonymVariant(indicator string) (string, bool) {
	lower := strings.ToLower(indicator)
	for _, s := range synonyms {
		if idx := strings.Index(lower, s.term); idx >= 0 {
			return indicator[:idx] + s.sub + indicator[idx+len(s.term):], true
		}
	}
	return "", false
}

// Keywords returns the retrieval keywords for an indicator: its own words
// plus the matched synonym, lowercased and deduplicated.
func Keywords(indicator string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	for _, w := range strings.Fields(indicator) {
		add(w)
	}
	for _, s := range synonyms {
		if strings.Contains(strings.ToLower(indicator), s.term) {
			for _, w := range strings.Fields(s.sub) {
				add(w)
			}
		}
	}
	return out
}
