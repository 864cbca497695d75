package values

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/opencivica/comune-extractor/internal/year"
)

// Defaults for the extraction window around a keyword hit and the snippet
// carried on each candidate.
const (
	DefaultWindow     = 300
	DefaultSnippetLen = 240
	DefaultTopK       = 3

	// DefaultYearPenalty is subtracted from candidates whose value is
	// itself a plausible year.
	DefaultYearPenalty = 1.0
)

// numberPattern matches Italian-formatted numbers with optional currency
// and percent decoration, including accounting-style parentheses.
var numberPattern = regexp.MustCompile(`€?\s*[-+]?\(?\d[\d.\s,]*\d\)?\s*[€%]?|\(?\d\)?\s*[€%]?`)

// Range bounds plausible values for an indicator. Valid=false disables
// the range terms of the score.
type Range struct {
	Min   float64
	Max   float64
	Valid bool
}

// Candidate is one scored numeric value found near a keyword.
type Candidate struct {
	Raw     string
	Value   float64
	Offset  int // byte offset of the match in the source text
	Snippet string
	Score   float64
}

// Extractor scans text for indicator values. Zero-value fields fall back
// to the package defaults.
type Extractor struct {
	Window     int
	SnippetLen int
	TopK       int
	// YearPenalty weights the deduction for year-valued candidates.
	// Zero falls back to the default; a negative value disables it.
	YearPenalty float64
}

func (e Extractor) window() int {
	if e.Window > 0 {
		return e.Window
	}
	return DefaultWindow
}

func (e Extractor) snippetLen() int {
	if e.SnippetLen > 0 {
		return e.SnippetLen
	}
	return DefaultSnippetLen
}

func (e Extractor) topK() int {
	if e.TopK > 0 {
		return e.TopK
	}
	return DefaultTopK
}

func (e Extractor) yearPenalty() float64 {
	if e.YearPenalty < 0 {
		return 0
	}
	if e.YearPenalty == 0 {
		return DefaultYearPenalty
	}
	return e.YearPenalty
}

// Extract returns the top candidates for the keywords in descending score
// order. Ties keep text order, so results are deterministic.
func (e Extractor) Extract(text string, keywords []string, yr int, rng Range) []Candidate {
	candidates := e.Candidates(text, keywords)
	for i := range candidates {
		candidates[i].Score = scoreWith(candidates[i], keywords, yr, rng, e.yearPenalty())
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > e.topK() {
		candidates = candidates[:e.topK()]
	}
	return candidates
}

// Candidates finds every parsable number within the window around each
// keyword occurrence. Overlapping windows yield each number once.
func (e Extractor) Candidates(text string, keywords []string) []Candidate {
	lower := strings.ToLower(text)
	seen := make(map[int]bool)
	var out []Candidate

	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		for from := 0; ; {
			rel := strings.Index(lower[from:], kw)
			if rel < 0 {
				break
			}
			pos := from + rel
			from = pos + len(kw)

			lo := pos - e.window()
			if lo < 0 {
				lo = 0
			}
			hi := pos + len(kw) + e.window()
			if hi > len(text) {
				hi = len(text)
			}

			for _, loc := range numberPattern.FindAllStringIndex(text[lo:hi], -1) {
				start := lo + loc[0]
				if seen[start] {
					continue
				}
				raw := text[start : lo+loc[1]]
				value, ok := NormalizeNumber(raw)
				if !ok {
					continue
				}
				seen[start] = true
				out = append(out, Candidate{
					Raw:     strings.TrimSpace(raw),
					Value:   value,
					Offset:  start,
					Snippet: e.snippet(text, start, lo+loc[1]),
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

func (e Extractor) snippet(text string, start, end int) string {
	pad := (e.snippetLen() - (end - start)) / 2
	if pad < 0 {
		pad = 0
	}
	lo := start - pad
	if lo < 0 {
		lo = 0
	}
	hi := end + pad
	if hi > len(text) {
		hi = len(text)
	}
	return strings.Join(strings.Fields(text[lo:hi]), " ")
}

// Score rates how plausibly a candidate answers the (keywords, year)
// question. Keyword proximity, year co-occurrence and range fit raise the
// score; implausible magnitudes lower it.
func Score(c Candidate, keywords []string, yr int, rng Range) float64 {
	return scoreWith(c, keywords, yr, rng, DefaultYearPenalty)
}

func scoreWith(c Candidate, keywords []string, yr int, rng Range, yearPenalty float64) float64 {
	snippet := strings.ToLower(c.Snippet)
	var score float64

	matched := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(snippet, kw) {
			matched++
		}
	}
	score += 1.5 * float64(matched)
	if matched >= 2 {
		score += 1.0
	}

	if yr > 0 && strings.Contains(snippet, strconv.Itoa(yr)) {
		score += 0.5
	}

	if rng.Valid {
		if c.Value >= rng.Min && c.Value <= rng.Max {
			score += 2.0
		} else {
			score -= 1.0
		}
	}

	abs := c.Value
	if abs < 0 {
		abs = -abs
	}
	if abs < 0.01 || abs > 1e12 {
		score -= 1.5
	}

	// A candidate whose value is itself a plausible year is usually the
	// period label next to the datum, not the datum.
	if yearPenalty > 0 && c.Value == float64(int(c.Value)) && int(c.Value) >= year.MinYear && int(c.Value) <= year.MaxYear {
		score -= yearPenalty
	}
	return score
}
