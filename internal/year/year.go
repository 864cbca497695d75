// Package year infers a document's reporting year from its URL, its
// filename, and finally its content. The stages form an ordered strategy
// list with a uniform attempt/fall-through contract.
package year

import (
	"regexp"
	"strconv"
)

// Bounds of what counts as a plausible reporting year.
const (
	MinYear = 1990
	MaxYear = 2030
)

// contentScanChars caps how much document text the content stage scans.
const contentScanChars = 5000

// contentMaxPages is how many leading pages feed the content stage.
const contentMaxPages = 2

// yearToken matches a standalone 4-digit year so a longer number never
// contributes a substring match.
var yearToken = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// Document carries everything the strategies may inspect.
type Document struct {
	URL      string
	Filename string
	Path     string
}

// Strategy attempts to resolve a year, reporting false to fall through.
type Strategy interface {
	Name() string
	Resolve(doc Document) (int, bool)
}

// FirstPagesReader supplies leading-page text for the content strategy.
// The text extractor satisfies this with its dual-engine fallback.
type FirstPagesReader interface {
	FirstPagesText(path string, maxPages int) (string, error)
}

// Resolver runs its strategies in order; the first success wins. A zero
// result means the year is unknown and the document belongs to the
// dedicated unknown partition.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds the standard URL -> filename -> content chain.
// reader may be nil, in which case the content stage is skipped.
func NewResolver(reader FirstPagesReader) *Resolver {
	strategies := []Strategy{URLStrategy{}, FilenameStrategy{}}
	if reader != nil {
		strategies = append(strategies, ContentStrategy{Reader: reader})
	}
	return &Resolver{strategies: strategies}
}

// Resolve returns the detected year or 0 when every strategy fell through.
func (r *Resolver) Resolve(doc Document) int {
	for _, s := range r.strategies {
		if y, ok := s.Resolve(doc); ok {
			return y
		}
	}
	return 0
}

// URLStrategy scans the full URL for year tokens and takes the maximum.
type URLStrategy struct{}

// Name identifies the strategy.
func (URLStrategy) Name() string { return "url" }

// Resolve implements Strategy.
func (URLStrategy) Resolve(doc Document) (int, bool) {
	return maxTokenYear(doc.URL)
}

// FilenameStrategy repeats the URL scan against the filename alone.
type FilenameStrategy struct{}

// Name identifies the strategy.
func (FilenameStrategy) Name() string { return "filename" }

// Resolve implements Strategy.
func (FilenameStrategy) Resolve(doc Document) (int, bool) {
	return maxTokenYear(doc.Filename)
}

// ContentStrategy extracts the first pages of the document and picks the
// most frequent in-range year, breaking frequency ties by recency.
type ContentStrategy struct {
	Reader FirstPagesReader
}

// Name identifies the strategy.
func (ContentStrategy) Name() string { return "content" }

// Resolve implements Strategy.
func (s ContentStrategy) Resolve(doc Document) (int, bool) {
	if doc.Path == "" {
		return 0, false
	}
	text, err := s.Reader.FirstPagesText(doc.Path, contentMaxPages)
	if err != nil || text == "" {
		return 0, false
	}
	return FromText(text)
}

// FromText picks the most frequent in-range year token from the first
// 5000 characters, breaking frequency ties by the most recent year.
func FromText(text string) (int, bool) {
	if len(text) > contentScanChars {
		text = text[:contentScanChars]
	}
	counts := make(map[int]int)
	for _, m := range yearToken.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err != nil || y < MinYear || y > MaxYear {
			continue
		}
		counts[y]++
	}
	if len(counts) == 0 {
		return 0, false
	}
	best, bestCount := 0, 0
	for y, n := range counts {
		if n > bestCount || (n == bestCount && y > best) {
			best, bestCount = y, n
		}
	}
	return best, true
}

// maxTokenYear returns the largest in-range year token in s.
func maxTokenYear(s string) (int, bool) {
	best := 0
	for _, m := range yearToken.FindAllString(s, -1) {
		y, err := strconv.Atoi(m)
		if err != nil || y < MinYear || y > MaxYear {
			continue
		}
		if y > best {
			best = y
		}
	}
	return best, best != 0
}
