package index

import (
	"math"
	"regexp"
	"strings"
)

// Okapi BM25 parameters. Negative IDF values are floored to a fraction of
// the average IDF so rare-everywhere terms cannot subtract relevance.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokenize lowercases the text and splits it on word boundaries. The same
// tokenizer serves indexing and querying so scores stay comparable.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// bm25Model holds the fitted corpus statistics. All fields are exported
// for gob round-tripping.
type bm25Model struct {
	CorpusSize int
	AvgDocLen  float64
	DocLens    []int
	// DocFreqs[i] maps each term of document i to its in-document count.
	DocFreqs []map[string]int
	IDF      map[string]float64
}

func fitBM25(corpus [][]string) *bm25Model {
	m := &bm25Model{
		CorpusSize: len(corpus),
		DocLens:    make([]int, len(corpus)),
		DocFreqs:   make([]map[string]int, len(corpus)),
		IDF:        make(map[string]float64),
	}

	nd := make(map[string]int)
	totalLen := 0
	for i, doc := range corpus {
		m.DocLens[i] = len(doc)
		totalLen += len(doc)
		freqs := make(map[string]int, len(doc))
		for _, term := range doc {
			freqs[term]++
		}
		m.DocFreqs[i] = freqs
		for term := range freqs {
			nd[term]++
		}
	}
	if m.CorpusSize > 0 {
		m.AvgDocLen = float64(totalLen) / float64(m.CorpusSize)
	}

	var idfSum float64
	var negative []string
	for term, docCount := range nd {
		idf := math.Log(float64(m.CorpusSize)-float64(docCount)+0.5) -
			math.Log(float64(docCount)+0.5)
		m.IDF[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	if len(m.IDF) > 0 {
		floor := bm25Epsilon * idfSum / float64(len(m.IDF))
		for _, term := range negative {
			m.IDF[term] = floor
		}
	}
	return m
}

// scores returns one BM25 score per corpus document for the query terms.
func (m *bm25Model) scores(query []string) []float64 {
	scores := make([]float64, m.CorpusSize)
	for _, term := range query {
		idf, ok := m.IDF[term]
		if !ok {
			continue
		}
		for i := 0; i < m.CorpusSize; i++ {
			freq := float64(m.DocFreqs[i][term])
			if freq == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(m.DocLens[i])/m.AvgDocLen
			scores[i] += idf * freq * (bm25K1 + 1) / (freq + bm25K1*norm)
		}
	}
	return scores
}
