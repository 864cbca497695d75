package index

import "sort"

// Retriever answers queries against a built index with fixed result-size
// and score-floor policy.
type Retriever struct {
	idx      *Index
	topK     int
	minScore float64
}

// NewRetriever wraps an index. topK <= 0 means unbounded.
func NewRetriever(idx *Index, topK int, minScore float64) *Retriever {
	return &Retriever{idx: idx, topK: topK, minScore: minScore}
}

// Retrieve runs a single query. year > 0 restricts results to chunks
// detected for that year.
func (r *Retriever) Retrieve(query string, year int) []ScoredChunk {
	return r.idx.Search(query, r.topK, year, r.minScore)
}

// MultiQuery runs every query and merges the results, keeping for each
// (document, page) pair only its best score across queries. The merged
// set is re-sorted descending and truncated to topK.
func (r *Retriever) MultiQuery(queries []string, year int) []ScoredChunk {
	type key struct {
		sha1 string
		page int
	}
	best := make(map[key]ScoredChunk)
	var order []key // first-seen order, keeps the merge deterministic

	for _, q := range queries {
		for _, sc := range r.idx.Search(q, r.topK, year, r.minScore) {
			k := key{sha1: sc.SHA1, page: sc.Page}
			prev, seen := best[k]
			if !seen {
				order = append(order, k)
				best[k] = sc
				continue
			}
			if sc.Score > prev.Score {
				best[k] = sc
			}
		}
	}

	merged := make([]ScoredChunk, 0, len(order))
	for _, k := range order {
		merged = append(merged, best[k])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if r.topK > 0 && len(merged) > r.topK {
		merged = merged[:r.topK]
	}
	return merged
}
