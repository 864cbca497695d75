package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/index"
	"github.com/opencivica/comune-extractor/internal/output"
	"github.com/opencivica/comune-extractor/internal/queries"
	"github.com/opencivica/comune-extractor/internal/values"
)

// heuristicMaxDocs bounds how many retrieved chunks the heuristic
// extractor inspects per cell.
const heuristicMaxDocs = 3

// heuristicScoreScale maps a raw candidate score onto [0,1] confidence.
const heuristicScoreScale = 5.0

// FillCells answers every (indicator, year) cell from the index, trying
// the LLM first (when enabled), then the keyword heuristic, then the
// external sources, and finally recording NOT_FOUND. Every cell gets
// exactly one source row.
func (p *Pipeline) FillCells(ctx context.Context, idx *index.Index, indicators []string) ([]output.SourceRecord, []output.QueryRecord) {
	years := p.cfg.Years
	if len(years) == 0 {
		years = []int{0}
	}

	retriever := index.NewRetriever(idx, p.cfg.Retrieval.TopK, p.cfg.Retrieval.MinScore)
	extractor := values.Extractor{
		Window:      p.cfg.Values.ContextWindow,
		SnippetLen:  p.cfg.Values.SnippetLen,
		TopK:        p.cfg.Values.TopK,
		YearPenalty: p.cfg.Values.YearPenalty,
	}

	var sources []output.SourceRecord
	var queryRows []output.QueryRecord

	for _, indicator := range indicators {
		for _, y := range years {
			qs := queries.Generate(indicator, y)
			row := output.QueryRecord{
				Indicator: indicator,
				Category:  string(queries.Categorize(indicator)),
				Year:      y,
				Query1:    qs[0],
			}
			if len(qs) > 1 {
				row.Query2 = qs[1]
			}
			queryRows = append(queryRows, row)

			hits := retriever.MultiQuery(qs, y)
			sources = append(sources, p.fillCell(ctx, extractor, hits, indicator, y))
		}
	}
	return sources, queryRows
}

func (p *Pipeline) fillCell(ctx context.Context, extractor values.Extractor, hits []index.ScoredChunk, indicator string, y int) output.SourceRecord {
	if p.llm != nil {
		if rec, ok := p.fillWithLLM(ctx, hits, indicator, y); ok {
			return rec
		}
	}
	if rec, ok := p.fillWithHeuristic(extractor, hits, indicator, y); ok {
		return rec
	}
	if p.external != nil {
		if v, err := p.external.Query(ctx, p.cfg.Comune, indicator, y); err == nil {
			return output.SourceRecord{
				Indicator:  indicator,
				Year:       y,
				Value:      v.Value,
				URL:        v.URL,
				Confidence: v.Confidence,
				Method:     output.MethodExternal + "_" + v.Source,
				DocID:      v.Source,
			}
		}
	}
	return output.SourceRecord{Indicator: indicator, Year: y, Method: output.MethodNotFound}
}

func (p *Pipeline) fillWithLLM(ctx context.Context, hits []index.ScoredChunk, indicator string, y int) (output.SourceRecord, bool) {
	maxDocs := p.cfg.LLM.MaxDocs
	if maxDocs <= 0 || maxDocs > len(hits) {
		maxDocs = len(hits)
	}
	for _, hit := range hits[:maxDocs] {
		ans, ok, err := p.llm.Extract(ctx, hit.Text, indicator, y)
		if err != nil {
			p.logger.Warn("llm extraction failed",
				zap.String("indicator", indicator), zap.Int("year", y), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		return output.SourceRecord{
			Indicator:  indicator,
			Year:       y,
			Value:      ans.Value,
			URL:        hit.URL,
			Filename:   hit.Filename,
			PageNo:     hit.Page,
			Snippet:    leadingSnippet(hit.Text, p.cfg.Values.SnippetLen),
			Confidence: ans.Confidence,
			Method:     output.MethodLLM,
			DocID:      hit.SHA1,
		}, true
	}
	return output.SourceRecord{}, false
}

func (p *Pipeline) fillWithHeuristic(extractor values.Extractor, hits []index.ScoredChunk, indicator string, y int) (output.SourceRecord, bool) {
	keywords := queries.Keywords(indicator)
	maxDocs := heuristicMaxDocs
	if maxDocs > len(hits) {
		maxDocs = len(hits)
	}
	for _, hit := range hits[:maxDocs] {
		candidates := extractor.Extract(hit.Text, keywords, y, values.Range{})
		if len(candidates) == 0 || candidates[0].Score <= 0 {
			continue
		}
		best := candidates[0]
		confidence := best.Score / heuristicScoreScale
		if confidence > 1 {
			confidence = 1
		}
		return output.SourceRecord{
			Indicator:  indicator,
			Year:       y,
			Value:      best.Value,
			URL:        hit.URL,
			Filename:   hit.Filename,
			PageNo:     hit.Page,
			Snippet:    best.Snippet,
			Confidence: confidence,
			Method:     output.MethodHeuristic,
			DocID:      hit.SHA1,
		}, true
	}
	return output.SourceRecord{}, false
}

func leadingSnippet(text string, limit int) string {
	if limit <= 0 {
		limit = values.DefaultSnippetLen
	}
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
