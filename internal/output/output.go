// Package output writes the pipeline's result tables as CSV.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Method names recorded in the sources table. External answers append
// the source name, e.g. "external_istat".
const (
	MethodLLM       = "llm"
	MethodHeuristic = "heuristic"
	MethodExternal  = "external"
	MethodNotFound  = "NOT_FOUND"
)

// SourceRecord is one row of the sources table: how one (indicator, year)
// cell was answered and from where.
type SourceRecord struct {
	Indicator  string
	Year       int
	Value      float64
	URL        string
	Filename   string
	PageNo     int // 0 = whole document
	Snippet    string
	Confidence float64
	Method     string
	DocID      string // content hash of the source document
}

// QueryRecord is one row of the queries table: the search queries issued
// for a cell.
type QueryRecord struct {
	Indicator string
	Category  string
	Year      int
	Query1    string
	Query2    string
}

// WriteSources writes the sources table to path.
func WriteSources(path string, records []SourceRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, []string{
		"indicator", "year", "value", "url", "filename",
		"page_no", "snippet", "confidence", "method", "doc_id",
	})
	for _, r := range records {
		value := ""
		if r.Method != MethodNotFound {
			value = strconv.FormatFloat(r.Value, 'f', -1, 64)
		}
		rows = append(rows, []string{
			r.Indicator,
			yearField(r.Year),
			value,
			r.URL,
			r.Filename,
			pageField(r.PageNo),
			r.Snippet,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			r.Method,
			r.DocID,
		})
	}
	return writeCSV(path, rows)
}

// WriteQueries writes the queries table to path.
func WriteQueries(path string, records []QueryRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, []string{"indicator", "category", "year", "query_1", "query_2"})
	for _, r := range records {
		rows = append(rows, []string{r.Indicator, r.Category, yearField(r.Year), r.Query1, r.Query2})
	}
	return writeCSV(path, rows)
}

// yearField renders the unknown-year sentinel as an empty cell.
func yearField(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func pageField(page int) string {
	if page == 0 {
		return ""
	}
	return strconv.Itoa(page)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
