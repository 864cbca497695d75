// Package index builds and persists a BM25 lexical index over page-level
// text chunks of the stored corpus.
package index

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNotFound is returned by Load when any of the persisted artifacts is
// missing; a partial index is never loaded.
var ErrNotFound = errors.New("index: artifacts not found")

// Persisted artifact filenames under the index directory.
const (
	modelFile  = "bm25_index.gob"
	chunksFile = "chunks.gob"
	corpusFile = "corpus.gob"
)

// chunkFileVersion 2 added the Page field; version-1 archives load with
// Page left at zero (whole-document chunks).
const chunkFileVersion = 2

// Chunk is one indexed unit of text with its provenance.
type Chunk struct {
	SHA1     string
	Page     int // 1-based, 0 = whole document
	Year     int // 0 = unknown
	URL      string
	Filename string
	Text     string
}

// ScoredChunk pairs a chunk with its BM25 relevance for a query.
type ScoredChunk struct {
	Chunk
	Score float64
}

type chunkEnvelope struct {
	Version int
	Chunks  []Chunk
}

// Index is a BM25 index over chunks. Not safe for concurrent mutation.
type Index struct {
	chunks []Chunk
	corpus [][]string
	model  *bm25Model
}

// Build fits a fresh index over the chunks.
func Build(chunks []Chunk) *Index {
	idx := &Index{}
	idx.Add(chunks)
	return idx
}

// Add appends chunks and refits the corpus statistics. BM25 IDF depends
// on the whole corpus, so incremental additions always trigger a refit.
func (idx *Index) Add(chunks []Chunk) {
	for _, c := range chunks {
		idx.chunks = append(idx.chunks, c)
		idx.corpus = append(idx.corpus, Tokenize(c.Text))
	}
	idx.model = fitBM25(idx.corpus)
}

// Len reports the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// Fingerprint identifies a chunk set by content: any change to a chunk's
// provenance, year, or text changes the fingerprint, even when the chunk
// count stays the same.
func Fingerprint(chunks []Chunk) string {
	h := sha256.New()
	for _, c := range chunks {
		fmt.Fprintf(h, "%s|%d|%d|%s\x00", c.SHA1, c.Page, c.Year, c.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint reports the fingerprint of the indexed chunks.
func (idx *Index) Fingerprint() string { return Fingerprint(idx.chunks) }

// Search returns the topK highest-scoring chunks for the query, in
// descending score order. Ties keep corpus order so results are stable
// across runs. year > 0 keeps only chunks detected for that year;
// unknown-year chunks never match a concrete year. Filters apply before
// truncation; pass 0 for either to disable it.
func (idx *Index) Search(query string, topK, year int, minScore float64) []ScoredChunk {
	if idx.model == nil || len(idx.chunks) == 0 {
		return nil
	}
	scores := idx.model.scores(Tokenize(query))

	scored := make([]ScoredChunk, 0, len(scores))
	for i, s := range scores {
		if s < minScore {
			continue
		}
		if year > 0 && idx.chunks[i].Year != year {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: idx.chunks[i], Score: s})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// Save writes the three artifacts under dir. The chunk archive carries a
// version so older archives remain loadable.
func (idx *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := writeGob(filepath.Join(dir, modelFile), idx.model); err != nil {
		return err
	}
	env := chunkEnvelope{Version: chunkFileVersion, Chunks: idx.chunks}
	if err := writeGob(filepath.Join(dir, chunksFile), env); err != nil {
		return err
	}
	return writeGob(filepath.Join(dir, corpusFile), idx.corpus)
}

// Load reads a persisted index from dir. Any missing artifact yields
// ErrNotFound so callers rebuild rather than search a partial index.
func Load(dir string) (*Index, error) {
	for _, name := range []string{modelFile, chunksFile, corpusFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, ErrNotFound
		}
	}

	idx := &Index{model: &bm25Model{}}
	if err := readGob(filepath.Join(dir, modelFile), idx.model); err != nil {
		return nil, err
	}
	var env chunkEnvelope
	if err := readGob(filepath.Join(dir, chunksFile), &env); err != nil {
		return nil, err
	}
	idx.chunks = env.Chunks
	if env.Version < 2 {
		for i := range idx.chunks {
			idx.chunks[i].Page = 0
		}
	}
	if err := readGob(filepath.Join(dir, corpusFile), &idx.corpus); err != nil {
		return nil, err
	}
	if len(idx.chunks) != len(idx.corpus) || idx.model.CorpusSize != len(idx.corpus) {
		return nil, fmt.Errorf("index: artifacts disagree on corpus size")
	}
	return idx, nil
}

func writeGob(path string, v any) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
