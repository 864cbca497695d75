// Package catalog persists document, text, and value-cache metadata in a
// local sqlite database. The pdfs table is keyed by content hash: exactly
// one row exists per distinct SHA-1, however many URLs serve those bytes.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("catalog: not found")

const schema = `
CREATE TABLE IF NOT EXISTS pdfs (
	sha1 TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	original_name TEXT,
	local_path TEXT NOT NULL,
	detected_year INTEGER,
	downloaded_at TEXT NOT NULL,
	content_type TEXT,
	size_bytes INTEGER
);
CREATE INDEX IF NOT EXISTS idx_pdfs_url ON pdfs(url);
CREATE INDEX IF NOT EXISTS idx_pdfs_year ON pdfs(detected_year);

CREATE TABLE IF NOT EXISTS texts (
	sha1 TEXT PRIMARY KEY,
	text_path TEXT NOT NULL,
	extracted_at TEXT NOT NULL,
	extractor TEXT NOT NULL,
	pages INTEGER,
	text_len INTEGER,
	FOREIGN KEY (sha1) REFERENCES pdfs(sha1)
);

CREATE TABLE IF NOT EXISTS value_cache (
	key TEXT PRIMARY KEY,
	result_path TEXT NOT NULL,
	created_at TEXT NOT NULL,
	model TEXT NOT NULL
);
`

// PDFRecord is one row of the pdfs table: the identity of a stored
// document is its content hash. DetectedYear 0 means unknown.
type PDFRecord struct {
	SHA1         string
	URL          string
	OriginalName string
	LocalPath    string
	DetectedYear int
	DownloadedAt time.Time
	ContentType  string
	SizeBytes    int64
}

// TextRecord is one row of the texts table, created once per document
// after a successful extraction and immutable thereafter.
type TextRecord struct {
	SHA1        string
	TextPath    string
	ExtractedAt time.Time
	Extractor   string
	Pages       int
	TextLen     int
}

// ValueCacheRecord points at a cached structured extraction result.
type ValueCacheRecord struct {
	Key        string
	ResultPath string
	CreatedAt  time.Time
	Model      string
}

// Catalog wraps the sqlite connection.
type Catalog struct {
	db *sql.DB
}

// Open creates (or opens) the catalog at path and applies the schema.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// PDFByURL returns the record whose (current) source URL matches.
func (c *Catalog) PDFByURL(ctx context.Context, url string) (PDFRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT sha1, url, original_name, local_path, detected_year, downloaded_at, content_type, size_bytes
		 FROM pdfs WHERE url = ?`, url)
	return scanPDF(row)
}

// PDFByHash returns the record for a content hash.
func (c *Catalog) PDFByHash(ctx context.Context, sha1 string) (PDFRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT sha1, url, original_name, local_path, detected_year, downloaded_at, content_type, size_bytes
		 FROM pdfs WHERE sha1 = ?`, sha1)
	return scanPDF(row)
}

// InsertOrGetPDF atomically inserts a record keyed by content hash, or
// recognizes the existing one. The second return is true when this call
// inserted the row; false means another record already owned the hash and
// is returned instead. This is the serialization point for concurrent
// downloads of the same content under different URLs.
func (c *Catalog) InsertOrGetPDF(ctx context.Context, rec PDFRecord) (PDFRecord, bool, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO pdfs (sha1, url, original_name, local_path, detected_year, downloaded_at, content_type, size_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sha1) DO NOTHING`,
		rec.SHA1, rec.URL, rec.OriginalName, rec.LocalPath, nullableYear(rec.DetectedYear),
		rec.DownloadedAt.UTC().Format(time.RFC3339), rec.ContentType, rec.SizeBytes)
	if err != nil {
		return PDFRecord{}, false, fmt.Errorf("insert pdf: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return PDFRecord{}, false, fmt.Errorf("insert pdf rows: %w", err)
	}
	if n > 0 {
		return rec, true, nil
	}
	existing, err := c.PDFByHash(ctx, rec.SHA1)
	if err != nil {
		return PDFRecord{}, false, fmt.Errorf("reselect pdf after conflict: %w", err)
	}
	return existing, false, nil
}

// AddAlias records that url also serves the bytes of an existing record:
// the row keeps its storage path, year, and size, and adopts the alias as
// its current URL so lookups by either URL converge on the same document.
func (c *Catalog) AddAlias(ctx context.Context, url, originalName, contentType string, existing PDFRecord) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pdfs (sha1, url, original_name, local_path, detected_year, downloaded_at, content_type, size_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		existing.SHA1, url, originalName, existing.LocalPath, nullableYear(existing.DetectedYear),
		time.Now().UTC().Format(time.RFC3339), contentType, existing.SizeBytes)
	if err != nil {
		return fmt.Errorf("add alias: %w", err)
	}
	return nil
}

// UpdateYear re-assigns the detected year for a document.
func (c *Catalog) UpdateYear(ctx context.Context, sha1 string, year int) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE pdfs SET detected_year = ? WHERE sha1 = ?`, nullableYear(year), sha1)
	if err != nil {
		return fmt.Errorf("update year: %w", err)
	}
	return nil
}

// PDFsByYear lists documents for a year; year 0 lists unknown-year ones.
func (c *Catalog) PDFsByYear(ctx context.Context, year int) ([]PDFRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if year == 0 {
		rows, err = c.db.QueryContext(ctx,
			`SELECT sha1, url, original_name, local_path, detected_year, downloaded_at, content_type, size_bytes
			 FROM pdfs WHERE detected_year IS NULL`)
	} else {
		rows, err = c.db.QueryContext(ctx,
			`SELECT sha1, url, original_name, local_path, detected_year, downloaded_at, content_type, size_bytes
			 FROM pdfs WHERE detected_year = ?`, year)
	}
	if err != nil {
		return nil, fmt.Errorf("query pdfs by year: %w", err)
	}
	defer rows.Close()
	return collectPDFs(rows)
}

// AllPDFs lists every cataloged document.
func (c *Catalog) AllPDFs(ctx context.Context) ([]PDFRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT sha1, url, original_name, local_path, detected_year, downloaded_at, content_type, size_bytes
		 FROM pdfs`)
	if err != nil {
		return nil, fmt.Errorf("query pdfs: %w", err)
	}
	defer rows.Close()
	return collectPDFs(rows)
}

// CountPDFs returns the number of document records.
func (c *Catalog) CountPDFs(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pdfs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pdfs: %w", err)
	}
	return n, nil
}

// TextByHash returns the text record for a document, if extracted.
func (c *Catalog) TextByHash(ctx context.Context, sha1 string) (TextRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT sha1, text_path, extracted_at, extractor, pages, text_len FROM texts WHERE sha1 = ?`, sha1)
	var (
		rec TextRecord
		at  string
	)
	err := row.Scan(&rec.SHA1, &rec.TextPath, &at, &rec.Extractor, &rec.Pages, &rec.TextLen)
	if errors.Is(err, sql.ErrNoRows) {
		return TextRecord{}, ErrNotFound
	}
	if err != nil {
		return TextRecord{}, fmt.Errorf("scan text: %w", err)
	}
	rec.ExtractedAt, _ = time.Parse(time.RFC3339, at)
	return rec, nil
}

// AddText records a successful extraction. Existing rows are left alone:
// a TextRecord is immutable once created.
func (c *Catalog) AddText(ctx context.Context, rec TextRecord) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO texts (sha1, text_path, extracted_at, extractor, pages, text_len)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sha1) DO NOTHING`,
		rec.SHA1, rec.TextPath, rec.ExtractedAt.UTC().Format(time.RFC3339), rec.Extractor, rec.Pages, rec.TextLen)
	if err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	return nil
}

// ValueCacheGet returns a cached extraction pointer.
func (c *Catalog) ValueCacheGet(ctx context.Context, key string) (ValueCacheRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT key, result_path, created_at, model FROM value_cache WHERE key = ?`, key)
	var (
		rec ValueCacheRecord
		at  string
	)
	err := row.Scan(&rec.Key, &rec.ResultPath, &at, &rec.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return ValueCacheRecord{}, ErrNotFound
	}
	if err != nil {
		return ValueCacheRecord{}, fmt.Errorf("scan value cache: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, at)
	return rec, nil
}

// ValueCachePut records a cached extraction pointer.
func (c *Catalog) ValueCachePut(ctx context.Context, key, resultPath, model string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO value_cache (key, result_path, created_at, model) VALUES (?, ?, ?, ?)`,
		key, resultPath, time.Now().UTC().Format(time.RFC3339), model)
	if err != nil {
		return fmt.Errorf("insert value cache: %w", err)
	}
	return nil
}

// Stats reports row counts per table.
func (c *Catalog) Stats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int, 3)
	for _, table := range []string{"pdfs", "texts", "value_cache"} {
		var n int
		if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPDF(row rowScanner) (PDFRecord, error) {
	var (
		rec  PDFRecord
		year sql.NullInt64
		at   string
	)
	err := row.Scan(&rec.SHA1, &rec.URL, &rec.OriginalName, &rec.LocalPath, &year, &at, &rec.ContentType, &rec.SizeBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return PDFRecord{}, ErrNotFound
	}
	if err != nil {
		return PDFRecord{}, fmt.Errorf("scan pdf: %w", err)
	}
	if year.Valid {
		rec.DetectedYear = int(year.Int64)
	}
	rec.DownloadedAt, _ = time.Parse(time.RFC3339, at)
	return rec, nil
}

func collectPDFs(rows *sql.Rows) ([]PDFRecord, error) {
	var out []PDFRecord
	for rows.Next() {
		rec, err := scanPDF(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pdfs: %w", err)
	}
	return out, nil
}

func nullableYear(year int) any {
	if year == 0 {
		return nil
	}
	return year
}
