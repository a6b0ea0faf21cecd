// Package capture reads the capture database written by the recorder app:
// one row per screenshot (with its OCR result) or audio transcription.
package capture

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DBName is the capture database file under the storage root.
const DBName = "db.sqlite3"

// Row is one unprocessed capture.
type Row struct {
	ID               int64           `db:"id"`
	AppName          string          `db:"app_name"`
	AppTitle         string          `db:"app_title"`
	CreatedAt        string          `db:"created_at"`
	Path             string          `db:"path"`
	MinX             sql.NullFloat64 `db:"minX"`
	MinY             sql.NullFloat64 `db:"minY"`
	Width            sql.NullFloat64 `db:"width"`
	Height           sql.NullFloat64 `db:"height"`
	OCRResult        string          `db:"ocr_result"`
	HasOCRResult     bool            `db:"has_ocr_result"`
	IsTranscription  bool            `db:"is_transcription"`
	IsMic            bool            `db:"is_mic"`
	ScreenshotTime   float64         `db:"screenshot_time"`
	ScreenshotTimeTo sql.NullFloat64 `db:"screenshot_time_to"`
	URL              sql.NullString  `db:"url"`
}

const columns = `id, app_name, app_title, created_at, path, minX, minY, width, height,
	ocr_result, has_ocr_result, is_transcription, is_mic, screenshot_time, screenshot_time_to, url`

var schema = []string{
	`CREATE TABLE IF NOT EXISTS screenshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		app_name TEXT NOT NULL,
		app_title TEXT NOT NULL,
		created_at TEXT NOT NULL,
		path TEXT NOT NULL,
		width INTEGER,
		height INTEGER,
		ocr_result TEXT NOT NULL,
		has_ocr_result INTEGER NOT NULL,
		is_transcription INTEGER NOT NULL,
		is_mic INTEGER NOT NULL,
		screenshot_time INTEGER NOT NULL,
		screenshot_time_to INTEGER,
		url TEXT,
		minX INTEGER,
		minY INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS "index_screenshots_on_created_at_ocr_result" ON screenshots(created_at, ocr_result)`,
}

// Store wraps the capture database.
type Store struct {
	db   *sqlx.DB
	root string
}

// Open opens {root}/db.sqlite3, creating the screenshots table if the
// recorder has not done so yet.
func Open(root string) (*Store, error) {
	path := filepath.Join(root, DBName)
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open capture db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	slog.Info("capture store opened", "path", path)
	return &Store{db: db, root: root}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Root returns the storage root the store was opened under.
func (s *Store) Root() string { return s.root }

// Unprocessed returns up to limit rows with an OCR result, oldest first.
func (s *Store) Unprocessed(ctx context.Context, limit int) ([]Row, error) {
	var rows []Row
	q := `SELECT ` + columns + ` FROM screenshots WHERE has_ocr_result = 1 ORDER BY created_at ASC LIMIT ?`
	if err := s.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("select unprocessed: %w", err)
	}
	return rows, nil
}

// Delete removes the rows with the given ids.
func (s *Store) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM screenshots WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...); err != nil {
		return fmt.Errorf("delete screenshots: %w", err)
	}
	return nil
}

// HasMore reports whether any row with an OCR result remains.
func (s *Store) HasMore(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM screenshots WHERE has_ocr_result = 1`); err != nil {
		return false, fmt.Errorf("count unprocessed: %w", err)
	}
	return n > 0, nil
}

// Add inserts a capture row and returns its id.
func (s *Store) Add(ctx context.Context, r Row) (int64, error) {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO screenshots (
		app_name, app_title, created_at, path, minX, minY, width, height,
		ocr_result, has_ocr_result, is_transcription, is_mic, screenshot_time, screenshot_time_to, url
	) VALUES (
		:app_name, :app_title, :created_at, :path, :minX, :minY, :width, :height,
		:ocr_result, :has_ocr_result, :is_transcription, :is_mic, :screenshot_time, :screenshot_time_to, :url
	)`, r)
	if err != nil {
		return 0, fmt.Errorf("insert screenshot: %w", err)
	}
	return res.LastInsertId()
}

// FilePath turns a stored path column into a filesystem path. The recorder
// stores JSON-encoded file URLs such as "file:\/\/\/Users\/me\/shot.mov".
func FilePath(raw string) string {
	p := strings.ReplaceAll(raw, `\`, "")
	p = strings.ReplaceAll(p, "file://", "")
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		p = p[1 : len(p)-1]
	}
	return p
}

// RelativePath returns FilePath(raw) with the storage root removed.
func (s *Store) RelativePath(raw string) string {
	return strings.Replace(FilePath(raw), s.root, "", 1)
}
