package contentstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultWindowName is stored when a section has no window name.
const DefaultWindowName = "unknown"

// Row is one record handed to Insert or Upsert.
//
// Data holds the document fields. Data["text"] becomes the section text and
// Data["meta"] supplies the section columns (app_name, window_name,
// captured_at, path, is_transcription). A documents row is written whenever
// Data carries anything besides text.
type Row struct {
	ID     string
	Data   map[string]any
	Object any
	Tags   string
}

// IDPair maps an external id to its dense position.
type IDPair struct {
	IndexID int64
	ID      string
}

type sectionRow struct {
	id              string
	text            sql.NullString
	tags            sql.NullString
	appName         string
	windowName      string
	capturedAt      string
	path            string
	isTranscription bool
}

// prepare validates every row before anything is written.
func prepare(rows []Row) ([]sectionRow, error) {
	out := make([]sectionRow, len(rows))
	for i, r := range rows {
		meta, _ := r.Data["meta"].(map[string]any)
		sec := sectionRow{
			id:              r.ID,
			appName:         stringField(meta, "app_name"),
			windowName:      stringField(meta, "window_name"),
			capturedAt:      stringField(meta, "captured_at"),
			path:            stringField(meta, "path"),
			isTranscription: boolField(meta, "is_transcription"),
		}
		switch {
		case sec.appName == "":
			return nil, &ValidationError{ID: r.ID, Field: "app_name"}
		case sec.capturedAt == "":
			return nil, &ValidationError{ID: r.ID, Field: "captured_at"}
		case sec.path == "":
			return nil, &ValidationError{ID: r.ID, Field: "path"}
		}
		if sec.windowName == "" {
			sec.windowName = DefaultWindowName
		}
		if text, ok := r.Data["text"].(string); ok {
			sec.text = sql.NullString{String: text, Valid: true}
		}
		if r.Tags != "" {
			sec.tags = sql.NullString{String: r.Tags, Valid: true}
		}
		out[i] = sec
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func boolField(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// hasDocument reports whether data carries fields beyond the text.
func hasDocument(data map[string]any) bool {
	for k := range data {
		if k != "text" {
			return true
		}
	}
	return false
}

// Insert appends rows and returns their assigned indexids. Either every row
// is written or none is.
func (s *Store) Insert(ctx context.Context, rows []Row) ([]int64, error) {
	secs, err := prepare(rows)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		ids, err = s.insert(ctx, tx, rows, secs)
		return err
	})
	return ids, err
}

// Upsert replaces any existing rows sharing an id with rows.
func (s *Store) Upsert(ctx context.Context, rows []Row) ([]int64, error) {
	secs, err := prepare(rows)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	uids := make([]string, len(rows))
	for i, r := range rows {
		uids[i] = r.ID
	}

	var ids []int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.delete(ctx, tx, uids); err != nil {
			return err
		}
		ids, err = s.insert(ctx, tx, rows, secs)
		return err
	})
	return ids, err
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, rows []Row, secs []sectionRow) ([]int64, error) {
	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(indexid), -1) + 1 FROM sections`).Scan(&next); err != nil {
		return nil, fmt.Errorf("next indexid: %w", err)
	}
	entry := time.Now().UTC().Format("2006-01-02 15:04:05")

	ids := make([]int64, 0, len(rows))
	for i, r := range rows {
		if hasDocument(r.Data) {
			data, err := json.Marshal(r.Data)
			if err != nil {
				return nil, fmt.Errorf("marshal document %q: %w", r.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO documents (id, data, tags, entry) VALUES (?, ?, ?, ?)`,
				r.ID, string(data), secs[i].tags, entry); err != nil {
				return nil, fmt.Errorf("insert document %q: %w", r.ID, err)
			}
		}

		if r.Object != nil {
			blob, err := s.encoder.Encode(r.Object)
			if err != nil {
				return nil, fmt.Errorf("encode object %q: %w", r.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO objects (id, object, tags, entry) VALUES (?, ?, ?, ?)`,
				r.ID, blob, secs[i].tags, entry); err != nil {
				return nil, fmt.Errorf("insert object %q: %w", r.ID, err)
			}
		}

		sec := secs[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sections (indexid, id, text, tags, entry, app_name, window_name, captured_at, path, is_transcription)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			next, sec.id, sec.text, sec.tags, entry,
			sec.appName, sec.windowName, sec.capturedAt, sec.path, sec.isTranscription); err != nil {
			return nil, fmt.Errorf("insert section %q: %w", r.ID, err)
		}
		ids = append(ids, next)
		next++
	}
	return ids, nil
}

// Delete removes every documents, objects and sections row whose id is in
// ids. Remaining indexids are left untouched.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.delete(ctx, tx, ids)
	})
}

func (s *Store) delete(ctx context.Context, tx *sql.Tx, ids []string) error {
	if err := loadBatch(ctx, tx, ids, nil, 0); err != nil {
		return err
	}
	for _, table := range []string{"documents", "objects", "sections"} {
		q := fmt.Sprintf(`DELETE FROM %s WHERE id IN (SELECT id FROM batch)`, table)
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

// IDs returns the (indexid, id) pairs of sections whose id is in ids,
// ordered by indexid.
func (s *Store) IDs(ctx context.Context, ids []string) ([]IDPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []IDPair
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := loadBatch(ctx, tx, ids, nil, 0); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT indexid, id FROM sections WHERE id IN (SELECT id FROM batch) ORDER BY indexid`)
		if err != nil {
			return fmt.Errorf("query ids: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var p IDPair
			if err := rows.Scan(&p.IndexID, &p.ID); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}
