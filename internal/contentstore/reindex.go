package contentstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

const createSections = `CREATE TABLE %s (
	indexid INTEGER PRIMARY KEY,
	id TEXT,
	text TEXT,
	tags TEXT,
	entry DATETIME,
	app_name TEXT,
	window_name TEXT,
	captured_at DATETIME,
	path TEXT,
	is_transcription INTEGER
)`

var sectionIndexes = []string{
	`CREATE INDEX IF NOT EXISTS section_id ON sections(id, app_name, window_name, captured_at)`,
	`CREATE INDEX IF NOT EXISTS section_path_id ON sections(path, is_transcription)`,
}

// Rebuilt is one section as it stands after Reindex, ready to be
// resubmitted to a similarity index. Object is set, decoded, when the
// section has no text but a stored object.
type Rebuilt struct {
	IndexID int64
	ID      string
	Text    string
	Object  any
	Tags    string
}

// Reindex rewrites the sections table in indexid order with dense indexids
// and returns its new contents. When columns is non-empty the section text
// is rebuilt from those logical columns joined by spaces. The new table and
// its indexes replace the old one in a single transaction.
func (s *Store) Reindex(ctx context.Context, columns []string) ([]Rebuilt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := "s.text"
	if len(columns) > 0 {
		parts := make([]string, len(columns))
		for i, c := range columns {
			expr, err := s.resolve(c)
			if err != nil {
				return nil, err
			}
			parts[i] = "COALESCE(" + expr + ", '')"
		}
		text = strings.Join(parts, " || ' ' || ")
	}

	var out []Rebuilt
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearScores(ctx, tx); err != nil {
			return err
		}
		stmts := []string{
			`DROP TABLE IF EXISTS rebuild`,
			fmt.Sprintf(createSections, "rebuild"),
			`INSERT INTO rebuild (indexid, id, text, tags, entry, app_name, window_name, captured_at, path, is_transcription)
			 SELECT ROW_NUMBER() OVER (ORDER BY s.indexid) - 1, s.id, ` + text + `, s.tags, s.entry,
			        s.app_name, s.window_name, s.captured_at, s.path, s.is_transcription
			 FROM ` + tableClause + ` ORDER BY s.indexid`,
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("rebuild sections: %w", err)
			}
		}

		var err error
		if out, err = s.stream(ctx, tx); err != nil {
			return err
		}

		swap := append([]string{
			`DROP TABLE sections`,
			`ALTER TABLE rebuild RENAME TO sections`,
		}, sectionIndexes...)
		for _, q := range swap {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("swap sections: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("content store reindexed", "path", s.describe(), "sections", len(out))
	return out, nil
}

func (s *Store) stream(ctx context.Context, tx *sql.Tx) ([]Rebuilt, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT r.indexid, r.id, r.text, o.object, r.tags
		 FROM rebuild r LEFT JOIN objects o ON o.id = r.id
		 ORDER BY r.indexid`)
	if err != nil {
		return nil, fmt.Errorf("stream rebuild: %w", err)
	}
	defer rows.Close()

	var out []Rebuilt
	for rows.Next() {
		var (
			r          Rebuilt
			text, tags sql.NullString
			object     []byte
		)
		if err := rows.Scan(&r.IndexID, &r.ID, &text, &object, &tags); err != nil {
			return nil, fmt.Errorf("scan rebuild: %w", err)
		}
		r.Text, r.Tags = text.String, tags.String
		if r.Text == "" && object != nil {
			if r.Object, err = s.encoder.Decode(object); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
