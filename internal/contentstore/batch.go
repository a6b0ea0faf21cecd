package contentstore

import (
	"context"
	"fmt"
	"sort"
)

// Scored is one similarity hit: a section position and its score.
type Scored struct {
	IndexID int64
	Score   float64
}

const (
	createBatch  = `CREATE TEMP TABLE IF NOT EXISTS batch (indexid INTEGER, id TEXT, batch INTEGER)`
	createScores = `CREATE TEMP TABLE IF NOT EXISTS scores (indexid INTEGER PRIMARY KEY, score REAL)`
)

// loadBatch stores ids (or indexids when ids is nil) tagged with batch.
// The table is emptied first only for batch 0, so later sub-clauses of the
// same statement accumulate next to earlier ones.
func loadBatch(ctx context.Context, ex execer, ids []string, indexids []int64, batch int) error {
	if _, err := ex.ExecContext(ctx, createBatch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	if batch == 0 {
		if _, err := ex.ExecContext(ctx, `DELETE FROM batch`); err != nil {
			return fmt.Errorf("clear batch: %w", err)
		}
	}
	for _, id := range ids {
		if _, err := ex.ExecContext(ctx, `INSERT INTO batch (id, batch) VALUES (?, ?)`, id, batch); err != nil {
			return fmt.Errorf("load batch: %w", err)
		}
	}
	for _, ix := range indexids {
		if _, err := ex.ExecContext(ctx, `INSERT INTO batch (indexid, batch) VALUES (?, ?)`, ix, batch); err != nil {
			return fmt.Errorf("load batch: %w", err)
		}
	}
	return nil
}

// loadScores replaces the scores table with the per-indexid average of
// every hit across all sub-clauses.
func loadScores(ctx context.Context, ex execer, similar [][]Scored) error {
	if err := clearScores(ctx, ex); err != nil {
		return err
	}

	type acc struct {
		sum float64
		n   int
	}
	avg := make(map[int64]*acc)
	for _, clause := range similar {
		for _, hit := range clause {
			a, ok := avg[hit.IndexID]
			if !ok {
				a = &acc{}
				avg[hit.IndexID] = a
			}
			a.sum += hit.Score
			a.n++
		}
	}

	keys := make([]int64, 0, len(avg))
	for k := range avg {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		a := avg[k]
		if _, err := ex.ExecContext(ctx, `INSERT INTO scores (indexid, score) VALUES (?, ?)`, k, a.sum/float64(a.n)); err != nil {
			return fmt.Errorf("load scores: %w", err)
		}
	}
	return nil
}

func clearScores(ctx context.Context, ex execer) error {
	if _, err := ex.ExecContext(ctx, createScores); err != nil {
		return fmt.Errorf("create scores: %w", err)
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM scores`); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	return nil
}

// embedClause loads sub-clause n of similar into the batch table and returns the
// filter selecting it. Sub-clause 0 also resets the batch table and seeds the
// averaged scores from every sub-clause.
func embedClause(ctx context.Context, ex execer, similar [][]Scored, n int) (string, error) {
	if n < 0 || n >= len(similar) {
		return "", fmt.Errorf("similarity sub-clause %d out of range [0, %d)", n, len(similar))
	}
	if n == 0 {
		if err := loadScores(ctx, ex, similar); err != nil {
			return "", err
		}
	}
	ix := make([]int64, len(similar[n]))
	for i, hit := range similar[n] {
		ix[i] = hit.IndexID
	}
	if err := loadBatch(ctx, ex, nil, ix, n); err != nil {
		return "", err
	}
	return fmt.Sprintf("s.indexid IN (SELECT indexid FROM batch WHERE batch = %d)", n), nil
}

// Embed loads one similarity sub-clause into the batch table and returns a
// filter expression over sections alias "s" selecting its rows. Callers run
// it for n = 0, 1, ... in order and AND the filters together.
func (s *Store) Embed(ctx context.Context, similar [][]Scored, n int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return "", err
	}
	return embedClause(ctx, db, similar, n)
}
