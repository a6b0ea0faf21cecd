package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/unlost/internal/contentstore"
	"github.com/nextlevelbuilder/unlost/internal/segment"
	"github.com/nextlevelbuilder/unlost/internal/similarity"
	"github.com/nextlevelbuilder/unlost/internal/state"
)

// ErrNotConfigured is returned when the application has no storage root.
var ErrNotConfigured = errors.New("storage root not configured")

const (
	DefaultMinScore   = 0.25
	DefaultLimit      = 160
	DefaultCandidates = 1000
	tagLimit          = 300
)

// Service implements persistence, search and maintenance of memories.
type Service struct {
	app *state.App

	MinScore   float64
	Limit      int
	Candidates int
}

// New creates a Service over app.
func New(app *state.App) *Service {
	return &Service{
		app:        app,
		MinScore:   DefaultMinScore,
		Limit:      DefaultLimit,
		Candidates: DefaultCandidates,
	}
}

func (s *Service) check(mutating bool) error {
	if s.app.Content == nil || s.app.Index == nil {
		return ErrNotConfigured
	}
	if mutating && s.app.Migration() != "" {
		return state.ErrMigrating
	}
	return nil
}

// Ready reports whether the service can accept writes.
func (s *Service) Ready() bool {
	return s.app.Content != nil && s.app.Index != nil && s.app.Index.Ready()
}

// Persist stores memories, replacing any with the same id, indexes them
// and flushes both the content store and the index to disk.
func (s *Service) Persist(ctx context.Context, memories []segment.Memory) error {
	if err := s.check(true); err != nil {
		return err
	}
	if len(memories) == 0 {
		return nil
	}

	rows := make([]contentstore.Row, len(memories))
	ids := make([]string, len(memories))
	for i, m := range memories {
		rows[i] = contentstore.Row{
			ID:   m.ID,
			Data: map[string]any{"text": m.Text, "meta": m.Meta()},
		}
		ids[i] = m.ID
	}

	s.app.Lock()
	defer s.app.Unlock()

	previous, err := s.app.Content.IDs(ctx, ids)
	if err != nil {
		return err
	}
	indexids, err := s.app.Content.Upsert(ctx, rows)
	if err != nil {
		return err
	}

	stale := make([]int64, len(previous))
	for i, p := range previous {
		stale[i] = p.IndexID
	}
	if err := s.app.Index.Delete(stale); err != nil {
		return fmt.Errorf("index delete: %w", err)
	}
	docs := make([]similarity.Document, len(memories))
	for i, m := range memories {
		docs[i] = similarity.Document{IndexID: indexids[i], Text: m.Text}
	}
	if err := s.app.Index.Upsert(docs); err != nil {
		return fmt.Errorf("index upsert: %w", err)
	}

	return s.flush(ctx)
}

// flush writes the content store and index. Callers hold the coarse lock.
func (s *Service) flush(ctx context.Context) error {
	if err := s.app.Content.Save(ctx, state.ContentPath(s.app.Root)); err != nil {
		return err
	}
	return s.app.Index.Save(state.IndexPath(s.app.Root))
}

// Count returns the number of stored sections.
func (s *Service) Count(ctx context.Context) (int, error) {
	if err := s.check(false); err != nil {
		return 0, err
	}
	s.app.Lock()
	defer s.app.Unlock()
	return s.app.Content.Count(ctx)
}

// RemoveBefore deletes every section captured before date and returns how
// many were removed. The deleting flag is set for the duration.
func (s *Service) RemoveBefore(ctx context.Context, date string) (int, error) {
	if err := s.check(true); err != nil {
		return 0, err
	}
	s.app.SetDeleting(true)
	defer s.app.SetDeleting(false)

	s.app.Lock()
	defer s.app.Unlock()

	rows, err := s.app.Content.Query(ctx, contentstore.Query{
		Select: []contentstore.Column{{Name: "id"}, {Name: "indexid"}},
		Where:  []contentstore.Cond{{Column: "captured_at", Op: "<", Value: date}},
	})
	if err != nil {
		return 0, err
	}
	slog.Info("deleting memories", "before", date, "count", len(rows))
	if len(rows) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(rows))
	indexids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if id, ok := r["id"].(string); ok {
			ids = append(ids, id)
		}
		if ix, ok := r["indexid"].(int64); ok {
			indexids = append(indexids, ix)
		}
	}
	if err := s.app.Index.Delete(indexids); err != nil {
		return 0, fmt.Errorf("index delete: %w", err)
	}
	if err := s.app.Content.Delete(ctx, ids); err != nil {
		return 0, err
	}
	if err := s.flush(ctx); err != nil {
		return 0, err
	}
	slog.Info("deleted memories", "before", date, "count", len(ids))
	return len(ids), nil
}

// Rebuild compacts the content store and re-submits every section to a
// freshly reset index. It holds the coarse lock for its full duration.
func (s *Service) Rebuild(ctx context.Context, columns []string) (int, error) {
	if err := s.check(true); err != nil {
		return 0, err
	}
	s.app.Lock()
	defer s.app.Unlock()

	start := time.Now()
	rebuilt, err := s.app.Content.Reindex(ctx, columns)
	if err != nil {
		return 0, err
	}

	docs := make([]similarity.Document, len(rebuilt))
	for i, r := range rebuilt {
		text := r.Text
		if text == "" {
			if b, ok := r.Object.([]byte); ok {
				text = string(b)
			}
		}
		docs[i] = similarity.Document{IndexID: r.IndexID, Text: text}
	}
	s.app.Index.Reset()
	if err := s.app.Index.Upsert(docs); err != nil {
		return 0, fmt.Errorf("index upsert: %w", err)
	}
	if err := s.flush(ctx); err != nil {
		return 0, err
	}
	slog.Info("memories rebuilt", "sections", len(docs), "duration", time.Since(start))
	return len(docs), nil
}
