package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/unlost/internal/contentstore"
)

// Search ranks sections against query and groups hits by text. An empty
// query skips ranking and returns the filtered sections unordered. While a
// migration runs, Search returns no results.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	if err := s.check(false); err != nil {
		return nil, err
	}
	if s.app.Migration() != "" {
		return nil, nil
	}

	q := contentstore.Query{
		Select: []contentstore.Column{
			{Name: "text"},
			{Name: "score", Func: "max", As: "score"},
			{Name: "meta", Func: "json_group_array", As: "rows"},
		},
		Where:   filters(opts),
		GroupBy: []string{"text"},
		OrderBy: []contentstore.Order{{Column: "score", Func: "max", Desc: true}},
		Limit:   s.Limit,
	}

	s.app.Lock()
	defer s.app.Unlock()

	start := time.Now()
	if query != "" {
		hits, err := s.app.Index.Search(query, s.Candidates)
		if err != nil {
			return nil, fmt.Errorf("similarity search: %w", err)
		}
		scored := make([]contentstore.Scored, len(hits))
		for i, h := range hits {
			scored[i] = contentstore.Scored{IndexID: h.IndexID, Score: h.Score}
		}
		q.Similar = [][]contentstore.Scored{scored}
		q.Where = append(q.Where, contentstore.Cond{Column: "score", Op: ">", Value: s.MinScore})
	}

	rows, err := s.app.Content.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	slog.Info("memory search", "duration", time.Since(start), "results", len(rows))

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		res := Result{}
		res.Text, _ = r["text"].(string)
		res.Score, _ = r["score"].(float64)
		if raw, ok := r["rows"].(string); ok {
			if err := json.Unmarshal([]byte(raw), &res.Rows); err != nil {
				return nil, fmt.Errorf("decode rows: %w", err)
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func filters(opts SearchOptions) []contentstore.Cond {
	var conds []contentstore.Cond
	if opts.After != "" {
		conds = append(conds, contentstore.Cond{Column: "captured_at", Op: ">=", Value: opts.After})
	}
	if opts.Before != "" {
		conds = append(conds, contentstore.Cond{Column: "captured_at", Op: "<=", Value: opts.Before})
	}
	if opts.Day != "" {
		conds = append(conds, contentstore.Cond{Column: "captured_at", Op: "LIKE", Value: opts.Day + "%"})
	}
	if opts.Meeting {
		conds = append(conds, contentstore.Cond{Column: "is_transcription", Op: "=", Value: 1})
	}
	if len(opts.Apps) > 0 {
		seen := make(map[string]bool)
		var apps []string
		for _, a := range opts.Apps {
			if !seen[a] {
				seen[a] = true
				apps = append(apps, a)
			}
		}
		conds = append(conds, contentstore.Cond{Column: "app_name", Op: "IN", Value: apps})
	}
	return conds
}

// Tags lists the available search facets: the meeting content type
// followed by every distinct app name.
func (s *Service) Tags(ctx context.Context) ([]Tag, error) {
	if err := s.check(true); err != nil {
		return nil, err
	}
	s.app.Lock()
	defer s.app.Unlock()

	rows, err := s.app.Content.Query(ctx, contentstore.Query{
		Select:   []contentstore.Column{{Name: "app_name"}},
		Distinct: true,
		OrderBy:  []contentstore.Order{{Column: "app_name"}},
		Limit:    tagLimit,
	})
	if err != nil {
		return nil, err
	}

	tags := []Tag{{ID: TagContentType + "#meeting", Type: TagContentType, Value: ContentMeeting}}
	for _, r := range rows {
		app, _ := r["app_name"].(string)
		tags = append(tags, Tag{ID: TagAppName + "#" + app, Type: TagAppName, Value: app})
	}
	return tags, nil
}

// Transcriptions returns the transcription sections recorded for path.
func (s *Service) Transcriptions(ctx context.Context, path string) ([]Transcript, error) {
	if err := s.check(false); err != nil {
		return nil, err
	}
	s.app.Lock()
	defer s.app.Unlock()

	rows, err := s.app.Content.Query(ctx, contentstore.Query{
		Select: []contentstore.Column{{Name: "id"}, {Name: "text"}, {Name: "meta", As: "tags"}},
		Where: []contentstore.Cond{
			{Column: "path", Op: "=", Value: path},
			{Column: "is_transcription", Op: "=", Value: 1},
		},
		OrderBy: []contentstore.Order{{Column: "indexid"}},
	})
	if err != nil {
		return nil, err
	}

	out := make([]Transcript, 0, len(rows))
	for _, r := range rows {
		t := Transcript{}
		t.ID, _ = r["id"].(string)
		t.Text, _ = r["text"].(string)
		if raw, ok := r["tags"].(string); ok {
			if err := json.Unmarshal([]byte(raw), &t.Tags); err != nil {
				return nil, fmt.Errorf("decode tags: %w", err)
			}
		}
		out = append(out, t)
	}
	return out, nil
}
