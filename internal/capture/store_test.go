package capture

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addRows(t *testing.T, s *Store, n int, hasOCR bool) []int64 {
	t.Helper()
	var ids []int64
	for i := 0; i < n; i++ {
		id, err := s.Add(context.Background(), Row{
			AppName:        "Chrome",
			AppTitle:       "Docs",
			CreatedAt:      fmt.Sprintf("2024-01-01T00:00:%02d.000", i),
			Path:           fmt.Sprintf(`"file:\/\/%s\/shot%d.png"`, s.Root(), i),
			Width:          sql.NullFloat64{Float64: 1600, Valid: true},
			Height:         sql.NullFloat64{Float64: 1000, Valid: true},
			OCRResult:      "[]",
			HasOCRResult:   hasOCR,
			ScreenshotTime: float64(i),
		})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestUnprocessedOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addRows(t, s, 3, false)
	ids := addRows(t, s, 7, true)

	rows, err := s.Unprocessed(ctx, 5)
	if err != nil {
		t.Fatalf("Unprocessed: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	for i, r := range rows {
		if r.ID != ids[i] {
			t.Errorf("row %d id = %d, want %d", i, r.ID, ids[i])
		}
		if !r.HasOCRResult || r.Height.Float64 != 1000 {
			t.Errorf("row %d not decoded: %+v", i, r)
		}
	}
}

func TestDeleteAndHasMore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := addRows(t, s, 3, true)

	if err := s.Delete(ctx, ids[:2]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	more, err := s.HasMore(ctx)
	if err != nil || !more {
		t.Fatalf("HasMore = %v, %v; want true", more, err)
	}
	if err := s.Delete(ctx, ids[2:]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if more, _ := s.HasMore(ctx); more {
		t.Error("HasMore = true after deleting every row")
	}
	if err := s.Delete(ctx, nil); err != nil {
		t.Errorf("Delete(nil): %v", err)
	}
}

func TestFilePath(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{`"file:\/\/\/Users\/me\/shot.mov"`, "/Users/me/shot.mov"},
		{`"file:///tmp/a.png"`, "/tmp/a.png"},
		{"/plain/path.png", "/plain/path.png"},
	}
	for _, tt := range tests {
		if got := FilePath(tt.raw); got != tt.want {
			t.Errorf("FilePath(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestRelativePath(t *testing.T) {
	s := newTestStore(t)
	raw := `"file:\/\/` + s.Root() + `\/videos\/a.mov"`
	if got := s.RelativePath(raw); got != "/videos/a.mov" {
		t.Errorf("RelativePath = %q", got)
	}
}
