package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/unlost/internal/capture"
	"github.com/nextlevelbuilder/unlost/internal/geom"
	"github.com/nextlevelbuilder/unlost/internal/segment"
	"github.com/nextlevelbuilder/unlost/internal/state"
)

// RunOnce performs one guarded ingestion pass and reports whether
// unprocessed rows remain afterwards. It returns immediately when another
// pass holds the guard or the viewer is in use. Pass errors are logged
// before being returned; the scheduler loop discards them.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	if !s.viewerIdle() {
		return false, nil
	}
	if !s.pass.TryLock() {
		slog.Debug("ingest pass already running")
		return false, nil
	}
	s.inflight.Store(true)
	defer func() {
		s.inflight.Store(false)
		s.pass.Unlock()
	}()
	s.passes.Add(1)

	runID := uuid.NewString()
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "ingest.pass",
		trace.WithAttributes(attribute.String("ingest.run_id", runID)))
	defer span.End()

	slog.Info("start processing captures", "run", runID)
	more, err := s.process(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("failed to process captures", "run", runID, "error", err)
		return false, err
	}
	slog.Info("done processing", "run", runID, "more", more)
	return more, nil
}

// viewerIdle applies the viewer heuristic: a viewer opened less than
// ViewerGrace ago defers ingestion; an older open is treated as stale,
// cleared, and ingestion proceeds.
func (s *Scheduler) viewerIdle() bool {
	open, since := s.app.ClientOpen()
	if !open {
		return true
	}
	if grace := s.config().ViewerGrace; since > grace {
		slog.Warn("viewer open for longer than expected, treating as closed", "open_for", since)
		s.app.SetClientOpen(false)
		return true
	}
	slog.Debug("viewer open, not processing")
	return false
}

func (s *Scheduler) process(ctx context.Context, span trace.Span) (more bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPassAborted, r)
		}
	}()

	cfg := s.config()
	switch {
	case s.app.Root == "" || s.app.Capture == nil:
		slog.Debug("ingest skipped: no storage root")
		return false, nil
	case s.app.Migration() != "":
		slog.Debug("ingest skipped: migration in progress", "migration", s.app.Migration())
		return false, nil
	case !s.memories.Ready():
		slog.Debug("ingest skipped: similarity index not ready")
		return false, nil
	}

	rows, err := s.app.Capture.Unprocessed(ctx, cfg.BatchSize)
	if err != nil {
		return false, err
	}
	if len(rows) < cfg.MinBatch {
		slog.Debug("ingest skipped: below batch floor", "rows", len(rows), "floor", cfg.MinBatch)
		return false, nil
	}

	var (
		records   []segment.Memory
		processed = make([]int64, 0, len(rows))
		screens   int
		audio     int
	)
	for _, row := range rows {
		processed = append(processed, row.ID)
		if _, err := os.Stat(capture.FilePath(row.Path)); err != nil {
			slog.Debug("capture file missing, dropping row", "id", row.ID, "path", row.Path)
			continue
		}
		tmpl := s.template(row)
		if field := missingField(tmpl); field != "" {
			slog.Warn("capture row missing required field, dropping row", "id", row.ID, "field", field)
			continue
		}
		if row.IsTranscription {
			records = append(records, transcription(row, tmpl))
			audio++
			continue
		}
		mems, err := s.screenshot(row, tmpl)
		if err != nil {
			slog.Warn("malformed OCR result, dropping row", "id", row.ID, "error", err)
			continue
		}
		records = append(records, mems...)
		screens++
	}
	slog.Info("processing captures", "screenshots", screens, "transcriptions", audio, "records", len(records))
	span.SetAttributes(
		attribute.Int("ingest.rows", len(rows)),
		attribute.Int("ingest.records", len(records)),
	)

	if err := s.memories.Persist(ctx, records); err != nil {
		if errors.Is(err, state.ErrMigrating) {
			return false, nil
		}
		return false, err
	}
	if err := s.app.Capture.Delete(ctx, processed); err != nil {
		return false, err
	}
	s.batches.Add(1)

	return s.app.Capture.HasMore(ctx)
}

// template builds the metadata shared by every record of one capture row.
func (s *Scheduler) template(row capture.Row) segment.Memory {
	m := segment.Memory{
		AppName:        row.AppName,
		WindowName:     row.AppTitle,
		CapturedAt:     row.CreatedAt,
		ScreenshotPath: s.app.Capture.RelativePath(row.Path),
		Time:           row.ScreenshotTime,
		Width:          row.Width.Float64,
		Height:         row.Height.Float64,
	}
	if row.MinX.Valid {
		v := row.MinX.Float64
		m.MinX = &v
	}
	if row.MinY.Valid {
		v := row.MinY.Float64
		m.MinY = &v
	}
	if row.URL.Valid {
		v := row.URL.String
		m.URL = &v
	}
	return m
}

// missingField names the first required metadata field that is empty. The
// content store rejects a whole batch over one such row, so rows are
// screened here.
func missingField(m segment.Memory) string {
	switch {
	case m.AppName == "":
		return "app_name"
	case m.CapturedAt == "":
		return "captured_at"
	case m.ScreenshotPath == "":
		return "path"
	}
	return ""
}

func transcription(row capture.Row, tmpl segment.Memory) segment.Memory {
	source := "audio"
	if row.IsMic {
		source = "mic"
	}
	m := tmpl.Clone()
	m.ID = fmt.Sprintf("transcription#%s#%d", source, row.ID)
	m.Text = row.OCRResult
	m.Location = []float64{}
	to := row.ScreenshotTime
	if row.ScreenshotTimeTo.Valid {
		to = row.ScreenshotTimeTo.Float64
	}
	m.TimeTo = &to
	return m
}

type ocrItem struct {
	Value    string    `json:"value"`
	Location []float64 `json:"location"`
}

func (s *Scheduler) screenshot(row capture.Row, tmpl segment.Memory) ([]segment.Memory, error) {
	var items []ocrItem
	if err := json.Unmarshal([]byte(row.OCRResult), &items); err != nil {
		return nil, err
	}

	frags := make([]segment.Fragment, 0, len(items))
	for _, it := range items {
		if utf8.RuneCountInString(it.Value) <= 1 {
			continue
		}
		box, ok := geom.BoxFromSlice(it.Location)
		if !ok {
			continue
		}
		frags = append(frags, segment.Fragment{Text: it.Value, Box: box})
	}
	return s.segmenter.Transform(strconv.FormatInt(row.ID, 10), tmpl, frags), nil
}
