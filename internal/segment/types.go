// Package segment turns clustered OCR fragments into sentence-level
// section records with interpolated geometry.
package segment

import "github.com/nextlevelbuilder/unlost/internal/geom"

// Fragment is a raw OCR detection from one screenshot.
type Fragment struct {
	Text string   `json:"value"`
	Box  geom.Box `json:"-"`
}

// Memory is one section record ready to be persisted.
type Memory struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AppName        string    `json:"app_name"`
	WindowName     string    `json:"window_name"`
	CapturedAt     string    `json:"captured_at"`
	Location       []float64 `json:"location"`
	ScreenshotPath string    `json:"path"`
	Time           float64   `json:"time"`
	TimeTo         *float64  `json:"time_to"`
	MinX           *float64  `json:"minX"`
	MinY           *float64  `json:"minY"`
	Width          float64   `json:"width"`
	Height         float64   `json:"height"`
	URL            *string   `json:"url"`
}

// IsTranscription reports whether the record covers an audio time range.
func (m Memory) IsTranscription() bool { return m.TimeTo != nil }

// Clone returns a copy of m that shares no slices with it.
func (m Memory) Clone() Memory {
	c := m
	if m.Location != nil {
		c.Location = append([]float64(nil), m.Location...)
	}
	return c
}

// Meta returns the screenshot metadata stored alongside the section text.
func (m Memory) Meta() map[string]any {
	location := m.Location
	if location == nil {
		location = []float64{}
	}
	return map[string]any{
		"captured_at":      m.CapturedAt,
		"location":         location,
		"path":             m.ScreenshotPath,
		"time":             m.Time,
		"time_to":          m.TimeTo,
		"minX":             m.MinX,
		"minY":             m.MinY,
		"width":            m.Width,
		"height":           m.Height,
		"app_name":         m.AppName,
		"window_name":      m.WindowName,
		"is_transcription": m.IsTranscription(),
		"url":              m.URL,
	}
}

// Span is a half-open byte range [Start, End) of a sentence within a text.
type Span struct {
	Start int
	End   int
}

// SentenceSplitter segments text into sentences. Spans must be in order and
// cover the text without gaps; each span may carry surrounding whitespace.
type SentenceSplitter interface {
	Split(text string) []Span
}
