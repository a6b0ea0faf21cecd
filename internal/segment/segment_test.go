package segment

import (
	"math"
	"testing"

	"github.com/nextlevelbuilder/unlost/internal/geom"
)

func approxEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func template() Memory {
	return Memory{
		AppName:        "Safari",
		WindowName:     "Docs",
		CapturedAt:     "2024-03-01T10:00:00",
		ScreenshotPath: "/tmp/shot.png",
		Width:          1600,
		Height:         1000,
	}
}

func TestTransformDropsChrome(t *testing.T) {
	s := New(nil)
	frags := []Fragment{
		{Text: "File Edit View", Box: geom.Box{X: 0.1, Y: 0.95, W: 0.3, H: 0.02}},
		{Text: "content", Box: geom.Box{X: 0.1, Y: 0.5, W: 0.3, H: 0.02}},
	}
	out := s.Transform("shot", template(), frags)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].Text != "content" {
		t.Errorf("expected chrome fragment dropped, got %q", out[0].Text)
	}
}

func TestTransformSameLineUnchanged(t *testing.T) {
	s := New(nil)
	a := geom.Box{X: 0.1, Y: 0.5, W: 0.2, H: 0.02}
	b := geom.Box{X: 0.305, Y: 0.5, W: 0.2, H: 0.02}
	out := s.Transform("shot", template(), []Fragment{
		{Text: "foo", Box: a},
		{Text: "bar", Box: b},
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	want := []struct {
		id, text string
		loc      []float64
	}{
		{"shot#0", "foo", a.Slice()},
		{"shot#1", "bar", b.Slice()},
	}
	for i, w := range want {
		if out[i].ID != w.id || out[i].Text != w.text {
			t.Errorf("record %d = (%q, %q), want (%q, %q)", i, out[i].ID, out[i].Text, w.id, w.text)
		}
		if !approxEqual(out[i].Location, w.loc) {
			t.Errorf("record %d location = %v, want %v", i, out[i].Location, w.loc)
		}
		if out[i].AppName != "Safari" || out[i].ScreenshotPath != "/tmp/shot.png" {
			t.Errorf("record %d lost template metadata: %+v", i, out[i])
		}
	}
}

func TestTransformParagraph(t *testing.T) {
	s := New(nil)
	line1 := geom.Box{X: 0.1, Y: 0.5, W: 0.4, H: 0.02}
	line2 := geom.Box{X: 0.1, Y: 0.475, W: 0.4, H: 0.02}
	out := s.Transform("shot", template(), []Fragment{
		{Text: "is a test.", Box: line2},
		{Text: "Hello world. This", Box: line1},
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %+v", len(out), out)
	}

	if out[0].ID != "shot#0" || out[0].Text != "Hello world." {
		t.Errorf("first sentence = (%q, %q)", out[0].ID, out[0].Text)
	}
	if !approxEqual(out[0].Location, line1.Slice()) {
		t.Errorf("first sentence location = %v, want %v", out[0].Location, line1.Slice())
	}

	if out[1].ID != "shot#1" || out[1].Text != "This is a test." {
		t.Errorf("second sentence = (%q, %q)", out[1].ID, out[1].Text)
	}
	cut := 0.4 * 13 / 17
	want := []float64{0.1 + cut, 0.5, 0.4 - cut, 0.02, 0.1, 0.475, 0.4, 0.02}
	if !approxEqual(out[1].Location, want) {
		t.Errorf("second sentence location = %v, want %v", out[1].Location, want)
	}
}

func TestTransformEmptyFragmentText(t *testing.T) {
	s := New(nil)
	out := s.Transform("shot", template(), []Fragment{
		{Text: "", Box: geom.Box{X: 0.1, Y: 0.5, W: 0.4, H: 0.02}},
		{Text: "abc", Box: geom.Box{X: 0.1, Y: 0.475, W: 0.4, H: 0.02}},
	})
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].Text != "abc" {
		t.Errorf("text = %q, want abc", out[0].Text)
	}
	for _, v := range out[0].Location {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("location has non-finite value: %v", out[0].Location)
		}
	}
}

func TestTransformIDsMonotonicAcrossClusters(t *testing.T) {
	s := New(nil)
	out := s.Transform("42", template(), []Fragment{
		{Text: "top", Box: geom.Box{X: 0.1, Y: 0.8, W: 0.1, H: 0.02}},
		{Text: "bottom", Box: geom.Box{X: 0.6, Y: 0.2, W: 0.1, H: 0.02}},
		{Text: "middle", Box: geom.Box{X: 0.3, Y: 0.5, W: 0.1, H: 0.02}},
	})
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
	for i, m := range out {
		want := "42#" + string(rune('0'+i))
		if m.ID != want {
			t.Errorf("record %d id = %q, want %q", i, m.ID, want)
		}
	}
}

func TestRatioClamp(t *testing.T) {
	tests := []struct {
		off  int
		text string
		want float64
	}{
		{0, "abc", 0},
		{-2, "abc", 0},
		{3, "", 0},
		{1, "abcd", 0.25},
		{9, "abc", 1},
	}
	for _, tt := range tests {
		if got := ratio(tt.off, tt.text); got != tt.want {
			t.Errorf("ratio(%d, %q) = %v, want %v", tt.off, tt.text, got, tt.want)
		}
	}
}

func TestMemoryMeta(t *testing.T) {
	to := 12.5
	m := template()
	if m.Meta()["is_transcription"] != false {
		t.Error("expected screenshot record not to be a transcription")
	}
	m.TimeTo = &to
	meta := m.Meta()
	if meta["is_transcription"] != true {
		t.Error("expected record with time_to to be a transcription")
	}
	if meta["app_name"] != "Safari" || meta["path"] != "/tmp/shot.png" {
		t.Errorf("unexpected meta: %v", meta)
	}
}
