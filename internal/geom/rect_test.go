package geom

import (
	"math"
	"testing"
)

func TestBoxRoundTrip(t *testing.T) {
	boxes := []Box{
		{0, 0, 0, 0},
		{0.1, 0.9, 0.2, 0.03},
		{0.5, 0.5, 0.5, 0.5},
		{0.333, 0.127, 0.001, 0.8},
	}

	for _, b := range boxes {
		got := b.Rect().Box()
		for i, v := range got.Slice() {
			if math.Abs(v-b.Slice()[i]) > 1e-12 {
				t.Errorf("round trip %v = %v", b, got)
				break
			}
		}
	}
}

func TestBoxRect_FlipsVerticalAxis(t *testing.T) {
	r := Box{X: 0.1, Y: 0.8, W: 0.2, H: 0.05}.Rect()
	if math.Abs(r.MinY-0.2) > 1e-12 {
		t.Errorf("MinY = %v, want 0.2", r.MinY)
	}
	if math.Abs(r.MaxY-0.25) > 1e-12 {
		t.Errorf("MaxY = %v, want 0.25", r.MaxY)
	}
	if math.Abs(r.MaxX-0.3) > 1e-12 {
		t.Errorf("MaxX = %v, want 0.3", r.MaxX)
	}
}

func TestRectOverlaps(t *testing.T) {
	a := Rect{0, 0, 10, 2}
	tests := []struct {
		name string
		b    Rect
		want bool
	}{
		{"inside", Rect{1, 0.5, 2, 1}, true},
		{"touching edge", Rect{10, 0, 20, 2}, false},
		{"crossing", Rect{9, 1, 12, 3}, true},
		{"far below", Rect{0, 100, 10, 102}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(a); got != tt.want {
				t.Errorf("Overlaps (reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoxFromSlice(t *testing.T) {
	if _, ok := BoxFromSlice([]float64{1, 2, 3}); ok {
		t.Error("expected short slice to be rejected")
	}
	b, ok := BoxFromSlice([]float64{1, 2, 3, 4, 5})
	if !ok || b != (Box{1, 2, 3, 4}) {
		t.Errorf("BoxFromSlice = %v, %v", b, ok)
	}
	if got := Flatten([]Box{{1, 2, 3, 4}, {5, 6, 7, 8}}); len(got) != 8 || got[4] != 5 {
		t.Errorf("Flatten = %v", got)
	}
}
