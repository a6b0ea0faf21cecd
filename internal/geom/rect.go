// Package geom holds the two rectangle conventions used by the OCR pipeline.
//
// OCR detections arrive as origin+size boxes in normalized [0,1] coordinates
// with a bottom-left origin (Box). Clustering and segmentation work on
// min/max rectangles with a top-left origin (Rect). The conversions between
// the two are exact inverses.
package geom

// Rect is a rectangle in min/max form.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Box is a rectangle in origin+size form, as produced by OCR and stored in
// section locations.
type Box struct {
	X, Y, W, H float64
}

// Width returns MaxX - MinX.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns MaxY - MinY.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Expand grows r on every side by d.
func (r Rect) Expand(d float64) Rect {
	return Rect{r.MinX - d, r.MinY - d, r.MaxX + d, r.MaxY + d}
}

// Overlaps reports whether r and o share a region of positive area.
// Touching edges do not count.
func (r Rect) Overlaps(o Rect) bool {
	return r.MinX < o.MaxX && o.MinX < r.MaxX &&
		r.MinY < o.MaxY && o.MinY < r.MaxY
}

// Box converts r back to origin+size form.
func (r Rect) Box() Box {
	return Box{X: r.MinX, Y: 1 - r.MinY, W: r.MaxX - r.MinX, H: r.MaxY - r.MinY}
}

// Rect converts b to min/max form, flipping the vertical axis.
func (b Box) Rect() Rect {
	return Rect{MinX: b.X, MinY: 1 - b.Y, MaxX: b.X + b.W, MaxY: 1 - b.Y + b.H}
}

// Slice returns b as a 4-element slice in [x, y, w, h] order.
func (b Box) Slice() []float64 {
	return []float64{b.X, b.Y, b.W, b.H}
}

// BoxFromSlice reads a box from the first four values of v.
// It returns false when v has fewer than four values.
func BoxFromSlice(v []float64) (Box, bool) {
	if len(v) < 4 {
		return Box{}, false
	}
	return Box{X: v[0], Y: v[1], W: v[2], H: v[3]}, true
}

// Flatten concatenates boxes into a single location list.
func Flatten(boxes []Box) []float64 {
	out := make([]float64, 0, len(boxes)*4)
	for _, b := range boxes {
		out = append(out, b.X, b.Y, b.W, b.H)
	}
	return out
}
