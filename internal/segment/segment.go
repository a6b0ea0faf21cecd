package segment

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nextlevelbuilder/unlost/internal/cluster"
	"github.com/nextlevelbuilder/unlost/internal/geom"
)

// DefaultChromeHeight is the band (in pixels) at the top of a screenshot
// treated as window chrome.
const DefaultChromeHeight = 90

// Segmenter converts the fragments of one screenshot into section records.
type Segmenter struct {
	Splitter     SentenceSplitter
	Threshold    float64
	ChromeHeight float64
}

// New creates a Segmenter with default tuning.
func New(splitter SentenceSplitter) *Segmenter {
	if splitter == nil {
		splitter = NewRuleSplitter()
	}
	return &Segmenter{
		Splitter:     splitter,
		Threshold:    cluster.DefaultThreshold,
		ChromeHeight: DefaultChromeHeight,
	}
}

// Transform clusters frags into blocks and splits each multi-line block into
// sentences. Metadata of every output record is copied from tmpl; ids are
// "{screenshotID}#{n}" with n counting up across the whole screenshot.
func (s *Segmenter) Transform(screenshotID string, tmpl Memory, frags []Fragment) []Memory {
	var kept []Fragment
	for _, f := range frags {
		if (1-f.Box.Y)*tmpl.Height > s.ChromeHeight {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	rects := make([]geom.Rect, len(kept))
	for i, f := range kept {
		rects[i] = f.Box.Rect()
	}

	var out []Memory
	seq := 0
	emit := func(text string, location []float64) {
		m := tmpl.Clone()
		m.ID = fmt.Sprintf("%s#%d", screenshotID, seq)
		m.Text = text
		m.Location = location
		out = append(out, m)
		seq++
	}

	for _, members := range cluster.Cluster(rects, s.Threshold) {
		order := append([]int(nil), members...)
		sort.SliceStable(order, func(a, b int) bool {
			ra, rb := rects[order[a]], rects[order[b]]
			if ra.MinY != rb.MinY {
				return ra.MinY < rb.MinY
			}
			return ra.MinX < rb.MinX
		})

		if !multiline(rects, order) {
			for _, i := range members {
				emit(kept[i].Text, kept[i].Box.Slice())
			}
			continue
		}

		block := make([]Fragment, len(order))
		for j, i := range order {
			block[j] = Fragment{Text: kept[i].Text, Box: kept[i].Box}
		}
		for _, sent := range s.sentences(block) {
			emit(sent.text, geom.Flatten(sent.boxes))
		}
	}
	return out
}

// multiline reports whether a sorted cluster spans more than one text line.
func multiline(rects []geom.Rect, order []int) bool {
	if len(order) < 2 {
		return false
	}
	r0, r1 := rects[order[0]], rects[order[1]]
	return math.Abs(r1.MinY-r0.MinY) >= r0.Height()/2
}

type sentence struct {
	text  string
	boxes []geom.Box
}

// sentences splits a reading-ordered block and maps every sentence back onto
// the fragment boxes it covers. Offsets are counted in characters.
func (s *Segmenter) sentences(block []Fragment) []sentence {
	texts := make([]string, len(block))
	starts := make([]int, len(block))
	ends := make([]int, len(block))
	total := 0
	for i, f := range block {
		texts[i] = f.Text
		starts[i] = total
		total += utf8.RuneCountInString(f.Text)
		if i < len(block)-1 {
			total++
		}
		ends[i] = total
	}
	joined := strings.Join(texts, " ")

	var out []sentence
	for _, sp := range s.Splitter.Split(joined) {
		if sp.Start < 0 || sp.End > len(joined) || sp.Start >= sp.End {
			continue
		}
		raw := joined[sp.Start:sp.End]
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
		prev := utf8.RuneCountInString(joined[:sp.Start+lead])
		current := prev + utf8.RuneCountInString(text) + 1

		first, last := 0, 0
		for i := 0; i < len(block)-1; i++ {
			if prev >= ends[i] {
				first = i + 1
			}
			if current > ends[i] {
				last = i + 1
			}
		}

		boxes := make([]geom.Box, 0, last-first+1)
		for i := first; i <= last; i++ {
			boxes = append(boxes, block[i].Box)
		}

		head := &boxes[0]
		cut := head.W * ratio(prev-starts[first], texts[first])
		head.X += cut
		head.W -= cut
		if len(boxes) > 1 {
			tail := &boxes[len(boxes)-1]
			tail.W *= ratio(current-starts[last], texts[last])
		}

		out = append(out, sentence{text: text, boxes: boxes})
	}
	return out
}

// ratio is the fraction of text covered by the first off characters,
// clamped to [0, 1]. Empty text yields 0.
func ratio(off int, text string) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 || off <= 0 {
		return 0
	}
	return math.Min(float64(off)/float64(n), 1)
}
