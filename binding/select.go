package binding

import (
	"math"
	"unicode"
	"unicode/utf8"
)

// Probe pattern around a missed hit: rings every probeStep device pixels up
// to probeMaxRadius, probeAngleStep degrees apart.
const (
	probeStep      = 6.0
	probeMaxRadius = 30.0
	probeAngleStep = 30
)

// Selection is a word picked from a text page
type Selection struct {
	// Start and End are inclusive character indices
	Start int
	End   int
	Text  string
	Boxes []Box
}

// WordAt finds the word nearest to the page-space point (x, y), probing as
// if the page were drawn at 72 dpi.
func (tp *TextPage) WordAt(x, y, tolerance float64) (sel Selection, ok bool, err error) {
	return tp.WordAtScale(x, y, tolerance, 1)
}

// WordAtScale finds the word nearest to the page-space point (x, y). The
// point itself is tried first, then rings of probes around it, spaced in
// device pixels of pointsPerPixel points each. ok is false when no character
// is found.
func (tp *TextPage) WordAtScale(x, y, tolerance, pointsPerPixel float64) (sel Selection, ok bool, err error) {
	if pointsPerPixel <= 0 {
		pointsPerPixel = 1
	}
	idx, err := tp.probe(x, y, tolerance, pointsPerPixel)
	if err != nil || idx < 0 {
		return Selection{}, false, err
	}

	total, err := tp.CharCount()
	if err != nil {
		return Selection{}, false, err
	}
	start, end := idx, idx
	for start > 0 && tp.isWordChar(start-1) {
		start--
	}
	for end+1 < total && tp.isWordChar(end+1) {
		end++
	}

	text, err := tp.Range(start, end-start+1)
	if err != nil {
		return Selection{}, false, err
	}
	sel = Selection{Start: start, End: end, Text: text}
	for i := start; i <= end; i++ {
		box, err := tp.CharBox(i)
		if err != nil {
			continue
		}
		sel.Boxes = append(sel.Boxes, box)
	}
	return sel, true, nil
}

func (tp *TextPage) probe(x, y, tolerance, scale float64) (int, error) {
	idx, err := tp.CharIndexAtPos(x, y, tolerance)
	if err != nil || idx >= 0 {
		return idx, err
	}
	for r := probeStep; r <= probeMaxRadius; r += probeStep {
		for a := 0; a < 360; a += probeAngleStep {
			rad := float64(a) * math.Pi / 180
			d := r * scale
			idx, err := tp.CharIndexAtPos(x+d*math.Cos(rad), y+d*math.Sin(rad), tolerance)
			if err != nil || idx >= 0 {
				return idx, err
			}
		}
	}
	return -1, nil
}

func (tp *TextPage) isWordChar(i int) bool {
	s, err := tp.Range(i, 1)
	if err != nil || s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
