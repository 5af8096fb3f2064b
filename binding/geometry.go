package binding

// Rect is a page-space rectangle. Page space has its origin at the bottom
// left, so Top is normally greater than Bottom.
type Rect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// ZeroArea reports whether r covers no area
func (r Rect) ZeroArea() bool {
	return r.Left == r.Right || r.Top == r.Bottom
}

// Box is a character box in caller order: left, top, right, bottom
type Box struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// engineBoxToLTRB converts the engine's (left, right, bottom, top) ordering
// into the caller's (left, top, right, bottom) ordering. It is the only place
// the two orderings meet.
func engineBoxToLTRB(left, right, bottom, top float64) Box {
	return Box{Left: left, Top: top, Right: right, Bottom: bottom}
}

// Floats returns the box as a 4-element left, top, right, bottom array
func (b Box) Floats() []float32 {
	return []float32{float32(b.Left), float32(b.Top), float32(b.Right), float32(b.Bottom)}
}

// DeviceRect is a rectangle in device pixels with the origin at the top left
type DeviceRect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// PixelsPerPoint converts a resolution in dpi to device pixels per PDF point
func PixelsPerPoint(dpi float64) float64 {
	return dpi / 72
}

// HighlightRects maps page-space character boxes onto device rectangles for a
// page of pageHeight points drawn at pxPerPt.
func HighlightRects(boxes []Box, pageHeight, pxPerPt float64) []DeviceRect {
	rects := make([]DeviceRect, 0, len(boxes))
	for _, b := range boxes {
		rects = append(rects, DeviceRect{
			Left:   b.Left * pxPerPt,
			Top:    (pageHeight - b.Top) * pxPerPt,
			Right:  b.Right * pxPerPt,
			Bottom: (pageHeight - b.Bottom) * pxPerPt,
		})
	}
	return rects
}
