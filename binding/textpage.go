package binding

import (
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf16"

	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

const (
	// DefaultHitTolerance is the hit-test window in points, both axes
	DefaultHitTolerance = 8.0
	// DefaultBoundedCapacity caps bounded text, in UTF-16 units
	DefaultBoundedCapacity = 2048
)

// TextPage is the text and character geometry of one page. It owns the page
// it was derived from. Close may run alongside queries; a query that overlaps
// it fails with ErrClosed or an engine error.
type TextPage struct {
	doc   *Document
	index int
	page  pdfrenderer.PageRef
	ref   pdfrenderer.TextPageRef

	LoadedAt time.Time

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// Document returns the document the text page belongs to
func (tp *TextPage) Document() *Document {
	return tp.doc
}

// PageIndex returns the index of the page the text was loaded from
func (tp *TextPage) PageIndex() int {
	return tp.index
}

func (tp *TextPage) checkOpen(op string) error {
	if tp.closed.Load() {
		return opError(KindContract, op, ErrClosed)
	}
	return nil
}

// CharCount forwards to the engine
func (tp *TextPage) CharCount() (int, error) {
	if err := tp.checkOpen("char count"); err != nil {
		return 0, err
	}
	n, err := tp.doc.engine.CountChars(tp.ref)
	if err != nil {
		return 0, opError(KindLoad, "char count", err)
	}
	return n, nil
}

// Text returns every character on the page
func (tp *TextPage) Text() (string, error) {
	n, err := tp.CharCount()
	if err != nil {
		return "", err
	}
	if n <= 0 {
		return "", nil
	}
	text, err := tp.doc.engine.Text(tp.ref, 0, n)
	if err != nil {
		return "", opError(KindLoad, "text", err)
	}
	return text, nil
}

// Range returns count characters starting at start. The range must lie
// within the page's characters.
func (tp *TextPage) Range(start, count int) (string, error) {
	if start < 0 || count < 0 {
		return "", opError(KindContract, "range", ErrRange)
	}
	n, err := tp.CharCount()
	if err != nil {
		return "", err
	}
	if start+count > n {
		return "", opError(KindContract, "range", ErrRange)
	}
	if count == 0 {
		return "", nil
	}
	text, err := tp.doc.engine.Text(tp.ref, start, count)
	if err != nil {
		return "", opError(KindLoad, "range", err)
	}
	return text, nil
}

// BoundedText is the text inside a rectangle
type BoundedText struct {
	Text string
	// Units is the length of Text in UTF-16 units
	Units int
	// Truncated is set when the text was cut at the capacity
	Truncated bool
}

// BoundedText returns the text whose glyphs fall inside r, cut to at most
// capacity UTF-16 units. A capacity of zero or less means no limit.
func (tp *TextPage) BoundedText(r Rect, capacity int) (BoundedText, error) {
	if err := tp.checkOpen("bounded text"); err != nil {
		return BoundedText{}, err
	}
	if r.ZeroArea() {
		return BoundedText{}, nil
	}
	text, err := tp.doc.engine.BoundedText(tp.ref, r.Left, r.Top, r.Right, r.Bottom)
	if err != nil {
		return BoundedText{}, opError(KindLoad, "bounded text", err)
	}
	return truncateUTF16(text, capacity), nil
}

// truncateUTF16 never splits a surrogate pair
func truncateUTF16(text string, capacity int) BoundedText {
	units := 0
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if capacity > 0 && units+n > capacity {
			return BoundedText{Text: text[:i], Units: units, Truncated: true}
		}
		units += n
	}
	return BoundedText{Text: text, Units: units}
}

// CharIndexAtPos returns the index of the character within tolerance of the
// page-space point (x, y), or -1 when there is none.
func (tp *TextPage) CharIndexAtPos(x, y, tolerance float64) (int, error) {
	if err := tp.checkOpen("char index"); err != nil {
		return -1, err
	}
	idx, err := tp.doc.engine.CharIndexAtPos(tp.ref, x, y, tolerance, tolerance)
	if err != nil {
		return -1, opError(KindLoad, "char index", err)
	}
	if idx < 0 {
		return -1, nil
	}
	return idx, nil
}

// CharBox returns the box of character index
func (tp *TextPage) CharBox(index int) (Box, error) {
	n, err := tp.CharCount()
	if err != nil {
		return Box{}, err
	}
	if index < 0 || index >= n {
		return Box{}, opError(KindContract, "char box", ErrCharIndex)
	}
	left, right, bottom, top, err := tp.doc.engine.CharBox(tp.ref, index)
	if err != nil {
		return Box{}, opError(KindLoad, "char box", err)
	}
	return engineBoxToLTRB(left, right, bottom, top), nil
}

// Close releases the text page and its page. Closing twice is a no-op.
func (tp *TextPage) Close() error {
	tp.closeOnce.Do(func() {
		tp.closed.Store(true)
		engine := tp.doc.engine
		if err := engine.CloseTextPage(tp.ref); err != nil {
			tp.closeErr = opError(KindLoad, "close text page", err)
		}
		if err := engine.ClosePage(tp.page); err != nil && tp.closeErr == nil {
			tp.closeErr = opError(KindLoad, "close page", err)
		}
		tp.doc.forget(tp)
		Logger.Debug("Text page closed", "document", tp.doc.ID, "page", tp.index)
	})
	return tp.closeErr
}
