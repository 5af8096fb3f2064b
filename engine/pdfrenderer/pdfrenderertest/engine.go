// Package pdfrenderertest provides an in-memory pdfrenderer.Engine for tests.
//
// Documents are accepted when their data starts with "%PDF" and every document
// gets the same pages. UTF-16 units of a page's text are laid out on one line:
// unit i occupies [OriginX+i*Advance, OriginX+i*Advance+GlyphWidth] by
// [OriginY, OriginY+GlyphHeight] in page space.
package pdfrenderertest

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"unicode/utf16"

	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

// Glyph layout
const (
	OriginX     = 72
	OriginY     = 700
	Advance     = 10
	GlyphWidth  = 8
	GlyphHeight = 12
)

// Ink is the colour RenderPageBitmap paints at the render origin
var Ink = color.RGBA{R: 0x30, G: 0x20, B: 0x10, A: 0xFF}

// Page describes one page of every fake document
type Page struct {
	Width  float32
	Height float32
	Text   string
}

// Letter is a US Letter page with the given text
func Letter(text string) Page {
	return Page{Width: 612, Height: 792, Text: text}
}

type pageState struct {
	doc   pdfrenderer.DocumentRef
	index int
}

type bitmap struct {
	width  int
	height int
	stride int
	pix    []byte
}

// Engine is a fake engine. It is safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	pages []Page
	seq   int

	docs      map[pdfrenderer.DocumentRef]bool
	loaded    map[pdfrenderer.PageRef]pageState
	textPages map[pdfrenderer.TextPageRef][]uint16
	bitmaps   map[pdfrenderer.BitmapRef]*bitmap

	// FailBitmaps makes CreateBitmap fail
	FailBitmaps bool
	// Renders counts RenderPageBitmap calls
	Renders int
	closed  bool
}

// New returns an engine whose documents contain pages
func New(pages ...Page) *Engine {
	return &Engine{
		pages:     pages,
		docs:      map[pdfrenderer.DocumentRef]bool{},
		loaded:    map[pdfrenderer.PageRef]pageState{},
		textPages: map[pdfrenderer.TextPageRef][]uint16{},
		bitmaps:   map[pdfrenderer.BitmapRef]*bitmap{},
	}
}

// Live reports the number of engine objects that are still open
func (e *Engine) Live() (docs, pages, textPages, bitmaps int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.docs), len(e.loaded), len(e.textPages), len(e.bitmaps)
}

// Closed reports whether Close was called
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// CharBox returns the engine-ordered box of character i
func CharBox(i int) (left, right, bottom, top float64) {
	left = float64(OriginX + i*Advance)
	return left, left + GlyphWidth, OriginY, OriginY + GlyphHeight
}

func (e *Engine) nextRef(prefix string) string {
	e.seq++
	return fmt.Sprintf("%s-%d", prefix, e.seq)
}

func (e *Engine) LoadDocument(data []byte) (pdfrenderer.DocumentRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return "", errors.New("fake: not a PDF")
	}
	ref := pdfrenderer.DocumentRef(e.nextRef("doc"))
	e.docs[ref] = true
	return ref, nil
}

func (e *Engine) CloseDocument(doc pdfrenderer.DocumentRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.docs[doc] {
		return fmt.Errorf("fake: unknown document %q", doc)
	}
	delete(e.docs, doc)
	return nil
}

func (e *Engine) PageCount(doc pdfrenderer.DocumentRef) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.docs[doc] {
		return 0, fmt.Errorf("fake: unknown document %q", doc)
	}
	return len(e.pages), nil
}

func (e *Engine) LoadPage(doc pdfrenderer.DocumentRef, index int) (pdfrenderer.PageRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.docs[doc] {
		return "", fmt.Errorf("fake: unknown document %q", doc)
	}
	if index < 0 || index >= len(e.pages) {
		return "", fmt.Errorf("fake: page %d out of range", index)
	}
	ref := pdfrenderer.PageRef(e.nextRef("page"))
	e.loaded[ref] = pageState{doc: doc, index: index}
	return ref, nil
}

func (e *Engine) ClosePage(page pdfrenderer.PageRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.loaded[page]; !ok {
		return fmt.Errorf("fake: unknown page %q", page)
	}
	delete(e.loaded, page)
	return nil
}

func (e *Engine) page(ref pdfrenderer.PageRef) (Page, error) {
	state, ok := e.loaded[ref]
	if !ok {
		return Page{}, fmt.Errorf("fake: unknown page %q", ref)
	}
	return e.pages[state.index], nil
}

func (e *Engine) PageSize(page pdfrenderer.PageRef) (float32, float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.page(page)
	if err != nil {
		return 0, 0, err
	}
	return p.Width, p.Height, nil
}

func (e *Engine) CreateBitmap(width, height int) (pdfrenderer.BitmapRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailBitmaps {
		return "", errors.New("fake: bitmap allocation failed")
	}
	ref := pdfrenderer.BitmapRef(e.nextRef("bitmap"))
	e.bitmaps[ref] = &bitmap{
		width:  width,
		height: height,
		stride: width * 4,
		pix:    make([]byte, width*height*4),
	}
	return ref, nil
}

func (e *Engine) FillRect(ref pdfrenderer.BitmapRef, left, top, width, height int, argb uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	bmp, ok := e.bitmaps[ref]
	if !ok {
		return fmt.Errorf("fake: unknown bitmap %q", ref)
	}
	for y := top; y < top+height && y < bmp.height; y++ {
		for x := left; x < left+width && x < bmp.width; x++ {
			i := y*bmp.stride + x*4
			bmp.pix[i+0] = byte(argb)
			bmp.pix[i+1] = byte(argb >> 8)
			bmp.pix[i+2] = byte(argb >> 16)
			bmp.pix[i+3] = byte(argb >> 24)
		}
	}
	return nil
}

func (e *Engine) RenderPageBitmap(ref pdfrenderer.BitmapRef, page pdfrenderer.PageRef, startX, startY, sizeX, sizeY int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	bmp, ok := e.bitmaps[ref]
	if !ok {
		return fmt.Errorf("fake: unknown bitmap %q", ref)
	}
	if _, err := e.page(page); err != nil {
		return err
	}
	e.Renders++
	if sizeX <= 0 || sizeY <= 0 || startX >= bmp.width || startY >= bmp.height {
		return nil
	}
	i := startY*bmp.stride + startX*4
	bmp.pix[i+0] = Ink.B
	bmp.pix[i+1] = Ink.G
	bmp.pix[i+2] = Ink.R
	bmp.pix[i+3] = Ink.A
	return nil
}

func (e *Engine) BitmapBuffer(ref pdfrenderer.BitmapRef) ([]byte, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bmp, ok := e.bitmaps[ref]
	if !ok {
		return nil, 0, fmt.Errorf("fake: unknown bitmap %q", ref)
	}
	return bmp.pix, bmp.stride, nil
}

func (e *Engine) DestroyBitmap(ref pdfrenderer.BitmapRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.bitmaps[ref]; !ok {
		return fmt.Errorf("fake: unknown bitmap %q", ref)
	}
	delete(e.bitmaps, ref)
	return nil
}

func (e *Engine) LoadTextPage(page pdfrenderer.PageRef) (pdfrenderer.TextPageRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.page(page)
	if err != nil {
		return "", err
	}
	ref := pdfrenderer.TextPageRef(e.nextRef("text"))
	e.textPages[ref] = utf16.Encode([]rune(p.Text))
	return ref, nil
}

func (e *Engine) CloseTextPage(textPage pdfrenderer.TextPageRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.textPages[textPage]; !ok {
		return fmt.Errorf("fake: unknown text page %q", textPage)
	}
	delete(e.textPages, textPage)
	return nil
}

func (e *Engine) chars(textPage pdfrenderer.TextPageRef) ([]uint16, error) {
	chars, ok := e.textPages[textPage]
	if !ok {
		return nil, fmt.Errorf("fake: unknown text page %q", textPage)
	}
	return chars, nil
}

func (e *Engine) CountChars(textPage pdfrenderer.TextPageRef) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	chars, err := e.chars(textPage)
	if err != nil {
		return -1, err
	}
	return len(chars), nil
}

func (e *Engine) Text(textPage pdfrenderer.TextPageRef, start, count int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	chars, err := e.chars(textPage)
	if err != nil {
		return "", err
	}
	if start < 0 || count < 0 || start+count > len(chars) {
		return "", fmt.Errorf("fake: range %d+%d out of bounds", start, count)
	}
	return string(utf16.Decode(chars[start : start+count])), nil
}

func (e *Engine) BoundedText(textPage pdfrenderer.TextPageRef, left, top, right, bottom float64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	chars, err := e.chars(textPage)
	if err != nil {
		return "", err
	}
	if top < bottom {
		top, bottom = bottom, top
	}
	var out []uint16
	for i, u := range chars {
		l, rt, b, t := CharBox(i)
		cx, cy := (l+rt)/2, (b+t)/2
		if cx >= left && cx <= right && cy >= bottom && cy <= top {
			out = append(out, u)
		}
	}
	return string(utf16.Decode(out)), nil
}

func (e *Engine) CharIndexAtPos(textPage pdfrenderer.TextPageRef, x, y, xTolerance, yTolerance float64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	chars, err := e.chars(textPage)
	if err != nil {
		return -3, err
	}
	for i := range chars {
		l, r, b, t := CharBox(i)
		if x >= l-xTolerance && x <= r+xTolerance && y >= b-yTolerance && y <= t+yTolerance {
			return i, nil
		}
	}
	return -1, nil
}

func (e *Engine) CharBox(textPage pdfrenderer.TextPageRef, index int) (float64, float64, float64, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	chars, err := e.chars(textPage)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if index < 0 || index >= len(chars) {
		return 0, 0, 0, 0, fmt.Errorf("fake: character %d out of range", index)
	}
	l, r, b, t := CharBox(index)
	return l, r, b, t, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

var _ pdfrenderer.Engine = (*Engine)(nil)
