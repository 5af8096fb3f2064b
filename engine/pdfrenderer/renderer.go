package pdfrenderer

import (
	"image"
)

// DocumentRef identifies a document owned by the engine
type DocumentRef string

// PageRef identifies a loaded page owned by the engine
type PageRef string

// TextPageRef identifies a text page owned by the engine
type TextPageRef string

// BitmapRef identifies an engine bitmap
type BitmapRef string

// Engine is the subset of the PDFium document, page, bitmap and text API that
// the binding layer forwards to. A given document and everything derived from
// it must only be used from one goroutine at a time.
type Engine interface {
	LoadDocument(data []byte) (DocumentRef, error)
	CloseDocument(doc DocumentRef) error
	PageCount(doc DocumentRef) (int, error)

	// LoadPage and ClosePage bracket every page operation.
	LoadPage(doc DocumentRef, index int) (PageRef, error)
	ClosePage(page PageRef) error
	PageSize(page PageRef) (width, height float32, err error)

	// CreateBitmap returns a 4 bytes per pixel BGRA bitmap.
	CreateBitmap(width, height int) (BitmapRef, error)
	FillRect(bitmap BitmapRef, left, top, width, height int, color uint32) error
	// RenderPageBitmap renders without rotation and without render flags.
	RenderPageBitmap(bitmap BitmapRef, page PageRef, startX, startY, sizeX, sizeY int) error
	BitmapBuffer(bitmap BitmapRef) (buf []byte, stride int, err error)
	DestroyBitmap(bitmap BitmapRef) error

	LoadTextPage(page PageRef) (TextPageRef, error)
	CloseTextPage(textPage TextPageRef) error
	CountChars(textPage TextPageRef) (int, error)
	// Text returns count characters from start without the trailing terminator.
	Text(textPage TextPageRef, start, count int) (string, error)
	BoundedText(textPage TextPageRef, left, top, right, bottom float64) (string, error)
	// CharIndexAtPos returns -1 when no character is within tolerance.
	CharIndexAtPos(textPage TextPageRef, x, y, xTolerance, yTolerance float64) (int, error)
	// CharBox uses the engine ordering: left, right, bottom, top.
	CharBox(textPage TextPageRef, index int) (left, right, bottom, top float64, err error)

	// Close tears down the engine instance
	Close() error
}

// Rasterizer converts a single page of an in-memory PDF to an image
type Rasterizer interface {
	// RenderPage renders pageIndex of data at the given resolution
	RenderPage(data []byte, pageIndex int, dpi float64) (image.Image, error)

	// Close cleans up any resources used by the rasterizer
	Close() error
}
