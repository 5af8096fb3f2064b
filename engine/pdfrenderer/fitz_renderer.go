package pdfrenderer

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRasterizer implements Rasterizer using go-fitz (MuPDF). It is used as a
// cross-check for the PDFium output, not by the binding layer itself.
type FitzRasterizer struct {
}

// NewFitzRasterizer creates a new Fitz-based rasterizer
func NewFitzRasterizer() (*FitzRasterizer, error) {
	return &FitzRasterizer{}, nil
}

// RenderPage renders one page; the document is opened and closed per call
func (r *FitzRasterizer) RenderPage(data []byte, pageIndex int, dpi float64) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer doc.Close()

	if n := doc.NumPage(); pageIndex < 0 || pageIndex >= n {
		return nil, fmt.Errorf("page %d out of range, document has %d pages", pageIndex, n)
	}

	img, err := doc.ImageDPI(pageIndex, dpi)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", pageIndex, err)
	}
	return img, nil
}

// Close is a no-op, documents are closed per render
func (r *FitzRasterizer) Close() error {
	return nil
}
