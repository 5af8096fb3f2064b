package pdfrenderer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// Config holds the PDFium worker pool settings
type Config struct {
	MinIdle         int
	MaxIdle         int
	MaxTotal        int
	InstanceTimeout time.Duration
}

// DefaultConfig is a single worker, which matches the single-threaded engine contract
var DefaultConfig = Config{
	MinIdle:         1,
	MaxIdle:         1,
	MaxTotal:        1,
	InstanceTimeout: 30 * time.Second,
}

// PDFiumEngine implements Engine using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumEngine struct {
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPDFiumEngine creates a new PDFium engine backed by a WebAssembly pool
func NewPDFiumEngine(cfg Config) (*PDFiumEngine, error) {
	if cfg.MaxTotal <= 0 {
		cfg = DefaultConfig
	}
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  cfg.MinIdle,
		MaxIdle:  cfg.MaxIdle,
		MaxTotal: cfg.MaxTotal,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(cfg.InstanceTimeout)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumEngine{
		pool:     pool,
		instance: instance,
	}, nil
}

func byReference(page PageRef) requests.Page {
	ref := references.FPDF_PAGE(page)
	return requests.Page{ByReference: &ref}
}

// LoadDocument loads a document from data; the engine copies what it needs
func (e *PDFiumEngine) LoadDocument(data []byte) (DocumentRef, error) {
	if len(data) == 0 {
		return "", errors.New("unable to open PDF document: no data")
	}
	doc, err := e.instance.OpenDocument(&requests.OpenDocument{
		File: &data,
	})
	if err != nil {
		return "", fmt.Errorf("unable to open PDF document: %w", err)
	}
	return DocumentRef(doc.Document), nil
}

func (e *PDFiumEngine) CloseDocument(doc DocumentRef) error {
	_, err := e.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: references.FPDF_DOCUMENT(doc),
	})
	if err != nil {
		return fmt.Errorf("unable to close PDF document: %w", err)
	}
	return nil
}

func (e *PDFiumEngine) PageCount(doc DocumentRef) (int, error) {
	resp, err := e.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: references.FPDF_DOCUMENT(doc),
	})
	if err != nil {
		return 0, fmt.Errorf("unable to get page count: %w", err)
	}
	return resp.PageCount, nil
}

func (e *PDFiumEngine) LoadPage(doc DocumentRef, index int) (PageRef, error) {
	resp, err := e.instance.FPDF_LoadPage(&requests.FPDF_LoadPage{
		Document: references.FPDF_DOCUMENT(doc),
		Index:    index,
	})
	if err != nil {
		return "", fmt.Errorf("unable to load page %d: %w", index, err)
	}
	return PageRef(resp.Page), nil
}

func (e *PDFiumEngine) ClosePage(page PageRef) error {
	_, err := e.instance.FPDF_ClosePage(&requests.FPDF_ClosePage{
		Page: references.FPDF_PAGE(page),
	})
	if err != nil {
		return fmt.Errorf("unable to close page: %w", err)
	}
	return nil
}

func (e *PDFiumEngine) PageSize(page PageRef) (float32, float32, error) {
	width, err := e.instance.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{
		Page: byReference(page),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get page width: %w", err)
	}
	height, err := e.instance.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{
		Page: byReference(page),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get page height: %w", err)
	}
	return width.PageWidth, height.PageHeight, nil
}

func (e *PDFiumEngine) CreateBitmap(width, height int) (BitmapRef, error) {
	resp, err := e.instance.FPDFBitmap_Create(&requests.FPDFBitmap_Create{
		Width:  width,
		Height: height,
		Alpha:  1, // BGRA
	})
	if err != nil {
		return "", fmt.Errorf("unable to create %dx%d bitmap: %w", width, height, err)
	}
	return BitmapRef(resp.Bitmap), nil
}

func (e *PDFiumEngine) FillRect(bitmap BitmapRef, left, top, width, height int, color uint32) error {
	_, err := e.instance.FPDFBitmap_FillRect(&requests.FPDFBitmap_FillRect{
		Bitmap: references.FPDF_BITMAP(bitmap),
		Left:   left,
		Top:    top,
		Width:  width,
		Height: height,
		Color:  uint64(color),
	})
	if err != nil {
		return fmt.Errorf("unable to fill bitmap: %w", err)
	}
	return nil
}

func (e *PDFiumEngine) RenderPageBitmap(bitmap BitmapRef, page PageRef, startX, startY, sizeX, sizeY int) error {
	// Rotate and Flags stay zero: no rotation, no special flags
	_, err := e.instance.FPDF_RenderPageBitmap(&requests.FPDF_RenderPageBitmap{
		Bitmap: references.FPDF_BITMAP(bitmap),
		Page:   byReference(page),
		StartX: startX,
		StartY: startY,
		SizeX:  sizeX,
		SizeY:  sizeY,
	})
	if err != nil {
		return fmt.Errorf("unable to render page: %w", err)
	}
	return nil
}

func (e *PDFiumEngine) BitmapBuffer(bitmap BitmapRef) ([]byte, int, error) {
	stride, err := e.instance.FPDFBitmap_GetStride(&requests.FPDFBitmap_GetStride{
		Bitmap: references.FPDF_BITMAP(bitmap),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("unable to get bitmap stride: %w", err)
	}
	buf, err := e.instance.FPDFBitmap_GetBuffer(&requests.FPDFBitmap_GetBuffer{
		Bitmap: references.FPDF_BITMAP(bitmap),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("unable to get bitmap buffer: %w", err)
	}
	return buf.Buffer, stride.Stride, nil
}

func (e *PDFiumEngine) DestroyBitmap(bitmap BitmapRef) error {
	_, err := e.instance.FPDFBitmap_Destroy(&requests.FPDFBitmap_Destroy{
		Bitmap: references.FPDF_BITMAP(bitmap),
	})
	if err != nil {
		return fmt.Errorf("unable to destroy bitmap: %w", err)
	}
	return nil
}

func (e *PDFiumEngine) LoadTextPage(page PageRef) (TextPageRef, error) {
	resp, err := e.instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{
		Page: byReference(page),
	})
	if err != nil {
		return "", fmt.Errorf("unable to load text page: %w", err)
	}
	return TextPageRef(resp.TextPage), nil
}

func (e *PDFiumEngine) CloseTextPage(textPage TextPageRef) error {
	_, err := e.instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{
		TextPage: references.FPDF_TEXTPAGE(textPage),
	})
	if err != nil {
		return fmt.Errorf("unable to close text page: %w", err)
	}
	return nil
}

func (e *PDFiumEngine) CountChars(textPage TextPageRef) (int, error) {
	resp, err := e.instance.FPDFText_CountChars(&requests.FPDFText_CountChars{
		TextPage: references.FPDF_TEXTPAGE(textPage),
	})
	if err != nil {
		return -1, fmt.Errorf("unable to count characters: %w", err)
	}
	return resp.Count, nil
}

func (e *PDFiumEngine) Text(textPage TextPageRef, start, count int) (string, error) {
	resp, err := e.instance.FPDFText_GetText(&requests.FPDFText_GetText{
		TextPage:   references.FPDF_TEXTPAGE(textPage),
		StartIndex: start,
		Count:      count,
	})
	if err != nil {
		return "", fmt.Errorf("unable to get text: %w", err)
	}
	return strings.TrimRight(resp.Text, "\x00"), nil
}

func (e *PDFiumEngine) BoundedText(textPage TextPageRef, left, top, right, bottom float64) (string, error) {
	resp, err := e.instance.FPDFText_GetBoundedText(&requests.FPDFText_GetBoundedText{
		TextPage: references.FPDF_TEXTPAGE(textPage),
		Left:     left,
		Top:      top,
		Right:    right,
		Bottom:   bottom,
	})
	if err != nil {
		return "", fmt.Errorf("unable to get bounded text: %w", err)
	}
	return strings.TrimRight(resp.Text, "\x00"), nil
}

func (e *PDFiumEngine) CharIndexAtPos(textPage TextPageRef, x, y, xTolerance, yTolerance float64) (int, error) {
	resp, err := e.instance.FPDFText_GetCharIndexAtPos(&requests.FPDFText_GetCharIndexAtPos{
		TextPage:   references.FPDF_TEXTPAGE(textPage),
		X:          x,
		Y:          y,
		XTolerance: xTolerance,
		YTolerance: yTolerance,
	})
	if err != nil {
		return -1, fmt.Errorf("unable to hit-test characters: %w", err)
	}
	return resp.CharIndex, nil
}

func (e *PDFiumEngine) CharBox(textPage TextPageRef, index int) (float64, float64, float64, float64, error) {
	resp, err := e.instance.FPDFText_GetCharBox(&requests.FPDFText_GetCharBox{
		TextPage: references.FPDF_TEXTPAGE(textPage),
		Index:    index,
	})
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("unable to get box of character %d: %w", index, err)
	}
	return resp.Left, resp.Right, resp.Bottom, resp.Top, nil
}

// Close cleans up resources used by the PDFium engine
func (e *PDFiumEngine) Close() error {
	var err error
	if e.instance != nil {
		err = e.instance.Close()
		e.instance = nil
	}
	if e.pool != nil {
		if closeErr := e.pool.Close(); err == nil {
			err = closeErr
		}
		e.pool = nil
	}
	return err
}
