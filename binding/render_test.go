//go:build unix

package binding

import (
	"bytes"
	"errors"
	"testing"

	"github.com/drummonds/pdfbind/engine/pdfrenderer/pdfrenderertest"
)

func TestRenderPageOpaqueWhiteBackground(t *testing.T) {
	doc, engine := openFake(t, pdfrenderertest.Letter("Hello"))
	buf := NewImageBuffer(32, 24)

	if err := doc.RenderPage(0, buf); err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}
	if buf.Locked() {
		t.Error("Buffer left locked")
	}

	img := buf.Image
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			if a := img.RGBAAt(x, y).A; a != 0xFF {
				t.Fatalf("Pixel (%d,%d) not opaque: alpha=%d", x, y, a)
			}
		}
	}
	if got := img.RGBAAt(5, 5); got.R != 0xFF || got.G != 0xFF || got.B != 0xFF {
		t.Errorf("Expected white background, got %v", got)
	}
	if got := img.RGBAAt(0, 0); got != pdfrenderertest.Ink {
		t.Errorf("Expected engine ink %v at origin in RGBA order, got %v", pdfrenderertest.Ink, got)
	}

	if _, pages, _, bitmaps := engine.Live(); pages != 0 || bitmaps != 0 {
		t.Errorf("Render leaked pages=%d bitmaps=%d", pages, bitmaps)
	}
}

func TestRenderPageWrongFormatLeavesBufferUntouched(t *testing.T) {
	doc, engine := openFake(t, pdfrenderertest.Letter("Hello"))
	pix := bytes.Repeat([]byte{0xAB}, 16*8*2)
	buf := &RawBuffer{Pix: pix, Width: 16, Height: 8, Stride: 32, Format: FormatRGB565}

	err := doc.RenderPage(0, buf)
	if !errors.Is(err, ErrPixelFormat) {
		t.Fatalf("Expected ErrPixelFormat, got %v", err)
	}
	if KindOf(err) != KindContract {
		t.Errorf("Expected contract violation, got %v", KindOf(err))
	}
	if !bytes.Equal(pix, bytes.Repeat([]byte{0xAB}, 16*8*2)) {
		t.Error("Buffer was modified")
	}
	if buf.Locked() {
		t.Error("Buffer locked on format mismatch")
	}
	if engine.Renders != 0 {
		t.Errorf("Engine rendered %d times", engine.Renders)
	}
}

func TestRenderPageUnlocksOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		setup func(e *pdfrenderertest.Engine)
		kind  Kind
	}{
		{name: "missing page", page: 7, kind: KindLoad},
		{name: "bitmap allocation", page: 0, setup: func(e *pdfrenderertest.Engine) { e.FailBitmaps = true }, kind: KindAcquire},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, engine := openFake(t, pdfrenderertest.Letter("Hello"))
			if tt.setup != nil {
				tt.setup(engine)
			}
			buf := NewImageBuffer(8, 8)

			err := doc.RenderPage(tt.page, buf)
			if KindOf(err) != tt.kind {
				t.Errorf("Expected %v failure, got %v", tt.kind, err)
			}
			if buf.Locked() {
				t.Error("Buffer left locked")
			}
			if _, pages, _, bitmaps := engine.Live(); pages != 0 || bitmaps != 0 {
				t.Errorf("Render leaked pages=%d bitmaps=%d", pages, bitmaps)
			}
		})
	}
}

func TestRenderPageRejectsShortBuffer(t *testing.T) {
	doc, _ := openFake(t, pdfrenderertest.Letter("Hello"))
	buf := &RawBuffer{Pix: make([]byte, 10), Width: 4, Height: 4, Stride: 16, Format: FormatRGBA8888}

	if err := doc.RenderPage(0, buf); !errors.Is(err, ErrBufferSize) {
		t.Errorf("Expected ErrBufferSize, got %v", err)
	}
	if buf.Locked() {
		t.Error("Buffer left locked")
	}
}

func TestRenderPageHonoursCallerStride(t *testing.T) {
	doc, _ := openFake(t, pdfrenderertest.Letter("Hello"))
	// Two pixels wide with four bytes of row padding
	pix := make([]byte, 12*2)
	buf := &RawBuffer{Pix: pix, Width: 2, Height: 2, Stride: 12, Format: FormatRGBA8888}

	if err := doc.RenderPage(0, buf); err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}
	for _, pad := range []int{8, 9, 10, 11, 20, 21, 22, 23} {
		if pix[pad] != 0 {
			t.Errorf("Row padding byte %d written: %#x", pad, pix[pad])
		}
	}
	if pix[12+0] != 0xFF || pix[12+3] != 0xFF {
		t.Errorf("Second row not rendered: % x", pix[12:20])
	}
}

func TestCopyBGRAToRGBA(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dst := make([]byte, 8)
	copyBGRAToRGBA(dst, 8, src, 8, 2, 1)
	want := []byte{3, 2, 1, 4, 7, 6, 5, 8}
	if !bytes.Equal(dst, want) {
		t.Errorf("Expected % x, got % x", want, dst)
	}
}
