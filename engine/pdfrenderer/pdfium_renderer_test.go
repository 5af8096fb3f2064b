package pdfrenderer

import (
	"os"
	"testing"
)

func newTestEngine(t *testing.T) *PDFiumEngine {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PDFium WebAssembly test in short mode")
	}
	engine, err := NewPDFiumEngine(DefaultConfig)
	if err != nil {
		t.Fatalf("Failed to start PDFium: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestPDFiumEngineTextAndGeometry(t *testing.T) {
	engine := newTestEngine(t)

	data, err := os.ReadFile("../../binding/testdata/hello.pdf")
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	doc, err := engine.LoadDocument(data)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	defer engine.CloseDocument(doc)

	count, err := engine.PageCount(doc)
	if err != nil || count != 1 {
		t.Fatalf("Expected 1 page, got %d (%v)", count, err)
	}

	page, err := engine.LoadPage(doc, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	defer engine.ClosePage(page)

	width, height, err := engine.PageSize(page)
	if err != nil {
		t.Fatalf("PageSize failed: %v", err)
	}
	if width != 612 || height != 792 {
		t.Errorf("Expected 612x792, got %vx%v", width, height)
	}

	textPage, err := engine.LoadTextPage(page)
	if err != nil {
		t.Fatalf("LoadTextPage failed: %v", err)
	}
	defer engine.CloseTextPage(textPage)

	text, err := engine.Text(textPage, 0, 5)
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "Hello" {
		t.Errorf("Expected %q, got %q", "Hello", text)
	}

	left, right, bottom, top, err := engine.CharBox(textPage, 0)
	if err != nil {
		t.Fatalf("CharBox failed: %v", err)
	}
	if !(left < right && bottom < top) {
		t.Errorf("Unexpected engine box ordering l=%v r=%v b=%v t=%v", left, right, bottom, top)
	}

	if idx, _ := engine.CharIndexAtPos(textPage, 500, 100, 8, 8); idx != -1 {
		t.Errorf("Expected miss far from text, got %d", idx)
	}
}

func TestPDFiumEngineRejectsCorruptData(t *testing.T) {
	engine := newTestEngine(t)

	if _, err := engine.LoadDocument([]byte("not a pdf at all")); err == nil {
		t.Error("Expected corrupt data to fail")
	}
	if _, err := engine.LoadDocument(nil); err == nil {
		t.Error("Expected empty data to fail")
	}
}
