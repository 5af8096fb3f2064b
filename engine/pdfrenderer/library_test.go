package pdfrenderer_test

import (
	"errors"
	"testing"

	"github.com/drummonds/pdfbind/engine/pdfrenderer"
	"github.com/drummonds/pdfbind/engine/pdfrenderer/pdfrenderertest"
)

func TestInitLibraryOnceAndDestroyOnce(t *testing.T) {
	fake := pdfrenderertest.New()
	opened := 0
	restore := pdfrenderer.SetOpenEngine(func(pdfrenderer.Config) (pdfrenderer.Engine, error) {
		opened++
		return fake, nil
	})
	defer restore()

	first, err := pdfrenderer.InitLibrary(pdfrenderer.DefaultConfig)
	if err != nil {
		t.Fatalf("InitLibrary failed: %v", err)
	}
	second, err := pdfrenderer.InitLibrary(pdfrenderer.DefaultConfig)
	if err != nil {
		t.Fatalf("second InitLibrary failed: %v", err)
	}
	if first != second {
		t.Error("Expected both holders to share one engine")
	}
	if opened != 1 {
		t.Errorf("Expected engine to be opened once, got %d", opened)
	}
	if refs := pdfrenderer.LibraryRefs(); refs != 2 {
		t.Errorf("Expected 2 refs, got %d", refs)
	}

	if err := pdfrenderer.DestroyLibrary(); err != nil {
		t.Fatalf("DestroyLibrary failed: %v", err)
	}
	if fake.Closed() {
		t.Error("Engine closed while a holder remains")
	}
	if err := pdfrenderer.DestroyLibrary(); err != nil {
		t.Fatalf("DestroyLibrary failed: %v", err)
	}
	if !fake.Closed() {
		t.Error("Expected engine to be closed after last DestroyLibrary")
	}

	// Extra teardown must be harmless
	if err := pdfrenderer.DestroyLibrary(); err != nil {
		t.Errorf("Expected extra DestroyLibrary to be a no-op, got %v", err)
	}
	if refs := pdfrenderer.LibraryRefs(); refs != 0 {
		t.Errorf("Expected 0 refs, got %d", refs)
	}
}

func TestInitLibraryFailureLeavesNoRefs(t *testing.T) {
	restore := pdfrenderer.SetOpenEngine(func(pdfrenderer.Config) (pdfrenderer.Engine, error) {
		return nil, errors.New("no wasm runtime")
	})
	defer restore()

	if _, err := pdfrenderer.InitLibrary(pdfrenderer.DefaultConfig); err == nil {
		t.Fatal("Expected InitLibrary to fail")
	}
	if refs := pdfrenderer.LibraryRefs(); refs != 0 {
		t.Errorf("Expected 0 refs after failed init, got %d", refs)
	}
}
