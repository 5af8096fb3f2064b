package binding

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/drummonds/pdfbind/engine/pdfrenderer/pdfrenderertest"
)

var fakePDF = []byte("%PDF-1.4\n% fake document\n")

func TestMain(m *testing.M) {
	Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	os.Exit(m.Run())
}

// writeTemp writes data to a file under t.TempDir and returns its path
func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// openFake opens a fake document with the given pages
func openFake(t *testing.T, pages ...pdfrenderertest.Page) (*Document, *pdfrenderertest.Engine) {
	t.Helper()
	engine := pdfrenderertest.New(pages...)
	doc, err := OpenFile(engine, writeTemp(t, "doc.pdf", fakePDF))
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	return doc, engine
}
