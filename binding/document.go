// Package binding exposes the document, page and text primitives of a PDF
// engine behind resource-owning Go types and an opaque handle table.
//
// Documents are opened from a file descriptor which is duplicated and
// memory-mapped for the document's lifetime. Pages are loaded and closed
// within the call that needs them; text pages live until closed, or until
// their document is closed.
//
// Nothing here is safe for concurrent use of the same document. Different
// documents may be used from different goroutines if the engine allows it.
package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

var liveMappings atomic.Int64

// LiveMappings reports how many descriptor mappings are currently held
func LiveMappings() int64 {
	return liveMappings.Load()
}

// Document is an open PDF document. It owns the engine document, the
// memory mapping it was loaded from and every text page derived from it.
type Document struct {
	ID       ulid.ULID
	OpenedAt time.Time

	engine  pdfrenderer.Engine
	ref     pdfrenderer.DocumentRef
	mapping *mapping

	mu        sync.Mutex
	textPages map[*TextPage]struct{}
	closed    bool
}

// OpenDocument duplicates fd, maps it and loads a document from the mapped
// bytes. The caller keeps ownership of fd and may close it straight away.
func OpenDocument(engine pdfrenderer.Engine, fd int) (*Document, error) {
	m, err := mapDescriptor(fd)
	if err != nil {
		Logger.Error("Unable to map descriptor", "fd", fd, "error", err)
		return nil, err
	}

	ref, err := engine.LoadDocument(m.data)
	if err != nil {
		Logger.Error("Failed to load PDF", "fd", fd, "error", err)
		if releaseErr := m.release(); releaseErr != nil {
			Logger.Error("Unable to release mapping", "error", releaseErr)
		}
		return nil, opError(KindLoad, "load document", err)
	}

	doc := &Document{
		ID:        ulid.Make(),
		OpenedAt:  time.Now(),
		engine:    engine,
		ref:       ref,
		mapping:   m,
		textPages: map[*TextPage]struct{}{},
	}
	Logger.Info("PDF loaded", "document", doc.ID, "bytes", len(m.data))
	return doc, nil
}

// OpenFile opens path and loads it through its descriptor
func OpenFile(engine pdfrenderer.Engine, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, opError(KindAcquire, "open", err)
	}
	defer f.Close()
	return OpenDocument(engine, int(f.Fd()))
}

// Bytes returns the mapped document bytes. They are read-only and only valid
// until Close.
func (d *Document) Bytes() []byte {
	if d.mapping == nil {
		return nil
	}
	return d.mapping.data
}

func (d *Document) checkOpen(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return opError(KindContract, op, ErrClosed)
	}
	return nil
}

// PageCount forwards to the engine
func (d *Document) PageCount() (int, error) {
	if err := d.checkOpen("page count"); err != nil {
		return 0, err
	}
	n, err := d.engine.PageCount(d.ref)
	if err != nil {
		return 0, opError(KindLoad, "page count", err)
	}
	return n, nil
}

// withPage loads page index, runs fn and closes the page again
func (d *Document) withPage(op string, index int, fn func(page pdfrenderer.PageRef) error) error {
	if err := d.checkOpen(op); err != nil {
		return err
	}
	page, err := d.engine.LoadPage(d.ref, index)
	if err != nil {
		return opError(KindLoad, op, err)
	}
	defer func() {
		if err := d.engine.ClosePage(page); err != nil {
			Logger.Error("Unable to close page", "document", d.ID, "page", index, "error", err)
		}
	}()
	return fn(page)
}

// PageSize returns the page dimensions in points
func (d *Document) PageSize(index int) (width, height float32, err error) {
	err = d.withPage("page size", index, func(page pdfrenderer.PageRef) error {
		var sizeErr error
		width, height, sizeErr = d.engine.PageSize(page)
		if sizeErr != nil {
			return opError(KindLoad, "page size", sizeErr)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

// LoadTextPage loads page index and derives a text page from it. The text
// page keeps the page open until it is closed.
func (d *Document) LoadTextPage(index int) (*TextPage, error) {
	if err := d.checkOpen("load text page"); err != nil {
		return nil, err
	}
	page, err := d.engine.LoadPage(d.ref, index)
	if err != nil {
		Logger.Error("Cannot load page", "document", d.ID, "page", index, "error", err)
		return nil, opError(KindLoad, "load page", err)
	}
	ref, err := d.engine.LoadTextPage(page)
	if err != nil {
		if closeErr := d.engine.ClosePage(page); closeErr != nil {
			Logger.Error("Unable to close page", "document", d.ID, "page", index, "error", closeErr)
		}
		return nil, opError(KindLoad, "load text page", err)
	}

	tp := &TextPage{doc: d, index: index, page: page, ref: ref, LoadedAt: time.Now()}
	d.mu.Lock()
	d.textPages[tp] = struct{}{}
	d.mu.Unlock()
	Logger.Debug("Text page loaded", "document", d.ID, "page", index)
	return tp, nil
}

func (d *Document) forget(tp *TextPage) {
	d.mu.Lock()
	delete(d.textPages, tp)
	d.mu.Unlock()
}

// Close releases the open text pages, the engine document, the mapping and
// the duplicated descriptor. Closing twice is a no-op.
func (d *Document) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	pages := make([]*TextPage, 0, len(d.textPages))
	for tp := range d.textPages {
		pages = append(pages, tp)
	}
	d.mu.Unlock()

	var errs []error
	for _, tp := range pages {
		if err := tp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.engine.CloseDocument(d.ref); err != nil {
		errs = append(errs, opError(KindLoad, "close document", err))
	}
	if err := d.mapping.release(); err != nil {
		errs = append(errs, err)
	}
	if len(pages) > 0 {
		Logger.Warn("Document closed with open text pages", "document", d.ID, "textPages", len(pages))
	}
	Logger.Info("PDF closed", "document", d.ID)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("unable to close document cleanly: %w", err)
	}
	return nil
}
