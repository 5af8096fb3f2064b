package binding

import (
	"sort"
	"sync"
	"time"

	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

// Handle is an opaque non-zero identifier handed to callers across a foreign
// boundary. Zero is the null handle. Handles are never reused.
type Handle int64

// Null is the failure sentinel for handle-returning operations
const Null Handle = 0

// TableConfig tunes the sentinel surface
type TableConfig struct {
	// BoundedCapacity caps GetBoundedText in UTF-16 units, <= 0 for no cap
	BoundedCapacity int
	// HitTolerance is the CharIndexAtPos window in points
	HitTolerance float64
}

// DefaultTableConfig matches the historic JNI surface
var DefaultTableConfig = TableConfig{
	BoundedCapacity: DefaultBoundedCapacity,
	HitTolerance:    DefaultHitTolerance,
}

// Table maps opaque handles to documents and text pages and exposes every
// binding operation with sentinel results: failures are logged and reported
// as 0, -1, "" or nil. The table itself is safe for concurrent use; the
// engine contract for a single document still applies.
type Table struct {
	engine pdfrenderer.Engine
	cfg    TableConfig

	mu        sync.Mutex
	next      Handle
	documents map[Handle]*Document
	textPages map[Handle]*TextPage
}

// NewTable returns an empty table forwarding to engine
func NewTable(engine pdfrenderer.Engine, cfg TableConfig) *Table {
	if cfg.HitTolerance <= 0 {
		cfg.HitTolerance = DefaultHitTolerance
	}
	return &Table{
		engine:    engine,
		cfg:       cfg,
		documents: map[Handle]*Document{},
		textPages: map[Handle]*TextPage{},
	}
}

// Engine returns the engine documents are loaded into
func (t *Table) Engine() pdfrenderer.Engine {
	return t.engine
}

// Config returns the table configuration
func (t *Table) Config() TableConfig {
	return t.cfg
}

func (t *Table) add(doc *Document, tp *TextPage) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	if tp != nil {
		t.textPages[t.next] = tp
	} else {
		t.documents[t.next] = doc
	}
	return t.next
}

// Document resolves a document handle
func (t *Table) Document(h Handle) (*Document, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	doc, ok := t.documents[h]
	if !ok {
		return nil, opError(KindContract, "document handle", ErrBadHandle)
	}
	return doc, nil
}

// TextPage resolves a text page handle
func (t *Table) TextPage(h Handle) (*TextPage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tp, ok := t.textPages[h]
	if !ok {
		return nil, opError(KindContract, "text page handle", ErrBadHandle)
	}
	return tp, nil
}

// AddDocument registers an already open document
func (t *Table) AddDocument(doc *Document) Handle {
	return t.add(doc, nil)
}

// AddTextPage registers an already loaded text page
func (t *Table) AddTextPage(tp *TextPage) Handle {
	return t.add(nil, tp)
}

// OpenDocument maps fd and loads it; Null on failure
func (t *Table) OpenDocument(fd int) Handle {
	doc, err := OpenDocument(t.engine, fd)
	if err != nil {
		return Null
	}
	return t.AddDocument(doc)
}

// GetPageCount returns 0 for unknown handles or engine failures
func (t *Table) GetPageCount(h Handle) int {
	doc, err := t.Document(h)
	if err != nil {
		Logger.Error("Page count on bad handle", "handle", h)
		return 0
	}
	n, err := doc.PageCount()
	if err != nil {
		Logger.Error("Page count failed", "handle", h, "error", err)
		return 0
	}
	return n
}

// CloseDocument closes the document and every text page handle derived
// from it. Unknown handles are ignored.
func (t *Table) CloseDocument(h Handle) {
	t.mu.Lock()
	doc, ok := t.documents[h]
	if !ok {
		t.mu.Unlock()
		Logger.Warn("Close on bad document handle", "handle", h)
		return
	}
	delete(t.documents, h)
	for th, tp := range t.textPages {
		if tp.doc == doc {
			delete(t.textPages, th)
		}
	}
	t.mu.Unlock()

	if err := doc.Close(); err != nil {
		Logger.Error("Close document failed", "handle", h, "error", err)
	}
}

// GetPageSize returns (0, 0) when the page cannot be loaded
func (t *Table) GetPageSize(h Handle, page int) (float32, float32) {
	doc, err := t.Document(h)
	if err != nil {
		Logger.Error("Page size on bad handle", "handle", h)
		return 0, 0
	}
	w, hgt, err := doc.PageSize(page)
	if err != nil {
		Logger.Error("Page size failed", "handle", h, "page", page, "error", err)
		return 0, 0
	}
	return w, hgt
}

// RenderPage renders into buf; failures leave buf as the engine left it and
// are only logged.
func (t *Table) RenderPage(h Handle, page int, buf PixelBuffer) {
	doc, err := t.Document(h)
	if err != nil {
		Logger.Error("Render on bad handle", "handle", h)
		return
	}
	// RenderPage logs its own failures
	_ = doc.RenderPage(page, buf)
}

// LoadTextPage returns Null when the page cannot be loaded
func (t *Table) LoadTextPage(h Handle, page int) Handle {
	doc, err := t.Document(h)
	if err != nil {
		Logger.Error("Load text page on bad handle", "handle", h)
		return Null
	}
	tp, err := doc.LoadTextPage(page)
	if err != nil {
		return Null
	}
	return t.AddTextPage(tp)
}

// CloseTextPage releases the text page. Unknown handles are ignored.
func (t *Table) CloseTextPage(h Handle) {
	t.mu.Lock()
	tp, ok := t.textPages[h]
	delete(t.textPages, h)
	t.mu.Unlock()
	if !ok {
		Logger.Warn("Close on bad text page handle", "handle", h)
		return
	}
	if err := tp.Close(); err != nil {
		Logger.Error("Close text page failed", "handle", h, "error", err)
	}
}

// ExtractText returns "" on failure
func (t *Table) ExtractText(h Handle) string {
	tp, err := t.TextPage(h)
	if err != nil {
		Logger.Error("Extract text on bad handle", "handle", h)
		return ""
	}
	text, err := tp.Text()
	if err != nil {
		Logger.Error("Extract text failed", "handle", h, "error", err)
		return ""
	}
	return text
}

// ExtractRange returns "" when the range is outside the page's characters
func (t *Table) ExtractRange(h Handle, start, count int) string {
	tp, err := t.TextPage(h)
	if err != nil {
		Logger.Error("Extract range on bad handle", "handle", h)
		return ""
	}
	text, err := tp.Range(start, count)
	if err != nil {
		Logger.Error("Extract range failed", "handle", h, "start", start, "count", count, "error", err)
		return ""
	}
	return text
}

// GetBoundedText returns the text inside the rectangle, cut at the table's
// capacity, and whether it was cut.
func (t *Table) GetBoundedText(h Handle, left, top, right, bottom float64) (string, bool) {
	tp, err := t.TextPage(h)
	if err != nil {
		Logger.Error("Bounded text on bad handle", "handle", h)
		return "", false
	}
	bt, err := tp.BoundedText(Rect{Left: left, Top: top, Right: right, Bottom: bottom}, t.cfg.BoundedCapacity)
	if err != nil {
		Logger.Error("Bounded text failed", "handle", h, "error", err)
		return "", false
	}
	if bt.Truncated {
		Logger.Warn("Bounded text truncated", "handle", h, "capacity", t.cfg.BoundedCapacity)
	}
	return bt.Text, bt.Truncated
}

// CharIndexAtPos returns -1 when no character is near (x, y)
func (t *Table) CharIndexAtPos(h Handle, x, y float64) int {
	tp, err := t.TextPage(h)
	if err != nil {
		Logger.Error("Hit-test on bad handle", "handle", h)
		return -1
	}
	idx, err := tp.CharIndexAtPos(x, y, t.cfg.HitTolerance)
	if err != nil {
		Logger.Error("Hit-test failed", "handle", h, "error", err)
		return -1
	}
	return idx
}

// CharBox returns left, top, right, bottom, or nil for an invalid index
func (t *Table) CharBox(h Handle, index int) []float32 {
	tp, err := t.TextPage(h)
	if err != nil {
		Logger.Error("Char box on bad handle", "handle", h)
		return nil
	}
	box, err := tp.CharBox(index)
	if err != nil {
		Logger.Debug("Char box unavailable", "handle", h, "index", index, "error", err)
		return nil
	}
	return box.Floats()
}

// GetCharCount returns -1 on failure, as the engine does
func (t *Table) GetCharCount(h Handle) int {
	tp, err := t.TextPage(h)
	if err != nil {
		Logger.Error("Char count on bad handle", "handle", h)
		return -1
	}
	n, err := tp.CharCount()
	if err != nil {
		Logger.Error("Char count failed", "handle", h, "error", err)
		return -1
	}
	return n
}

// SelectWord returns the word around (x, y); ok is false on a miss
func (t *Table) SelectWord(h Handle, x, y float64) (Selection, bool) {
	tp, err := t.TextPage(h)
	if err != nil {
		Logger.Error("Select word on bad handle", "handle", h)
		return Selection{}, false
	}
	sel, ok, err := tp.WordAt(x, y, t.cfg.HitTolerance)
	if err != nil {
		Logger.Error("Select word failed", "handle", h, "error", err)
		return Selection{}, false
	}
	return sel, ok
}

// HandleInfo describes one live handle
type HandleInfo struct {
	Handle   Handle
	Kind     string
	Document string
	Page     int
	OpenedAt time.Time
}

// Snapshot lists the live handles in handle order
func (t *Table) Snapshot() []HandleInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	infos := make([]HandleInfo, 0, len(t.documents)+len(t.textPages))
	for h, doc := range t.documents {
		infos = append(infos, HandleInfo{Handle: h, Kind: "document", Document: doc.ID.String(), Page: -1, OpenedAt: doc.OpenedAt})
	}
	for h, tp := range t.textPages {
		infos = append(infos, HandleInfo{Handle: h, Kind: "textpage", Document: tp.doc.ID.String(), Page: tp.index, OpenedAt: tp.LoadedAt})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Handle < infos[j].Handle })
	return infos
}

// Counts reports the number of live document and text page handles
func (t *Table) Counts() (documents, textPages int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.documents), len(t.textPages)
}

// Close closes every document still registered
func (t *Table) Close() {
	t.mu.Lock()
	handles := make([]Handle, 0, len(t.documents))
	for h := range t.documents {
		handles = append(handles, h)
	}
	t.mu.Unlock()
	for _, h := range handles {
		t.CloseDocument(h)
	}
}
