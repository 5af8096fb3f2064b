// Command libpdfbind builds the binding as a C shared library:
//
//	go build -buildmode=c-shared -o libpdfbind.so ./cmd/libpdfbind
//
// Every export reports failure through a sentinel: 0 for handles and page
// counts, -1 for indices and character counts, an empty string, a zero
// element count or a (0, 0) size. Strings are returned as NUL-terminated
// UTF-16LE allocated with malloc and must be released with pdfbind_free.
//
// pdfbind.h ships next to the generated header and declares the pixel format
// codes taken by pdfbind_render_page: PDFBIND_FORMAT_RGBA_8888 (1),
// PDFBIND_FORMAT_RGB_565 (4), PDFBIND_FORMAT_RGBA_4444 (7) and
// PDFBIND_FORMAT_A_8 (8). Only RGBA_8888 renders; the others are rejected.
package main

/*
#include "pdfbind.h"
#include <stdint.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/drummonds/pdfbind/binding"
	"github.com/drummonds/pdfbind/config"
	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

// state is the table shared by every pdfbind_init holder
var state struct {
	sync.Mutex
	refs  int
	table *binding.Table
}

func main() {}

func currentTable() *binding.Table {
	state.Lock()
	defer state.Unlock()
	return state.table
}

//export pdfbind_init
func pdfbind_init() C.int {
	state.Lock()
	defer state.Unlock()
	if state.refs > 0 {
		state.refs++
		return 0
	}

	cfg, logger := config.SetupLibrary()
	binding.Logger = logger
	pdfrenderer.Logger = logger

	engine, err := pdfrenderer.InitLibrary(cfg.Pdfium)
	if err != nil {
		return -1
	}
	state.table = binding.NewTable(engine, binding.TableConfig{
		BoundedCapacity: cfg.BoundedTextCapacity,
		HitTolerance:    cfg.HitTolerance,
	})
	state.refs = 1
	return 0
}

//export pdfbind_destroy
func pdfbind_destroy() {
	state.Lock()
	defer state.Unlock()
	if state.refs == 0 {
		return
	}
	state.refs--
	if state.refs > 0 {
		return
	}
	state.table.Close()
	state.table = nil
	pdfrenderer.DestroyLibrary()
}

//export pdfbind_open_document
func pdfbind_open_document(fd C.int) C.longlong {
	table := currentTable()
	if table == nil {
		return 0
	}
	return C.longlong(table.OpenDocument(int(fd)))
}

//export pdfbind_get_page_count
func pdfbind_get_page_count(doc C.longlong) C.int {
	table := currentTable()
	if table == nil {
		return 0
	}
	return C.int(table.GetPageCount(binding.Handle(doc)))
}

//export pdfbind_close_document
func pdfbind_close_document(doc C.longlong) {
	if table := currentTable(); table != nil {
		table.CloseDocument(binding.Handle(doc))
	}
}

//export pdfbind_get_page_size
func pdfbind_get_page_size(doc C.longlong, page C.int, width, height *C.float) {
	var w, h float32
	if table := currentTable(); table != nil {
		w, h = table.GetPageSize(binding.Handle(doc), int(page))
	}
	if width != nil {
		*width = C.float(w)
	}
	if height != nil {
		*height = C.float(h)
	}
}

//export pdfbind_render_page
func pdfbind_render_page(doc C.longlong, page C.int, pixels unsafe.Pointer, width, height, stride, format C.int) {
	table := currentTable()
	if table == nil {
		return
	}
	buf := newHostBuffer(pixels, int(width), int(height), int(stride), int(format))
	table.RenderPage(binding.Handle(doc), int(page), buf)
}

//export pdfbind_load_text_page
func pdfbind_load_text_page(doc C.longlong, page C.int) C.longlong {
	table := currentTable()
	if table == nil {
		return 0
	}
	return C.longlong(table.LoadTextPage(binding.Handle(doc), int(page)))
}

//export pdfbind_close_text_page
func pdfbind_close_text_page(textPage C.longlong) {
	if table := currentTable(); table != nil {
		table.CloseTextPage(binding.Handle(textPage))
	}
}

// cString copies s into malloc'd UTF-16LE memory
func cString(s string, length *C.int) *C.uint16_t {
	encoded, units, err := encodeUTF16(s)
	if err != nil {
		binding.Logger.Error("UTF-16 encoding failed", "error", err)
		encoded, units = []byte{0, 0}, 0
	}
	p := C.malloc(C.size_t(len(encoded)))
	if p == nil {
		if length != nil {
			*length = 0
		}
		return nil
	}
	C.memcpy(p, unsafe.Pointer(&encoded[0]), C.size_t(len(encoded)))
	if length != nil {
		*length = C.int(units)
	}
	return (*C.uint16_t)(p)
}

//export pdfbind_extract_text
func pdfbind_extract_text(textPage C.longlong, length *C.int) *C.uint16_t {
	var text string
	if table := currentTable(); table != nil {
		text = table.ExtractText(binding.Handle(textPage))
	}
	return cString(text, length)
}

//export pdfbind_extract_range
func pdfbind_extract_range(textPage C.longlong, start, count C.int, length *C.int) *C.uint16_t {
	var text string
	if table := currentTable(); table != nil {
		text = table.ExtractRange(binding.Handle(textPage), int(start), int(count))
	}
	return cString(text, length)
}

//export pdfbind_get_bounded_text
func pdfbind_get_bounded_text(textPage C.longlong, left, top, right, bottom C.double, truncated *C.int, length *C.int) *C.uint16_t {
	var text string
	var cut bool
	if table := currentTable(); table != nil {
		text, cut = table.GetBoundedText(binding.Handle(textPage), float64(left), float64(top), float64(right), float64(bottom))
	}
	if truncated != nil {
		*truncated = 0
		if cut {
			*truncated = 1
		}
	}
	return cString(text, length)
}

//export pdfbind_char_index_at_pos
func pdfbind_char_index_at_pos(textPage C.longlong, x, y C.double) C.int {
	table := currentTable()
	if table == nil {
		return -1
	}
	return C.int(table.CharIndexAtPos(binding.Handle(textPage), float64(x), float64(y)))
}

// pdfbind_char_box writes left, top, right, bottom into out, which must hold
// four floats, and returns the number written
//
//export pdfbind_char_box
func pdfbind_char_box(textPage C.longlong, index C.int, out *C.float) C.int {
	table := currentTable()
	if table == nil || out == nil {
		return 0
	}
	box := table.CharBox(binding.Handle(textPage), int(index))
	dst := unsafe.Slice(out, len(box))
	for i, v := range box {
		dst[i] = C.float(v)
	}
	return C.int(len(box))
}

//export pdfbind_get_char_count
func pdfbind_get_char_count(textPage C.longlong) C.int {
	table := currentTable()
	if table == nil {
		return -1
	}
	return C.int(table.GetCharCount(binding.Handle(textPage)))
}

//export pdfbind_free
func pdfbind_free(p unsafe.Pointer) {
	C.free(p)
}
