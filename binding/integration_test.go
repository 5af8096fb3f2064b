//go:build unix

package binding

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

const helloPDF = "testdata/hello.pdf"

func TestPDFiumEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PDFium WebAssembly test in short mode")
	}
	engine, err := pdfrenderer.NewPDFiumEngine(pdfrenderer.DefaultConfig)
	require.NoError(t, err)
	defer engine.Close()

	table := NewTable(engine, DefaultTableConfig)
	defer table.Close()

	f, err := os.Open(helloPDF)
	require.NoError(t, err)
	doc := table.OpenDocument(int(f.Fd()))
	// The table holds its own duplicate
	require.NoError(t, f.Close())
	require.NotEqual(t, Null, doc)

	// Independent parser agrees on the page count
	data, err := os.ReadFile(helloPDF)
	require.NoError(t, err)
	oracle, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, oracle.NumPage(), table.GetPageCount(doc))

	w, h := table.GetPageSize(doc, 0)
	assert.Equal(t, float32(612), w)
	assert.Equal(t, float32(792), h)
	w, h = table.GetPageSize(doc, 1)
	assert.Zero(t, w)
	assert.Zero(t, h)

	buf := NewImageBuffer(102, 132)
	table.RenderPage(doc, 0, buf)
	assert.False(t, buf.Locked())
	for y := 0; y < 132; y++ {
		for x := 0; x < 102; x++ {
			require.Equal(t, uint8(0xFF), buf.Image.RGBAAt(x, y).A, "pixel (%d,%d) not opaque", x, y)
		}
	}

	tp := table.LoadTextPage(doc, 0)
	require.NotEqual(t, Null, tp)

	assert.Equal(t, "Hello", table.ExtractRange(tp, 0, 5))
	assert.Equal(t, "", table.ExtractRange(tp, 0, table.GetCharCount(tp)+1))
	assert.True(t, strings.Contains(table.ExtractText(tp), "Hello"))
	assert.Equal(t, -1, table.CharIndexAtPos(tp, 1000, -1000))
	assert.Empty(t, table.CharBox(tp, table.GetCharCount(tp)))

	box := table.CharBox(tp, 0)
	require.Len(t, box, 4)
	assert.Less(t, box[0], box[2], "left < right")
	assert.Greater(t, box[1], box[3], "top > bottom")

	// The centre of the first glyph hits it
	cx := float64(box[0]+box[2]) / 2
	cy := float64(box[1]+box[3]) / 2
	assert.Equal(t, 0, table.CharIndexAtPos(tp, cx, cy))

	text, truncated := table.GetBoundedText(tp, 0, 792, 612, 0)
	assert.Contains(t, text, "Hello")
	assert.False(t, truncated)
	text, _ = table.GetBoundedText(tp, 100, 700, 100, 600)
	assert.Equal(t, "", text)

	sel, ok := table.SelectWord(tp, cx, cy)
	assert.True(t, ok)
	assert.Equal(t, "Hello", sel.Text)

	table.CloseDocument(doc)
	assert.Equal(t, "", table.ExtractText(tp))
	assert.Zero(t, LiveMappings())
}
