//go:build unix

package binding

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/drummonds/pdfbind/engine/pdfrenderer/pdfrenderertest"
)

func loadText(t *testing.T, text string) (*TextPage, *pdfrenderertest.Engine) {
	t.Helper()
	doc, engine := openFake(t, pdfrenderertest.Letter(text))
	tp, err := doc.LoadTextPage(0)
	if err != nil {
		t.Fatalf("LoadTextPage failed: %v", err)
	}
	return tp, engine
}

func TestTextPageText(t *testing.T) {
	tp, _ := loadText(t, "Hello")

	n, err := tp.CharCount()
	if err != nil || n != 5 {
		t.Fatalf("Expected 5 chars, got %d (%v)", n, err)
	}
	text, err := tp.Text()
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "Hello" {
		t.Errorf("Expected %q, got %q", "Hello", text)
	}
}

func TestTextPageCountsUTF16Units(t *testing.T) {
	tp, _ := loadText(t, "a\U0001F600b")

	n, err := tp.CharCount()
	if err != nil || n != 4 {
		t.Fatalf("Expected 4 units, got %d (%v)", n, err)
	}
	if got, err := tp.Range(1, 2); err != nil || got != "\U0001F600" {
		t.Errorf("Range(1, 2) = %q (%v)", got, err)
	}
	if got, err := tp.Range(3, 1); err != nil || got != "b" {
		t.Errorf("Range(3, 1) = %q (%v)", got, err)
	}
	if _, err := tp.Range(3, 2); !errors.Is(err, ErrRange) {
		t.Errorf("Expected ErrRange past the last unit, got %v", err)
	}
	if text, _ := tp.Text(); text != "a\U0001F600b" {
		t.Errorf("Unexpected text %q", text)
	}
}

func TestTextPageTextEmptyPage(t *testing.T) {
	tp, _ := loadText(t, "")

	text, err := tp.Text()
	if err != nil || text != "" {
		t.Errorf("Expected empty text, got %q (%v)", text, err)
	}
}

func TestTextPageRange(t *testing.T) {
	tp, _ := loadText(t, "Hello")

	tests := []struct {
		start, count int
		want         string
		err          error
	}{
		{start: 0, count: 5, want: "Hello"},
		{start: 1, count: 3, want: "ell"},
		{start: 2, count: 0, want: ""},
		{start: 3, count: 5, err: ErrRange},
		{start: -1, count: 1, err: ErrRange},
		{start: 0, count: -2, err: ErrRange},
	}
	for _, tt := range tests {
		got, err := tp.Range(tt.start, tt.count)
		if !errors.Is(err, tt.err) {
			t.Errorf("Range(%d, %d) error = %v, want %v", tt.start, tt.count, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("Range(%d, %d) = %q, want %q", tt.start, tt.count, got, tt.want)
		}
	}
}

func TestTextPageBoundedText(t *testing.T) {
	tp, _ := loadText(t, "Hello")

	around := Rect{Left: 60, Top: 720, Right: 200, Bottom: 690}
	bt, err := tp.BoundedText(around, DefaultBoundedCapacity)
	if err != nil {
		t.Fatalf("BoundedText failed: %v", err)
	}
	if bt.Text != "Hello" || bt.Units != 5 || bt.Truncated {
		t.Errorf("Unexpected bounded text %+v", bt)
	}

	bt, _ = tp.BoundedText(around, 3)
	if bt.Text != "Hel" || !bt.Truncated {
		t.Errorf("Expected truncation to %q, got %+v", "Hel", bt)
	}

	bt, _ = tp.BoundedText(Rect{Left: 100, Top: 720, Right: 100, Bottom: 690}, 0)
	if bt.Text != "" {
		t.Errorf("Expected empty text for zero-area rect, got %q", bt.Text)
	}
}

func TestTruncateUTF16KeepsSurrogatePairs(t *testing.T) {
	got := truncateUTF16("a\U0001F600b", 2)
	want := BoundedText{Text: "a", Units: 1, Truncated: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("truncateUTF16 mismatch (-want +got):\n%s", diff)
	}

	got = truncateUTF16("a\U0001F600b", 0)
	if got.Units != 4 || got.Truncated {
		t.Errorf("Expected 4 units untruncated, got %+v", got)
	}
}

func TestTextPageCharIndexAtPos(t *testing.T) {
	tp, _ := loadText(t, "Hello")

	idx, err := tp.CharIndexAtPos(106, 706, DefaultHitTolerance)
	if err != nil || idx != 2 {
		t.Errorf("Expected index 2, got %d (%v)", idx, err)
	}

	idx, err = tp.CharIndexAtPos(400, 100, DefaultHitTolerance)
	if err != nil || idx != -1 {
		t.Errorf("Expected -1 far from text, got %d (%v)", idx, err)
	}

	// 7 points left of the first glyph is still within tolerance
	if idx, _ := tp.CharIndexAtPos(65, 706, DefaultHitTolerance); idx != 0 {
		t.Errorf("Expected tolerance hit on index 0, got %d", idx)
	}
}

func TestTextPageCharBox(t *testing.T) {
	tp, _ := loadText(t, "Hello")

	box, err := tp.CharBox(1)
	if err != nil {
		t.Fatalf("CharBox failed: %v", err)
	}
	want := Box{Left: 82, Top: 712, Right: 90, Bottom: 700}
	if diff := cmp.Diff(want, box); diff != "" {
		t.Errorf("CharBox mismatch (-want +got):\n%s", diff)
	}

	for _, idx := range []int{5, 99, -1} {
		if _, err := tp.CharBox(idx); !errors.Is(err, ErrCharIndex) {
			t.Errorf("CharBox(%d): expected ErrCharIndex, got %v", idx, err)
		}
	}
}

func TestTextPageCloseReleasesPage(t *testing.T) {
	tp, engine := loadText(t, "Hello")

	if err := tp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, pages, textPages, _ := engine.Live(); pages != 0 || textPages != 0 {
		t.Errorf("Expected page and text page released, got pages=%d textPages=%d", pages, textPages)
	}
	if _, err := tp.CharCount(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestTextPageCloseWhileQuerying(t *testing.T) {
	tp, _ := loadText(t, "Hello")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A query overlapping Close may fail either way
			for j := 0; j < 100; j++ {
				_, _ = tp.CharCount()
			}
		}()
	}
	if err := tp.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	wg.Wait()
	if _, err := tp.CharCount(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
