package main

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/drummonds/pdfbind/binding"
)

func TestEncodeUTF16(t *testing.T) {
	tests := []struct {
		in    string
		want  []byte
		units int
	}{
		{"", []byte{0, 0}, 0},
		{"Hi", []byte{'H', 0, 'i', 0, 0, 0}, 2},
		{"\U0001F600", []byte{0x3D, 0xD8, 0x00, 0xDE, 0, 0}, 2},
	}
	for _, tt := range tests {
		got, units, err := encodeUTF16(tt.in)
		if err != nil {
			t.Fatalf("encodeUTF16(%q) failed: %v", tt.in, err)
		}
		if !bytes.Equal(got, tt.want) || units != tt.units {
			t.Errorf("encodeUTF16(%q) = % x (%d units), want % x (%d units)", tt.in, got, units, tt.want, tt.units)
		}
	}
}

func TestHostBuffer(t *testing.T) {
	mem := make([]byte, 3*16)
	buf := newHostBuffer(unsafe.Pointer(&mem[0]), 4, 3, 16, formatRGBA8888)

	info, _ := buf.Info()
	if info.Format != binding.FormatRGBA8888 || info.Width != 4 || info.Stride != 16 {
		t.Errorf("Unexpected info %+v", info)
	}
	pixels, err := buf.LockPixels()
	if err != nil || len(pixels) != 48 {
		t.Fatalf("Expected 48 locked bytes, got %d (%v)", len(pixels), err)
	}
	pixels[47] = 0x7F
	if mem[47] != 0x7F {
		t.Error("Locked pixels do not alias host memory")
	}

	if _, err := newHostBuffer(nil, 4, 3, 16, formatRGBA8888).LockPixels(); err == nil {
		t.Error("Expected error locking a null buffer")
	}
	if f := pixelFormat(formatRGB565); f != binding.FormatRGB565 {
		t.Errorf("Expected RGB_565, got %v", f)
	}
	if f := pixelFormat(99); f != binding.FormatNone {
		t.Errorf("Expected NONE for unknown code, got %v", f)
	}
}

func TestFormatCodes(t *testing.T) {
	// Values must match the codes host applications pass in
	tests := map[int]binding.PixelFormat{
		0: binding.FormatNone,
		1: binding.FormatRGBA8888,
		4: binding.FormatRGB565,
		7: binding.FormatRGBA4444,
		8: binding.FormatA8,
	}
	for code, want := range tests {
		if got := pixelFormat(code); got != want {
			t.Errorf("pixelFormat(%d) = %v, want %v", code, got, want)
		}
	}
}
