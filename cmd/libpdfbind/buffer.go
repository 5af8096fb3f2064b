package main

/*
#include "pdfbind.h"
*/
import "C"

import (
	"errors"
	"unsafe"

	"github.com/drummonds/pdfbind/binding"
)

// Pixel format codes from pdfbind.h
const (
	formatNone     = int(C.PDFBIND_FORMAT_NONE)
	formatRGBA8888 = int(C.PDFBIND_FORMAT_RGBA_8888)
	formatRGB565   = int(C.PDFBIND_FORMAT_RGB_565)
	formatRGBA4444 = int(C.PDFBIND_FORMAT_RGBA_4444)
	formatA8       = int(C.PDFBIND_FORMAT_A_8)
)

var errNullPixels = errors.New("null pixel pointer")

// hostBuffer is pixel memory owned by the caller of the shared library
type hostBuffer struct {
	pixels unsafe.Pointer
	info   binding.BitmapInfo
}

func newHostBuffer(pixels unsafe.Pointer, width, height, stride, format int) *hostBuffer {
	return &hostBuffer{
		pixels: pixels,
		info: binding.BitmapInfo{
			Width:  width,
			Height: height,
			Stride: stride,
			Format: pixelFormat(format),
		},
	}
}

// pixelFormat maps host format codes onto binding formats
func pixelFormat(code int) binding.PixelFormat {
	switch code {
	case formatRGBA8888:
		return binding.FormatRGBA8888
	case formatRGB565:
		return binding.FormatRGB565
	case formatRGBA4444:
		return binding.FormatRGBA4444
	case formatA8:
		return binding.FormatA8
	default:
		return binding.FormatNone
	}
}

func (b *hostBuffer) Info() (binding.BitmapInfo, error) {
	return b.info, nil
}

func (b *hostBuffer) LockPixels() ([]byte, error) {
	if b.pixels == nil {
		return nil, errNullPixels
	}
	if b.info.Stride <= 0 || b.info.Height <= 0 {
		return []byte{}, nil
	}
	return unsafe.Slice((*byte)(b.pixels), b.info.Stride*b.info.Height), nil
}

// UnlockPixels is a no-op, the host keeps the memory pinned for the call
func (b *hostBuffer) UnlockPixels() error {
	return nil
}
