package binding

import (
	"errors"
	"image"

	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

// PixelFormat is the memory layout of a pixel buffer
type PixelFormat int

const (
	FormatNone PixelFormat = iota
	// FormatRGBA8888 is 4 bytes per pixel in R, G, B, A order
	FormatRGBA8888
	FormatRGB565
	FormatRGBA4444
	FormatA8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8888:
		return "RGBA_8888"
	case FormatRGB565:
		return "RGB_565"
	case FormatRGBA4444:
		return "RGBA_4444"
	case FormatA8:
		return "A_8"
	default:
		return "NONE"
	}
}

// BitmapInfo describes a pixel buffer's geometry
type BitmapInfo struct {
	Width  int
	Height int
	// Stride is the length of one row in bytes
	Stride int
	Format PixelFormat
}

// PixelBuffer is caller-owned bitmap memory. LockPixels grants direct access
// to the pixels until UnlockPixels.
type PixelBuffer interface {
	Info() (BitmapInfo, error)
	LockPixels() ([]byte, error)
	UnlockPixels() error
}

// opaqueWhite is 0xAARRGGBB
const opaqueWhite uint32 = 0xFFFFFFFF

// RenderPage renders page index into dst at dst's resolution on an opaque
// white background. dst must be RGBA_8888. dst is unlocked before RenderPage
// returns on every path.
func (d *Document) RenderPage(index int, dst PixelBuffer) (err error) {
	info, err := dst.Info()
	if err != nil {
		Logger.Error("Bitmap info failed", "error", err)
		return opError(KindAcquire, "bitmap info", err)
	}
	if info.Format != FormatRGBA8888 {
		Logger.Error("Bitmap must be RGBA_8888", "format", info.Format)
		return opError(KindContract, "render", ErrPixelFormat)
	}

	pixels, err := dst.LockPixels()
	if err != nil {
		Logger.Error("Bitmap lock failed", "error", err)
		return opError(KindAcquire, "lock pixels", err)
	}
	defer func() {
		if unlockErr := dst.UnlockPixels(); unlockErr != nil {
			Logger.Error("Bitmap unlock failed", "error", unlockErr)
			if err == nil {
				err = opError(KindAcquire, "unlock pixels", unlockErr)
			}
		}
	}()

	if info.Width <= 0 || info.Height <= 0 || info.Stride < info.Width*4 || len(pixels) < info.Stride*(info.Height-1)+info.Width*4 {
		Logger.Error("Bitmap geometry does not match its memory", "width", info.Width, "height", info.Height, "stride", info.Stride, "bytes", len(pixels))
		return opError(KindContract, "render", ErrBufferSize)
	}

	err = d.withPage("render", index, func(page pdfrenderer.PageRef) error {
		return d.renderInto(page, info, pixels)
	})
	if err != nil {
		Logger.Error("Cannot render page", "document", d.ID, "page", index, "error", err)
	}
	return err
}

func (d *Document) renderInto(page pdfrenderer.PageRef, info BitmapInfo, pixels []byte) error {
	engine := d.engine
	bmp, err := engine.CreateBitmap(info.Width, info.Height)
	if err != nil {
		return opError(KindAcquire, "create bitmap", err)
	}
	defer func() {
		if err := engine.DestroyBitmap(bmp); err != nil {
			Logger.Error("Unable to destroy bitmap", "document", d.ID, "error", err)
		}
	}()

	if err := engine.FillRect(bmp, 0, 0, info.Width, info.Height, opaqueWhite); err != nil {
		return opError(KindLoad, "fill bitmap", err)
	}
	if err := engine.RenderPageBitmap(bmp, page, 0, 0, info.Width, info.Height); err != nil {
		return opError(KindLoad, "render page", err)
	}
	src, srcStride, err := engine.BitmapBuffer(bmp)
	if err != nil {
		return opError(KindLoad, "bitmap buffer", err)
	}
	if srcStride < info.Width*4 || len(src) < srcStride*(info.Height-1)+info.Width*4 {
		return opError(KindLoad, "bitmap buffer", errors.New("engine bitmap smaller than requested"))
	}
	copyBGRAToRGBA(pixels, info.Stride, src, srcStride, info.Width, info.Height)
	return nil
}

// copyBGRAToRGBA copies width x height pixels row by row, swapping the blue
// and red channels.
func copyBGRAToRGBA(dst []byte, dstStride int, src []byte, srcStride int, width, height int) {
	for y := 0; y < height; y++ {
		s := src[y*srcStride : y*srcStride+width*4]
		d := dst[y*dstStride : y*dstStride+width*4]
		for x := 0; x < len(s); x += 4 {
			d[x+0] = s[x+2]
			d[x+1] = s[x+1]
			d[x+2] = s[x+0]
			d[x+3] = s[x+3]
		}
	}
}

// ImageBuffer is a PixelBuffer over an *image.RGBA
type ImageBuffer struct {
	Image  *image.RGBA
	locked bool
}

// NewImageBuffer allocates a width x height RGBA buffer
func NewImageBuffer(width, height int) *ImageBuffer {
	return &ImageBuffer{Image: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (b *ImageBuffer) Info() (BitmapInfo, error) {
	bounds := b.Image.Bounds()
	return BitmapInfo{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Stride: b.Image.Stride,
		Format: FormatRGBA8888,
	}, nil
}

var errLocked = errors.New("pixels already locked")

func (b *ImageBuffer) LockPixels() ([]byte, error) {
	if b.locked {
		return nil, errLocked
	}
	b.locked = true
	return b.Image.Pix, nil
}

func (b *ImageBuffer) UnlockPixels() error {
	b.locked = false
	return nil
}

// Locked reports whether the pixels are currently locked
func (b *ImageBuffer) Locked() bool {
	return b.locked
}

// RawBuffer is a PixelBuffer over memory described by the caller, such as a
// bitmap owned by a foreign runtime.
type RawBuffer struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
	Format PixelFormat
	locked bool
}

func (b *RawBuffer) Info() (BitmapInfo, error) {
	return BitmapInfo{Width: b.Width, Height: b.Height, Stride: b.Stride, Format: b.Format}, nil
}

func (b *RawBuffer) LockPixels() ([]byte, error) {
	if b.locked {
		return nil, errLocked
	}
	if b.Pix == nil {
		return nil, errors.New("no pixel memory")
	}
	b.locked = true
	return b.Pix, nil
}

func (b *RawBuffer) UnlockPixels() error {
	b.locked = false
	return nil
}

// Locked reports whether the pixels are currently locked
func (b *RawBuffer) Locked() bool {
	return b.locked
}
