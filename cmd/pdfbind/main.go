// Command pdfbind opens a PDF through its file descriptor and runs one
// binding operation on it.
//
//	pdfbind info doc.pdf
//	pdfbind text -p 0 doc.pdf
//	pdfbind render -p 0 --dpi 144 -o page.png doc.pdf
//	pdfbind hit -p 0 --x 76 --y 706 doc.pdf
//	pdfbind word -p 0 --x 76 --y 706 doc.pdf
//	pdfbind bounded -p 0 --rect 0,792,612,0 doc.pdf
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	"github.com/spf13/pflag"

	"github.com/drummonds/pdfbind/binding"
	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

// openEngine is replaced in tests
var openEngine = func() (pdfrenderer.Engine, func(), error) {
	engine, err := pdfrenderer.InitLibrary(pdfrenderer.DefaultConfig)
	if err != nil {
		return nil, nil, err
	}
	return engine, func() { pdfrenderer.DestroyLibrary() }, nil
}

// newRasterizer is replaced in tests
var newRasterizer = func() (pdfrenderer.Rasterizer, error) {
	return pdfrenderer.NewFitzRasterizer()
}

type options struct {
	page     int
	dpi      float64
	width    int
	backend  string
	output   string
	x, y     float64
	rect     []float64
	capacity int
	logLevel string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(stderr io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(stderr, "Usage: pdfbind <info|text|render|hit|word|bounded> [flags] file.pdf")
	fmt.Fprintln(stderr, "\nFlags:")
	flags.SetOutput(stderr)
	flags.PrintDefaults()
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	flags := pflag.NewFlagSet("pdfbind", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.IntVarP(&opts.page, "page", "p", 0, "Zero-based page index")
	flags.Float64Var(&opts.dpi, "dpi", 96, "Render resolution")
	flags.IntVarP(&opts.width, "width", "w", 0, "Render width in pixels (overrides --dpi)")
	flags.StringVar(&opts.backend, "backend", "pdfium", "Render backend: pdfium|fitz")
	flags.StringVarP(&opts.output, "output", "o", "page.png", "PNG output path for render")
	flags.Float64Var(&opts.x, "x", 0, "Page-space x in points")
	flags.Float64Var(&opts.y, "y", 0, "Page-space y in points")
	flags.Float64SliceVar(&opts.rect, "rect", nil, "left,top,right,bottom in points")
	flags.IntVar(&opts.capacity, "capacity", binding.DefaultBoundedCapacity, "Bounded text capacity in UTF-16 units")
	flags.StringVar(&opts.logLevel, "log-level", "error", "debug|info|warn|error")
	flags.SetInterspersed(true)

	if err := flags.Parse(args); err != nil {
		fmt.Fprintf(stderr, "pdfbind: %v\n", err)
		usage(stderr, flags)
		return 2
	}
	if flags.NArg() != 2 {
		usage(stderr, flags)
		return 2
	}
	command, path := flags.Arg(0), flags.Arg(1)

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parseLevel(opts.logLevel)})).With("tag", "pdfbind")
	binding.Logger = logger
	pdfrenderer.Logger = logger

	engine, release, err := openEngine()
	if err != nil {
		fmt.Fprintf(stderr, "pdfbind: %v\n", err)
		return 1
	}
	defer release()

	doc, err := binding.OpenFile(engine, path)
	if err != nil {
		fmt.Fprintf(stderr, "pdfbind: %v\n", err)
		return 1
	}
	defer doc.Close()

	out := json.NewEncoder(stdout)
	out.SetIndent("", "  ")
	switch command {
	case "info":
		err = info(out, doc)
	case "text":
		err = withText(doc, opts.page, func(tp *binding.TextPage) error {
			text, err := tp.Text()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, text)
			return err
		})
	case "render":
		err = render(stdout, doc, opts)
	case "hit":
		err = withText(doc, opts.page, func(tp *binding.TextPage) error {
			idx, err := tp.CharIndexAtPos(opts.x, opts.y, binding.DefaultHitTolerance)
			if err != nil {
				return err
			}
			result := map[string]interface{}{"index": idx}
			if idx >= 0 {
				box, err := tp.CharBox(idx)
				if err != nil {
					return err
				}
				result["box"] = box.Floats()
			}
			return out.Encode(result)
		})
	case "word":
		err = withText(doc, opts.page, func(tp *binding.TextPage) error {
			sel, ok, err := tp.WordAt(opts.x, opts.y, binding.DefaultHitTolerance)
			if err != nil {
				return err
			}
			if !ok {
				return out.Encode(map[string]interface{}{"found": false})
			}
			return out.Encode(map[string]interface{}{"found": true, "start": sel.Start, "end": sel.End, "text": sel.Text})
		})
	case "bounded":
		if len(opts.rect) != 4 {
			fmt.Fprintln(stderr, "pdfbind: --rect needs left,top,right,bottom")
			return 2
		}
		err = withText(doc, opts.page, func(tp *binding.TextPage) error {
			r := binding.Rect{Left: opts.rect[0], Top: opts.rect[1], Right: opts.rect[2], Bottom: opts.rect[3]}
			bt, err := tp.BoundedText(r, opts.capacity)
			if err != nil {
				return err
			}
			return out.Encode(map[string]interface{}{"text": bt.Text, "truncated": bt.Truncated})
		})
	default:
		fmt.Fprintf(stderr, "pdfbind: unknown command %q\n", command)
		usage(stderr, flags)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "pdfbind: %v\n", err)
		return 1
	}
	return 0
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelError
	}
	return l
}

type pageInfo struct {
	Index  int     `json:"index"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
	Chars  int     `json:"chars"`
}

func info(out *json.Encoder, doc *binding.Document) error {
	n, err := doc.PageCount()
	if err != nil {
		return err
	}
	pages := make([]pageInfo, 0, n)
	for i := 0; i < n; i++ {
		w, h, err := doc.PageSize(i)
		if err != nil {
			return err
		}
		p := pageInfo{Index: i, Width: w, Height: h}
		err = withText(doc, i, func(tp *binding.TextPage) error {
			chars, err := tp.CharCount()
			p.Chars = chars
			return err
		})
		if err != nil {
			return err
		}
		pages = append(pages, p)
	}
	return out.Encode(map[string]interface{}{"document": doc.ID.String(), "pages": pages})
}

func withText(doc *binding.Document, page int, fn func(tp *binding.TextPage) error) error {
	tp, err := doc.LoadTextPage(page)
	if err != nil {
		return err
	}
	defer tp.Close()
	return fn(tp)
}

func render(stdout io.Writer, doc *binding.Document, opts options) error {
	if opts.dpi <= 0 {
		return errors.New("--dpi must be positive")
	}
	pageW, pageH, err := doc.PageSize(opts.page)
	if err != nil {
		return err
	}
	px := binding.PixelsPerPoint(opts.dpi)
	if opts.width > 0 {
		px = float64(opts.width) / float64(pageW)
	}
	width := int(float64(pageW)*px + 0.5)
	height := int(float64(pageH)*px + 0.5)

	var img image.Image
	switch opts.backend {
	case "pdfium":
		buf := binding.NewImageBuffer(width, height)
		if err := doc.RenderPage(opts.page, buf); err != nil {
			return err
		}
		img = buf.Image
	case "fitz":
		rasterizer, err := newRasterizer()
		if err != nil {
			return err
		}
		defer rasterizer.Close()
		raster, err := rasterizer.RenderPage(doc.Bytes(), opts.page, px*72)
		if err != nil {
			return err
		}
		img = imaging.Fit(raster, width, height, imaging.Lanczos)
	default:
		return fmt.Errorf("unknown backend %q", opts.backend)
	}

	if err := imaging.Save(img, opts.output); err != nil {
		return fmt.Errorf("unable to write %s: %w", opts.output, err)
	}
	_, err = fmt.Fprintf(stdout, "%s %dx%d\n", opts.output, img.Bounds().Dx(), img.Bounds().Dy())
	return err
}
