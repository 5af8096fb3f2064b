package engine

import (
	"bytes"
	"errors"
	"image"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/labstack/echo/v4"

	"github.com/drummonds/pdfbind/binding"
	"github.com/drummonds/pdfbind/config"
	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// maxRenderPixels bounds one render request
const maxRenderPixels = 8192 * 8192

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	Table        *binding.Table
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	// Fitz is the optional MuPDF rasterizer behind backend=fitz
	Fitz pdfrenderer.Rasterizer

	// mu serializes engine access across requests
	mu sync.Mutex
}

// AddRoutes registers every API route on the handler's echo instance
func (serverHandler *ServerHandler) AddRoutes() {
	e := serverHandler.Echo
	locked := serverHandler.locked

	e.GET("/api/health", serverHandler.Health)
	e.GET("/api/handles", locked(serverHandler.GetHandles))

	e.POST("/api/documents", locked(serverHandler.UploadDocument))
	e.DELETE("/api/documents/:doc", locked(serverHandler.CloseDocument))
	e.GET("/api/documents/:doc/pages", locked(serverHandler.GetPageCount))
	e.GET("/api/documents/:doc/pages/:page/size", locked(serverHandler.GetPageSize))
	e.GET("/api/documents/:doc/pages/:page/render", locked(serverHandler.RenderPage))
	e.POST("/api/documents/:doc/pages/:page/text", locked(serverHandler.LoadTextPage))

	e.DELETE("/api/textpages/:tp", locked(serverHandler.CloseTextPage))
	e.GET("/api/textpages/:tp/text", locked(serverHandler.ExtractText))
	e.GET("/api/textpages/:tp/range", locked(serverHandler.ExtractRange))
	e.GET("/api/textpages/:tp/bounded", locked(serverHandler.GetBoundedText))
	e.GET("/api/textpages/:tp/hit", locked(serverHandler.CharIndexAtPos))
	e.GET("/api/textpages/:tp/chars", locked(serverHandler.GetCharCount))
	e.GET("/api/textpages/:tp/chars/:index/box", locked(serverHandler.CharBox))
	e.GET("/api/textpages/:tp/word", locked(serverHandler.SelectWord))
}

func (serverHandler *ServerHandler) locked(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		serverHandler.mu.Lock()
		defer serverHandler.mu.Unlock()
		return next(c)
	}
}

// errorStatus maps a binding failure onto an HTTP status
func errorStatus(err error) int {
	switch {
	case errors.Is(err, binding.ErrBadHandle):
		return http.StatusNotFound
	case errors.Is(err, binding.ErrClosed):
		return http.StatusGone
	}
	switch binding.KindOf(err) {
	case binding.KindContract:
		return http.StatusBadRequest
	case binding.KindLoad, binding.KindAcquire:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error, body map[string]interface{}) error {
	if body == nil {
		body = map[string]interface{}{}
	}
	body["error"] = err.Error()
	return c.JSON(errorStatus(err), body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": msg})
}

func handleParam(c echo.Context, name string) (binding.Handle, error) {
	h, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || h <= 0 {
		return binding.Null, binding.ErrBadHandle
	}
	return binding.Handle(h), nil
}

func intParam(c echo.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	return v, err == nil
}

func floatQuery(c echo.Context, name string) (float64, bool) {
	v, err := strconv.ParseFloat(c.QueryParam(name), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func intQuery(c echo.Context, name string, defaultValue int) (int, bool) {
	s := c.QueryParam(name)
	if s == "" {
		return defaultValue, true
	}
	v, err := strconv.Atoi(s)
	return v, err == nil
}

func (serverHandler *ServerHandler) document(c echo.Context) (*binding.Document, error) {
	h, err := handleParam(c, "doc")
	if err != nil {
		return nil, err
	}
	return serverHandler.Table.Document(h)
}

func (serverHandler *ServerHandler) textPage(c echo.Context) (binding.Handle, *binding.TextPage, error) {
	h, err := handleParam(c, "tp")
	if err != nil {
		return binding.Null, nil, err
	}
	tp, err := serverHandler.Table.TextPage(h)
	return h, tp, err
}

// Health reports liveness and the number of open handles
func (serverHandler *ServerHandler) Health(c echo.Context) error {
	documents, textPages := serverHandler.Table.Counts()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"documents": documents,
		"textPages": textPages,
		"mappings":  binding.LiveMappings(),
	})
}

// UploadDocument stores the multipart field "pdf" in a temp file and opens it
// through its descriptor
func (serverHandler *ServerHandler) UploadDocument(c echo.Context) error {
	file, fileHeader, err := c.Request().FormFile("pdf")
	if err != nil {
		Logger.Warn("Upload without pdf field", "error", err)
		return badRequest(c, "multipart field 'pdf' is required")
	}
	defer file.Close()

	limit := int64(serverHandler.ServerConfig.MaxUploadMB) << 20
	if limit > 0 && fileHeader.Size > limit {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]interface{}{
			"handle": binding.Null,
			"error":  "upload exceeds size limit",
		})
	}

	tmp, err := os.CreateTemp(serverHandler.ServerConfig.UploadDir, "pdfbind-*.pdf")
	if err != nil {
		Logger.Error("Unable to create upload file", "dir", serverHandler.ServerConfig.UploadDir, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"handle": binding.Null, "error": "unable to store upload"})
	}
	// The mapping outlives the name
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		Logger.Error("Unable to write upload file", "path", tmp.Name(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"handle": binding.Null, "error": "unable to store upload"})
	}

	doc, err := binding.OpenDocument(serverHandler.Table.Engine(), int(tmp.Fd()))
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"handle": binding.Null})
	}
	h := serverHandler.Table.AddDocument(doc)
	Logger.Info("Document uploaded", "handle", h, "name", fileHeader.Filename, "document", doc.ID)
	return c.JSON(http.StatusOK, map[string]interface{}{"handle": h})
}

// CloseDocument closes the document and its text pages
func (serverHandler *ServerHandler) CloseDocument(c echo.Context) error {
	h, err := handleParam(c, "doc")
	if err == nil {
		_, err = serverHandler.Table.Document(h)
	}
	if err != nil {
		return errorJSON(c, err, nil)
	}
	serverHandler.Table.CloseDocument(h)
	return c.NoContent(http.StatusNoContent)
}

// GetPageCount returns the number of pages, 0 on failure
func (serverHandler *ServerHandler) GetPageCount(c echo.Context) error {
	doc, err := serverHandler.document(c)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"count": 0})
	}
	n, err := doc.PageCount()
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"count": 0})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"count": n})
}

// GetPageSize returns the page size in points, (0, 0) on failure
func (serverHandler *ServerHandler) GetPageSize(c echo.Context) error {
	zero := map[string]interface{}{"width": 0, "height": 0}
	doc, err := serverHandler.document(c)
	if err != nil {
		return errorJSON(c, err, zero)
	}
	page, ok := intParam(c, "page")
	if !ok {
		return badRequest(c, "page must be an integer")
	}
	w, h, err := doc.PageSize(page)
	if err != nil {
		return errorJSON(c, err, zero)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"width": w, "height": h})
}

// RenderPage renders one page as PNG. Without width and height the page is
// drawn at the configured dpi; with only one of them the aspect is kept.
func (serverHandler *ServerHandler) RenderPage(c echo.Context) error {
	doc, err := serverHandler.document(c)
	if err != nil {
		return errorJSON(c, err, nil)
	}
	page, ok := intParam(c, "page")
	if !ok {
		return badRequest(c, "page must be an integer")
	}
	width, okW := intQuery(c, "width", 0)
	height, okH := intQuery(c, "height", 0)
	if !okW || !okH || width < 0 || height < 0 {
		return badRequest(c, "width and height must be positive integers")
	}

	pageW, pageH, err := doc.PageSize(page)
	if err != nil {
		return errorJSON(c, err, nil)
	}
	width, height = renderSize(float64(pageW), float64(pageH), width, height, serverHandler.ServerConfig.RenderDPI)
	if width <= 0 || height <= 0 || width*height > maxRenderPixels {
		return badRequest(c, "render size out of range")
	}

	var img image.Image
	switch backend := c.QueryParam("backend"); backend {
	case "", "pdfium":
		buf := binding.NewImageBuffer(width, height)
		if err := doc.RenderPage(page, buf); err != nil {
			return errorJSON(c, err, nil)
		}
		img = buf.Image
	case "fitz":
		if serverHandler.Fitz == nil {
			return badRequest(c, "fitz backend not available")
		}
		dpi := 72 * float64(width) / float64(pageW)
		raster, err := serverHandler.Fitz.RenderPage(doc.Bytes(), page, dpi)
		if err != nil {
			Logger.Error("Fitz render failed", "document", doc.ID, "page", page, "error", err)
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{"error": err.Error()})
		}
		img = imaging.Resize(raster, width, height, imaging.Lanczos)
	default:
		return badRequest(c, "unknown backend "+backend)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.PNG); err != nil {
		Logger.Error("PNG encoding failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "unable to encode image"})
	}
	return c.Blob(http.StatusOK, "image/png", out.Bytes())
}

// renderSize resolves the requested pixel size of a page of pageW x pageH
// points
func renderSize(pageW, pageH float64, width, height int, dpi float64) (int, int) {
	if pageW <= 0 || pageH <= 0 {
		return width, height
	}
	switch {
	case width > 0 && height > 0:
		return width, height
	case width > 0:
		return width, int(math.Round(float64(width) * pageH / pageW))
	case height > 0:
		return int(math.Round(float64(height) * pageW / pageH)), height
	}
	px := binding.PixelsPerPoint(dpi)
	return int(math.Round(pageW * px)), int(math.Round(pageH * px))
}

// LoadTextPage loads the text of one page and returns its handle
func (serverHandler *ServerHandler) LoadTextPage(c echo.Context) error {
	doc, err := serverHandler.document(c)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"handle": binding.Null})
	}
	page, ok := intParam(c, "page")
	if !ok {
		return badRequest(c, "page must be an integer")
	}
	tp, err := doc.LoadTextPage(page)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"handle": binding.Null})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"handle": serverHandler.Table.AddTextPage(tp)})
}

// CloseTextPage releases a text page
func (serverHandler *ServerHandler) CloseTextPage(c echo.Context) error {
	h, _, err := serverHandler.textPage(c)
	if err != nil {
		return errorJSON(c, err, nil)
	}
	serverHandler.Table.CloseTextPage(h)
	return c.NoContent(http.StatusNoContent)
}

// ExtractText returns all of the page's text
func (serverHandler *ServerHandler) ExtractText(c echo.Context) error {
	_, tp, err := serverHandler.textPage(c)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"text": ""})
	}
	text, err := tp.Text()
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"text": ""})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"text": text})
}

// ExtractRange returns count characters from start
func (serverHandler *ServerHandler) ExtractRange(c echo.Context) error {
	_, tp, err := serverHandler.textPage(c)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"text": ""})
	}
	start, okS := intQuery(c, "start", 0)
	count, okC := intQuery(c, "count", 0)
	if !okS || !okC {
		return badRequest(c, "start and count must be integers")
	}
	text, err := tp.Range(start, count)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"text": ""})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"text": text})
}

// GetBoundedText returns the text inside a page-space rectangle
func (serverHandler *ServerHandler) GetBoundedText(c echo.Context) error {
	_, tp, err := serverHandler.textPage(c)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"text": "", "truncated": false})
	}
	var r binding.Rect
	var ok [4]bool
	r.Left, ok[0] = floatQuery(c, "left")
	r.Top, ok[1] = floatQuery(c, "top")
	r.Right, ok[2] = floatQuery(c, "right")
	r.Bottom, ok[3] = floatQuery(c, "bottom")
	if !(ok[0] && ok[1] && ok[2] && ok[3]) {
		return badRequest(c, "left, top, right and bottom are required")
	}
	bt, err := tp.BoundedText(r, serverHandler.Table.Config().BoundedCapacity)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"text": "", "truncated": false})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"text": bt.Text, "truncated": bt.Truncated})
}

// CharIndexAtPos hit-tests a page-space point
func (serverHandler *ServerHandler) CharIndexAtPos(c echo.Context) error {
	_, tp, err := serverHandler.textPage(c)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"index": -1})
	}
	x, okX := floatQuery(c, "x")
	y, okY := floatQuery(c, "y")
	if !okX || !okY {
		return badRequest(c, "x and y are required")
	}
	idx, err := tp.CharIndexAtPos(x, y, serverHandler.Table.Config().HitTolerance)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"index": -1})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"index": idx})
}

// GetCharCount returns the number of characters
func (serverHandler *ServerHandler) GetCharCount(c echo.Context) error {
	_, tp, err := serverHandler.textPage(c)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"count": -1})
	}
	n, err := tp.CharCount()
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"count": -1})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"count": n})
}

// CharBox returns [left, top, right, bottom], or an empty array for an
// index outside the page
func (serverHandler *ServerHandler) CharBox(c echo.Context) error {
	_, tp, err := serverHandler.textPage(c)
	if err != nil {
		return errorJSON(c, err, map[string]interface{}{"box": []float32{}})
	}
	index, ok := intParam(c, "index")
	if !ok {
		return badRequest(c, "index must be an integer")
	}
	box, err := tp.CharBox(index)
	if err != nil {
		if errors.Is(err, binding.ErrCharIndex) {
			return c.JSON(http.StatusOK, map[string]interface{}{"box": []float32{}})
		}
		return errorJSON(c, err, map[string]interface{}{"box": []float32{}})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"box": box.Floats()})
}

// wordResponse is a selected word with optional device highlights
type wordResponse struct {
	Found      bool                 `json:"found"`
	Start      int                  `json:"start"`
	End        int                  `json:"end"`
	Text       string               `json:"text"`
	Boxes      [][]float32          `json:"boxes"`
	Highlights []binding.DeviceRect `json:"highlights,omitempty"`
}

// SelectWord returns the word around (x, y). With dpi set the probes are
// spaced in device pixels at that resolution and the character boxes are also
// returned as device rectangles.
func (serverHandler *ServerHandler) SelectWord(c echo.Context) error {
	_, tp, err := serverHandler.textPage(c)
	if err != nil {
		return errorJSON(c, err, nil)
	}
	x, okX := floatQuery(c, "x")
	y, okY := floatQuery(c, "y")
	if !okX || !okY {
		return badRequest(c, "x and y are required")
	}
	dpi, hasDPI := floatQuery(c, "dpi")
	hasDPI = hasDPI && dpi > 0
	scale := 1.0
	if hasDPI {
		scale = 1 / binding.PixelsPerPoint(dpi)
	}
	sel, found, err := tp.WordAtScale(x, y, serverHandler.Table.Config().HitTolerance, scale)
	if err != nil {
		return errorJSON(c, err, nil)
	}
	resp := wordResponse{Found: found, Start: -1, End: -1, Boxes: [][]float32{}}
	if !found {
		return c.JSON(http.StatusOK, resp)
	}
	resp.Start, resp.End, resp.Text = sel.Start, sel.End, sel.Text
	for _, b := range sel.Boxes {
		resp.Boxes = append(resp.Boxes, b.Floats())
	}
	if hasDPI {
		_, pageH, err := tp.Document().PageSize(tp.PageIndex())
		if err != nil {
			return errorJSON(c, err, nil)
		}
		resp.Highlights = binding.HighlightRects(sel.Boxes, float64(pageH), binding.PixelsPerPoint(dpi))
	}
	return c.JSON(http.StatusOK, resp)
}
