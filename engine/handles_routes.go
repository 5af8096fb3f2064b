package engine

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/drummonds/pdfbind/binding"
)

// handleView is one row of the open handle listing
type handleView struct {
	Handle   binding.Handle `json:"handle"`
	Kind     string         `json:"kind"`
	Document string         `json:"document"`
	Page     int            `json:"page,omitempty"`
	OpenedAt time.Time      `json:"openedAt"`
	AgeSecs  int64          `json:"ageSeconds"`
}

// GetHandles lists every open document and text page handle
func (serverHandler *ServerHandler) GetHandles(c echo.Context) error {
	now := time.Now()
	snapshot := serverHandler.Table.Snapshot()
	views := make([]handleView, 0, len(snapshot))
	for _, info := range snapshot {
		view := handleView{
			Handle:   info.Handle,
			Kind:     info.Kind,
			Document: info.Document,
			OpenedAt: info.OpenedAt,
			AgeSecs:  int64(now.Sub(info.OpenedAt) / time.Second),
		}
		if info.Kind == "textpage" {
			view.Page = info.Page
		}
		views = append(views, view)
	}
	return c.JSON(http.StatusOK, views)
}
