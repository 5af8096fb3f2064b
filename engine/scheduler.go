package engine

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/drummonds/pdfbind/binding"
)

// staleHandleAge is how long a handle may stay open before the audit warns
const staleHandleAge = time.Hour

// InitializeSchedules starts the periodic handle audit. It returns nil when
// audits are disabled.
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	interval := serverHandler.ServerConfig.AuditInterval
	if interval <= 0 {
		Logger.Info("Handle audit disabled")
		return nil
	}

	c := cron.New()
	var auditJob cron.Job
	auditJob = cron.FuncJob(func() { serverHandler.auditHandles(time.Now()) })
	auditJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(auditJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), auditJob); err != nil {
		Logger.Error("Unable to schedule handle audit", "error", err)
		return nil
	}
	Logger.Info("Adding handle audit scheduler", "interval_minutes", interval)
	c.Start()
	return c
}

// auditHandles logs the open handles and warns about the ones held longer
// than staleHandleAge. It returns the number of stale handles.
func (serverHandler *ServerHandler) auditHandles(now time.Time) int {
	serverHandler.mu.Lock()
	snapshot := serverHandler.Table.Snapshot()
	serverHandler.mu.Unlock()

	documents, textPages := 0, 0
	stale := 0
	for _, info := range snapshot {
		if info.Kind == "document" {
			documents++
		} else {
			textPages++
		}
		if age := now.Sub(info.OpenedAt); age > staleHandleAge {
			stale++
			Logger.Warn("Handle open for a long time", "handle", info.Handle, "kind", info.Kind, "document", info.Document, "age", age.Round(time.Second))
		}
	}
	Logger.Info("Handle audit", "documents", documents, "textPages", textPages, "mappings", binding.LiveMappings(), "stale", stale)
	return stale
}
