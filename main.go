package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/drummonds/pdfbind/binding"
	"github.com/drummonds/pdfbind/config"
	"github.com/drummonds/pdfbind/engine"
	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	engine.Logger = Logger
	binding.Logger = Logger
	pdfrenderer.Logger = Logger
}

// newEcho returns an echo instance that answers unknown API paths with JSON
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		if code == http.StatusNotFound && strings.HasPrefix(c.Request().URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}

		// For other errors, use default handler
		e.DefaultHTTPErrorHandler(err, c)
	}
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	return e
}

// Library lifecycle, replaced in tests
var (
	initLibrary    = pdfrenderer.InitLibrary
	destroyLibrary = pdfrenderer.DestroyLibrary
)

func main() {
	serverConfig, logger := config.Setup()
	injectGlobals(logger) //inject the logger into all of the packages
	os.Exit(run(serverConfig))
}

// run serves until shutdown and returns the process exit code. Everything it
// sets up is torn down before it returns.
func run(serverConfig config.ServerConfig) int {
	pdfium, err := initLibrary(serverConfig.Pdfium)
	if err != nil {
		Logger.Error("Unable to start PDFium", "error", err)
		return 1
	}
	defer destroyLibrary()

	table := binding.NewTable(pdfium, binding.TableConfig{
		BoundedCapacity: serverConfig.BoundedTextCapacity,
		HitTolerance:    serverConfig.HitTolerance,
	})
	defer table.Close()

	fitz, err := pdfrenderer.NewFitzRasterizer()
	if err != nil {
		Logger.Warn("Fitz rasterizer unavailable", "error", err)
	} else {
		defer fitz.Close()
	}

	e := newEcho()
	Logger.Info("Echo created")

	serverHandler := &engine.ServerHandler{Table: table, Echo: e, ServerConfig: serverConfig}
	if fitz != nil {
		serverHandler.Fitz = fitz
	}
	if err := serverHandler.StartupChecks(); err != nil {
		Logger.Error("Startup checks failed", "error", err)
		return 1
	}
	Logger.Info("Startup checks complete")
	if c := serverHandler.InitializeSchedules(); c != nil {
		defer c.Stop()
	}
	serverHandler.AddRoutes()

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		Logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			Logger.Error("HTTP shutdown failed", "error", err)
		}
	}()

	Logger.Info("Starting HTTP server")
	if err := serve(e, &serverConfig); err != nil {
		Logger.Error("Failed to start server", "error", err)
		return 1
	}
	return 0
}

// serve starts e, moving to the next port when the configured one is taken
func serve(e *echo.Echo, serverConfig *config.ServerConfig) error {
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		startErr := e.Start(addr)
		switch {
		case startErr == nil || errors.Is(startErr, http.ErrServerClosed):
			if serverConfig.ListenAddrPort != startPort {
				Logger.Warn("Server ran on alternative port due to conflicts",
					"requested_port", startPort,
					"actual_port", serverConfig.ListenAddrPort)
			}
			return nil
		case isAddressInUse(startErr):
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)
			portNum := 0
			fmt.Sscanf(serverConfig.ListenAddrPort, "%d", &portNum)
			portNum++
			serverConfig.ListenAddrPort = fmt.Sprintf("%d", portNum)
		default:
			return startErr
		}
	}
	return fmt.Errorf("no available port after %d attempts starting at %s", maxRetries, startPort)
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "address already in use")
}
