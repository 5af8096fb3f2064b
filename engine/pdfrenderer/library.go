package pdfrenderer

import (
	"fmt"
	"log/slog"
	"sync"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// openEngine is replaced in tests
var openEngine = func(cfg Config) (Engine, error) {
	return NewPDFiumEngine(cfg)
}

// library is the process-wide engine. PDFium must be initialised once before
// first use and destroyed once after last use.
var library struct {
	sync.Mutex
	refs   int
	engine Engine
}

// InitLibrary returns the process-wide engine, creating it on first call.
// Every successful call must be paired with DestroyLibrary.
func InitLibrary(cfg Config) (Engine, error) {
	library.Lock()
	defer library.Unlock()

	if library.refs > 0 {
		library.refs++
		return library.engine, nil
	}

	engine, err := openEngine(cfg)
	if err != nil {
		Logger.Error("PDFium initialisation failed", "error", err)
		return nil, fmt.Errorf("unable to initialise PDFium: %w", err)
	}
	library.engine = engine
	library.refs = 1
	Logger.Info("PDFium initialised")
	return engine, nil
}

// DestroyLibrary drops one reference and tears the engine down when the
// last one goes. Calls without a matching InitLibrary are no-ops.
func DestroyLibrary() error {
	library.Lock()
	defer library.Unlock()

	if library.refs == 0 {
		return nil
	}
	library.refs--
	if library.refs > 0 {
		return nil
	}

	engine := library.engine
	library.engine = nil
	if err := engine.Close(); err != nil {
		Logger.Error("PDFium teardown failed", "error", err)
		return fmt.Errorf("unable to destroy PDFium: %w", err)
	}
	Logger.Info("PDFium destroyed")
	return nil
}

// LibraryRefs reports how many holders the process-wide engine has
func LibraryRefs() int {
	library.Lock()
	defer library.Unlock()
	return library.refs
}
