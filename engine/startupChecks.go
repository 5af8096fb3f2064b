package engine

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/drummonds/pdfbind/binding"
	"github.com/drummonds/pdfbind/config"
)

//go:embed selfcheck.pdf
var selfCheckPDF []byte

// selfCheckText is the text on the only page of selfcheck.pdf
const selfCheckText = "Hello"

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	if err := uploadDirectoryChecks(serverHandler.ServerConfig); err != nil {
		return err
	}
	return serverHandler.engineSelfCheck()
}

// uploadDirectoryChecks ensures the upload directory exists
func uploadDirectoryChecks(serverConfig config.ServerConfig) error {
	if serverConfig.UploadDir == "" {
		Logger.Warn("Upload directory not configured, using system temp dir")
		return nil
	}

	// Check if directory exists
	uploadInfo, err := os.Stat(serverConfig.UploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating upload directory", "path", serverConfig.UploadDir)
			err = os.MkdirAll(serverConfig.UploadDir, 0755)
			if err != nil {
				Logger.Error("Failed to create upload directory", "path", serverConfig.UploadDir, "error", err)
				return err
			}
			Logger.Info("Upload directory created successfully", "path", serverConfig.UploadDir)
			return nil
		}
		Logger.Error("Error checking upload directory", "path", serverConfig.UploadDir, "error", err)
		return err
	}

	// Check if it's actually a directory
	if !uploadInfo.IsDir() {
		Logger.Error("Upload path exists but is not a directory", "path", serverConfig.UploadDir)
		return fmt.Errorf("upload path is not a directory: %s", serverConfig.UploadDir)
	}

	Logger.Info("Upload directory exists", "path", serverConfig.UploadDir)
	return nil
}

// engineSelfCheck opens the embedded document through a descriptor and reads
// it back. A page count that disagrees with an independent parser is only
// logged.
func (serverHandler *ServerHandler) engineSelfCheck() error {
	dir := serverHandler.ServerConfig.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp, err := os.CreateTemp(dir, "pdfbind-selfcheck-*.pdf")
	if err != nil {
		return fmt.Errorf("unable to create self check file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)
	_, err = tmp.Write(selfCheckPDF)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("unable to write self check file: %w", err)
	}

	serverHandler.mu.Lock()
	defer serverHandler.mu.Unlock()

	doc, err := binding.OpenFile(serverHandler.Table.Engine(), path)
	if err != nil {
		Logger.Error("Engine self check failed to open document", "path", filepath.Base(path), "error", err)
		return fmt.Errorf("engine self check: %w", err)
	}
	defer doc.Close()

	pages, err := doc.PageCount()
	if err != nil {
		return fmt.Errorf("engine self check: %w", err)
	}
	if reader, err := pdf.NewReader(bytes.NewReader(selfCheckPDF), int64(len(selfCheckPDF))); err != nil {
		Logger.Warn("Reference parser could not read self check document", "error", err)
	} else if reader.NumPage() != pages {
		Logger.Warn("Page count disagrees with reference parser", "engine", pages, "reference", reader.NumPage())
	}

	tp, err := doc.LoadTextPage(0)
	if err != nil {
		return fmt.Errorf("engine self check: %w", err)
	}
	defer tp.Close()
	text, err := tp.Text()
	if err != nil {
		return fmt.Errorf("engine self check: %w", err)
	}
	if !strings.Contains(text, selfCheckText) {
		Logger.Warn("Self check text not found", "text", text)
	}
	Logger.Info("Engine self check passed", "pages", pages)
	return nil
}
