package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_ADDR", "SERVER_PORT", "PDFIUM_MIN_IDLE", "PDFIUM_MAX_IDLE", "PDFIUM_MAX_TOTAL",
		"PDFIUM_INSTANCE_TIMEOUT", "BOUNDED_TEXT_CAPACITY", "HIT_TOLERANCE", "AUDIT_INTERVAL",
		"UPLOAD_DIR", "MAX_UPLOAD_MB", "RENDER_DPI",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ListenAddrPort != "8010" {
		t.Errorf("Expected port 8010, got %s", cfg.ListenAddrPort)
	}
	if cfg.Pdfium.MaxTotal != 1 || cfg.Pdfium.InstanceTimeout != 30*time.Second {
		t.Errorf("Unexpected PDFium defaults %+v", cfg.Pdfium)
	}
	if cfg.BoundedTextCapacity != 2048 {
		t.Errorf("Expected capacity 2048, got %d", cfg.BoundedTextCapacity)
	}
	if cfg.HitTolerance != 8 {
		t.Errorf("Expected tolerance 8, got %v", cfg.HitTolerance)
	}
	if cfg.AuditInterval != 5 || cfg.MaxUploadMB != 64 || cfg.RenderDPI != 96 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if !filepath.IsAbs(cfg.UploadDir) {
		t.Errorf("Expected absolute upload dir, got %s", cfg.UploadDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("PDFIUM_MAX_TOTAL", "0")
	t.Setenv("HIT_TOLERANCE", "2.5")
	t.Setenv("AUDIT_INTERVAL", "-3")
	t.Setenv("BOUNDED_TEXT_CAPACITY", "not-a-number")
	t.Setenv("UPLOAD_DIR", dir)

	cfg := Load()
	if cfg.ListenAddrPort != "9100" {
		t.Errorf("Expected port 9100, got %s", cfg.ListenAddrPort)
	}
	if cfg.Pdfium.MaxTotal != 1 {
		t.Errorf("Expected MaxTotal clamped to 1, got %d", cfg.Pdfium.MaxTotal)
	}
	if cfg.HitTolerance != 2.5 {
		t.Errorf("Expected tolerance 2.5, got %v", cfg.HitTolerance)
	}
	if cfg.AuditInterval != 0 {
		t.Errorf("Expected audits disabled, got %d", cfg.AuditInterval)
	}
	if cfg.BoundedTextCapacity != 2048 {
		t.Errorf("Expected fallback capacity 2048, got %d", cfg.BoundedTextCapacity)
	}
	if cfg.UploadDir != dir {
		t.Errorf("Expected upload dir %s, got %s", dir, cfg.UploadDir)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggingToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	t.Setenv("LOG_OUTPUT", "file")
	t.Setenv("LOG_FILE", logPath)

	logger := setupLogging()
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	logger.Info("hello")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Log file not created: %v", err)
	}
	if !strings.Contains(string(data), "tag="+LogTag) {
		t.Errorf("Expected tag in log record, got %q", data)
	}
}
