package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/drummonds/pdfbind/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// LogTag is attached to every record so binding output can be filtered
const LogTag = "pdfbind"

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP   string
	ListenAddrPort string
	Pdfium         pdfrenderer.Config
	// BoundedTextCapacity caps bounded text in UTF-16 units
	BoundedTextCapacity int
	// HitTolerance is the hit-test window in points
	HitTolerance float64
	// AuditInterval is minutes between handle audits, 0 disables them
	AuditInterval int
	UploadDir     string
	MaxUploadMB   int
	RenderDPI     float64
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

// Setup loads configuration and returns ServerConfig and Logger
func Setup() (ServerConfig, *slog.Logger) {
	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	serverConfigLive := Load()
	logger.Info("Configuration loaded",
		"addr", serverConfigLive.ListenAddrIP,
		"port", serverConfigLive.ListenAddrPort,
		"pdfiumMaxTotal", serverConfigLive.Pdfium.MaxTotal,
		"uploadDir", serverConfigLive.UploadDir)

	fmt.Println("\n========================================")
	fmt.Println("   pdfbind - PDF engine binding server")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}

	return serverConfigLive, logger
}

// SetupLibrary loads configuration for use inside a host process, without
// the server banner
func SetupLibrary() (ServerConfig, *slog.Logger) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger
	return Load(), logger
}

// Load reads the settings from the environment without touching logging
func Load() ServerConfig {
	cfg := ServerConfig{
		ListenAddrIP:   getEnv("SERVER_ADDR", ""),
		ListenAddrPort: getEnv("SERVER_PORT", "8010"),
		Pdfium: pdfrenderer.Config{
			MinIdle:         getEnvInt("PDFIUM_MIN_IDLE", 1),
			MaxIdle:         getEnvInt("PDFIUM_MAX_IDLE", 1),
			MaxTotal:        getEnvInt("PDFIUM_MAX_TOTAL", 1),
			InstanceTimeout: time.Duration(getEnvInt("PDFIUM_INSTANCE_TIMEOUT", 30)) * time.Second,
		},
		BoundedTextCapacity: getEnvInt("BOUNDED_TEXT_CAPACITY", 2048),
		HitTolerance:        getEnvFloat("HIT_TOLERANCE", 8),
		AuditInterval:       getEnvInt("AUDIT_INTERVAL", 5),
		MaxUploadMB:         getEnvInt("MAX_UPLOAD_MB", 64),
		RenderDPI:           getEnvFloat("RENDER_DPI", 96),
	}

	uploadDir := filepath.ToSlash(getEnv("UPLOAD_DIR", os.TempDir()))
	uploadDirAbs, err := filepath.Abs(uploadDir)
	if err != nil {
		if Logger != nil {
			Logger.Error("Failed creating absolute path for upload directory", "error", err)
		}
		uploadDirAbs = uploadDir
	}
	cfg.UploadDir = uploadDirAbs

	if cfg.Pdfium.MaxTotal < 1 {
		cfg.Pdfium.MaxTotal = 1
	}
	if cfg.AuditInterval < 0 {
		cfg.AuditInterval = 0
	}
	return cfg
}

// parseLevel maps LOG_LEVEL onto a slog level, defaulting to info
func parseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: parseLevel(getEnv("LOG_LEVEL", "info"))}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdfbind.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler).With("tag", LogTag)
}
