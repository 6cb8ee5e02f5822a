package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all process-level configuration for the application.
// Per-module settings live in the key/value store, not here; this struct
// only covers what must be known before anything else starts.
type Config struct {
	// DataDir is where the key/value store keeps its namespace files.
	DataDir string `validate:"required"`

	// OSCAddr is the host:port the chatbox transport sends to.
	OSCAddr string `validate:"required,hostname_port"`

	// SystemLayerURL is the websocket endpoint of the OS helper process.
	// Empty disables the system layer client (media/AFK events stop flowing,
	// everything else keeps working).
	SystemLayerURL string `validate:"omitempty,uri"`

	// UpdateInterval is the chatbox render/send tick.
	UpdateInterval time.Duration `validate:"required,min=1s"`

	// Premium marks this install as entitled to premium modules.
	Premium bool
}

// New loads configuration from a .env file and the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		DataDir:        envOr("CHATTERBOX_DATA_DIR", defaultDataDir()),
		OSCAddr:        envOr("CHATTERBOX_OSC_ADDR", "127.0.0.1:9000"),
		SystemLayerURL: os.Getenv("CHATTERBOX_SYSTEM_LAYER_URL"),
		UpdateInterval: envDurationOr("CHATTERBOX_UPDATE_INTERVAL", 2250*time.Millisecond),
		Premium:        envBool("CHATTERBOX_PREMIUM"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(base, "chatterbox")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", v)
		return def
	}
	return d
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
