// Package config holds the engine-wide AppConfig struct threaded through
// constructors. There is no process-wide config singleton — every component
// that needs configuration receives it explicitly.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration object for the runtime. It is passed
// by pointer to every component constructor (engine, scheduler, downloader,
// control API) instead of being read from a global.
type AppConfig struct {
	StoragePath       string        `json:"storagePath" yaml:"storagePath" toml:"storage_path"`
	DownloadsPath     string        `json:"downloadsPath" yaml:"downloadsPath" toml:"downloads_path"`
	LogDir            string        `json:"logDir" yaml:"logDir" toml:"log_dir"`
	DownloadLogPath   string        `json:"downloadLogPath" yaml:"downloadLogPath" toml:"download_log_path"`
	CheckpointDir     string        `json:"checkpointDir" yaml:"checkpointDir" toml:"checkpoint_dir"`
	DefaultTimeoutMS  int           `json:"defaultTimeoutMs" yaml:"defaultTimeoutMs" toml:"default_timeout_ms"`
	Headless          bool          `json:"headless" yaml:"headless" toml:"headless"`
	ControlAPIAddr    string        `json:"controlApiAddr" yaml:"controlApiAddr" toml:"control_api_addr"`
	StoreErrorDetails bool          `json:"storeErrorDetails" yaml:"storeErrorDetails" toml:"store_error_details"`
	MinLogLevel       string        `json:"minLogLevel" yaml:"minLogLevel" toml:"min_log_level"`
	GracePeriod       time.Duration `json:"gracePeriod" yaml:"gracePeriod" toml:"grace_period"`
}

// DefaultTimeout returns DefaultTimeoutMS as a time.Duration, falling back
// to 30s per spec §5 ("every driver operation has a timeout ... else 30s").
func (c *AppConfig) DefaultTimeout() time.Duration {
	if c == nil || c.DefaultTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.DefaultTimeoutMS) * time.Millisecond
}

// GetDefaultConfig returns a usable AppConfig with conservative defaults.
func GetDefaultConfig() *AppConfig {
	return &AppConfig{
		StoragePath:       "./storage",
		DownloadsPath:     "./storage/downloads",
		LogDir:            "./storage/logs",
		DownloadLogPath:   "./storage/download_log.txt",
		CheckpointDir:     "./storage/checkpoints",
		DefaultTimeoutMS:  30000,
		Headless:          true,
		ControlAPIAddr:    ":8733",
		StoreErrorDetails: true,
		MinLogLevel:       "INFO",
		GracePeriod:       5 * time.Second,
	}
}

// LoadConfig reads a config file, dispatching on extension: .json (stdlib
// encoding/json), .yaml/.yml (gopkg.in/yaml.v3), .toml (go-toml/v2) — the
// same extension-dispatch idiom the teacher's config loader uses for JSON
// alone, generalized to the formats spec §6 calls for workflow configs.
func LoadConfig(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := GetDefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}

	cfg.StoragePath = sanitizePath(cfg.StoragePath)
	cfg.DownloadsPath = sanitizePath(cfg.DownloadsPath)
	cfg.LogDir = sanitizePath(cfg.LogDir)
	cfg.CheckpointDir = sanitizePath(cfg.CheckpointDir)

	return cfg, nil
}

// SaveConfig writes the config back to disk in JSON form.
func SaveConfig(cfg *AppConfig, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func sanitizePath(path string) string {
	if path == "" {
		return "."
	}
	return filepath.Clean(path)
}

// EnsureDirs creates every directory the config references.
func EnsureDirs(cfg *AppConfig) error {
	for _, dir := range []string{cfg.StoragePath, cfg.DownloadsPath, cfg.LogDir, cfg.CheckpointDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}
