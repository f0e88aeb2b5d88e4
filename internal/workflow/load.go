package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadAutomationConfig reads an AutomationConfig from path, dispatching on
// extension (.json, .yaml/.yml) — the same extension-dispatch idiom
// internal/config.LoadConfig uses for AppConfig files.
func LoadAutomationConfig(path string) (*AutomationConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read automation config: %w", err)
	}

	var cfg AutomationConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml automation config: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse json automation config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported automation config extension: %s", ext)
	}

	return &cfg, nil
}
