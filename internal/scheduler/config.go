package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// batchFile is the on-disk shape of a scheduler batch file: a list of
// RunConfig entries with duration fields spelled as plain strings
// ("30s", "5m") rather than raw nanosecond integers.
type batchFile struct {
	Runs []runConfigFile `json:"runs" yaml:"runs"`
}

type runConfigFile struct {
	Name            string `json:"name" yaml:"name"`
	ConfigPath      string `json:"config_path" yaml:"config_path"`
	MaxRetries      int    `json:"max_retries" yaml:"max_retries"`
	SuccessWaitTime string `json:"success_wait_time" yaml:"success_wait_time"`
	FailureWaitTime string `json:"failure_wait_time" yaml:"failure_wait_time"`
	ScheduledTime   string `json:"scheduled_time" yaml:"scheduled_time"`
	ScheduledDate   string `json:"scheduled_date" yaml:"scheduled_date"`
}

// LoadBatch reads a list of RunConfigs from a JSON or YAML file (spec §6's
// scheduler config), dispatching on extension the way internal/config and
// internal/workflow's loaders do.
func LoadBatch(path string) ([]RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scheduler batch: %w", err)
	}

	var bf batchFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &bf); err != nil {
			return nil, fmt.Errorf("parse yaml scheduler batch: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(raw, &bf); err != nil {
			return nil, fmt.Errorf("parse json scheduler batch: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scheduler batch extension: %s", ext)
	}

	configs := make([]RunConfig, 0, len(bf.Runs))
	for _, f := range bf.Runs {
		successWait, err := parseWait(f.SuccessWaitTime)
		if err != nil {
			return nil, fmt.Errorf("run %q: success_wait_time: %w", f.Name, err)
		}
		failureWait, err := parseWait(f.FailureWaitTime)
		if err != nil {
			return nil, fmt.Errorf("run %q: failure_wait_time: %w", f.Name, err)
		}
		configs = append(configs, RunConfig{
			Name:            f.Name,
			ConfigPath:      f.ConfigPath,
			MaxRetries:      f.MaxRetries,
			SuccessWaitTime: successWait,
			FailureWaitTime: failureWait,
			ScheduledTime:   f.ScheduledTime,
			ScheduledDate:   f.ScheduledDate,
		})
	}
	return configs, nil
}

func parseWait(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
