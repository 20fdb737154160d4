package config

import (
	"fmt"

	"github.com/Chewie69006/beem-ai/core/engine/logging"
)

// LoggingConfig defines settings for the decision log and process logging.
type LoggingConfig struct {
	// Level is the process log verbosity: trace, debug, info, warn or error.
	Level string `json:"level"`
	// Backend selects the decision log store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// DecisionPath is the decision log location. Relative paths are resolved
	// against the data directory.
	DecisionPath string `json:"decision_path"`
	// MaxRecords caps the number of retained planning decisions.
	MaxRecords int `json:"max_records"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.DecisionPath == "" {
		switch c.Backend {
		case "sqlite":
			c.DecisionPath = "decisions.db"
		default:
			c.DecisionPath = "decisions.jsonl"
		}
	}
	if c.MaxRecords == 0 {
		c.MaxRecords = logging.DefaultMaxRecords
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %s", c.Level)
	}
	if c.Backend != "jsonl" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("max_records must not be negative")
	}
	return nil
}
