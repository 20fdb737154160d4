package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Chewie69006/beem-ai/core/metrics"
	"github.com/Chewie69006/beem-ai/infra/beem"
	"github.com/Chewie69006/beem-ai/infra/mqtt"
)

// Config aggregates every section of the service configuration.
type Config struct {
	Beem    beem.Config    `json:"beem"`
	MQTT    mqtt.Config    `json:"mqtt"`
	Tariff  TariffConfig   `json:"tariff"`
	Safety  SafetyConfig   `json:"safety"`
	Engine  EngineConfig   `json:"engine"`
	Metrics metrics.Config `json:"metrics"`
	Logging LoggingConfig  `json:"logging"`
	API     APIConfig      `json:"api"`
	Sentry  SentryConfig   `json:"sentry"`
	// WaterHeater enables the surplus-driven water heater controller.
	WaterHeater WaterHeaterConfig `json:"water_heater"`
	// DataDir holds persisted state (consumption history, decision log).
	DataDir string `json:"data_dir"`
	// DryRun logs every battery and plug command instead of sending it.
	DryRun bool `json:"dry_run"`
}

// Load reads a YAML or JSON configuration file and applies environment
// overrides of the form BEEM_section__key.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("BEEM_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "beem_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies sane defaults to every section.
func (c *Config) SetDefaults() {
	c.Beem.SetDefaults()
	c.MQTT.SetDefaults()
	c.Tariff.SetDefaults()
	c.Safety.SetDefaults()
	c.Engine.SetDefaults()
	c.Logging.SetDefaults()
	c.WaterHeater.SetDefaults()
	if c.DataDir == "" {
		c.DataDir = "data"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Beem.Validate(); err != nil {
		return fmt.Errorf("beem: %w", err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := c.Tariff.Validate(); err != nil {
		return fmt.Errorf("tariff: %w", err)
	}
	if err := c.Safety.Validate(); err != nil {
		return fmt.Errorf("safety: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.WaterHeater.Validate(); err != nil {
		return fmt.Errorf("water_heater: %w", err)
	}
	return nil
}
