package config

import (
	"fmt"
	"time"

	"github.com/Chewie69006/beem-ai/core/safety"
)

// SafetyConfig mirrors the battery protection settings.
type SafetyConfig struct {
	MinSoCSummer int   `json:"min_soc_summer"`
	MinSoCWinter int   `json:"min_soc_winter"`
	WinterMonths []int `json:"winter_months"`
	// StaleSeconds is the telemetry age beyond which readings are distrusted.
	StaleSeconds int `json:"stale_seconds"`
}

// SetDefaults applies sane defaults.
func (c *SafetyConfig) SetDefaults() {
	p := c.toPolicyConfig()
	p.SetDefaults()
	c.MinSoCSummer = p.MinSoCSummer
	c.MinSoCWinter = p.MinSoCWinter
	c.WinterMonths = p.WinterMonths
	if c.StaleSeconds == 0 {
		c.StaleSeconds = int(p.StaleThreshold.Seconds())
	}
}

// Validate checks field ranges.
func (c SafetyConfig) Validate() error {
	if c.MinSoCSummer < 0 || c.MinSoCSummer > 100 {
		return fmt.Errorf("min_soc_summer out of range: %d", c.MinSoCSummer)
	}
	if c.MinSoCWinter < 0 || c.MinSoCWinter > 100 {
		return fmt.Errorf("min_soc_winter out of range: %d", c.MinSoCWinter)
	}
	for _, m := range c.WinterMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("winter month out of range: %d", m)
		}
	}
	if c.StaleSeconds < 0 {
		return fmt.Errorf("stale_seconds must not be negative")
	}
	return nil
}

// ToPolicy converts the section into the safety package's config type.
func (c SafetyConfig) ToPolicy() safety.Config {
	p := c.toPolicyConfig()
	p.StaleThreshold = time.Duration(c.StaleSeconds) * time.Second
	p.SetDefaults()
	return p
}

func (c SafetyConfig) toPolicyConfig() safety.Config {
	return safety.Config{
		MinSoCSummer: c.MinSoCSummer,
		MinSoCWinter: c.MinSoCWinter,
		WinterMonths: c.WinterMonths,
	}
}
