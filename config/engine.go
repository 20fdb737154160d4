package config

import (
	"fmt"
	"time"

	"github.com/Chewie69006/beem-ai/core/engine"
)

// EngineConfig exposes the planner knobs with plain numeric fields so the
// file format stays free of duration strings.
type EngineConfig struct {
	PlanningHour       int     `json:"planning_hour"`
	IntradaySec        int     `json:"intraday_interval_sec"`
	ToggleSec          int     `json:"toggle_interval_sec"`
	SmartToggle        *bool   `json:"smart_toggle"`
	SolarStartHour     int     `json:"solar_start_hour"`
	SolarEndHour       int     `json:"solar_end_hour"`
	DeviationThreshold float64 `json:"deviation_threshold"`
}

// SetDefaults applies sane defaults. SmartToggle defaults to enabled when
// the key is absent from the file.
func (c *EngineConfig) SetDefaults() {
	if c.PlanningHour <= 0 || c.PlanningHour > 23 {
		c.PlanningHour = 21
	}
	if c.IntradaySec <= 0 {
		c.IntradaySec = 300
	}
	if c.ToggleSec <= 0 {
		c.ToggleSec = 120
	}
	if c.SmartToggle == nil {
		on := true
		c.SmartToggle = &on
	}
}

// Validate checks field ranges.
func (c EngineConfig) Validate() error {
	if c.SolarStartHour < 0 || c.SolarStartHour > 23 {
		return fmt.Errorf("solar_start_hour out of range: %d", c.SolarStartHour)
	}
	if c.SolarEndHour < 0 || c.SolarEndHour > 24 {
		return fmt.Errorf("solar_end_hour out of range: %d", c.SolarEndHour)
	}
	if c.DeviationThreshold < 0 || c.DeviationThreshold > 1 {
		return fmt.Errorf("deviation_threshold must be within [0,1]")
	}
	return nil
}

// ToEngine converts the section into the planner's own config type.
func (c EngineConfig) ToEngine() engine.Config {
	cfg := engine.Config{
		PlanningHour:       c.PlanningHour,
		IntradayInterval:   time.Duration(c.IntradaySec) * time.Second,
		ToggleInterval:     time.Duration(c.ToggleSec) * time.Second,
		SolarStartHour:     c.SolarStartHour,
		SolarEndHour:       c.SolarEndHour,
		DeviationThreshold: c.DeviationThreshold,
	}
	if c.SmartToggle != nil {
		cfg.SmartToggle = *c.SmartToggle
	}
	cfg.SetDefaults()
	return cfg
}
