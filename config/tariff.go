package config

import (
	"fmt"

	"github.com/Chewie69006/beem-ai/core/tariff"
	"github.com/Chewie69006/beem-ai/infra/logger"
)

// TariffConfig describes the priced periods of the electricity contract.
// With no periods configured the standard French off-peak layout is used.
type TariffConfig struct {
	DefaultPrice float64            `json:"default_price"`
	Periods      []tariff.PeriodDef `json:"periods"`
}

// SetDefaults applies sane defaults.
func (c *TariffConfig) SetDefaults() {
	if c.DefaultPrice <= 0 {
		c.DefaultPrice = tariff.DefaultFrenchPrice
	}
}

// Validate checks the period definitions.
func (c TariffConfig) Validate() error {
	for _, p := range c.Periods {
		if _, err := tariff.ParseTimeOfDay(p.Start); err != nil {
			return fmt.Errorf("period %q start: %w", p.Label, err)
		}
		if _, err := tariff.ParseTimeOfDay(p.End); err != nil {
			return fmt.Errorf("period %q end: %w", p.Label, err)
		}
		if p.Price < 0 {
			return fmt.Errorf("period %q has negative price", p.Label)
		}
	}
	return nil
}

// Build materialises the schedule described by the config.
func (c TariffConfig) Build(log logger.Logger) *tariff.Schedule {
	if len(c.Periods) == 0 {
		return tariff.DefaultFrenchSchedule(c.DefaultPrice)
	}
	return tariff.NewFromDefs(c.DefaultPrice, c.Periods, log)
}
