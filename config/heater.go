package config

import (
	"fmt"

	"github.com/Chewie69006/beem-ai/core/heater"
	"github.com/Chewie69006/beem-ai/infra/mqtt"
)

// WaterHeaterConfig describes the optional water heater on an MQTT smart
// plug. The controller is only started when Enabled is true.
type WaterHeaterConfig struct {
	Enabled      bool    `json:"enabled"`
	Broker       string  `json:"broker"`
	CommandTopic string  `json:"command_topic"`
	PowerTopic   string  `json:"power_topic"`
	Username     string  `json:"username"`
	Password     string  `json:"password"`
	HeaterPowerW float64 `json:"heater_power_w"`
}

// SetDefaults applies sane defaults.
func (c *WaterHeaterConfig) SetDefaults() {
	if c.HeaterPowerW <= 0 {
		c.HeaterPowerW = 2000
	}
}

// Validate checks the plug connection fields when the controller is enabled.
func (c WaterHeaterConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.ToPlug().Validate(); err != nil {
		return err
	}
	if c.HeaterPowerW <= 0 {
		return fmt.Errorf("heater_power_w must be positive")
	}
	return nil
}

// ToPlug converts the section into the plug client config.
func (c WaterHeaterConfig) ToPlug() mqtt.PlugConfig {
	return mqtt.PlugConfig{
		Broker:       c.Broker,
		CommandTopic: c.CommandTopic,
		PowerTopic:   c.PowerTopic,
		Username:     c.Username,
		Password:     c.Password,
	}
}

// ToController converts the section into the controller config.
func (c WaterHeaterConfig) ToController(dryRun bool) heater.Config {
	return heater.Config{HeaterPowerW: c.HeaterPowerW, DryRun: dryRun}
}
