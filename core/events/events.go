// Package events defines the typed events exchanged between modules on the
// internal bus.
package events

import (
	"time"

	"github.com/Chewie69006/beem-ai/core/model"
)

// PlanUpdated is published whenever a new plan becomes active.
type PlanUpdated struct {
	Plan model.Plan
}

// TelemetryUpdated is published after each battery telemetry ingestion.
type TelemetryUpdated struct {
	Battery model.BatteryState
}

// ForecastUpdated is published after the forecast snapshot changes.
type ForecastUpdated struct {
	Forecast model.ForecastSnapshot
}

// SafetyAlert carries one active safety condition.
// Kind can be "stale_data", "mqtt_disconnect_timeout", or "emergency_stop".
type SafetyAlert struct {
	Kind   string
	Detail string
	Time   time.Time
}

// BatteryDataUpdated is published at the end of every intraday monitoring
// pass, after the safety checks and deviation tracking ran.
type BatteryDataUpdated struct{}

// WaterHeaterChanged is published whenever the water heater is actuated.
type WaterHeaterChanged struct {
	On     bool
	Reason string
}

// TariffChanged is published after a wholesale tariff reconfiguration.
type TariffChanged struct{}

// ConfigChanged is published after any options reconfiguration.
type ConfigChanged struct{}

// SystemEnabled is published when optimization is switched on.
type SystemEnabled struct{}

// SystemDisabled is published when optimization is switched off.
type SystemDisabled struct{}
