package model

import "time"

// BatteryState is the last telemetry snapshot received from the battery.
type BatteryState struct {
	SoC            float64   `json:"soc"`
	SolarPowerW    float64   `json:"solar_power_w"`
	BatteryPowerW  float64   `json:"battery_power_w"` // +charge / -discharge
	MeterPowerW    float64   `json:"meter_power_w"`   // +import / -export
	InverterPowerW float64   `json:"inverter_power_w"`
	WorkingMode    string    `json:"working_mode"`
	SoH            float64   `json:"soh"`
	CycleCount     int       `json:"cycle_count"`
	CapacityKWh    float64   `json:"capacity_kwh"`
	LastUpdated    time.Time `json:"last_updated"`
}

// IsCharging reports whether the battery is actively charging.
func (b BatteryState) IsCharging() bool { return b.BatteryPowerW > 0 }

// IsDischarging reports whether the battery is actively discharging.
func (b BatteryState) IsDischarging() bool { return b.BatteryPowerW < 0 }

// IsImporting reports whether the household is drawing from the grid.
func (b BatteryState) IsImporting() bool { return b.MeterPowerW > 0 }

// IsExporting reports whether the household is exporting to the grid.
func (b BatteryState) IsExporting() bool { return b.MeterPowerW < 0 }

// ExportPowerW returns the power currently flowing to the grid, or 0.
func (b BatteryState) ExportPowerW() float64 {
	if b.MeterPowerW < 0 {
		return -b.MeterPowerW
	}
	return 0
}

// ImportPowerW returns the power currently drawn from the grid, or 0.
func (b BatteryState) ImportPowerW() float64 {
	if b.MeterPowerW > 0 {
		return b.MeterPowerW
	}
	return 0
}

// ConsumptionW estimates household consumption from the energy balance.
func (b BatteryState) ConsumptionW() float64 {
	c := b.SolarPowerW + b.MeterPowerW - b.BatteryPowerW
	if c < 0 {
		return 0
	}
	return c
}
