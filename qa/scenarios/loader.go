// Package scenarios replays YAML described planning situations against the
// engine and checks the resulting plan.
package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Chewie69006/beem-ai/core/model"
)

type BatteryDef struct {
	SoC         float64 `yaml:"soc"`
	CapacityKWh float64 `yaml:"capacity_kwh"`
}

type ForecastDef struct {
	SolarTomorrowKWh       float64 `yaml:"solar_tomorrow_kwh"`
	SolarTomorrowP10KWh    float64 `yaml:"solar_tomorrow_p10_kwh"`
	ConsumptionTomorrowKWh float64 `yaml:"consumption_tomorrow_kwh"`
	Confidence             string  `yaml:"confidence"`
}

func (f ForecastDef) ToModel() model.ForecastSnapshot {
	snap := model.ForecastSnapshot{
		SolarTomorrowKWh:       f.SolarTomorrowKWh,
		ConsumptionTomorrowKWh: f.ConsumptionTomorrowKWh,
		Confidence:             model.ParseConfidence(f.Confidence),
	}
	if f.SolarTomorrowP10KWh > 0 {
		// One bucket carrying the whole day is enough for the planner.
		snap.SolarTomorrowP10 = map[int]float64{12: f.SolarTomorrowP10KWh * 1000}
	}
	return snap
}

type Expected struct {
	TargetSoC    float64 `yaml:"target_soc"`
	ChargePowerW int     `yaml:"charge_power_w"`
	MinSoC       int     `yaml:"min_soc"`
}

type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Winter      bool        `yaml:"winter,omitempty"`
	Battery     BatteryDef  `yaml:"battery"`
	Forecast    ForecastDef `yaml:"forecast"`
	Expected    Expected    `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
