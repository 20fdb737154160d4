package model

import "time"

// Confidence grades how many independent forecast sources agreed.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

// String returns the lowercase confidence tier name.
func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseConfidence maps a tier name to a Confidence, defaulting to low.
func ParseConfidence(s string) Confidence {
	switch s {
	case "medium":
		return ConfidenceMedium
	case "high":
		return ConfidenceHigh
	default:
		return ConfidenceLow
	}
}

// ForecastSnapshot holds merged solar production and consumption forecasts.
// Hourly series map the hour of day (0-23) to average watts.
type ForecastSnapshot struct {
	SolarToday    map[int]float64 `json:"solar_today"`
	SolarTomorrow map[int]float64 `json:"solar_tomorrow"`

	SolarTodayP10    map[int]float64 `json:"solar_today_p10"`
	SolarTodayP90    map[int]float64 `json:"solar_today_p90"`
	SolarTomorrowP10 map[int]float64 `json:"solar_tomorrow_p10"`
	SolarTomorrowP90 map[int]float64 `json:"solar_tomorrow_p90"`

	SolarTodayKWh    float64 `json:"solar_today_kwh"`
	SolarTomorrowKWh float64 `json:"solar_tomorrow_kwh"`

	ConsumptionTodayKWh    float64         `json:"consumption_today_kwh"`
	ConsumptionTomorrowKWh float64         `json:"consumption_tomorrow_kwh"`
	ConsumptionHourly      map[int]float64 `json:"consumption_hourly"`

	SourcesUsed []string   `json:"sources_used"`
	Confidence  Confidence `json:"confidence"`
	LastUpdated time.Time  `json:"last_updated"`
}

// TomorrowP10KWh sums the conservative hourly series into kWh. The second
// return value is false when no P10 series is available.
func (f ForecastSnapshot) TomorrowP10KWh() (float64, bool) {
	if len(f.SolarTomorrowP10) == 0 {
		return 0, false
	}
	var totalW float64
	for _, w := range f.SolarTomorrowP10 {
		totalW += w
	}
	return totalW / 1000.0, true
}
