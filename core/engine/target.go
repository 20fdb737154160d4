package engine

import (
	"fmt"
	"math"

	"github.com/Chewie69006/beem-ai/core/model"
)

// Named planning policies. They are deliberately package-level constants so
// tests can target each fallback individually.
const (
	// RoughP10Factor scales the nominal production forecast into a
	// conservative estimate when no P10 series is available.
	RoughP10Factor = 0.7

	// DefaultWindowHours is assumed for the cheapest charge window when the
	// schedule cannot provide one.
	DefaultWindowHours = 4.0

	// NightBufferFactor pads the estimated overnight consumption.
	NightBufferFactor = 1.10

	// LowConfidenceBufferPct is added to the target when forecast confidence
	// is low.
	LowConfidenceBufferPct = 15.0

	// TargetSoCCap bounds the computed target in deficit scenarios.
	TargetSoCCap = 95.0

	// defaultNightSlotW is assumed for overnight hours missing from the
	// consumption forecast.
	defaultNightSlotW = 300.0

	// maxSoCHeadroom is added above the target to set the plan's SoC
	// ceiling, so the hardware stops grid charging just past the target.
	maxSoCHeadroom = 5.0
)

// PowerSteps are the charge power levels the battery accepts, in watts,
// ascending.
var PowerSteps = [4]int{500, 1000, 2500, 5000}

// balanceBand classifies tomorrow's net energy balance.
type balanceBand int

const (
	bandVerySunny balanceBand = iota
	bandModerateSun
	bandSlightlyCloudy
	bandHeavyDeficit
)

func (b balanceBand) String() string {
	switch b {
	case bandVerySunny:
		return "very_sunny"
	case bandModerateSun:
		return "moderate_sun"
	case bandSlightlyCloudy:
		return "slightly_cloudy"
	case bandHeavyDeficit:
		return "heavy_deficit"
	default:
		return "unknown"
	}
}

func classifyBalance(netKWh, capacityKWh float64) balanceBand {
	switch {
	case netKWh > capacityKWh*0.8:
		return bandVerySunny
	case netKWh > 0:
		return bandModerateSun
	case netKWh > -5:
		return bandSlightlyCloudy
	default:
		return bandHeavyDeficit
	}
}

// targetInput bundles everything the target calculation reads.
type targetInput struct {
	NetKWh      float64
	CapacityKWh float64
	CurrentSoC  float64
	NightKWh    float64
	Confidence  model.Confidence
	Floor       float64
	Winter      bool
	WinterFloor float64
}

// calculateTargetSoC picks tomorrow's overnight charge target from the net
// balance band, then applies the confidence buffer and the winter floor.
func calculateTargetSoC(in targetInput) (float64, balanceBand) {
	band := classifyBalance(in.NetKWh, in.CapacityKWh)
	var target float64

	switch band {
	case bandVerySunny:
		// Leave room for solar.
		target = 20
		if in.Floor > target {
			target = in.Floor
		}
	case bandModerateSun:
		// Cover night consumption plus a buffer.
		target = (in.NightKWh * NightBufferFactor / in.CapacityKWh) * 100
		target = clamp(target, in.Floor, 75)
	case bandSlightlyCloudy:
		deficitPct := math.Abs(in.NetKWh/in.CapacityKWh) * 100
		target = clamp(60+deficitPct*5, in.Floor, 80)
	case bandHeavyDeficit:
		target = math.Abs(in.NetKWh/in.CapacityKWh)*100 + in.CurrentSoC*0.3
		target = clamp(target, in.Floor, TargetSoCCap)
	}

	if in.Confidence == model.ConfidenceLow {
		target += LowConfidenceBufferPct
		if target > TargetSoCCap {
			target = TargetSoCCap
		}
	}
	if in.Winter && target < in.WinterFloor {
		target = in.WinterFloor
	}

	return math.Round(target), band
}

// chargePowerFor picks the smallest power step able to reach the target
// within the window. When no step suffices the largest is used and the
// remaining deficit is an accepted shortfall, not an error.
func chargePowerFor(currentSoC, targetSoC, capacityKWh, windowHours float64) int {
	if targetSoC <= currentSoC {
		return 0
	}
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	neededKWh := (targetSoC - currentSoC) / 100 * capacityKWh
	neededW := neededKWh * 1000 / windowHours
	for _, step := range PowerSteps {
		if float64(step) >= neededW {
			return step
		}
	}
	return PowerSteps[len(PowerSteps)-1]
}

// needsOffpeakCharge reports whether the cheapest window alone cannot deliver
// the needed energy, so the secondary-rate window must charge as well.
func needsOffpeakCharge(currentSoC, targetSoC, capacityKWh float64, cheapestPowerW int, windowHours float64) bool {
	if cheapestPowerW == 0 {
		return false
	}
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	windowKWh := float64(cheapestPowerW) * windowHours / 1000
	neededKWh := (targetSoC - currentSoC) / 100 * capacityKWh
	return neededKWh > windowKWh
}

func buildReasoning(prodKWh, prodP10, consKWh, netKWh, target float64, powerW int, band balanceBand) string {
	s := fmt.Sprintf("Forecast: %.1f kWh (P10: %.1f) | Consumption: %.1f kWh | Net: %+.1f kWh (%s) | Target: %.0f%%",
		prodKWh, prodP10, consKWh, netKWh, band, target)
	if powerW > 0 {
		return s + fmt.Sprintf(" | Charge: %dW in cheapest window", powerW)
	}
	return s + " | No grid charging needed"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
