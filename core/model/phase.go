package model

// Phase identifies one state of the daily charge/hold/release cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseEveningHold
	PhaseOffpeakHold
	PhaseOffpeakCharge
	PhaseCheapestHold
	PhaseCheapestCharge
	PhaseSolarMode
	PhaseFallback
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEveningHold:
		return "evening_hold"
	case PhaseOffpeakHold:
		return "offpeak_hold"
	case PhaseOffpeakCharge:
		return "offpeak_charge"
	case PhaseCheapestHold:
		return "cheapest_hold"
	case PhaseCheapestCharge:
		return "cheapest_charge"
	case PhaseSolarMode:
		return "solar_mode"
	case PhaseFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// IsChargePhase reports whether grid charging can be active in this phase.
func (p Phase) IsChargePhase() bool {
	return p == PhaseOffpeakCharge || p == PhaseCheapestCharge
}
