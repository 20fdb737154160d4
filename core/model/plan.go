package model

import "time"

// MaxChargePowerW is the hard ceiling imposed by the battery hardware.
const MaxChargePowerW = 5000

// Plan is one charging decision for the battery. A fresh Plan value is built
// per planning pass; the previous plan is replaced wholesale, never patched
// from outside the engine.
type Plan struct {
	TargetSoC        float64   `json:"target_soc"`
	ChargePowerW     int       `json:"charge_power_w"`
	AllowGridCharge  bool      `json:"allow_grid_charge"`
	PreventDischarge bool      `json:"prevent_discharge"`
	MinSoC           int       `json:"min_soc"`
	MaxSoC           int       `json:"max_soc"`
	Phase            Phase     `json:"phase"`
	Reasoning        string    `json:"reasoning"`
	CreatedAt        time.Time `json:"created_at"`
}

// WithPhase returns a copy of the plan in the given phase.
func (p Plan) WithPhase(phase Phase) Plan {
	p.Phase = phase
	return p
}
