package engine

import "context"

// ControlCommand carries one "set control parameters" request for the
// battery.
type ControlCommand struct {
	Mode             string `json:"mode"`
	AllowGridCharge  bool   `json:"allow_grid_charge"`
	PreventDischarge bool   `json:"prevent_discharge"`
	MinSoC           int    `json:"min_soc"`
	MaxSoC           int    `json:"max_soc"`
	ChargePowerW     int    `json:"charge_power_w"`
}

// ControlSink issues control commands to the battery vendor. Failures are
// non-fatal to callers: the active plan stays installed, the command is
// simply not confirmed sent.
type ControlSink interface {
	SetControl(ctx context.Context, cmd ControlCommand) error
	SetAutoMode(ctx context.Context) error
}
