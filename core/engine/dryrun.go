package engine

import (
	"context"

	"github.com/Chewie69006/beem-ai/core/logger"
)

// NewDryRunSink returns a ControlSink that logs every command instead of
// sending it to the battery. It lets a new installation observe a full
// planning cycle without actuating anything.
func NewDryRunSink(log logger.Logger) ControlSink {
	return dryRunSink{log: log}
}

type dryRunSink struct {
	log logger.Logger
}

func (s dryRunSink) SetControl(_ context.Context, cmd ControlCommand) error {
	s.log.Warnf("[dry run] would set control: mode=%s grid_charge=%t prevent_discharge=%t min_soc=%d max_soc=%d power=%dW",
		cmd.Mode, cmd.AllowGridCharge, cmd.PreventDischarge, cmd.MinSoC, cmd.MaxSoC, cmd.ChargePowerW)
	return nil
}

func (s dryRunSink) SetAutoMode(context.Context) error {
	s.log.Warnf("[dry run] would set battery to auto mode")
	return nil
}
