package metrics

import (
	"context"

	"github.com/Chewie69006/beem-ai/core/events"
	coremetrics "github.com/Chewie69006/beem-ai/core/metrics"
	"github.com/Chewie69006/beem-ai/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// plan, telemetry and alert events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.PlanUpdated:
					_ = sink.RecordPlan(coremetrics.PlanEvent{
						TargetSoC:    e.Plan.TargetSoC,
						ChargePowerW: e.Plan.ChargePowerW,
						Phase:        e.Plan.Phase.String(),
						GridCharge:   e.Plan.AllowGridCharge,
						Time:         e.Plan.CreatedAt,
					})
				case events.TelemetryUpdated:
					if r, ok := sink.(coremetrics.TelemetryRecorder); ok {
						_ = r.RecordTelemetry(coremetrics.TelemetryEvent{
							SoC:           e.Battery.SoC,
							SolarPowerW:   e.Battery.SolarPowerW,
							BatteryPowerW: e.Battery.BatteryPowerW,
							MeterPowerW:   e.Battery.MeterPowerW,
							SoH:           e.Battery.SoH,
							Time:          e.Battery.LastUpdated,
						})
					}
				case events.SafetyAlert:
					if r, ok := sink.(coremetrics.AlertRecorder); ok {
						_ = r.RecordAlert(coremetrics.AlertEvent{
							Kind:   e.Kind,
							Detail: e.Detail,
							Time:   e.Time,
						})
					}
				}
			}
		}
	}()
}
