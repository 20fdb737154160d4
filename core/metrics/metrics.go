// Package metrics defines the sink interfaces used to export planning and
// battery observability data. Sinks like the Prometheus and InfluxDB
// implementations record plan installs, telemetry snapshots and safety
// alerts, and can be combined with NewMultiSink. The factory helpers return
// a MultiSink automatically when multiple sinks are configured.
package metrics

import "time"

// PlanEvent captures one installed plan.
type PlanEvent struct {
	TargetSoC    float64
	ChargePowerW int
	Phase        string
	GridCharge   bool
	Time         time.Time
}

// MetricsSink records plan installs for observability purposes.
type MetricsSink interface {
	RecordPlan(ev PlanEvent) error
}

// TelemetryEvent is a snapshot of the battery.
type TelemetryEvent struct {
	SoC           float64
	SolarPowerW   float64
	BatteryPowerW float64
	MeterPowerW   float64
	SoH           float64
	Time          time.Time
}

// TelemetryRecorder records battery snapshots.
type TelemetryRecorder interface {
	RecordTelemetry(ev TelemetryEvent) error
}

// AlertEvent captures a raised safety alert.
type AlertEvent struct {
	Kind   string
	Detail string
	Time   time.Time
}

// AlertRecorder records safety alerts.
type AlertRecorder interface {
	RecordAlert(ev AlertEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanEvent) error           { return nil }
func (NopSink) RecordTelemetry(TelemetryEvent) error { return nil }
func (NopSink) RecordAlert(AlertEvent) error         { return nil }

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the record to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordPlan(ev PlanEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlan(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordTelemetry forwards battery snapshots to sinks that record them.
func (m *MultiSink) RecordTelemetry(ev TelemetryEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TelemetryRecorder); ok {
			if err := rec.RecordTelemetry(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAlert forwards safety alerts to sinks that record them.
func (m *MultiSink) RecordAlert(ev AlertEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AlertRecorder); ok {
			if err := rec.RecordAlert(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
