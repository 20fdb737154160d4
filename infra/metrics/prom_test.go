package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/Chewie69006/beem-ai/core/metrics"
)

func TestPromSinkRecordPlan(t *testing.T) {
	reg := prometheus.NewRegistry()
	sinkIf, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	sink, ok := sinkIf.(*PromSink)
	if !ok {
		t.Fatalf("expected PromSink")
	}

	ev := coremetrics.PlanEvent{
		TargetSoC:    95,
		ChargePowerW: 2500,
		Phase:        "evening_hold",
		GridCharge:   true,
		Time:         time.Now(),
	}
	if err := sink.RecordPlan(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}

	if got := testutil.ToFloat64(sink.plans); got != 1 {
		t.Fatalf("plans_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sink.targetSoC); got != 95 {
		t.Fatalf("target gauge = %v, want 95", got)
	}

	expected := `
# HELP engine_phase Active engine phase (1 on the active phase label)
# TYPE engine_phase gauge
engine_phase{phase="evening_hold"} 1
`
	if err := testutil.CollectAndCompare(sink.phase, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	// A later plan moves the phase marker instead of accumulating labels.
	ev.Phase = "solar_mode"
	if err := sink.RecordPlan(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	expected = `
# HELP engine_phase Active engine phase (1 on the active phase label)
# TYPE engine_phase gauge
engine_phase{phase="solar_mode"} 1
`
	if err := testutil.CollectAndCompare(sink.phase, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestPromSinkRecordTelemetryAndAlert(t *testing.T) {
	reg := prometheus.NewRegistry()
	sinkIf, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	sink := sinkIf.(*PromSink)

	if err := sink.RecordTelemetry(coremetrics.TelemetryEvent{SoC: 72.5, SolarPowerW: 1800, SoH: 98}); err != nil {
		t.Fatalf("record telemetry: %v", err)
	}
	if got := testutil.ToFloat64(sink.soc); got != 72.5 {
		t.Fatalf("soc gauge = %v", got)
	}

	if err := sink.RecordAlert(coremetrics.AlertEvent{Kind: "stale_data"}); err != nil {
		t.Fatalf("record alert: %v", err)
	}
	if err := sink.RecordAlert(coremetrics.AlertEvent{Kind: "stale_data"}); err != nil {
		t.Fatalf("record alert: %v", err)
	}
	if got := testutil.ToFloat64(sink.alerts.WithLabelValues("stale_data")); got != 2 {
		t.Fatalf("alerts = %v, want 2", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("second registration must reuse collectors: %v", err)
	}
}
