package safety

import (
	"testing"
	"time"

	"github.com/Chewie69006/beem-ai/core/events"
	"github.com/Chewie69006/beem-ai/core/model"
	"github.com/Chewie69006/beem-ai/core/state"
	"github.com/Chewie69006/beem-ai/infra/logger"
	"github.com/Chewie69006/beem-ai/internal/eventbus"
)

func newTestPolicy(t *testing.T, month time.Month) (*Policy, *state.Store, *eventbus.Bus) {
	t.Helper()
	store := state.NewStore()
	bus := eventbus.New()
	p := NewPolicy(store, bus, logger.NopLogger{}, Config{})
	p.now = func() time.Time {
		return time.Date(2025, month, 15, 12, 0, 0, 0, time.UTC)
	}
	return p, store, bus
}

func TestSeasonalFloor(t *testing.T) {
	p, _, _ := newTestPolicy(t, time.January)
	if !p.IsWinter() || p.SeasonalFloor() != 50 {
		t.Fatalf("january: winter=%v floor=%d", p.IsWinter(), p.SeasonalFloor())
	}
	p, _, _ = newTestPolicy(t, time.July)
	if p.IsWinter() || p.SeasonalFloor() != 20 {
		t.Fatalf("july: winter=%v floor=%d", p.IsWinter(), p.SeasonalFloor())
	}
}

func TestSeasonalFloorUsesConfiguredMonths(t *testing.T) {
	store := state.NewStore()
	p := NewPolicy(store, eventbus.New(), logger.NopLogger{}, Config{
		MinSoCSummer: 25,
		MinSoCWinter: 60,
		WinterMonths: []int{6, 7},
	})
	p.now = func() time.Time { return time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC) }
	if p.SeasonalFloor() != 60 {
		t.Fatalf("july configured as winter, floor=%d", p.SeasonalFloor())
	}
}

func TestEmergencyFloorNeverBelowTen(t *testing.T) {
	p, _, _ := newTestPolicy(t, time.July)
	// summer floor 20 -> 20-10 = 10
	if got := p.EmergencyFloor(); got != 10 {
		t.Fatalf("summer emergency floor = %d, want 10", got)
	}
	p, _, _ = newTestPolicy(t, time.January)
	// winter floor 50 -> 40
	if got := p.EmergencyFloor(); got != 40 {
		t.Fatalf("winter emergency floor = %d, want 40", got)
	}
}

func TestValidateClampsPlan(t *testing.T) {
	p, _, _ := newTestPolicy(t, time.July)
	plan := model.Plan{TargetSoC: 150, ChargePowerW: 9000, MinSoC: 5}
	got := p.Validate(plan)
	if got.TargetSoC != 100 {
		t.Fatalf("target = %v", got.TargetSoC)
	}
	if got.ChargePowerW != model.MaxChargePowerW {
		t.Fatalf("power = %v", got.ChargePowerW)
	}
	if got.MinSoC != 20 {
		t.Fatalf("min_soc = %v", got.MinSoC)
	}
}

func TestValidateRaisesToFloor(t *testing.T) {
	p, _, _ := newTestPolicy(t, time.January)
	got := p.Validate(model.Plan{TargetSoC: -40, ChargePowerW: -100, MinSoC: 0})
	if got.TargetSoC != 50 || got.MinSoC != 50 || got.ChargePowerW != 0 {
		t.Fatalf("unexpected plan %+v", got)
	}
}

func TestValidateIdempotent(t *testing.T) {
	p, _, _ := newTestPolicy(t, time.January)
	once := p.Validate(model.Plan{TargetSoC: 120, ChargePowerW: 7000, MinSoC: 2})
	twice := p.Validate(once)
	if once != twice {
		t.Fatalf("validate not idempotent: %+v vs %+v", once, twice)
	}
}

func TestIsTelemetryStale(t *testing.T) {
	p, store, bus := newTestPolicy(t, time.July)
	sub := bus.Subscribe()

	// No telemetry at all.
	if !p.IsTelemetryStale() {
		t.Fatal("no telemetry should be stale")
	}

	store.UpdateBattery(func(b *model.BatteryState) { b.SoC = 50 })
	// now() is fixed in 2025 while LastUpdated is stamped with wall time,
	// so pin the policy clock relative to the update.
	p.now = func() time.Time { return store.Battery().LastUpdated.Add(time.Minute) }
	if p.IsTelemetryStale() {
		t.Fatal("fresh telemetry flagged stale")
	}

	p.now = func() time.Time { return store.Battery().LastUpdated.Add(10 * time.Minute) }
	if !p.IsTelemetryStale() {
		t.Fatal("old telemetry not flagged stale")
	}
	select {
	case ev := <-sub:
		alert, ok := ev.(events.SafetyAlert)
		if !ok || alert.Kind != "stale_data" {
			t.Fatalf("unexpected event %v", ev)
		}
	default:
		t.Fatal("stale check should publish a safety alert")
	}
}

func TestShouldEmergencyStop(t *testing.T) {
	p, store, _ := newTestPolicy(t, time.July) // emergency floor 10

	store.UpdateBattery(func(b *model.BatteryState) {
		b.SoC = 10
		b.BatteryPowerW = -500
	})
	if !p.ShouldEmergencyStop() {
		t.Fatal("soc at floor while discharging must trigger")
	}

	store.UpdateBattery(func(b *model.BatteryState) { b.BatteryPowerW = 500 })
	if p.ShouldEmergencyStop() {
		t.Fatal("charging at low soc must not trigger")
	}

	store.UpdateBattery(func(b *model.BatteryState) {
		b.SoC = 11
		b.BatteryPowerW = -500
	})
	if p.ShouldEmergencyStop() {
		t.Fatal("soc above floor must not trigger")
	}
}

func TestCheckConstraints(t *testing.T) {
	p, store, _ := newTestPolicy(t, time.July)
	store.UpdateBattery(func(b *model.BatteryState) {
		b.SoC = 15
		b.BatteryPowerW = -200
		b.SoH = 65
	})
	p.now = func() time.Time { return store.Battery().LastUpdated.Add(time.Second) }
	store.SetMQTTConnected(false)
	store.SetRESTAvailable(false)

	alerts := p.CheckConstraints()
	if len(alerts) != 4 {
		t.Fatalf("expected 4 alerts, got %d: %v", len(alerts), alerts)
	}
}

func TestSafeFallbackPlan(t *testing.T) {
	p, _, _ := newTestPolicy(t, time.January)
	plan := p.SafeFallbackPlan()
	if plan.Phase != model.PhaseFallback {
		t.Fatalf("phase = %v", plan.Phase)
	}
	if plan.TargetSoC != 50 || plan.MinSoC != 50 {
		t.Fatalf("fallback targets floor: %+v", plan)
	}
	if plan.AllowGridCharge || plan.PreventDischarge || plan.ChargePowerW != 0 {
		t.Fatalf("fallback must be conservative: %+v", plan)
	}
	// Validate must not change an already-safe fallback plan.
	if validated := p.Validate(plan); validated.TargetSoC != plan.TargetSoC {
		t.Fatalf("fallback plan not stable under validation")
	}
}
