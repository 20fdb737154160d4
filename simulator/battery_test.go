package main

import (
	"testing"
	"time"
)

func TestBatteryChargesFromSurplus(t *testing.T) {
	b := &Battery{CapacityKWh: 10, Soc: 0.5, MaxPowerW: 5000}
	p := b.Step(2000, time.Hour)
	if p != 2000 {
		t.Fatalf("expected 2000 W, got %.0f", p)
	}
	if soc := b.SoCPercent(); soc != 70 {
		t.Fatalf("expected 70%%, got %.1f", soc)
	}
}

func TestBatteryRespectsPowerLimit(t *testing.T) {
	b := &Battery{CapacityKWh: 10, Soc: 0.5, MaxPowerW: 1000}
	if p := b.Step(5000, time.Hour); p != 1000 {
		t.Fatalf("expected clamp to 1000 W, got %.0f", p)
	}
	if p := b.Step(-5000, time.Hour); p != -1000 {
		t.Fatalf("expected clamp to -1000 W, got %.0f", p)
	}
}

func TestBatteryStopsAtBounds(t *testing.T) {
	b := &Battery{CapacityKWh: 1, Soc: 0.9, MaxPowerW: 5000}
	b.Step(5000, time.Hour)
	if soc := b.SoCPercent(); soc > 100.01 {
		t.Fatalf("overcharged to %.1f%%", soc)
	}
	b = &Battery{CapacityKWh: 1, Soc: 0.1, MaxPowerW: 5000}
	b.Step(-5000, time.Hour)
	if soc := b.SoCPercent(); soc < -0.01 {
		t.Fatalf("overdischarged to %.1f%%", soc)
	}
}
