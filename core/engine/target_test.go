package engine

import (
	"testing"

	"github.com/Chewie69006/beem-ai/core/model"
)

func TestCalculateTargetSoCBands(t *testing.T) {
	base := targetInput{
		CapacityKWh: 13.4,
		CurrentSoC:  40,
		NightKWh:    4,
		Confidence:  model.ConfidenceHigh,
		Floor:       20,
	}

	cases := []struct {
		name   string
		netKWh float64
		want   float64
		band   balanceBand
	}{
		{"very sunny leaves room for solar", 12, 20, bandVerySunny},
		{"moderate sun covers the night", 3, 33, bandModerateSun},
		{"slightly cloudy caps at 80", -2, 80, bandSlightlyCloudy},
		{"heavy deficit caps at 95", -15, 95, bandHeavyDeficit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			in.NetKWh = tc.netKWh
			got, band := calculateTargetSoC(in)
			if band != tc.band {
				t.Fatalf("band = %s, want %s", band, tc.band)
			}
			if got != tc.want {
				t.Fatalf("target = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCalculateTargetSoCLowConfidenceBuffer(t *testing.T) {
	in := targetInput{
		NetKWh:      3,
		CapacityKWh: 13.4,
		CurrentSoC:  40,
		NightKWh:    4,
		Confidence:  model.ConfidenceLow,
		Floor:       20,
	}
	got, _ := calculateTargetSoC(in)
	if got != 48 {
		t.Fatalf("target = %v, want 48 (33 + buffer)", got)
	}

	// The buffer never pushes past the cap.
	in.NetKWh = -15
	got, _ = calculateTargetSoC(in)
	if got != TargetSoCCap {
		t.Fatalf("target = %v, want capped at %v", got, TargetSoCCap)
	}
}

func TestCalculateTargetSoCWinterFloorRaise(t *testing.T) {
	in := targetInput{
		NetKWh:      3,
		CapacityKWh: 13.4,
		CurrentSoC:  40,
		NightKWh:    4,
		Confidence:  model.ConfidenceHigh,
		Floor:       50,
		Winter:      true,
		WinterFloor: 50,
	}
	got, _ := calculateTargetSoC(in)
	if got != 50 {
		t.Fatalf("target = %v, want raised to winter floor 50", got)
	}
}

func TestChargePowerForPicksSmallestSufficientStep(t *testing.T) {
	cases := []struct {
		name        string
		current     float64
		target      float64
		windowHours float64
		want        int
	}{
		{"no charge needed", 60, 50, 4, 0},
		{"tiny need fits smallest step", 48, 50, 4, 500},
		{"mid need", 40, 65, 4, 1000},
		{"large need", 40, 95, 4, 2500},
		{"nothing suffices, largest step", 5, 95, 1, 5000},
		{"zero window falls back to default", 40, 65, 0, 1000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := chargePowerFor(tc.current, tc.target, 13.4, tc.windowHours)
			if got != tc.want {
				t.Fatalf("power = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestChargePowerForAlwaysAStep(t *testing.T) {
	valid := map[int]bool{0: true}
	for _, s := range PowerSteps {
		valid[s] = true
	}
	for soc := 0.0; soc <= 100; soc += 7 {
		for target := 0.0; target <= 100; target += 9 {
			for _, hours := range []float64{0.5, 2, 4, 8} {
				got := chargePowerFor(soc, target, 13.4, hours)
				if !valid[got] {
					t.Fatalf("power %d not a valid step (soc=%v target=%v hours=%v)", got, soc, target, hours)
				}
			}
		}
	}
}

func TestNeedsOffpeakCharge(t *testing.T) {
	// 500 W over 4 h delivers 2 kWh; 40% -> 95% of 13.4 kWh needs 7.37 kWh.
	if !needsOffpeakCharge(40, 95, 13.4, 500, 4) {
		t.Fatalf("expected off-peak charge needed")
	}
	// 5000 W over 4 h delivers 20 kWh, plenty.
	if needsOffpeakCharge(40, 95, 13.4, 5000, 4) {
		t.Fatalf("expected cheapest window to suffice")
	}
	if needsOffpeakCharge(60, 50, 13.4, 0, 4) {
		t.Fatalf("no charge planned means no off-peak charge")
	}
}
