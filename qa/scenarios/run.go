package scenarios

import (
	"context"
	"testing"

	"github.com/Chewie69006/beem-ai/core/engine"
	"github.com/Chewie69006/beem-ai/core/engine/logging"
	"github.com/Chewie69006/beem-ai/core/model"
	"github.com/Chewie69006/beem-ai/core/safety"
	"github.com/Chewie69006/beem-ai/core/state"
	"github.com/Chewie69006/beem-ai/core/tariff"
	"github.com/Chewie69006/beem-ai/infra/logger"
	"github.com/Chewie69006/beem-ai/internal/eventbus"
)

type recordSink struct{ commands []engine.ControlCommand }

func (s *recordSink) SetControl(_ context.Context, cmd engine.ControlCommand) error {
	s.commands = append(s.commands, cmd)
	return nil
}

func (s *recordSink) SetAutoMode(context.Context) error { return nil }

type memDecisions struct{ recs []logging.Record }

func (m *memDecisions) Append(_ context.Context, r logging.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memDecisions) Query(context.Context, logging.Query) ([]logging.Record, error) {
	return m.recs, nil
}

func (m *memDecisions) Close() error { return nil }

type flatConsumption struct{}

func (flatConsumption) TomorrowKWh() float64 { return 0 }

func (flatConsumption) HourlyForecast(int) map[int]float64 { return nil }

func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()

	store := state.NewStore()
	store.UpdateBattery(func(b *model.BatteryState) {
		b.SoC = sc.Battery.SoC
		b.CapacityKWh = sc.Battery.CapacityKWh
	})
	store.UpdateForecast(func(f *model.ForecastSnapshot) {
		*f = sc.Forecast.ToModel()
	})

	// Month independent season selection keeps scenarios reproducible.
	months := []int{13}
	if sc.Winter {
		months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}
	bus := eventbus.New()
	defer bus.Close()
	policy := safety.NewPolicy(store, bus, logger.NopLogger{}, safety.Config{WinterMonths: months})
	tariffs := tariff.NewHolder(tariff.DefaultFrenchSchedule(0.2))
	sink := &recordSink{}

	eng := engine.NewEngine(store, tariffs, policy, sink, bus, logger.NopLogger{},
		&memDecisions{}, flatConsumption{}, engine.Config{})
	if err := eng.RunPlanningPass(context.Background()); err != nil {
		t.Fatalf("scenario %s: planning pass: %v", sc.Name, err)
	}
	defer eng.Timers().CancelAll()

	plan := store.Plan()
	if plan.TargetSoC != sc.Expected.TargetSoC {
		t.Errorf("scenario %s: target %.0f, want %.0f", sc.Name, plan.TargetSoC, sc.Expected.TargetSoC)
	}
	if plan.ChargePowerW != sc.Expected.ChargePowerW {
		t.Errorf("scenario %s: charge power %d, want %d", sc.Name, plan.ChargePowerW, sc.Expected.ChargePowerW)
	}
	if sc.Expected.MinSoC != 0 && plan.MinSoC != sc.Expected.MinSoC {
		t.Errorf("scenario %s: min soc %d, want %d", sc.Name, plan.MinSoC, sc.Expected.MinSoC)
	}
}
