// Package state holds the live record shared by telemetry ingestion, the
// planning pass and the monitoring passes. Every multi-field read is served
// as one consistent snapshot and every multi-field write applies atomically.
package state

import (
	"sync"
	"time"

	"github.com/Chewie69006/beem-ai/core/model"
)

// DefaultCapacityKWh is assumed until the battery reports its real capacity.
const DefaultCapacityKWh = 13.4

// Snapshot is a consistent view of the shared record, taken under one lock.
type Snapshot struct {
	Battery  model.BatteryState
	Forecast model.ForecastSnapshot
	Plan     model.Plan
	Enabled  bool
}

// Store is the single holder of mutable shared state.
type Store struct {
	mu sync.RWMutex

	battery  model.BatteryState
	forecast model.ForecastSnapshot
	plan     model.Plan

	enabled       bool
	mqttConnected bool
	restAvailable bool
}

// NewStore returns a Store with optimization enabled and the vendor transport
// assumed healthy.
func NewStore() *Store {
	return &Store{
		battery: model.BatteryState{
			SoH:         100,
			CapacityKWh: DefaultCapacityKWh,
		},
		plan:          model.Plan{Phase: model.PhaseIdle},
		enabled:       true,
		restAvailable: true,
	}
}

// Snapshot returns a consistent copy of battery, forecast, plan and the
// enabled flag.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Battery:  cloneBattery(s.battery),
		Forecast: cloneForecast(s.forecast),
		Plan:     s.plan,
		Enabled:  s.enabled,
	}
}

// Battery returns a copy of the last telemetry snapshot.
func (s *Store) Battery() model.BatteryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBattery(s.battery)
}

// UpdateBattery applies fn to the battery record under the lock and stamps
// LastUpdated.
func (s *Store) UpdateBattery(fn func(*model.BatteryState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.battery)
	s.battery.LastUpdated = time.Now()
}

// Forecast returns a copy of the current forecast snapshot.
func (s *Store) Forecast() model.ForecastSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneForecast(s.forecast)
}

// UpdateForecast applies fn to the forecast record under the lock and stamps
// LastUpdated.
func (s *Store) UpdateForecast(fn func(*model.ForecastSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.forecast)
	s.forecast.LastUpdated = time.Now()
}

// Plan returns the active plan.
func (s *Store) Plan() model.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// SetPlan installs a new active plan, discarding the previous one.
func (s *Store) SetPlan(p model.Plan) {
	s.mu.Lock()
	s.plan = p
	s.mu.Unlock()
}

// SetPhase moves the active plan into the given phase.
func (s *Store) SetPhase(phase model.Phase) {
	s.mu.Lock()
	s.plan.Phase = phase
	s.mu.Unlock()
}

// Enabled reports whether optimization is switched on.
func (s *Store) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled switches optimization on or off.
func (s *Store) SetEnabled(v bool) {
	s.mu.Lock()
	s.enabled = v
	s.mu.Unlock()
}

// MQTTConnected reports whether the telemetry stream is up.
func (s *Store) MQTTConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mqttConnected
}

// SetMQTTConnected records telemetry stream health.
func (s *Store) SetMQTTConnected(v bool) {
	s.mu.Lock()
	s.mqttConnected = v
	s.mu.Unlock()
}

// RESTAvailable reports whether the vendor REST API is usable.
func (s *Store) RESTAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restAvailable
}

// SetRESTAvailable records vendor REST health.
func (s *Store) SetRESTAvailable(v bool) {
	s.mu.Lock()
	s.restAvailable = v
	s.mu.Unlock()
}

func cloneBattery(b model.BatteryState) model.BatteryState {
	return b
}

func cloneForecast(f model.ForecastSnapshot) model.ForecastSnapshot {
	f.SolarToday = cloneHourly(f.SolarToday)
	f.SolarTomorrow = cloneHourly(f.SolarTomorrow)
	f.SolarTodayP10 = cloneHourly(f.SolarTodayP10)
	f.SolarTodayP90 = cloneHourly(f.SolarTodayP90)
	f.SolarTomorrowP10 = cloneHourly(f.SolarTomorrowP10)
	f.SolarTomorrowP90 = cloneHourly(f.SolarTomorrowP90)
	f.ConsumptionHourly = cloneHourly(f.ConsumptionHourly)
	f.SourcesUsed = append([]string(nil), f.SourcesUsed...)
	return f
}

func cloneHourly(m map[int]float64) map[int]float64 {
	if m == nil {
		return nil
	}
	out := make(map[int]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
