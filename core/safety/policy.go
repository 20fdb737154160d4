// Package safety enforces state-of-charge floors and ceilings on every
// proposed plan and detects emergency battery conditions.
package safety

import (
	"fmt"
	"time"

	"github.com/Chewie69006/beem-ai/core/events"
	"github.com/Chewie69006/beem-ai/core/logger"
	"github.com/Chewie69006/beem-ai/core/model"
	"github.com/Chewie69006/beem-ai/core/state"
	"github.com/Chewie69006/beem-ai/internal/eventbus"
)

const (
	// DefaultStaleThreshold is how old telemetry may be before it is
	// considered stale.
	DefaultStaleThreshold = 5 * time.Minute

	// absoluteEmergencyFloor is the lowest the emergency floor can go,
	// regardless of configured seasonal floors.
	absoluteEmergencyFloor = 10

	// sohAlertThreshold triggers a battery-health alert below this value.
	sohAlertThreshold = 70
)

// Config carries the reconfigurable safety settings.
type Config struct {
	MinSoCSummer   int           `json:"min_soc_summer"`
	MinSoCWinter   int           `json:"min_soc_winter"`
	WinterMonths   []int         `json:"winter_months"`
	StaleThreshold time.Duration `json:"-"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MinSoCSummer == 0 {
		c.MinSoCSummer = 20
	}
	if c.MinSoCWinter == 0 {
		c.MinSoCWinter = 50
	}
	if len(c.WinterMonths) == 0 {
		c.WinterMonths = []int{11, 12, 1, 2, 3}
	}
	if c.StaleThreshold == 0 {
		c.StaleThreshold = DefaultStaleThreshold
	}
}

// Policy validates plans against safety constraints and raises alerts.
type Policy struct {
	store *state.Store
	bus   eventbus.EventBus
	log   logger.Logger
	cfg   Config

	now func() time.Time
}

// NewPolicy builds a Policy around the shared state store.
func NewPolicy(store *state.Store, bus eventbus.EventBus, log logger.Logger, cfg Config) *Policy {
	cfg.SetDefaults()
	return &Policy{store: store, bus: bus, log: log, cfg: cfg, now: time.Now}
}

// Reconfigure replaces the safety settings wholesale.
func (p *Policy) Reconfigure(cfg Config) {
	cfg.SetDefaults()
	p.cfg = cfg
	p.log.Infof("safety reconfigured: summer=%d%% winter=%d%%", cfg.MinSoCSummer, cfg.MinSoCWinter)
}

// IsWinter reports whether the current month is configured as winter. It is
// recomputed on every call; the winter set is configuration, not a calendar
// constant.
func (p *Policy) IsWinter() bool {
	month := int(p.now().Month())
	for _, m := range p.cfg.WinterMonths {
		if m == month {
			return true
		}
	}
	return false
}

// SeasonalFloor returns the minimum allowed state of charge for the current
// season.
func (p *Policy) SeasonalFloor() int {
	if p.IsWinter() {
		return p.cfg.MinSoCWinter
	}
	return p.cfg.MinSoCSummer
}

// EmergencyFloor returns the hard threshold below which active discharge is
// cut off immediately.
func (p *Policy) EmergencyFloor() int {
	floor := p.SeasonalFloor() - 10
	if floor < absoluteEmergencyFloor {
		floor = absoluteEmergencyFloor
	}
	return floor
}

// Validate clamps the plan into safe bounds. It never rejects: out-of-range
// values are corrected and logged, and the corrected plan is returned.
// Validate is idempotent.
func (p *Policy) Validate(plan model.Plan) model.Plan {
	floor := p.SeasonalFloor()

	if plan.MinSoC < floor {
		p.log.Warnf("plan min_soc %d%% below safety floor %d%%, overriding", plan.MinSoC, floor)
		plan.MinSoC = floor
	}
	if plan.TargetSoC < float64(floor) {
		p.log.Warnf("plan target_soc %.0f%% below safety floor %d%%, overriding", plan.TargetSoC, floor)
		plan.TargetSoC = float64(floor)
	}
	if plan.TargetSoC > 100 {
		plan.TargetSoC = 100
	}
	if plan.ChargePowerW < 0 {
		plan.ChargePowerW = 0
	}
	if plan.ChargePowerW > model.MaxChargePowerW {
		p.log.Warnf("charge power %dW exceeds max, capping at %dW", plan.ChargePowerW, model.MaxChargePowerW)
		plan.ChargePowerW = model.MaxChargePowerW
	}
	return plan
}

// IsTelemetryStale reports whether battery telemetry is missing or older than
// the configured threshold. Each stale evaluation publishes a SafetyAlert;
// the alert is deliberately not edge-triggered.
func (p *Policy) IsTelemetryStale() bool {
	last := p.store.Battery().LastUpdated
	if last.IsZero() {
		p.log.Warnf("battery telemetry stale: no update received yet")
		return true
	}
	age := p.now().Sub(last)
	if age > p.cfg.StaleThreshold {
		p.log.Warnf("battery telemetry stale: last update %.0fs ago (threshold=%s)", age.Seconds(), p.cfg.StaleThreshold)
		p.bus.Publish(events.SafetyAlert{
			Kind:   "stale_data",
			Detail: fmt.Sprintf("last update %.0fs ago", age.Seconds()),
			Time:   p.now(),
		})
		return true
	}
	return false
}

// CheckConstraints runs every independent safety check and returns the active
// alerts as human-readable strings. It is used for monitoring, not for
// blocking actions.
func (p *Policy) CheckConstraints() []string {
	var alerts []string
	battery := p.store.Battery()

	if p.IsTelemetryStale() {
		alerts = append(alerts, "battery telemetry is stale (no MQTT update)")
	}
	if !p.store.MQTTConnected() {
		alerts = append(alerts, "MQTT disconnected")
	}
	if !p.store.RESTAvailable() {
		alerts = append(alerts, "REST API unavailable (rate limited or error)")
	}
	if battery.SoC < float64(p.SeasonalFloor()) && battery.IsDischarging() {
		alerts = append(alerts, fmt.Sprintf("SoC %.0f%% below minimum %d%% while discharging", battery.SoC, p.SeasonalFloor()))
	}
	if battery.SoH < sohAlertThreshold {
		alerts = append(alerts, fmt.Sprintf("battery health low: SoH %.0f%%", battery.SoH))
	}

	if len(alerts) > 0 {
		p.log.Warnf("safety check alerts: %v", alerts)
	}
	return alerts
}

// ShouldEmergencyStop reports the single highest-priority condition in the
// engine: state of charge at or below the emergency floor while the battery
// is actively discharging.
func (p *Policy) ShouldEmergencyStop() bool {
	battery := p.store.Battery()
	triggered := battery.SoC <= float64(p.EmergencyFloor()) && battery.IsDischarging()
	if triggered {
		p.log.Errorf("emergency stop: SoC %.0f%% <= floor %d%% while discharging at %.0fW",
			battery.SoC, p.EmergencyFloor(), -battery.BatteryPowerW)
	}
	return triggered
}

// SafeFallbackPlan returns the conservative plan installed whenever
// optimization cannot proceed safely: hold at the seasonal floor, no grid
// charge, discharge allowed.
func (p *Policy) SafeFallbackPlan() model.Plan {
	floor := p.SeasonalFloor()
	p.log.Warnf("activating safe fallback plan: auto mode, min_soc=%d%%", floor)
	return model.Plan{
		TargetSoC:        float64(floor),
		ChargePowerW:     0,
		AllowGridCharge:  false,
		PreventDischarge: false,
		MinSoC:           floor,
		MaxSoC:           100,
		Phase:            model.PhaseFallback,
		Reasoning:        "safety fallback: returning to auto mode",
		CreatedAt:        p.now(),
	}
}
