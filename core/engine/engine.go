// Package engine owns the daily planning pass, the intraday monitoring pass
// and the smart grid-charge toggle. All decision logic is synchronous; the
// only suspension points are control-command submissions on the sink.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chewie69006/beem-ai/core/engine/logging"
	"github.com/Chewie69006/beem-ai/core/events"
	"github.com/Chewie69006/beem-ai/core/logger"
	"github.com/Chewie69006/beem-ai/core/model"
	"github.com/Chewie69006/beem-ai/core/safety"
	"github.com/Chewie69006/beem-ai/core/state"
	"github.com/Chewie69006/beem-ai/core/tariff"
	"github.com/Chewie69006/beem-ai/internal/eventbus"
)

// Config tunes the engine cadence.
type Config struct {
	PlanningHour       int           `json:"planning_hour" yaml:"planning_hour"`
	IntradayInterval   time.Duration `json:"intraday_interval" yaml:"intraday_interval"`
	ToggleInterval     time.Duration `json:"toggle_interval" yaml:"toggle_interval"`
	SmartToggle        bool          `json:"smart_toggle" yaml:"smart_toggle"`
	SolarStartHour     int           `json:"solar_start_hour" yaml:"solar_start_hour"`
	SolarEndHour       int           `json:"solar_end_hour" yaml:"solar_end_hour"`
	DeviationThreshold float64       `json:"deviation_threshold" yaml:"deviation_threshold"`
}

func (c *Config) SetDefaults() {
	if c.PlanningHour <= 0 || c.PlanningHour > 23 {
		c.PlanningHour = 21
	}
	if c.IntradayInterval <= 0 {
		c.IntradayInterval = 5 * time.Minute
	}
	if c.ToggleInterval <= 0 {
		c.ToggleInterval = 2 * time.Minute
	}
	if c.SolarStartHour <= 0 {
		c.SolarStartHour = 7
	}
	if c.SolarEndHour <= 0 {
		c.SolarEndHour = 19
	}
	if c.DeviationThreshold <= 0 {
		c.DeviationThreshold = 0.20
	}
}

// ConsumptionSource supplies overnight and day-ahead consumption estimates
// when the forecast snapshot carries none.
type ConsumptionSource interface {
	TomorrowKWh() float64
	HourlyForecast(dayOfWeek int) map[int]float64
}

// Engine drives the battery through its daily charge/hold/release cycle.
// A single mutex serializes the planning, intraday and toggle passes, so a
// long pass delays but never races the next one.
type Engine struct {
	mu sync.Mutex

	store     *state.Store
	tariffs   *tariff.Holder
	policy    *safety.Policy
	sink      ControlSink
	bus       eventbus.EventBus
	log       logger.Logger
	decisions logging.DecisionStore
	cons      ConsumptionSource
	cfg       Config

	now func() time.Time

	timers      *ScheduledPhaseSet
	lastPlanDay string

	// solar deviation accumulators, reset on each release to solar mode
	solarActualWh   float64
	solarForecastWh float64
	forecastHours   map[int]bool
	lastIntraday    time.Time

	lastToggleCharge *bool
}

func NewEngine(store *state.Store, tariffs *tariff.Holder, policy *safety.Policy, sink ControlSink, bus eventbus.EventBus, log logger.Logger, decisions logging.DecisionStore, cons ConsumptionSource, cfg Config) *Engine {
	cfg.SetDefaults()
	return &Engine{
		store:         store,
		tariffs:       tariffs,
		policy:        policy,
		sink:          sink,
		bus:           bus,
		log:           log,
		decisions:     decisions,
		cons:          cons,
		cfg:           cfg,
		now:           time.Now,
		forecastHours: make(map[int]bool),
	}
}

// Timers exposes the phase-timer set issued by the last planning pass.
func (e *Engine) Timers() *ScheduledPhaseSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timers
}

// locked serializes a timer callback with the periodic passes.
func (e *Engine) locked(fn func()) func() {
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		fn()
	}
}

// RunPlanningPass computes tomorrow's plan, installs it and reschedules the
// phase timers. When the system is disabled the pass performs no side
// effects at all.
func (e *Engine) RunPlanningPass(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.store.Enabled() {
		e.log.Debugf("planning pass skipped: system disabled")
		return nil
	}
	now := e.now()
	snap := e.store.Snapshot()
	sched := e.tariffs.Current()

	prodKWh := snap.Forecast.SolarTomorrowKWh
	p10KWh, haveP10 := snap.Forecast.TomorrowP10KWh()
	if !haveP10 {
		p10KWh = prodKWh * RoughP10Factor
	}
	consKWh := snap.Forecast.ConsumptionTomorrowKWh
	if consKWh == 0 && e.cons != nil {
		consKWh = e.cons.TomorrowKWh()
	}
	netKWh := p10KWh - consKWh

	capacity := snap.Battery.CapacityKWh
	if capacity <= 0 {
		capacity = state.DefaultCapacityKWh
	}
	floor := float64(e.policy.SeasonalFloor())

	target, band := calculateTargetSoC(targetInput{
		NetKWh:      netKWh,
		CapacityKWh: capacity,
		CurrentSoC:  snap.Battery.SoC,
		NightKWh:    e.estimateNightKWh(snap.Forecast),
		Confidence:  snap.Forecast.Confidence,
		Floor:       floor,
		Winter:      e.policy.IsWinter(),
		WinterFloor: floor,
	})

	windowHours := DefaultWindowHours
	cheapest, cheapErr := sched.NextCheapestWindow(now)
	if cheapErr == nil {
		windowHours = cheapest.End.Sub(cheapest.Start).Hours()
	}
	power := chargePowerFor(snap.Battery.SoC, target, capacity, windowHours)
	offpeakToo := needsOffpeakCharge(snap.Battery.SoC, target, capacity, power, windowHours)

	plan := model.Plan{
		TargetSoC:        target,
		ChargePowerW:     power,
		AllowGridCharge:  power > 0,
		PreventDischarge: true,
		MinSoC:           int(floor),
		MaxSoC:           int(min(target+maxSoCHeadroom, 100)),
		Phase:            model.PhaseEveningHold,
		Reasoning:        buildReasoning(prodKWh, p10KWh, consKWh, netKWh, target, power, band),
		CreatedAt:        now,
	}
	plan = e.policy.Validate(plan)

	e.store.SetPlan(plan)
	e.bus.Publish(events.PlanUpdated{Plan: plan})
	e.log.Infof("plan installed: %s", plan.Reasoning)

	// Old timers go away before any new ones exist.
	if e.timers != nil {
		e.timers.CancelAll()
	}
	e.timers = newScheduledPhaseSet()
	e.schedulePhases(ctx, sched, now, plan, offpeakToo)
	e.applyEveningHold(ctx, plan)
	e.recordDecision(ctx, plan, planContext{
		ProductionKWh: prodKWh,
		P10KWh:        p10KWh,
		Consumption:   consKWh,
		NetKWh:        netKWh,
		Band:          band.String(),
		SoC:           snap.Battery.SoC,
		CapacityKWh:   capacity,
		WindowHours:   windowHours,
		OffpeakCharge: offpeakToo,
	})
	return nil
}

type planContext struct {
	ProductionKWh float64
	P10KWh        float64
	Consumption   float64
	NetKWh        float64
	Band          string
	SoC           float64
	CapacityKWh   float64
	WindowHours   float64
	OffpeakCharge bool
}

func (e *Engine) schedulePhases(ctx context.Context, sched *tariff.Schedule, now time.Time, plan model.Plan, offpeakToo bool) {
	offpeak, err := sched.NextOffpeakWindow(now)
	if err != nil {
		e.log.Warnf("no off-peak window configured, phase timers skipped")
		return
	}
	e.timers.Schedule(offpeak.Start, now, e.locked(func() {
		e.enterOffpeakPhase(ctx, offpeakToo)
	}))
	cheapest, err := sched.NextCheapestWindow(now)
	// A cheapest window opening together with the off-peak block is handled
	// by enterOffpeakPhase itself, so only a strictly later start needs its
	// own timer.
	if err == nil && cheapest.Start.After(offpeak.Start) && cheapest.Start.Before(offpeak.End) {
		e.timers.Schedule(cheapest.Start, now, e.locked(func() {
			e.enterCheapestPhase(ctx)
		}))
	}
	e.timers.Schedule(offpeak.End, now, e.locked(func() {
		e.releaseToSolar(ctx)
	}))
}

// applyEveningHold pins the state of charge until the off-peak window opens.
// Discharge is blocked so the evening load draws from the grid, not from the
// energy reserved for tomorrow. Grid charging stays off.
func (e *Engine) applyEveningHold(ctx context.Context, plan model.Plan) {
	e.store.SetPhase(model.PhaseEveningHold)
	cmd := ControlCommand{
		Mode:             "advanced",
		AllowGridCharge:  false,
		PreventDischarge: true,
		MinSoC:           plan.MinSoC,
		MaxSoC:           100,
		ChargePowerW:     0,
	}
	if err := e.sink.SetControl(ctx, cmd); err != nil {
		e.log.Errorf("evening hold command failed: %v", err)
	}
}

func (e *Engine) enterOffpeakPhase(ctx context.Context, charge bool) {
	// The cheapest window can be the first period of the night block, in
	// which case its transition coincides with this one and wins.
	if e.tariffs.Current().IsInCheapestPeriod(e.now()) {
		e.enterCheapestPhase(ctx)
		return
	}
	plan := e.store.Plan()
	phase := model.PhaseOffpeakHold
	cmd := ControlCommand{
		Mode:   "advanced",
		MinSoC: plan.MinSoC,
		MaxSoC: plan.MaxSoC,
	}
	if charge && plan.ChargePowerW > 0 {
		phase = model.PhaseOffpeakCharge
		cmd.AllowGridCharge = true
		cmd.PreventDischarge = true
		cmd.ChargePowerW = plan.ChargePowerW
		cmd.MaxSoC = int(plan.TargetSoC)
	}
	e.store.SetPhase(phase)
	e.bus.Publish(events.PlanUpdated{Plan: e.store.Plan()})
	e.log.Infof("entering %s", phase)
	if err := e.sink.SetControl(ctx, cmd); err != nil {
		e.log.Errorf("off-peak command failed: %v", err)
	}
}

func (e *Engine) enterCheapestPhase(ctx context.Context) {
	plan := e.store.Plan()
	phase := model.PhaseCheapestHold
	cmd := ControlCommand{
		Mode:   "advanced",
		MinSoC: plan.MinSoC,
		MaxSoC: plan.MaxSoC,
	}
	if plan.ChargePowerW > 0 {
		phase = model.PhaseCheapestCharge
		cmd.AllowGridCharge = true
		cmd.PreventDischarge = true
		cmd.ChargePowerW = plan.ChargePowerW
		cmd.MaxSoC = int(plan.TargetSoC)
	}
	e.store.SetPhase(phase)
	e.bus.Publish(events.PlanUpdated{Plan: e.store.Plan()})
	e.log.Infof("entering %s", phase)
	if err := e.sink.SetControl(ctx, cmd); err != nil {
		e.log.Errorf("cheapest-window command failed: %v", err)
	}
}

// releaseToSolar hands the battery back to its automatic mode for the day
// and resets the production-deviation accumulators.
func (e *Engine) releaseToSolar(ctx context.Context) {
	e.store.SetPhase(model.PhaseSolarMode)
	e.bus.Publish(events.PlanUpdated{Plan: e.store.Plan()})
	e.solarActualWh = 0
	e.solarForecastWh = 0
	e.forecastHours = make(map[int]bool)
	e.lastIntraday = time.Time{}
	e.lastToggleCharge = nil
	e.log.Infof("entering %s", model.PhaseSolarMode)
	if err := e.sink.SetAutoMode(ctx); err != nil {
		e.log.Errorf("auto mode command failed: %v", err)
	}
}

// RunIntradayCheck is the periodic monitoring pass. The emergency-stop check
// runs before anything else on every invocation.
func (e *Engine) RunIntradayCheck(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.store.Enabled() {
		return nil
	}
	if e.policy.ShouldEmergencyStop() {
		return e.emergencyStop(ctx)
	}
	e.policy.CheckConstraints()
	e.trackSolarDeviation()
	e.bus.Publish(events.BatteryDataUpdated{})
	return nil
}

func (e *Engine) emergencyStop(ctx context.Context) error {
	fb := e.policy.SafeFallbackPlan()
	e.store.SetPlan(fb)
	if e.timers != nil {
		e.timers.CancelAll()
	}
	e.bus.Publish(events.SafetyAlert{
		Kind:   "emergency_stop",
		Detail: fmt.Sprintf("SoC at or below emergency floor %d%% while discharging", e.policy.EmergencyFloor()),
		Time:   e.now(),
	})
	e.bus.Publish(events.PlanUpdated{Plan: fb})
	e.log.Errorf("emergency stop: installing fallback plan")
	cmd := ControlCommand{
		Mode:             "advanced",
		AllowGridCharge:  false,
		PreventDischarge: true,
		MinSoC:           fb.MinSoC,
		MaxSoC:           fb.MaxSoC,
	}
	if err := e.sink.SetControl(ctx, cmd); err != nil {
		e.log.Errorf("emergency hold command failed: %v", err)
	}
	return nil
}

// trackSolarDeviation accumulates actual vs forecast production during solar
// hours. Actual production is sampled on every pass; the forecast is added
// once per hour bucket. A deviation above the threshold is informational.
func (e *Engine) trackSolarDeviation() {
	snap := e.store.Snapshot()
	if snap.Plan.Phase != model.PhaseSolarMode {
		return
	}
	now := e.now()
	hour := now.Hour()
	// End hour is inclusive: production through the whole final solar hour
	// still counts.
	if hour < e.cfg.SolarStartHour || hour > e.cfg.SolarEndHour {
		return
	}
	if !e.lastIntraday.IsZero() {
		dt := now.Sub(e.lastIntraday).Hours()
		if dt > 0 && dt < 1 {
			e.solarActualWh += snap.Battery.SolarPowerW * dt
		}
	}
	e.lastIntraday = now
	if !e.forecastHours[hour] {
		e.forecastHours[hour] = true
		e.solarForecastWh += snap.Forecast.SolarToday[hour]
	}
	if e.solarForecastWh <= 0 {
		return
	}
	dev := (e.solarActualWh - e.solarForecastWh) / e.solarForecastWh
	if dev > e.cfg.DeviationThreshold || dev < -e.cfg.DeviationThreshold {
		e.log.Infof("solar production deviates %.0f%% from forecast (actual %.0f Wh, forecast %.0f Wh)",
			dev*100, e.solarActualWh, e.solarForecastWh)
	}
}

// RunSmartToggle flips grid charging on or off against the seasonal floor
// while a charge phase is active and the tariff says we are in a priced
// period. It is a minute-scale correction over the coarse daily plan.
func (e *Engine) RunSmartToggle(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.cfg.SmartToggle || !e.store.Enabled() {
		return nil
	}
	snap := e.store.Snapshot()
	if !snap.Plan.Phase.IsChargePhase() {
		return nil
	}
	if !e.tariffs.Current().IsInAnyPeriod(e.now()) {
		return nil
	}
	floor := float64(e.policy.SeasonalFloor())
	charge := snap.Battery.SoC < floor
	if e.lastToggleCharge != nil && *e.lastToggleCharge == charge {
		return nil
	}
	cmd := ControlCommand{
		Mode:   "advanced",
		MinSoC: snap.Plan.MinSoC,
		MaxSoC: snap.Plan.MaxSoC,
	}
	if charge {
		cmd.AllowGridCharge = true
		cmd.PreventDischarge = true
		cmd.ChargePowerW = snap.Plan.ChargePowerW
		e.log.Infof("smart toggle: SoC %.0f%% below floor %.0f%%, enabling grid charge", snap.Battery.SoC, floor)
	} else {
		e.log.Infof("smart toggle: SoC %.0f%% at floor %.0f%%, disabling grid charge", snap.Battery.SoC, floor)
	}
	if err := e.sink.SetControl(ctx, cmd); err != nil {
		e.log.Errorf("smart toggle command failed: %v", err)
		return nil
	}
	e.lastToggleCharge = &charge
	return nil
}

// Run drives the engine until the context is cancelled. Each pass is fault
// isolated: an error is logged and the next tick proceeds normally.
func (e *Engine) Run(ctx context.Context) error {
	planTick := time.NewTicker(time.Minute)
	intraTick := time.NewTicker(e.cfg.IntradayInterval)
	toggleTick := time.NewTicker(e.cfg.ToggleInterval)
	defer planTick.Stop()
	defer intraTick.Stop()
	defer toggleTick.Stop()

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			if e.timers != nil {
				e.timers.CancelAll()
			}
			e.mu.Unlock()
			return ctx.Err()
		case <-planTick.C:
			now := e.now()
			day := now.Format("2006-01-02")
			if now.Hour() == e.cfg.PlanningHour && e.lastPlanDay != day {
				e.lastPlanDay = day
				if err := e.RunPlanningPass(ctx); err != nil {
					e.log.Errorf("planning pass failed: %v", err)
				}
			}
		case <-intraTick.C:
			if err := e.RunIntradayCheck(ctx); err != nil {
				e.log.Errorf("intraday check failed: %v", err)
			}
		case <-toggleTick.C:
			if err := e.RunSmartToggle(ctx); err != nil {
				e.log.Errorf("smart toggle failed: %v", err)
			}
		}
	}
}

// estimateNightKWh sums the consumption forecast over the overnight hours
// (off-peak start through the morning), falling back to a flat default for
// missing hours.
func (e *Engine) estimateNightKWh(f model.ForecastSnapshot) float64 {
	hourly := f.ConsumptionHourly
	if len(hourly) == 0 && e.cons != nil {
		// Monday-based day index, matching the analyzer's buckets.
		tomorrow := (int(e.now().AddDate(0, 0, 1).Weekday()) + 6) % 7
		hourly = e.cons.HourlyForecast(tomorrow)
	}
	var kwh float64
	for _, h := range []int{23, 0, 1, 2, 3, 4, 5, 6} {
		w, ok := hourly[h]
		if !ok || w <= 0 {
			w = defaultNightSlotW
		}
		kwh += w / 1000
	}
	return kwh
}

func (e *Engine) recordDecision(ctx context.Context, plan model.Plan, pc planContext) {
	if e.decisions == nil {
		return
	}
	rec := logging.Record{
		ID:           uuid.NewString(),
		Timestamp:    plan.CreatedAt,
		TargetSoC:    plan.TargetSoC,
		ChargePowerW: plan.ChargePowerW,
		Phase:        plan.Phase.String(),
		Reasoning:    plan.Reasoning,
		Context: map[string]any{
			"production_kwh":  pc.ProductionKWh,
			"p10_kwh":         pc.P10KWh,
			"consumption_kwh": pc.Consumption,
			"net_kwh":         pc.NetKWh,
			"band":            pc.Band,
			"soc":             pc.SoC,
			"capacity_kwh":    pc.CapacityKWh,
			"window_hours":    pc.WindowHours,
			"offpeak_charge":  pc.OffpeakCharge,
		},
	}
	if err := e.decisions.Append(ctx, rec); err != nil {
		e.log.Errorf("decision log append failed: %v", err)
	}
}
