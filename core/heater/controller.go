// Package heater drives a water heater on a smart plug with a
// surplus-driven strategy and an off-peak fallback. Heating happens
// preferentially when the household would otherwise export solar energy or
// clip a full battery, and a minimum daily volume is guaranteed during
// cheap tariff hours.
package heater

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Chewie69006/beem-ai/core/events"
	"github.com/Chewie69006/beem-ai/core/logger"
	"github.com/Chewie69006/beem-ai/core/state"
	"github.com/Chewie69006/beem-ai/core/tariff"
	"github.com/Chewie69006/beem-ai/internal/eventbus"
)

const (
	// solarMinProductionW is the minimum active solar production required
	// for the battery-full rule.
	solarMinProductionW = 300.0

	// batteryFullSoC is the state of charge at which diverting solar to
	// heating beats exporting it.
	batteryFullSoC = 90.0

	// batteryFullSoCHysteresis keeps battery-full mode on until SoC drops
	// below it.
	batteryFullSoCHysteresis = 85.0

	// solarSurplusHysteresisFactor keeps solar-surplus mode on until export
	// drops below this fraction of the heater draw.
	solarSurplusHysteresisFactor = 0.5

	// storageSurplusMarginW is the margin charging power must exceed
	// consumption by before the storage-surplus rule fires.
	storageSurplusMarginW = 200.0

	// forecastContinuationRatio is the minimum fraction of current
	// production the next two forecast hours must hold for the conditions
	// to count as stable.
	forecastContinuationRatio = 0.70

	// dailyHeatingMinKWh is the daily volume guaranteed by the off-peak
	// fallback.
	dailyHeatingMinKWh = 3.0

	// hcFallbackHour gates the off-peak fallback outside the cheapest
	// window until late evening.
	hcFallbackHour = 22
)

// Plug actuates the heater's smart plug and reads its power sensor. PowerW
// reports false while the sensor has no reading yet.
type Plug interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	PowerW() (float64, bool)
}

// Config holds the controller tunables.
type Config struct {
	// HeaterPowerW is the nominal draw of the heater, used as the export
	// threshold for the solar-surplus rule.
	HeaterPowerW float64
	// DryRun logs actuations instead of performing them.
	DryRun bool
}

// Controller runs the water-heater decision tree. Evaluate is expected every
// few minutes; ResetDaily at midnight.
type Controller struct {
	store   *state.Store
	tariffs *tariff.Holder
	bus     eventbus.EventBus
	plug    Plug
	log     logger.Logger
	cfg     Config

	now func() time.Time

	mu           sync.Mutex
	isOn         bool
	dailyKWh     float64
	lastDecision string
	lastReading  time.Time

	// Mode flags record why the heater is on, so each mode exits on its
	// own hysteresis.
	solarOn   bool
	storageOn bool
	batteryOn bool
}

// NewController wires the decision tree to the given plug.
func NewController(store *state.Store, tariffs *tariff.Holder, bus eventbus.EventBus, plug Plug, log logger.Logger, cfg Config) *Controller {
	return &Controller{
		store:   store,
		tariffs: tariffs,
		bus:     bus,
		plug:    plug,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// IsOn reports whether the heater is currently switched on.
func (c *Controller) IsOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOn
}

// DailyEnergyKWh returns the energy heated since the last daily reset.
func (c *Controller) DailyEnergyKWh() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dailyKWh
}

// LastDecision returns the reason of the most recent evaluation.
func (c *Controller) LastDecision() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDecision
}

// Evaluate runs the decision tree once and actuates the plug. Rules are
// ordered by priority; hysteresis on the surplus exits keeps the heater from
// flickering when export or SoC sit near a threshold. The returned string is
// the decision reason.
func (c *Controller) Evaluate(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accumulateEnergy()

	battery := c.store.Battery()
	sched := c.tariffs.Current()
	now := c.now()
	exportW := battery.ExportPowerW()
	solarW := battery.SolarPowerW

	if !c.store.Enabled() {
		c.solarOn = false
		c.storageOn = false
		c.batteryOn = false
		c.turnOff(ctx, "system disabled")
		return c.lastDecision
	}

	// Exporting at least the heater draw: turning on is grid neutral.
	if exportW >= c.cfg.HeaterPowerW {
		c.solarOn = true
		c.turnOn(ctx, fmt.Sprintf("solar surplus: exporting %.0f W >= heater %.0f W", exportW, c.cfg.HeaterPowerW))
		return c.lastDecision
	}

	// A passing cloud should not cycle the plug. Fall through afterwards;
	// a lower rule may keep the heater on.
	if c.solarOn && exportW < c.cfg.HeaterPowerW*solarSurplusHysteresisFactor {
		c.solarOn = false
		c.turnOff(ctx, fmt.Sprintf("solar surplus ended: export %.0f W below hysteresis", exportW))
	}

	// More solar flows into the battery than the house consumes and the
	// forecast says it will last: heat now rather than fill a soon-full
	// battery.
	chargingW := 0.0
	if battery.BatteryPowerW > 0 {
		chargingW = battery.BatteryPowerW
	}
	consumptionW := battery.ConsumptionW()
	if chargingW > consumptionW+storageSurplusMarginW && c.forecastIsStable(solarW, now) {
		c.storageOn = true
		c.turnOn(ctx, fmt.Sprintf("storage surplus: charging %.0f W > consumption %.0f W, forecast stable", chargingW, consumptionW))
		return c.lastDecision
	}
	if c.storageOn && (chargingW <= consumptionW+storageSurplusMarginW || !c.forecastIsStable(solarW, now)) {
		c.storageOn = false
		c.turnOff(ctx, fmt.Sprintf("storage surplus ended: charging %.0f W, consumption %.0f W", chargingW, consumptionW))
		return c.lastDecision
	}

	// Battery near full while the sun still produces.
	if battery.SoC >= batteryFullSoC && solarW >= solarMinProductionW {
		c.batteryOn = true
		c.turnOn(ctx, fmt.Sprintf("battery full: SoC %.0f%%, solar %.0f W producing", battery.SoC, solarW))
		return c.lastDecision
	}
	if c.batteryOn && (battery.SoC < batteryFullSoCHysteresis || solarW < solarMinProductionW) {
		c.batteryOn = false
		c.turnOff(ctx, fmt.Sprintf("battery-full mode ended: SoC %.0f%%, solar %.0f W", battery.SoC, solarW))
		return c.lastDecision
	}

	// Off-peak fallback guarantees the daily minimum. Outside the cheapest
	// window it waits for late evening so an early off-peak start does not
	// heat in daylight.
	if sched.IsInAnyPeriod(now) && c.dailyKWh < dailyHeatingMinKWh {
		if sched.IsInCheapestPeriod(now) || now.Hour() >= hcFallbackHour {
			c.turnOn(ctx, fmt.Sprintf("off-peak fallback: %s tariff, only %.2f kWh heated today", sched.LabelAt(now), c.dailyKWh))
			return c.lastDecision
		}
	}

	// Peak tariff while importing: heating would buy the most expensive
	// power of the day.
	if !sched.IsInAnyPeriod(now) && battery.IsImporting() {
		c.turnOff(ctx, fmt.Sprintf("peak tariff with grid import %.0f W: avoiding cost", battery.ImportPowerW()))
		return c.lastDecision
	}

	c.lastDecision = "maintaining current state"
	return c.lastDecision
}

// ResetDaily clears the daily counters and mode flags at midnight.
func (c *Controller) ResetDaily() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Infof("daily reset: water heater energy %.2f kWh", c.dailyKWh)
	c.dailyKWh = 0
	c.lastReading = time.Time{}
	c.solarOn = false
	c.storageOn = false
	c.batteryOn = false
}

// forecastIsStable reports whether the solar forecast for the next two hours
// holds at least forecastContinuationRatio of current production. With no
// forecast data yet it is optimistic so the storage rule can fire on first
// run.
func (c *Controller) forecastIsStable(currentSolarW float64, now time.Time) bool {
	if currentSolarW < solarMinProductionW {
		return false
	}
	forecast := c.store.Forecast()
	if len(forecast.SolarToday) == 0 {
		return true
	}
	var sum float64
	var n int
	for _, h := range []int{now.Hour() + 1, now.Hour() + 2} {
		if h < 24 {
			sum += forecast.SolarToday[h]
			n++
		}
	}
	if n == 0 {
		// Late evening: never assume production after midnight.
		return false
	}
	return sum/float64(n) >= currentSolarW*forecastContinuationRatio
}

func (c *Controller) turnOn(ctx context.Context, reason string) {
	if c.cfg.DryRun {
		c.log.Warnf("[dry run] would turn on water heater: %s", reason)
		c.lastDecision = "[dry run] " + reason
		return
	}
	if !c.isOn {
		if err := c.plug.TurnOn(ctx); err != nil {
			c.log.Errorf("water heater on failed: %v", err)
			return
		}
		c.isOn = true
		c.log.Infof("water heater on: %s", reason)
		c.bus.Publish(events.WaterHeaterChanged{On: true, Reason: reason})
	}
	c.lastDecision = reason
}

func (c *Controller) turnOff(ctx context.Context, reason string) {
	if c.cfg.DryRun {
		c.log.Warnf("[dry run] would turn off water heater: %s", reason)
		c.lastDecision = "[dry run] " + reason
		return
	}
	if c.isOn {
		if err := c.plug.TurnOff(ctx); err != nil {
			c.log.Errorf("water heater off failed: %v", err)
			return
		}
		c.isOn = false
		c.log.Infof("water heater off: %s", reason)
		c.bus.Publish(events.WaterHeaterChanged{On: false, Reason: reason})
	}
	c.lastDecision = reason
}

// accumulateEnergy integrates the plug's power sensor into the daily total.
func (c *Controller) accumulateEnergy() {
	powerW, ok := c.plug.PowerW()
	if !ok {
		return
	}
	now := c.now()
	if !c.lastReading.IsZero() && powerW > 0 {
		elapsed := now.Sub(c.lastReading).Hours()
		c.dailyKWh += powerW / 1000 * elapsed
	}
	c.lastReading = now
}
