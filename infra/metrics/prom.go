package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/Chewie69006/beem-ai/core/metrics"
)

// PromSink exposes planning and battery state as Prometheus metrics.
type PromSink struct {
	plans       prometheus.Counter
	targetSoC   prometheus.Gauge
	chargePower prometheus.Gauge
	phase       *prometheus.GaugeVec
	soc         prometheus.Gauge
	solarPower  prometheus.Gauge
	battPower   prometheus.Gauge
	meterPower  prometheus.Gauge
	soh         prometheus.Gauge
	alerts      *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The Prometheus server is started separately with StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		plans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optimization_plans_total",
			Help: "Total number of installed plans",
		}),
		targetSoC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_target_soc_percent",
			Help: "Target state of charge of the active plan",
		}),
		chargePower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_charge_power_watts",
			Help: "Grid charge power of the active plan",
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "engine_phase",
			Help: "Active engine phase (1 on the active phase label)",
		}, []string{"phase"}),
		soc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_soc_percent",
			Help: "Battery state of charge",
		}),
		solarPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solar_power_watts",
			Help: "Current solar production",
		}),
		battPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_power_watts",
			Help: "Battery power, positive while charging",
		}),
		meterPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meter_power_watts",
			Help: "Grid meter power, positive while importing",
		}),
		soh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_soh_percent",
			Help: "Battery state of health",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "safety_alerts_total",
			Help: "Safety alerts raised, by kind",
		}, []string{"kind"}),
	}

	collectors := []prometheus.Collector{
		s.plans, s.targetSoC, s.chargePower, s.phase,
		s.soc, s.solarPower, s.battPower, s.meterPower, s.soh, s.alerts,
	}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	s.plans = collectors[0].(prometheus.Counter)
	s.targetSoC = collectors[1].(prometheus.Gauge)
	s.chargePower = collectors[2].(prometheus.Gauge)
	s.phase = collectors[3].(*prometheus.GaugeVec)
	s.soc = collectors[4].(prometheus.Gauge)
	s.solarPower = collectors[5].(prometheus.Gauge)
	s.battPower = collectors[6].(prometheus.Gauge)
	s.meterPower = collectors[7].(prometheus.Gauge)
	s.soh = collectors[8].(prometheus.Gauge)
	s.alerts = collectors[9].(*prometheus.CounterVec)
	return s, nil
}

// RecordPlan updates the plan gauges and marks the active phase.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	s.plans.Inc()
	s.targetSoC.Set(ev.TargetSoC)
	s.chargePower.Set(float64(ev.ChargePowerW))
	s.phase.Reset()
	s.phase.WithLabelValues(ev.Phase).Set(1)
	return nil
}

// RecordTelemetry updates the battery gauges.
func (s *PromSink) RecordTelemetry(ev coremetrics.TelemetryEvent) error {
	s.soc.Set(ev.SoC)
	s.solarPower.Set(ev.SolarPowerW)
	s.battPower.Set(ev.BatteryPowerW)
	s.meterPower.Set(ev.MeterPowerW)
	s.soh.Set(ev.SoH)
	return nil
}

// RecordAlert counts the alert by kind.
func (s *PromSink) RecordAlert(ev coremetrics.AlertEvent) error {
	s.alerts.WithLabelValues(ev.Kind).Inc()
	return nil
}
