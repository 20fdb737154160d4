package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Chewie69006/beem-ai/api/status"
	"github.com/Chewie69006/beem-ai/config"
	"github.com/Chewie69006/beem-ai/core/consumption"
	"github.com/Chewie69006/beem-ai/core/engine"
	englog "github.com/Chewie69006/beem-ai/core/engine/logging"
	"github.com/Chewie69006/beem-ai/core/events"
	"github.com/Chewie69006/beem-ai/core/heater"
	coremetrics "github.com/Chewie69006/beem-ai/core/metrics"
	"github.com/Chewie69006/beem-ai/core/model"
	coremon "github.com/Chewie69006/beem-ai/core/monitoring"
	"github.com/Chewie69006/beem-ai/core/safety"
	"github.com/Chewie69006/beem-ai/core/state"
	"github.com/Chewie69006/beem-ai/core/tariff"
	"github.com/Chewie69006/beem-ai/infra/beem"
	"github.com/Chewie69006/beem-ai/infra/logger"
	"github.com/Chewie69006/beem-ai/infra/metrics"
	"github.com/Chewie69006/beem-ai/infra/monitoring"
	"github.com/Chewie69006/beem-ai/infra/mqtt"
	"github.com/Chewie69006/beem-ai/internal/eventbus"
)

const (
	analyzerSaveInterval = 15 * time.Minute
	heaterInterval       = 5 * time.Minute
)

// Service assembles the telemetry ingestion, the planner and the exporters.
type Service struct {
	Engine *engine.Engine
	Store  *state.Store
	// ConfigPath, when set, enables tariff reloading on SIGHUP.
	ConfigPath string

	api       *beem.Client
	control   engine.ControlSink
	heater    *heater.Controller
	plug      *mqtt.PlugClient
	tariffs   *tariff.Holder
	telemetry *mqtt.TelemetryClient
	analyzer  *consumption.Analyzer
	decisions englog.DecisionStore
	sink      coremetrics.MetricsSink
	bus       eventbus.EventBus
	log       logger.Logger
	cfg       *config.Config
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logg := logger.New("service")
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	bus := eventbus.New()
	store := state.NewStore()
	if ok, err := store.LoadForecast(cfg.DataDir); err != nil {
		logg.Warnf("forecast state not restored: %v", err)
	} else if ok {
		logg.Infof("forecast state restored from %s", cfg.DataDir)
	}

	tariffs := tariff.NewHolder(cfg.Tariff.Build(logger.New("tariff")))
	policy := safety.NewPolicy(store, bus, logger.New("safety"), cfg.Safety.ToPolicy())

	api, err := beem.NewClient(cfg.Beem, store, logger.New("beem"))
	if err != nil {
		return nil, fmt.Errorf("beem client: %w", err)
	}
	var control engine.ControlSink = api
	if cfg.DryRun {
		logg.Warnf("dry run: battery commands are logged, not sent")
		control = engine.NewDryRunSink(logger.New("dryrun"))
	}

	telemetry, err := mqtt.NewTelemetryClient(cfg.MQTT, api, store, bus, control, logger.New("mqtt"))
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	analyzer := consumption.NewAnalyzer()
	if ok, err := analyzer.Load(cfg.DataDir); err != nil {
		logg.Warnf("consumption history not restored: %v", err)
	} else if ok {
		logg.Infof("consumption history restored from %s", cfg.DataDir)
	}

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	decisionPath := cfg.Logging.DecisionPath
	if !filepath.IsAbs(decisionPath) {
		decisionPath = filepath.Join(cfg.DataDir, decisionPath)
	}
	var decisions englog.DecisionStore
	switch cfg.Logging.Backend {
	case "sqlite":
		decisions, err = englog.NewSQLiteStore(decisionPath, cfg.Logging.MaxRecords)
	default:
		decisions, err = englog.NewJSONLStore(decisionPath, cfg.Logging.MaxRecords)
	}
	if err != nil {
		return nil, fmt.Errorf("decision log: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	eng := engine.NewEngine(store, tariffs, policy, control, bus, logger.New("engine"), decisions, analyzer, cfg.Engine.ToEngine())

	var waterHeater *heater.Controller
	var plug *mqtt.PlugClient
	if cfg.WaterHeater.Enabled {
		plug, err = mqtt.NewPlugClient(cfg.WaterHeater.ToPlug(), logger.New("plug"))
		if err != nil {
			return nil, fmt.Errorf("water heater plug: %w", err)
		}
		waterHeater = heater.NewController(store, tariffs, bus, plug, logger.New("heater"), cfg.WaterHeater.ToController(cfg.DryRun))
	}

	return &Service{
		Engine:    eng,
		Store:     store,
		api:       api,
		control:   control,
		heater:    waterHeater,
		plug:      plug,
		tariffs:   tariffs,
		telemetry: telemetry,
		analyzer:  analyzer,
		decisions: decisions,
		sink:      sink,
		bus:       bus,
		log:       logg,
		cfg:       cfg,
	}, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	loginCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err := s.api.Login(loginCtx)
	cancel()
	if err != nil {
		// The MQTT layer fetches tokens lazily on every connect attempt,
		// so ingestion recovers once the API comes back.
		s.log.Errorf("initial login failed: %v", err)
	}

	if err := s.telemetry.Connect(); err != nil {
		s.log.Errorf("mqtt connect: %v", err)
	}

	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if addr := s.cfg.API.Addr; addr != "" {
		go func() {
			if err := status.Serve(ctx, addr, s.cfg.API.Token, s.Store, s.bus, s.control, s.decisions); err != nil {
				s.log.Errorf("status api: %v", err)
			}
		}()
	}

	if s.heater != nil {
		if err := s.plug.Connect(); err != nil {
			s.log.Errorf("water heater plug connect: %v", err)
		}
		go s.runWaterHeater(ctx)
	}

	go s.feedAnalyzer(ctx)
	if s.ConfigPath != "" {
		go s.watchReload(ctx)
	}

	err = s.Engine.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		coremon.CaptureException(err, map[string]string{"component": "engine"})
	}

	// Hand the battery back to its automatic mode before going away.
	autoCtx, autoCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if autoErr := s.control.SetAutoMode(autoCtx); autoErr != nil {
		s.log.Errorf("auto mode on shutdown failed: %v", autoErr)
	}
	autoCancel()

	s.telemetry.Disconnect()
	if s.plug != nil {
		s.plug.Disconnect()
	}
	if saveErr := s.analyzer.Save(s.cfg.DataDir); saveErr != nil {
		s.log.Warnf("consumption history not saved: %v", saveErr)
	}
	if closeErr := s.decisions.Close(); closeErr != nil {
		s.log.Warnf("decision log close: %v", closeErr)
	}
	s.bus.Close()
	coremon.Flush(2 * time.Second)
	return err
}

// PlanOnce runs a single planning pass against live telemetry and returns
// the installed plan. Intended for the plan subcommand; the service is torn
// down before returning.
func (s *Service) PlanOnce(ctx context.Context) (model.Plan, error) {
	defer func() {
		s.telemetry.Disconnect()
		_ = s.decisions.Close()
		s.bus.Close()
	}()

	loginCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err := s.api.Login(loginCtx)
	cancel()
	if err != nil {
		return model.Plan{}, fmt.Errorf("login: %w", err)
	}
	if err := s.telemetry.Connect(); err != nil {
		return model.Plan{}, fmt.Errorf("mqtt connect: %w", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for s.Store.Battery().LastUpdated.IsZero() {
		if time.Now().After(deadline) {
			return model.Plan{}, errors.New("no telemetry received within 30s")
		}
		select {
		case <-ctx.Done():
			return model.Plan{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	if err := s.Engine.RunPlanningPass(ctx); err != nil {
		return model.Plan{}, fmt.Errorf("planning pass: %w", err)
	}
	s.Engine.Timers().CancelAll()
	return s.Store.Plan(), nil
}

// runWaterHeater evaluates the heater decision tree every few minutes and
// resets its daily counters after midnight.
func (s *Service) runWaterHeater(ctx context.Context) {
	tick := time.NewTicker(heaterInterval)
	defer tick.Stop()
	lastDay := time.Now().YearDay()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if day := time.Now().YearDay(); day != lastDay {
				lastDay = day
				s.heater.ResetDaily()
			}
			s.heater.Evaluate(ctx)
		}
	}
}

// watchReload swaps the tariff schedule in place when SIGHUP arrives, so
// contract changes do not require a restart.
func (s *Service) watchReload(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(s.ConfigPath)
			if err != nil {
				s.log.Errorf("tariff reload: %v", err)
				continue
			}
			s.tariffs.Replace(cfg.Tariff.Build(logger.New("tariff")))
			s.bus.Publish(events.TariffChanged{})
			s.bus.Publish(events.ConfigChanged{})
			s.log.Infof("tariff schedule reloaded from %s", s.ConfigPath)
		}
	}
}

// feedAnalyzer learns household consumption from live telemetry and
// checkpoints the history periodically.
func (s *Service) feedAnalyzer(ctx context.Context) {
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)
	save := time.NewTicker(analyzerSaveInterval)
	defer save.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch t := ev.(type) {
			case events.TelemetryUpdated:
				s.analyzer.Record(t.Battery.ConsumptionW())
			case events.ForecastUpdated:
				if err := s.Store.SaveForecast(s.cfg.DataDir); err != nil {
					s.log.Warnf("forecast state not saved: %v", err)
				}
			}
		case <-save.C:
			if err := s.analyzer.Save(s.cfg.DataDir); err != nil {
				s.log.Warnf("consumption history not saved: %v", err)
			}
		}
	}
}
