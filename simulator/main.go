// Command simulator publishes synthetic battery telemetry to an MQTT broker,
// mimicking the vendor streaming topic for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Broker      string
	Serial      string
	Interval    time.Duration
	CapacityKWh float64
	StartSoC    float64
	MaxPowerW   float64
	SolarPeakW  float64
	BaseLoadW   float64
	Verbose     bool
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.Serial, "serial", "SIM001", "battery serial number")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "telemetry publish interval")
	flag.Float64Var(&cfg.CapacityKWh, "capacity", 13.4, "battery capacity kWh")
	flag.Float64Var(&cfg.StartSoC, "soc", 50, "initial state of charge percent")
	flag.Float64Var(&cfg.MaxPowerW, "max-power", 5000, "battery power limit W")
	flag.Float64Var(&cfg.SolarPeakW, "solar-peak", 3000, "midday solar production W")
	flag.Float64Var(&cfg.BaseLoadW, "base-load", 400, "household base load W")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "log each published sample")
	flag.Parse()
	return cfg
}

// solarAt approximates production with a half sine between 07:00 and 19:00.
func solarAt(t time.Time, peakW float64) float64 {
	h := float64(t.Hour()) + float64(t.Minute())/60
	if h < 7 || h > 19 {
		return 0
	}
	return peakW * math.Sin((h-7)/12*math.Pi)
}

// loadAt adds a morning and an evening bump over the base load.
func loadAt(t time.Time, baseW float64) float64 {
	h := t.Hour()
	load := baseW
	if h >= 7 && h < 9 {
		load += 800
	}
	if h >= 18 && h < 22 {
		load += 1200
	}
	return load + rand.Float64()*200
}

func main() {
	cfg := parseFlags()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(fmt.Sprintf("battery-sim-%s", strings.ToLower(cfg.Serial))).
		SetAutoReconnect(true)
	cli := paho.NewClient(opts)
	if tok := cli.Connect(); tok.Wait() && tok.Error() != nil {
		log.Fatalf("connect %s: %v", cfg.Broker, tok.Error())
	}
	defer cli.Disconnect(250)

	topic := fmt.Sprintf("battery/%s/sys/streaming", strings.ToUpper(cfg.Serial))
	bat := &Battery{
		CapacityKWh: cfg.CapacityKWh,
		Soc:         cfg.StartSoC / 100,
		MaxPowerW:   cfg.MaxPowerW,
	}

	tick := time.NewTicker(cfg.Interval)
	defer tick.Stop()
	log.Printf("publishing to %s every %s", topic, cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			solar := solarAt(now, cfg.SolarPeakW)
			load := loadAt(now, cfg.BaseLoadW)
			battery := bat.Step(solar-load, cfg.Interval)
			meter := load - solar + battery

			payload, _ := json.Marshal(map[string]any{
				"soc":              bat.SoCPercent(),
				"solarPower":       solar,
				"batteryPower":     battery,
				"meterPower":       meter,
				"workingModeLabel": "auto",
				"globalSoh":        98.0,
				"capacityInKwh":    cfg.CapacityKWh,
			})
			if tok := cli.Publish(topic, 1, false, payload); tok.Wait() && tok.Error() != nil {
				log.Printf("publish: %v", tok.Error())
			}
			if cfg.Verbose {
				log.Printf("soc=%.1f%% solar=%.0fW load=%.0fW battery=%.0fW meter=%.0fW",
					bat.SoCPercent(), solar, load, battery, meter)
			}
		}
	}
}
