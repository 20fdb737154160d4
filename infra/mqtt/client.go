// Package mqtt receives live battery telemetry from the Beem streaming
// broker and feeds it into the shared state store.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Chewie69006/beem-ai/core/engine"
	"github.com/Chewie69006/beem-ai/core/events"
	"github.com/Chewie69006/beem-ai/core/logger"
	"github.com/Chewie69006/beem-ai/core/model"
	"github.com/Chewie69006/beem-ai/core/state"
	"github.com/Chewie69006/beem-ai/internal/eventbus"
)

const (
	// DefaultBroker is the vendor's websocket MQTT endpoint.
	DefaultBroker = "wss://mqtt.beem.energy:8084/mqtt"

	// DisconnectSafetyTimeout forces the battery back to auto mode when no
	// telemetry link has been available for this long.
	DisconnectSafetyTimeout = 15 * time.Minute

	reconnectMinInterval = 1 * time.Second
	reconnectMaxInterval = 60 * time.Second
)

// Config defines the connection parameters for the telemetry client.
type Config struct {
	Broker        string `json:"broker"`
	BatterySerial string `json:"battery_serial"`
	QoS           byte   `json:"qos"`
	// DisconnectSafetySec overrides the auto-mode watchdog delay.
	DisconnectSafetySec int `json:"disconnect_safety_sec"`
}

func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = DefaultBroker
	}
	if c.DisconnectSafetySec == 0 {
		c.DisconnectSafetySec = int(DisconnectSafetyTimeout.Seconds())
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BatterySerial == "" {
		return fmt.Errorf("battery_serial is required")
	}
	return nil
}

// TokenSource provides broker credentials. The client id must match between
// the token request and the MQTT connection.
type TokenSource interface {
	UserID() string
	MQTTToken(ctx context.Context, clientID string) (string, error)
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// TelemetryClient subscribes to the battery streaming topic and applies every
// recognised field to the state store as one atomic update.
type TelemetryClient struct {
	cfg    Config
	topic  string
	tokens TokenSource
	store  *state.Store
	bus    eventbus.EventBus
	sink   engine.ControlSink
	log    logger.Logger

	cli pahoClient

	mu       sync.Mutex
	watchdog *time.Timer
}

func NewTelemetryClient(cfg Config, tokens TokenSource, store *state.Store, bus eventbus.EventBus, sink engine.ControlSink, log logger.Logger) (*TelemetryClient, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TelemetryClient{
		cfg:    cfg,
		topic:  fmt.Sprintf("battery/%s/sys/streaming", strings.ToUpper(cfg.BatterySerial)),
		tokens: tokens,
		store:  store,
		bus:    bus,
		sink:   sink,
		log:    log,
	}, nil
}

// Topic returns the streaming topic this client subscribes to.
func (t *TelemetryClient) Topic() string { return t.topic }

// Connect dials the broker and keeps reconnecting with exponential backoff
// until Disconnect is called.
func (t *TelemetryClient) Connect() error {
	clientID := fmt.Sprintf("beemapp-%s-%d", t.tokens.UserID(), time.Now().UnixMilli())

	opts := paho.NewClientOptions().AddBroker(t.cfg.Broker).SetClientID(clientID)
	opts.AutoReconnect = true
	opts.ConnectRetry = true
	opts.ConnectRetryInterval = reconnectMinInterval
	opts.MaxReconnectInterval = reconnectMaxInterval
	opts.SetKeepAlive(60 * time.Second)
	// Tokens expire; fetch a fresh one on every (re)connect attempt.
	opts.SetCredentialsProvider(func() (string, string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		token, err := t.tokens.MQTTToken(ctx, clientID)
		if err != nil {
			t.log.Errorf("mqtt token fetch failed: %v", err)
			return "unused", ""
		}
		return "unused", token
	})
	opts.OnConnect = func(c paho.Client) {
		t.log.Infof("mqtt connected, subscribing to %s", t.topic)
		t.store.SetMQTTConnected(true)
		t.stopWatchdog()
		if tok := c.Subscribe(t.topic, t.cfg.QoS, t.onMessage); tok.Wait() && tok.Error() != nil {
			t.log.Errorf("mqtt subscribe failed: %v", tok.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		t.log.Warnf("mqtt connection lost: %v", err)
		t.store.SetMQTTConnected(false)
		t.startWatchdog()
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		t.log.Warnf("mqtt reconnecting")
	}

	cli := newMQTTClient(opts)
	if tok := cli.Connect(); tok.Wait() && tok.Error() != nil {
		t.startWatchdog()
		return tok.Error()
	}
	t.cli = cli
	return nil
}

// Disconnect tears the connection down and stops the safety watchdog.
func (t *TelemetryClient) Disconnect() {
	t.stopWatchdog()
	if t.cli != nil {
		t.cli.Disconnect(250)
	}
	t.store.SetMQTTConnected(false)
	t.log.Infof("mqtt disconnected")
}

// telemetryPayload mirrors the vendor's streaming JSON. Absent fields leave
// the stored value untouched.
type telemetryPayload struct {
	SoC            *float64 `json:"soc"`
	SolarPower     *float64 `json:"solarPower"`
	BatteryPower   *float64 `json:"batteryPower"`
	MeterPower     *float64 `json:"meterPower"`
	InverterPower  *float64 `json:"inverterPower"`
	WorkingMode    *string  `json:"workingModeLabel"`
	GlobalSoH      *float64 `json:"globalSoh"`
	NumberOfCycles *int     `json:"numberOfCycles"`
	CapacityInKwh  *float64 `json:"capacityInKwh"`
}

func (t *TelemetryClient) onMessage(_ paho.Client, msg paho.Message) {
	t.handlePayload(msg.Payload())
}

func (t *TelemetryClient) handlePayload(data []byte) {
	var p telemetryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		t.log.Warnf("mqtt: invalid JSON payload on %s: %v", t.topic, err)
		return
	}
	if p == (telemetryPayload{}) {
		t.log.Debugf("mqtt: message had no recognised battery fields")
		return
	}
	t.store.UpdateBattery(func(b *model.BatteryState) {
		if p.SoC != nil {
			b.SoC = *p.SoC
		}
		if p.SolarPower != nil {
			b.SolarPowerW = *p.SolarPower
		}
		if p.BatteryPower != nil {
			b.BatteryPowerW = *p.BatteryPower
		}
		if p.MeterPower != nil {
			b.MeterPowerW = *p.MeterPower
		}
		if p.InverterPower != nil {
			b.InverterPowerW = *p.InverterPower
		}
		if p.WorkingMode != nil {
			b.WorkingMode = *p.WorkingMode
		}
		if p.GlobalSoH != nil {
			b.SoH = *p.GlobalSoH
		}
		if p.NumberOfCycles != nil {
			b.CycleCount = *p.NumberOfCycles
		}
		if p.CapacityInKwh != nil {
			b.CapacityKWh = *p.CapacityInKwh
		}
	})
	t.bus.Publish(events.TelemetryUpdated{Battery: t.store.Battery()})
}

func (t *TelemetryClient) startWatchdog() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watchdog != nil {
		t.watchdog.Stop()
	}
	delay := time.Duration(t.cfg.DisconnectSafetySec) * time.Second
	t.watchdog = time.AfterFunc(delay, t.watchdogFired)
	t.log.Debugf("mqtt: disconnect watchdog armed for %s", delay)
}

func (t *TelemetryClient) stopWatchdog() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watchdog != nil {
		t.watchdog.Stop()
		t.watchdog = nil
	}
}

// watchdogFired hands the battery back to its automatic mode after a long
// disconnect: without telemetry no plan can be trusted.
func (t *TelemetryClient) watchdogFired() {
	if t.store.MQTTConnected() {
		return
	}
	t.log.Warnf("mqtt: disconnected beyond the safety timeout, forcing auto mode")
	t.bus.Publish(events.SafetyAlert{
		Kind:   "mqtt_disconnect_timeout",
		Detail: "telemetry link down, battery returned to auto mode",
		Time:   time.Now(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := t.sink.SetAutoMode(ctx); err != nil {
		t.log.Errorf("mqtt: auto mode command failed: %v", err)
	}
}
