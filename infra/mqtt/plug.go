package mqtt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Chewie69006/beem-ai/core/logger"
)

// PlugConfig defines the MQTT smart plug carrying the water heater. The plug
// speaks the common Tasmota-style contract: "ON"/"OFF" on a command topic,
// instantaneous watts on a sensor topic.
type PlugConfig struct {
	Broker       string `json:"broker"`
	CommandTopic string `json:"command_topic"`
	PowerTopic   string `json:"power_topic"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	QoS          byte   `json:"qos"`
}

// Validate checks mandatory fields.
func (c PlugConfig) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.CommandTopic == "" {
		return fmt.Errorf("command_topic is required")
	}
	return nil
}

type pahoPlugClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
}

var newPlugMQTTClient = func(opts *paho.ClientOptions) pahoPlugClient {
	return paho.NewClient(opts)
}

// PlugClient drives a smart plug over a local MQTT broker. It implements
// heater.Plug.
type PlugClient struct {
	cfg PlugConfig
	log logger.Logger

	cli pahoPlugClient

	mu        sync.Mutex
	powerW    float64
	havePower bool
}

func NewPlugClient(cfg PlugConfig, log logger.Logger) (*PlugClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PlugClient{cfg: cfg, log: log}, nil
}

// Connect dials the plug's broker and subscribes to the power sensor topic
// when one is configured.
func (p *PlugClient) Connect() error {
	opts := paho.NewClientOptions().AddBroker(p.cfg.Broker)
	opts.SetClientID(fmt.Sprintf("beem-plug-%d", time.Now().UnixMilli()))
	opts.AutoReconnect = true
	opts.ConnectRetry = true
	opts.ConnectRetryInterval = reconnectMinInterval
	opts.MaxReconnectInterval = reconnectMaxInterval
	opts.SetKeepAlive(60 * time.Second)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.OnConnect = func(c paho.Client) {
		p.log.Infof("plug broker connected")
		if p.cfg.PowerTopic == "" {
			return
		}
		if tok := c.Subscribe(p.cfg.PowerTopic, p.cfg.QoS, p.onPower); tok.Wait() && tok.Error() != nil {
			p.log.Errorf("plug power subscribe failed: %v", tok.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		p.log.Warnf("plug broker connection lost: %v", err)
	}

	cli := newPlugMQTTClient(opts)
	if tok := cli.Connect(); tok.Wait() && tok.Error() != nil {
		return tok.Error()
	}
	p.cli = cli
	return nil
}

// Disconnect tears the broker connection down.
func (p *PlugClient) Disconnect() {
	if p.cli != nil {
		p.cli.Disconnect(250)
	}
}

// TurnOn switches the plug on.
func (p *PlugClient) TurnOn(ctx context.Context) error {
	return p.publishState(ctx, "ON")
}

// TurnOff switches the plug off.
func (p *PlugClient) TurnOff(ctx context.Context) error {
	return p.publishState(ctx, "OFF")
}

func (p *PlugClient) publishState(ctx context.Context, payload string) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return fmt.Errorf("plug broker not connected")
	}
	tok := p.cli.Publish(p.cfg.CommandTopic, p.cfg.QoS, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tok.Done():
		return tok.Error()
	}
}

// PowerW returns the last sensor reading. The second value is false until
// the first reading arrives.
func (p *PlugClient) PowerW() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.powerW, p.havePower
}

func (p *PlugClient) onPower(_ paho.Client, msg paho.Message) {
	w, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload())), 64)
	if err != nil {
		p.log.Warnf("plug: unparseable power payload %q", msg.Payload())
		return
	}
	p.mu.Lock()
	p.powerW = w
	p.havePower = true
	p.mu.Unlock()
}
