// Package beem implements the vendor REST client: authentication, the MQTT
// token exchange and the battery control-parameter endpoint.
package beem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Chewie69006/beem-ai/core/engine"
	"github.com/Chewie69006/beem-ai/core/logger"
	"github.com/Chewie69006/beem-ai/core/state"
)

const (
	// DefaultAPIBase is the vendor's application API root.
	DefaultAPIBase = "https://api-x.beem.energy/beemapp"

	// tokenTTL is how long an access token is trusted before
	// re-authenticating. The JWT itself lives slightly longer.
	tokenTTL = 50 * time.Minute

	requestTimeout = 30 * time.Second

	// Self-imposed rate limit on vendor calls.
	rateLimitMaxCalls = 10
	rateLimitWindow   = time.Hour

	// cooldown after a 429 response
	rateLimitCooldown = 20 * time.Minute
)

// ErrRateLimited is returned when the self-imposed rate limit or a 429
// cooldown blocks a call.
var ErrRateLimited = fmt.Errorf("beem: rate limited")

// Config holds the vendor account and battery identifiers.
type Config struct {
	APIBase   string `json:"api_base"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	BatteryID string `json:"battery_id"`
}

func (c *Config) SetDefaults() {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Email == "" || c.Password == "" {
		return fmt.Errorf("email and password are required")
	}
	if c.BatteryID == "" {
		return fmt.Errorf("battery_id is required")
	}
	return nil
}

// Client talks to the vendor API. It implements engine.ControlSink and the
// MQTT token source.
type Client struct {
	cfg   Config
	httpc *http.Client
	store *state.Store
	log   logger.Logger

	mu            sync.Mutex
	accessToken   string
	userID        string
	tokenExpiry   time.Time
	lastControl   *controlBody
	calls         []time.Time
	cooldownUntil time.Time

	now func() time.Time
}

func NewClient(cfg Config, store *state.Store, log logger.Logger) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: requestTimeout},
		store: store,
		log:   log,
		now:   time.Now,
	}, nil
}

// controlBody mirrors the PATCH control-parameters payload.
type controlBody struct {
	Mode                   string `json:"mode"`
	AllowChargeFromGrid    bool   `json:"allowChargeFromGrid"`
	PreventDischarge       bool   `json:"preventDischarge"`
	ChargeFromGridMaxPower int    `json:"chargeFromGridMaxPower"`
	MinSoc                 int    `json:"minSoc"`
	MaxSoc                 int    `json:"maxSoc"`
}

// Login authenticates and caches the access token.
func (c *Client) Login(ctx context.Context) error {
	payload := map[string]string{"email": c.cfg.Email, "password": c.cfg.Password}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/user/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.store.SetRESTAvailable(false)
		return fmt.Errorf("login request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.store.SetRESTAvailable(false)
		return fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var data struct {
		AccessToken string      `json:"accessToken"`
		UserID      json.Number `json:"userId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if data.AccessToken == "" || data.UserID.String() == "" {
		c.store.SetRESTAvailable(false)
		return fmt.Errorf("login response missing accessToken or userId")
	}

	c.mu.Lock()
	c.accessToken = data.AccessToken
	c.userID = data.UserID.String()
	c.tokenExpiry = c.now().Add(tokenTTL)
	c.mu.Unlock()
	c.store.SetRESTAvailable(true)
	c.log.Infof("logged in (userId=%s)", data.UserID.String())
	return nil
}

// UserID returns the authenticated user id, empty before the first login.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// MQTTToken obtains a JWT for the streaming broker. The client id must match
// the one used on the MQTT connection.
func (c *Client) MQTTToken(ctx context.Context, clientID string) (string, error) {
	body := map[string]string{"clientId": clientID, "clientType": "user"}
	resp, err := c.request(ctx, http.MethodPost, "/devices/mqtt/token", body)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	var data struct {
		JWT string `json:"jwt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode mqtt token response: %w", err)
	}
	if data.JWT == "" {
		return "", fmt.Errorf("mqtt token response missing jwt field")
	}
	return data.JWT, nil
}

// SetControl sends the control parameters, skipping the call when nothing
// changed since the last successful send.
func (c *Client) SetControl(ctx context.Context, cmd engine.ControlCommand) error {
	body := controlBody{
		Mode:                   cmd.Mode,
		AllowChargeFromGrid:    cmd.AllowGridCharge,
		PreventDischarge:       cmd.PreventDischarge,
		ChargeFromGridMaxPower: cmd.ChargePowerW,
		MinSoc:                 cmd.MinSoC,
		MaxSoc:                 cmd.MaxSoC,
	}
	c.mu.Lock()
	unchanged := c.lastControl != nil && *c.lastControl == body
	c.mu.Unlock()
	if unchanged {
		c.log.Debugf("control params unchanged, skipping PATCH")
		return nil
	}

	path := fmt.Sprintf("/batteries/%s/control-parameters", c.cfg.BatteryID)
	resp, err := c.request(ctx, http.MethodPatch, path, body)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	c.mu.Lock()
	c.lastControl = &body
	c.mu.Unlock()
	c.log.Infof("control parameters updated: mode=%s charge=%t power=%dW", body.Mode, body.AllowChargeFromGrid, body.ChargeFromGridMaxPower)
	return nil
}

// SetAutoMode hands the battery back to the vendor's automatic strategy.
func (c *Client) SetAutoMode(ctx context.Context) error {
	return c.SetControl(ctx, engine.ControlCommand{
		Mode:   "auto",
		MinSoC: 10,
		MaxSoC: 100,
	})
}

// request executes one authenticated call, re-authenticating once on 401.
func (c *Client) request(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	if !c.allowCall() {
		return nil, ErrRateLimited
	}
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		c.log.Warnf("token rejected, re-authenticating")
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		resp, err = c.do(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		_ = resp.Body.Close()
		c.mu.Lock()
		c.cooldownUntil = c.now().Add(rateLimitCooldown)
		c.mu.Unlock()
		c.log.Warnf("429 from vendor, entering %s cooldown", rateLimitCooldown)
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, body)
	}
	c.store.SetRESTAvailable(true)
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBase+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.store.SetRESTAvailable(false)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.recordCall()
	return resp, nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	valid := c.accessToken != "" && c.now().Before(c.tokenExpiry)
	c.mu.Unlock()
	if valid {
		return nil
	}
	return c.Login(ctx)
}

// allowCall enforces the self-imposed call budget and the 429 cooldown.
func (c *Client) allowCall() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Before(c.cooldownUntil) {
		return false
	}
	cutoff := now.Add(-rateLimitWindow)
	kept := c.calls[:0]
	for _, t := range c.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.calls = kept
	return len(c.calls) < rateLimitMaxCalls
}

func (c *Client) recordCall() {
	c.mu.Lock()
	c.calls = append(c.calls, c.now())
	c.mu.Unlock()
}
