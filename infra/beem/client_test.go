package beem

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Chewie69006/beem-ai/core/engine"
	"github.com/Chewie69006/beem-ai/core/state"
	"github.com/Chewie69006/beem-ai/infra/logger"
)

type apiServer struct {
	mu         sync.Mutex
	logins     int
	patches    []map[string]any
	rejectAuth bool
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.logins++
		s.rejectAuth = false
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"accessToken": "tok", "userId": 42})
	})
	mux.HandleFunc("/devices/mqtt/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"jwt": "mqtt-jwt"})
	})
	mux.HandleFunc("/batteries/bat1/control-parameters", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		reject := s.rejectAuth
		s.mu.Unlock()
		if reject {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.patches = append(s.patches, body)
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *apiServer) patchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

func newTestClient(t *testing.T) (*Client, *apiServer, *state.Store) {
	t.Helper()
	srv := &apiServer{}
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	store := state.NewStore()
	cfg := Config{APIBase: ts.URL, Email: "user@example.com", Password: "secret", BatteryID: "bat1"}
	cli, err := NewClient(cfg, store, logger.NopLogger{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return cli, srv, store
}

func TestLoginStoresTokenAndUserID(t *testing.T) {
	cli, srv, store := newTestClient(t)
	if err := cli.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if cli.UserID() != "42" {
		t.Fatalf("user id = %q, want 42", cli.UserID())
	}
	if srv.logins != 1 {
		t.Fatalf("logins = %d, want 1", srv.logins)
	}
	if !store.RESTAvailable() {
		t.Fatalf("rest must be marked available after login")
	}
}

func TestMQTTToken(t *testing.T) {
	cli, _, _ := newTestClient(t)
	token, err := cli.MQTTToken(context.Background(), "beemapp-42-1")
	if err != nil {
		t.Fatalf("MQTTToken: %v", err)
	}
	if token != "mqtt-jwt" {
		t.Fatalf("token = %q", token)
	}
}

func TestSetControlSendsAndDeduplicates(t *testing.T) {
	cli, srv, _ := newTestClient(t)
	cmd := engine.ControlCommand{
		Mode:            "advanced",
		AllowGridCharge: true,
		ChargePowerW:    2500,
		MinSoC:          20,
		MaxSoC:          100,
	}
	if err := cli.SetControl(context.Background(), cmd); err != nil {
		t.Fatalf("SetControl: %v", err)
	}
	if err := cli.SetControl(context.Background(), cmd); err != nil {
		t.Fatalf("SetControl repeat: %v", err)
	}
	if srv.patchCount() != 1 {
		t.Fatalf("expected 1 PATCH (dedup), got %d", srv.patchCount())
	}

	body := srv.patches[0]
	if body["mode"] != "advanced" || body["allowChargeFromGrid"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["chargeFromGridMaxPower"] != float64(2500) {
		t.Fatalf("unexpected power: %v", body["chargeFromGridMaxPower"])
	}

	cmd.ChargePowerW = 1000
	if err := cli.SetControl(context.Background(), cmd); err != nil {
		t.Fatalf("SetControl changed: %v", err)
	}
	if srv.patchCount() != 2 {
		t.Fatalf("expected 2 PATCHes after a change, got %d", srv.patchCount())
	}
}

func TestSetControlReauthenticatesOn401(t *testing.T) {
	cli, srv, _ := newTestClient(t)
	if err := cli.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	srv.mu.Lock()
	srv.rejectAuth = true
	srv.mu.Unlock()

	err := cli.SetControl(context.Background(), engine.ControlCommand{Mode: "advanced", MinSoC: 20, MaxSoC: 100})
	if err != nil {
		t.Fatalf("SetControl: %v", err)
	}
	if srv.logins != 2 {
		t.Fatalf("expected a re-login, got %d logins", srv.logins)
	}
	if srv.patchCount() != 1 {
		t.Fatalf("expected the retried PATCH to land, got %d", srv.patchCount())
	}
}

func TestSetAutoModeUsesAutoMode(t *testing.T) {
	cli, srv, _ := newTestClient(t)
	if err := cli.SetAutoMode(context.Background()); err != nil {
		t.Fatalf("SetAutoMode: %v", err)
	}
	if srv.patchCount() != 1 {
		t.Fatalf("expected 1 PATCH, got %d", srv.patchCount())
	}
	if srv.patches[0]["mode"] != "auto" {
		t.Fatalf("mode = %v, want auto", srv.patches[0]["mode"])
	}
}

func TestRateLimitBlocksCalls(t *testing.T) {
	cli, _, _ := newTestClient(t)
	now := time.Now()
	cli.now = func() time.Time { return now }
	for i := 0; i < rateLimitMaxCalls; i++ {
		cli.recordCall()
	}
	err := cli.SetControl(context.Background(), engine.ControlCommand{Mode: "advanced"})
	if err != ErrRateLimited {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// The window slides: calls expire and the budget frees up.
	now = now.Add(rateLimitWindow + time.Minute)
	if !cli.allowCall() {
		t.Fatalf("expected the budget to free up after the window")
	}
}

func TestTokenExpiryTriggersRelogin(t *testing.T) {
	cli, srv, _ := newTestClient(t)
	now := time.Now()
	cli.now = func() time.Time { return now }
	if err := cli.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	now = now.Add(tokenTTL + time.Minute)
	if _, err := cli.MQTTToken(context.Background(), "cid"); err != nil {
		t.Fatalf("MQTTToken: %v", err)
	}
	if srv.logins != 2 {
		t.Fatalf("expected a proactive re-login, got %d logins", srv.logins)
	}
}
