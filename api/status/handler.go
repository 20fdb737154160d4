// Package status exposes a small HTTP API over the live system state and
// the decision log, plus the push endpoint external forecast providers use.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Chewie69006/beem-ai/core/engine"
	"github.com/Chewie69006/beem-ai/core/engine/logging"
	"github.com/Chewie69006/beem-ai/core/events"
	"github.com/Chewie69006/beem-ai/core/model"
	"github.com/Chewie69006/beem-ai/core/state"
	"github.com/Chewie69006/beem-ai/internal/eventbus"
)

// NewDecisionsHandler returns an HTTP handler exposing planning decisions via
// GET /api/decisions. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewDecisionsHandler(store logging.DecisionStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q := logging.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				q.Limit = n
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewStateHandler returns an HTTP handler exposing the live snapshot via
// GET /api/state.
func NewStateHandler(store *state.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		snap := store.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewForecastHandler returns an HTTP handler accepting forecast snapshots
// pushed by an external aggregator via PUT /api/forecast. The stored snapshot
// is replaced wholesale and a ForecastUpdated event is published.
func NewForecastHandler(store *state.Store, bus eventbus.EventBus, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var snap model.ForecastSnapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		store.UpdateForecast(func(f *model.ForecastSnapshot) { *f = snap })
		bus.Publish(events.ForecastUpdated{Forecast: store.Forecast()})
		w.WriteHeader(http.StatusNoContent)
	})
}

// NewEnabledHandler returns an HTTP handler toggling optimization via
// PUT /api/enabled. Disabling hands the battery back to its automatic mode
// so it does not stay frozen in the last commanded state.
func NewEnabledHandler(store *state.Store, bus eventbus.EventBus, sink engine.ControlSink, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		store.SetEnabled(req.Enabled)
		if req.Enabled {
			bus.Publish(events.SystemEnabled{})
		} else {
			bus.Publish(events.SystemDisabled{})
			if sink != nil {
				if err := sink.SetAutoMode(r.Context()); err != nil {
					http.Error(w, "auto mode command failed: "+err.Error(), http.StatusBadGateway)
					return
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func authorized(r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+token
}

// Serve runs the API on addr until the context is cancelled.
func Serve(ctx context.Context, addr, token string, store *state.Store, bus eventbus.EventBus, sink engine.ControlSink, decisions logging.DecisionStore) error {
	mux := http.NewServeMux()
	mux.Handle("/api/state", NewStateHandler(store, token))
	mux.Handle("/api/decisions", NewDecisionsHandler(decisions, token))
	mux.Handle("/api/forecast", NewForecastHandler(store, bus, token))
	mux.Handle("/api/enabled", NewEnabledHandler(store, bus, sink, token))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	case err := <-errCh:
		return err
	}
}
