package config

import (
	"fmt"
	"strings"
)

// APIConfig defines the local status API. An empty address disables it.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as "Bearer <token>" on every request.
	Token string `json:"token"`
}

// Validate checks the listen address shape.
func (c APIConfig) Validate() error {
	if c.Addr == "" {
		return nil
	}
	if !strings.Contains(c.Addr, ":") {
		return fmt.Errorf("addr must be host:port, got %s", c.Addr)
	}
	return nil
}
