package metrics

import "github.com/Chewie69006/beem-ai/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is the listen address of the /metrics endpoint, empty
	// to disable the server.
	PrometheusAddr string `json:"prometheus_addr"`
}
