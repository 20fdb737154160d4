package logging

import (
	"context"
	"time"
)

// DefaultMaxRecords bounds the decision history kept on disk.
const DefaultMaxRecords = 90

// Record captures one planning decision and the inputs that produced it.
type Record struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	TargetSoC    float64        `json:"target_soc"`
	ChargePowerW int            `json:"charge_power_w"`
	Phase        string         `json:"phase"`
	Reasoning    string         `json:"reasoning"`
	Context      map[string]any `json:"context,omitempty"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start time.Time
	End   time.Time
	Limit int
}

// DecisionStore persists planning decisions and supports querying.
type DecisionStore interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
