package logging

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStoreAppendAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.db")
	store, err := NewSQLiteStore(path, 10)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	base := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := Record{
			ID:           fmt.Sprintf("rec-%d", i),
			Timestamp:    base.Add(time.Duration(i) * time.Hour),
			TargetSoC:    float64(60 + i),
			ChargePowerW: 1000,
			Phase:        "evening_hold",
			Reasoning:    "test",
			Context:      map[string]any{"band": "moderate_sun"},
		}
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	recs, err := store.Query(context.Background(), Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].ID != "rec-0" || recs[2].ID != "rec-2" {
		t.Fatalf("records out of order: %v", recs)
	}
	if recs[1].Context["band"] != "moderate_sun" {
		t.Fatalf("context not round-tripped: %v", recs[1].Context)
	}

	recs, err = store.Query(context.Background(), Query{Start: base.Add(90 * time.Minute)})
	if err != nil {
		t.Fatalf("query start: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "rec-2" {
		t.Fatalf("start filter failed: %v", recs)
	}
}

func TestSQLiteStorePrunesOldRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.db")
	store, err := NewSQLiteStore(path, 5)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		rec := Record{
			ID:        fmt.Sprintf("rec-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	recs, err := store.Query(context.Background(), Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("expected 5 retained records, got %d", len(recs))
	}
	if recs[0].ID != "rec-3" || recs[4].ID != "rec-7" {
		t.Fatalf("wrong records retained: %v", recs)
	}
}
