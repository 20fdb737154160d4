package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Chewie69006/beem-ai/core/model"
)

const forecastFile = "forecast_state.json"

// SaveForecast serializes the forecast snapshot to dataDir/forecast_state.json
// so a restart does not lose the last fetched forecast.
func (s *Store) SaveForecast(dataDir string) error {
	snap := s.Forecast()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal forecast: %w", err)
	}
	path := filepath.Join(dataDir, forecastFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write forecast state: %w", err)
	}
	return nil
}

// LoadForecast restores the forecast snapshot from dataDir. It reports whether
// a snapshot was loaded; a missing file is not an error.
func (s *Store) LoadForecast(dataDir string) (bool, error) {
	path := filepath.Join(dataDir, forecastFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read forecast state: %w", err)
	}
	var snap model.ForecastSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, fmt.Errorf("decode forecast state: %w", err)
	}
	s.mu.Lock()
	s.forecast = snap
	s.mu.Unlock()
	return true, nil
}
