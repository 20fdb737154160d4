// Package consumption learns household consumption patterns per day-of-week
// and hour, feeding the hourly estimates consumed by the planning pass.
package consumption

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultConsumptionW is assumed for a time slot with no samples yet.
	DefaultConsumptionW = 500.0

	// emaAlpha smooths readings into the per-slot moving average.
	emaAlpha = 0.1

	// anomalyStdDevs flags a reading this many standard deviations from the
	// slot mean.
	anomalyStdDevs = 3.0

	// maxSamplesPerSlot bounds the retained history per time slot.
	maxSamplesPerSlot = 64

	historyFile = "consumption_history.json"
)

// Analyzer tracks consumption into 168 buckets (7 days x 24 hours), smoothed
// with an exponential moving average. Raw samples are retained per slot for
// variance-based anomaly detection.
type Analyzer struct {
	mu      sync.Mutex
	ema     [7][24]float64
	samples [7][24][]float64

	now func() time.Time
}

// NewAnalyzer returns an Analyzer with every slot at the default estimate.
func NewAnalyzer() *Analyzer {
	a := &Analyzer{now: time.Now}
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			a.ema[d][h] = DefaultConsumptionW
		}
	}
	return a
}

func weekday(t time.Time) int {
	// time.Weekday starts at Sunday; buckets are Monday-based.
	return (int(t.Weekday()) + 6) % 7
}

// Record folds a consumption reading into the current time slot.
func (a *Analyzer) Record(consumptionW float64) {
	now := a.now()
	d, h := weekday(now), now.Hour()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.ema[d][h] = emaAlpha*consumptionW + (1-emaAlpha)*a.ema[d][h]
	s := append(a.samples[d][h], consumptionW)
	if len(s) > maxSamplesPerSlot {
		s = s[len(s)-maxSamplesPerSlot:]
	}
	a.samples[d][h] = s
}

// HourlyForecast returns the smoothed watts estimate for every hour of the
// given Monday-based day of week.
func (a *Analyzer) HourlyForecast(dayOfWeek int) map[int]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[int]float64, 24)
	for h := 0; h < 24; h++ {
		out[h] = a.ema[dayOfWeek][h]
	}
	return out
}

// TomorrowKWh sums tomorrow's hourly estimates into kWh.
func (a *Analyzer) TomorrowKWh() float64 {
	tomorrow := weekday(a.now().AddDate(0, 0, 1))
	a.mu.Lock()
	defer a.mu.Unlock()
	var totalWh float64
	for h := 0; h < 24; h++ {
		totalWh += a.ema[tomorrow][h]
	}
	return totalWh / 1000.0
}

// TodayRemainingKWh sums today's estimates from the next full hour to
// midnight, in kWh.
func (a *Analyzer) TodayRemainingKWh() float64 {
	now := a.now()
	d := weekday(now)
	a.mu.Lock()
	defer a.mu.Unlock()
	var totalWh float64
	for h := now.Hour() + 1; h < 24; h++ {
		totalWh += a.ema[d][h]
	}
	return totalWh / 1000.0
}

// IsAnomaly reports whether the reading deviates more than three standard
// deviations from the current slot's sample mean. Slots with fewer than two
// samples never flag.
func (a *Analyzer) IsAnomaly(consumptionW float64) bool {
	now := a.now()
	d, h := weekday(now), now.Hour()

	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.samples[d][h]
	if len(s) < 2 {
		return false
	}
	mean, std := stat.MeanStdDev(s, nil)
	if std <= 0 || math.IsNaN(std) {
		return false
	}
	return math.Abs(consumptionW-mean) > anomalyStdDevs*std
}

type persisted struct {
	EMA [7][24]float64 `json:"ema"`
}

// Save persists the learned averages to dataDir/consumption_history.json.
func (a *Analyzer) Save(dataDir string) error {
	a.mu.Lock()
	p := persisted{EMA: a.ema}
	a.mu.Unlock()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal consumption history: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, historyFile), data, 0o644); err != nil {
		return fmt.Errorf("write consumption history: %w", err)
	}
	return nil
}

// Load restores learned averages. A missing file leaves the defaults.
func (a *Analyzer) Load(dataDir string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, historyFile))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read consumption history: %w", err)
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return false, fmt.Errorf("decode consumption history: %w", err)
	}
	a.mu.Lock()
	a.ema = p.EMA
	a.mu.Unlock()
	return true, nil
}
