// Package tariff models a configurable time-of-day electricity price
// schedule. A schedule is immutable once built; reconfiguration replaces it
// wholesale.
package tariff

import (
	"errors"
	"sort"
	"time"

	"github.com/Chewie69006/beem-ai/core/logger"
)

// DefaultLabel is applied to any instant not covered by a configured period.
const DefaultLabel = "HP"

// ErrNoPeriods is returned by window lookups when no periods are configured.
// Callers fall back to their own built-in default window.
var ErrNoPeriods = errors.New("tariff: no periods configured")

// Period is one labeled, priced time-of-day interval. End at or before Start
// means the period wraps past midnight.
type Period struct {
	Label string
	Start TimeOfDay
	End   TimeOfDay
	Price float64
}

// CrossesMidnight reports whether the period wraps past midnight.
func (p Period) CrossesMidnight() bool { return p.End <= p.Start }

// Duration returns the period length.
func (p Period) Duration() time.Duration {
	mins := int(p.End) - int(p.Start)
	if mins <= 0 {
		mins += 24 * 60
	}
	return time.Duration(mins) * time.Minute
}

func (p Period) contains(t TimeOfDay) bool {
	if p.CrossesMidnight() {
		return t >= p.Start || t < p.End
	}
	return p.Start <= t && t < p.End
}

// Window is a concrete occurrence of a tariff span on the calendar.
type Window struct {
	Start time.Time
	End   time.Time
	Label string
	Price float64
}

// Schedule answers price and label queries for any instant. Periods are
// scanned in configuration order; on overlap the first match wins.
type Schedule struct {
	defaultPrice float64
	periods      []Period
}

// New builds a schedule from already-validated periods.
func New(defaultPrice float64, periods []Period) *Schedule {
	return &Schedule{defaultPrice: defaultPrice, periods: append([]Period(nil), periods...)}
}

// PeriodDef is a raw period definition as found in configuration.
type PeriodDef struct {
	Label string  `json:"label"`
	Start string  `json:"start"`
	End   string  `json:"end"`
	Price float64 `json:"price"`
}

// NewFromDefs parses raw definitions into a schedule. Malformed definitions
// are skipped with a warning, never aborting construction.
func NewFromDefs(defaultPrice float64, defs []PeriodDef, log logger.Logger) *Schedule {
	periods := make([]Period, 0, len(defs))
	for _, d := range defs {
		start, err := ParseTimeOfDay(d.Start)
		if err != nil {
			log.Warnf("skipping invalid tariff period %+v: %v", d, err)
			continue
		}
		end, err := ParseTimeOfDay(d.End)
		if err != nil {
			log.Warnf("skipping invalid tariff period %+v: %v", d, err)
			continue
		}
		if d.Price < 0 {
			log.Warnf("skipping invalid tariff period %+v: negative price", d)
			continue
		}
		label := d.Label
		if label == "" {
			label = "OFF"
		}
		periods = append(periods, Period{Label: label, Start: start, End: end, Price: d.Price})
	}
	return New(defaultPrice, periods)
}

// DefaultFrenchPrice is the default-label price installed with the built-in
// French 3-tier schedule.
const DefaultFrenchPrice = 0.27

// DefaultFrenchSchedule returns the built-in French 3-tier schedule (HC
// 23:00-02:00, HSC 02:00-06:00, HC 06:00-07:00) used when no periods are
// configured. The default price is raised to at least DefaultFrenchPrice.
func DefaultFrenchSchedule(defaultPrice float64) *Schedule {
	if defaultPrice < DefaultFrenchPrice {
		defaultPrice = DefaultFrenchPrice
	}
	return New(defaultPrice, []Period{
		{Label: "HC", Start: 23 * 60, End: 2 * 60, Price: 0.21},
		{Label: "HSC", Start: 2 * 60, End: 6 * 60, Price: 0.16},
		{Label: "HC", Start: 6 * 60, End: 7 * 60, Price: 0.21},
	})
}

// DefaultPrice returns the price applied outside all configured periods.
func (s *Schedule) DefaultPrice() float64 { return s.defaultPrice }

// Periods returns a copy of the configured periods.
func (s *Schedule) Periods() []Period { return append([]Period(nil), s.periods...) }

// LabelAt returns the tariff label applying at the given instant.
func (s *Schedule) LabelAt(t time.Time) string {
	tod := At(t)
	for _, p := range s.periods {
		if p.contains(tod) {
			return p.Label
		}
	}
	return DefaultLabel
}

// PriceAt returns the price applying at the given instant.
func (s *Schedule) PriceAt(t time.Time) float64 {
	tod := At(t)
	for _, p := range s.periods {
		if p.contains(tod) {
			return p.Price
		}
	}
	return s.defaultPrice
}

// PriceForLabel returns the price of the first period carrying the label, or
// the default price when no period matches.
func (s *Schedule) PriceForLabel(label string) float64 {
	for _, p := range s.periods {
		if p.Label == label {
			return p.Price
		}
	}
	return s.defaultPrice
}

// CheapestPeriod returns the minimum-price period. Ties keep the first
// configured. With no periods the default label and price are returned.
func (s *Schedule) CheapestPeriod() (string, float64) {
	if len(s.periods) == 0 {
		return DefaultLabel, s.defaultPrice
	}
	best := s.periods[0]
	for _, p := range s.periods[1:] {
		if p.Price < best.Price {
			best = p
		}
	}
	return best.Label, best.Price
}

// IsInCheapestPeriod reports whether t falls in a period priced at the
// configured minimum.
func (s *Schedule) IsInCheapestPeriod(t time.Time) bool {
	if len(s.periods) == 0 {
		return false
	}
	_, minPrice := s.CheapestPeriod()
	tod := At(t)
	for _, p := range s.periods {
		if p.Price == minPrice && p.contains(tod) {
			return true
		}
	}
	return false
}

// IsInAnyPeriod reports whether t falls inside any configured period.
func (s *Schedule) IsInAnyPeriod(t time.Time) bool {
	tod := At(t)
	for _, p := range s.periods {
		if p.contains(tod) {
			return true
		}
	}
	return false
}

// occurrence anchors a period onto the calendar day of now, pushing it to the
// next day once its end has passed.
func (p Period) occurrence(now time.Time) Window {
	start := p.Start.OnDay(now)
	end := p.End.OnDay(now)
	if p.CrossesMidnight() {
		end = end.AddDate(0, 0, 1)
	}
	if !now.Before(end) {
		start = start.AddDate(0, 0, 1)
		end = end.AddDate(0, 0, 1)
	}
	return Window{Start: start, End: end, Label: p.Label, Price: p.Price}
}

// NextCheapestWindow returns the earliest future occurrence among all periods
// sharing the minimum price. It returns ErrNoPeriods when the schedule has no
// periods; callers must substitute their default window rather than fail.
func (s *Schedule) NextCheapestWindow(now time.Time) (Window, error) {
	if len(s.periods) == 0 {
		return Window{}, ErrNoPeriods
	}
	_, minPrice := s.CheapestPeriod()
	var best Window
	found := false
	for _, p := range s.periods {
		if p.Price != minPrice {
			continue
		}
		occ := p.occurrence(now)
		if !found || occ.Start.Before(best.Start) {
			best = occ
			found = true
		}
	}
	if !found {
		return Window{}, ErrNoPeriods
	}
	return best, nil
}

// NextOffpeakWindow returns the contiguous span formed by chaining periods
// whose end equals the next period's start, beginning at the first period (in
// start-time order) that has not yet ended. This models a multi-label night
// block as one schedulable span.
func (s *Schedule) NextOffpeakWindow(now time.Time) (Window, error) {
	if len(s.periods) == 0 {
		return Window{}, ErrNoPeriods
	}
	sorted := append([]Period(nil), s.periods...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for _, p := range sorted {
		start := p.Start.OnDay(now)
		end := p.End.OnDay(now)
		if p.CrossesMidnight() {
			end = end.AddDate(0, 0, 1)
		}
		if !now.Before(end) {
			continue
		}
		return s.chainBlock(p, start, end, sorted), nil
	}

	// Everything today has passed: the block restarts tomorrow.
	first := sorted[0]
	tomorrow := now.AddDate(0, 0, 1)
	start := first.Start.OnDay(tomorrow)
	end := first.End.OnDay(tomorrow)
	if first.CrossesMidnight() {
		end = end.AddDate(0, 0, 1)
	}
	return s.chainBlock(first, start, end, sorted), nil
}

// chainBlock extends a window across consecutive periods. Each chained period
// must start exactly where the block currently ends.
func (s *Schedule) chainBlock(head Period, start, end time.Time, sorted []Period) Window {
	blockEnd := end
	endTod := head.End
	// A full wrap around the clock would revisit the head period.
	for i := 0; i < len(sorted); i++ {
		extended := false
		for _, other := range sorted {
			if other == head || other.Start != endTod {
				continue
			}
			blockEnd = blockEnd.Add(other.Duration())
			endTod = other.End
			extended = true
			break
		}
		if !extended || endTod == head.Start {
			break
		}
	}
	return Window{Start: start, End: blockEnd, Label: head.Label, Price: head.Price}
}

// transitionTimes returns every period boundary, sorted and deduplicated.
func (s *Schedule) transitionTimes() []TimeOfDay {
	seen := map[TimeOfDay]bool{}
	var out []TimeOfDay
	for _, p := range s.periods {
		for _, t := range [2]TimeOfDay{p.Start, p.End} {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// nextTransition returns the next tariff boundary strictly after t. With no
// periods the whole day is one span ending at midnight.
func (s *Schedule) nextTransition(t time.Time) time.Time {
	transitions := s.transitionTimes()
	if len(transitions) == 0 {
		return TimeOfDay(0).OnDay(t.AddDate(0, 0, 1))
	}
	tod := At(t)
	for _, tr := range transitions {
		if tod < tr {
			return tr.OnDay(t)
		}
	}
	return transitions[0].OnDay(t.AddDate(0, 0, 1))
}

// WindowsForRange covers [start, end) with contiguous windows in lookup
// order, by repeatedly advancing to the next tariff boundary. Used for
// day-ahead visualization, not decision-making.
func (s *Schedule) WindowsForRange(start, end time.Time) []Window {
	if !start.Before(end) {
		return nil
	}
	var windows []Window
	cursor := start
	for cursor.Before(end) {
		next := s.nextTransition(cursor)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{
			Start: cursor,
			End:   next,
			Label: s.LabelAt(cursor),
			Price: s.PriceAt(cursor),
		})
		cursor = next
	}
	return windows
}

// SavingsVsDefault returns the EUR saved by consuming kWh at the given label
// instead of the default price.
func (s *Schedule) SavingsVsDefault(kwh float64, label string) float64 {
	return kwh*s.defaultPrice - kwh*s.PriceForLabel(label)
}

// HoursUntilDefault returns the hours remaining until the next span priced at
// the default rate, 0 when already in one. The search is capped at 48 hours.
func (s *Schedule) HoursUntilDefault(now time.Time) float64 {
	if !s.IsInAnyPeriod(now) {
		return 0
	}
	cursor := now
	limit := now.Add(48 * time.Hour)
	for cursor.Before(limit) {
		next := s.nextTransition(cursor)
		if !s.IsInAnyPeriod(next) {
			return next.Sub(now).Hours()
		}
		cursor = next
	}
	return 0
}
