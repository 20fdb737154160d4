package tariff

import (
	"testing"
	"time"

	"github.com/Chewie69006/beem-ai/infra/logger"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tod
}

func threeTier() *Schedule {
	return New(0.1841, []Period{
		{Label: "HC", Start: 23 * 60, End: 2 * 60, Price: 0.21},
		{Label: "HSC", Start: 2 * 60, End: 6 * 60, Price: 0.16},
		{Label: "HC", Start: 6 * 60, End: 7 * 60, Price: 0.21},
	})
}

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 15, hour, min, 0, 0, time.UTC)
}

func TestLabelAtThreeTier(t *testing.T) {
	s := threeTier()
	cases := []struct {
		hour, min int
		want      string
	}{
		{1, 30, "HC"},
		{2, 0, "HSC"},
		{5, 59, "HSC"},
		{6, 0, "HC"},
		{6, 59, "HC"},
		{7, 0, "HP"},
		{22, 59, "HP"},
		{23, 0, "HC"},
		{0, 0, "HC"},
	}
	for _, c := range cases {
		if got := s.LabelAt(at(c.hour, c.min)); got != c.want {
			t.Errorf("LabelAt(%02d:%02d) = %s, want %s", c.hour, c.min, got, c.want)
		}
	}
}

func TestPriceAt(t *testing.T) {
	s := threeTier()
	if got := s.PriceAt(at(3, 0)); got != 0.16 {
		t.Fatalf("PriceAt(03:00) = %v, want 0.16", got)
	}
	if got := s.PriceAt(at(12, 0)); got != 0.1841 {
		t.Fatalf("PriceAt(12:00) = %v, want default", got)
	}
}

func TestCheapestPeriod(t *testing.T) {
	s := threeTier()
	label, price := s.CheapestPeriod()
	if label != "HSC" || price != 0.16 {
		t.Fatalf("CheapestPeriod() = (%s, %v), want (HSC, 0.16)", label, price)
	}
}

func TestCheapestPeriodTieKeepsFirst(t *testing.T) {
	s := New(0.30, []Period{
		{Label: "A", Start: 1 * 60, End: 2 * 60, Price: 0.10},
		{Label: "B", Start: 3 * 60, End: 4 * 60, Price: 0.10},
	})
	label, _ := s.CheapestPeriod()
	if label != "A" {
		t.Fatalf("tie should keep first period, got %s", label)
	}
}

func TestEmptySchedule(t *testing.T) {
	s := New(0.27, nil)
	if got := s.LabelAt(at(12, 0)); got != DefaultLabel {
		t.Fatalf("LabelAt = %s, want %s", got, DefaultLabel)
	}
	label, price := s.CheapestPeriod()
	if label != DefaultLabel || price != 0.27 {
		t.Fatalf("CheapestPeriod() = (%s, %v)", label, price)
	}
	if _, err := s.NextCheapestWindow(at(12, 0)); err != ErrNoPeriods {
		t.Fatalf("expected ErrNoPeriods, got %v", err)
	}
	if _, err := s.NextOffpeakWindow(at(12, 0)); err != ErrNoPeriods {
		t.Fatalf("expected ErrNoPeriods, got %v", err)
	}
	if s.IsInCheapestPeriod(at(12, 0)) || s.IsInAnyPeriod(at(12, 0)) {
		t.Fatal("empty schedule should contain nothing")
	}
}

func TestMidnightCrossingMembership(t *testing.T) {
	p := Period{Label: "HC", Start: 23 * 60, End: 2 * 60, Price: 0.21}
	if !p.CrossesMidnight() {
		t.Fatal("23:00-02:00 should cross midnight")
	}
	s := New(0.27, []Period{p})
	for _, c := range []struct {
		hour int
		want bool
	}{{23, true}, {0, true}, {1, true}, {2, false}, {12, false}} {
		if got := s.IsInAnyPeriod(at(c.hour, 0)); got != c.want {
			t.Errorf("IsInAnyPeriod(%02d:00) = %v, want %v", c.hour, got, c.want)
		}
	}
}

func TestNextCheapestWindowBeforeStart(t *testing.T) {
	s := threeTier()
	now := at(21, 0)
	w, err := s.NextCheapestWindow(now)
	if err != nil {
		t.Fatalf("NextCheapestWindow: %v", err)
	}
	wantStart := time.Date(2025, 6, 15, 2, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC)
	// 02:00-06:00 has passed today, so the occurrence is tomorrow.
	wantStart = wantStart.AddDate(0, 0, 1)
	wantEnd = wantEnd.AddDate(0, 0, 1)
	if !w.Start.Equal(wantStart) || !w.End.Equal(wantEnd) {
		t.Fatalf("window = %v-%v, want %v-%v", w.Start, w.End, wantStart, wantEnd)
	}
}

func TestNextCheapestWindowDuringWindow(t *testing.T) {
	s := threeTier()
	now := at(3, 0)
	w, err := s.NextCheapestWindow(now)
	if err != nil {
		t.Fatalf("NextCheapestWindow: %v", err)
	}
	// Still inside today's 02:00-06:00 window.
	if w.Start.Day() != 15 || w.End.Hour() != 6 {
		t.Fatalf("expected today's window, got %v-%v", w.Start, w.End)
	}
}

func TestNextOffpeakWindowChainsNightBlock(t *testing.T) {
	s := threeTier()
	now := at(21, 0)
	w, err := s.NextOffpeakWindow(now)
	if err != nil {
		t.Fatalf("NextOffpeakWindow: %v", err)
	}
	wantStart := time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 6, 16, 7, 0, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) || !w.End.Equal(wantEnd) {
		t.Fatalf("night block = %v-%v, want %v-%v", w.Start, w.End, wantStart, wantEnd)
	}
}

func TestWindowsForRangeCoversDay(t *testing.T) {
	s := threeTier()
	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	windows := s.WindowsForRange(start, end)
	if len(windows) == 0 {
		t.Fatal("no windows")
	}
	if !windows[0].Start.Equal(start) {
		t.Fatalf("first window starts at %v", windows[0].Start)
	}
	if !windows[len(windows)-1].End.Equal(end) {
		t.Fatalf("last window ends at %v", windows[len(windows)-1].End)
	}
	for i := 1; i < len(windows); i++ {
		if !windows[i].Start.Equal(windows[i-1].End) {
			t.Fatalf("gap between window %d and %d", i-1, i)
		}
	}
}

func TestWindowsForRangeEmptyRange(t *testing.T) {
	s := threeTier()
	if got := s.WindowsForRange(at(12, 0), at(12, 0)); got != nil {
		t.Fatalf("expected nil for empty range, got %v", got)
	}
}

func TestNewFromDefsSkipsMalformed(t *testing.T) {
	log := logger.NopLogger{}
	s := NewFromDefs(0.27, []PeriodDef{
		{Label: "HC", Start: "23:00", End: "02:00", Price: 0.21},
		{Label: "bad", Start: "25:99", End: "02:00", Price: 0.21},
		{Label: "bad2", Start: "01:00", End: "junk", Price: 0.21},
		{Label: "neg", Start: "01:00", End: "02:00", Price: -1},
	}, log)
	if got := len(s.Periods()); got != 1 {
		t.Fatalf("expected 1 valid period, got %d", got)
	}
}

func TestDefaultFrenchSchedule(t *testing.T) {
	s := DefaultFrenchSchedule(0.10)
	if s.DefaultPrice() != DefaultFrenchPrice {
		t.Fatalf("default price should be raised to %v, got %v", DefaultFrenchPrice, s.DefaultPrice())
	}
	label, price := s.CheapestPeriod()
	if label != "HSC" || price != 0.16 {
		t.Fatalf("CheapestPeriod() = (%s, %v)", label, price)
	}
}

func TestPriceForLabel(t *testing.T) {
	s := threeTier()
	if got := s.PriceForLabel("HSC"); got != 0.16 {
		t.Fatalf("PriceForLabel(HSC) = %v", got)
	}
	if got := s.PriceForLabel("nope"); got != 0.1841 {
		t.Fatalf("unknown label should fall back to default, got %v", got)
	}
}

func TestSavingsVsDefault(t *testing.T) {
	s := threeTier()
	got := s.SavingsVsDefault(10, "HSC")
	want := 10*0.1841 - 10*0.16
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("SavingsVsDefault = %v, want %v", got, want)
	}
}

func TestHoursUntilDefault(t *testing.T) {
	s := threeTier()
	if got := s.HoursUntilDefault(at(12, 0)); got != 0 {
		t.Fatalf("already at default, got %v", got)
	}
	got := s.HoursUntilDefault(at(5, 0))
	// 05:00 is HSC; default resumes at 07:00.
	if got != 2 {
		t.Fatalf("HoursUntilDefault(05:00) = %v, want 2", got)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	if tod := mustTime(t, "06:30"); tod.Hour() != 6 || tod.Minute() != 30 {
		t.Fatalf("bad parse: %v", tod)
	}
	if _, err := ParseTimeOfDay("26:00"); err == nil {
		t.Fatal("expected error for out-of-range hour")
	}
	if _, err := ParseTimeOfDay("nope"); err == nil {
		t.Fatal("expected error for garbage")
	}
}
