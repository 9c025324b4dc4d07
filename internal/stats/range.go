package stats

import (
	"fmt"
	"strings"
	"time"
)

// Range is an inclusive span of calendar days. From and To are midnights
// in the engine's location.
type Range struct {
	From time.Time
	To   time.Time
}

// Preset names a commonly used range.
type Preset string

const (
	PresetToday Preset = "today"
	PresetWeek  Preset = "week"
	PresetMonth Preset = "month"
	PresetYear  Preset = "year"
)

// Presets lists the presets in picker order.
var Presets = []Preset{PresetToday, PresetWeek, PresetMonth, PresetYear}

// DefaultPreset is the range a statistics view opens with.
const DefaultPreset = PresetWeek

// Day truncates t to midnight of its calendar day in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NewRange builds a Range from two instants, keeping only their dates.
func NewRange(from, to time.Time, loc *time.Location) Range {
	return Range{From: Day(from, loc), To: Day(to, loc)}
}

// ParseRange parses two YYYY-MM-DD dates in loc.
func ParseRange(from, to string, loc *time.Location) (Range, error) {
	f, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(from), loc)
	if err != nil {
		return Range{}, fmt.Errorf("parse from date: %w", err)
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(to), loc)
	if err != nil {
		return Range{}, fmt.Errorf("parse to date: %w", err)
	}
	return Range{From: f, To: t}, nil
}

// PresetRange returns the range p denotes on the day containing now.
// "week" spans the seven days before today plus today.
func PresetRange(p Preset, now time.Time, loc *time.Location) (Range, error) {
	today := Day(now, loc)
	switch p {
	case PresetToday:
		return Range{From: today, To: today}, nil
	case PresetWeek:
		return Range{From: today.AddDate(0, 0, -7), To: today}, nil
	case PresetMonth:
		return Range{From: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc), To: today}, nil
	case PresetYear:
		return Range{From: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, loc), To: today}, nil
	}
	return Range{}, fmt.Errorf("unknown preset %q", p)
}

// Start is the first instant inside the range.
func (r Range) Start() time.Time { return r.From }

// End is the first instant after the range.
func (r Range) End() time.Time { return r.To.AddDate(0, 0, 1) }

// Empty reports whether To precedes From.
func (r Range) Empty() bool { return r.To.Before(r.From) }

// Contains reports whether t falls on one of the range's days.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start()) && t.Before(r.End())
}

// Days returns every midnight from From to To inclusive.
func (r Range) Days() []time.Time {
	if r.Empty() {
		return nil
	}
	var out []time.Time
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// QueryValues renders the range the way the transactions endpoint expects.
func (r Range) QueryValues() (from, to string) {
	return r.From.Format(time.DateOnly), r.To.Format(time.DateOnly)
}
