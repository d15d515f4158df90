package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// Operating constants, in minutes from midnight.
const (
	BreakStart = 12 * 60
	BreakEnd   = 13 * 60
	SlotStep   = 30
	// WorkdayMinutes is the length of the daytime window used for utilisation figures.
	WorkdayMinutes = 9 * 60
)

// Window is a half-open range of minutes inside a day.
type Window struct {
	Start int
	End   int
}

var (
	// DaytimeWindow covers regular sessions, 08:00–17:00.
	DaytimeWindow = Window{Start: 8 * 60, End: 17 * 60}
	// ExtendedWindow is the wide first-fit window, 06:00–21:00.
	ExtendedWindow = Window{Start: 6 * 60, End: 21 * 60}
	// OverloadWindow hosts overload sessions, 17:30–20:30.
	OverloadWindow = Window{Start: 17*60 + 30, End: 20*60 + 30}
)

// Fits reports whether a session of dur minutes can ever start inside w.
func (w Window) Fits(dur int) bool {
	return len(w.Starts(dur)) > 0
}

// Starts lists every start time on the slot grid at which a session of dur
// minutes stays inside w and clear of the break.
func (w Window) Starts(dur int) []int {
	if dur <= 0 {
		return nil
	}
	var starts []int
	for t := w.Start; t+dur <= w.End; t += SlotStep {
		if InBreak(t, dur) {
			continue
		}
		starts = append(starts, t)
	}
	return starts
}

// Overlaps reports whether [startA, startA+durA) and [startB, startB+durB) intersect.
func Overlaps(startA, durA, startB, durB int) bool {
	return !(startA+durA <= startB || startB+durB <= startA)
}

// InBreak reports whether [start, start+dur) touches the midday break.
func InBreak(start, dur int) bool {
	return Overlaps(start, dur, BreakStart, BreakEnd-BreakStart)
}

// FormatClock renders minutes from midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseClock parses an HH:MM clock value.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", raw, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", raw, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", raw)
	}
	return h*60 + m, nil
}

// ParseDuration accepts "H:MM" or a bare number of hours and returns minutes.
func ParseDuration(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}
	var minutes int
	if h, m, ok := strings.Cut(raw, ":"); ok {
		hours, err := strconv.Atoi(h)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		mins, err := strconv.Atoi(m)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		if mins < 0 || mins > 59 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		minutes = hours*60 + mins
	} else {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		minutes = hours * 60
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return minutes, nil
}

// Weekday is an English weekday name.
type Weekday string

// Weekday values in calendar order.
const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Weekdays lists every accepted day in calendar order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Index returns the calendar position of d, or -1 when unknown.
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// ParseWeekday resolves a day name case-insensitively.
func ParseWeekday(raw string) (Weekday, error) {
	trimmed := strings.TrimSpace(raw)
	for _, d := range Weekdays {
		if strings.EqualFold(string(d), trimmed) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown weekday %q", raw)
}
