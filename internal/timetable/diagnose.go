package timetable

import (
	"fmt"
	"strings"
)

// Reasons reported for requests that stay unplaced.
const (
	ReasonNoSlot        = "No available slot (all times conflict with break or out of hours)"
	ReasonTooLong       = "Duration exceeds operating window"
	ReasonDaysExhausted = "Course already scheduled on all allowed days"
	ReasonSearchStopped = "Search exhausted before a free slot was committed"
)

// Diagnose explains why req has no booking in tt. When no slot is free,
// every blocked slot on every free day contributes one reason, joined in day
// and time order.
func Diagnose(tt *Timetable, req *Request, regular Window) string {
	w := req.window(regular)
	if req.Duration > w.End-w.Start {
		return ReasonTooLong
	}
	days := tt.FreeDays(req)
	if len(days) == 0 {
		return ReasonDaysExhausted
	}
	var reasons []string
	seen := make(map[string]struct{})
	add := func(reason string) {
		if _, ok := seen[reason]; ok {
			return
		}
		seen[reason] = struct{}{}
		reasons = append(reasons, reason)
	}
	slotFound := false
	for _, day := range days {
		for t := w.Start; t+req.Duration <= w.End; t += SlotStep {
			at := fmt.Sprintf("%s on %s", FormatClock(t), day)
			if InBreak(t, req.Duration) {
				add("Break time overlap at " + at)
				continue
			}
			if kind, blocked := firstBlock(tt, req, day, t); blocked {
				add(blockLabel(kind) + " conflict at " + at)
				continue
			}
			slotFound = true
		}
	}
	if slotFound {
		return ReasonSearchStopped
	}
	if len(reasons) == 0 {
		return ReasonNoSlot
	}
	return strings.Join(reasons, "; ")
}

// firstBlock returns the first resource, in section, instructor, room order,
// that prevents req from starting at day/t.
func firstBlock(tt *Timetable, req *Request, day Weekday, t int) (ConflictKind, bool) {
	hit := func(list []*Booking) bool {
		for _, b := range list {
			if b.Day == day && Overlaps(b.Start, b.Duration(), t, req.Duration) {
				return true
			}
		}
		return false
	}
	if hit(tt.bySection[req.Section]) {
		return ConflictSection, true
	}
	if hit(tt.byInstructor[req.Instructor]) {
		return ConflictInstructor, true
	}
	busy := 0
	for _, room := range req.Rooms {
		if hit(tt.byRoom[room]) {
			busy++
		}
	}
	if busy > 0 && (!req.AnyRoom || busy == len(req.Rooms)) {
		return ConflictRoom, true
	}
	return "", false
}

func blockLabel(kind ConflictKind) string {
	switch kind {
	case ConflictSection:
		return "Section"
	case ConflictInstructor:
		return "Employee"
	default:
		return "Room"
	}
}
