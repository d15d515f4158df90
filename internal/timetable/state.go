package timetable

import (
	"fmt"

	"github.com/samber/lo"
)

type courseKey struct {
	section string
	course  string
}

// Timetable is the booking store shared by every strategy. The ordered
// booking list is canonical; the section, instructor and room indices and the
// per-course day usage are kept in step by Add and Remove. A Timetable is not
// safe for concurrent use.
type Timetable struct {
	bookings     []*Booking
	bySection    map[string][]*Booking
	byInstructor map[string][]*Booking
	byRoom       map[string][]*Booking
	usedDays     map[courseKey]map[Weekday]int
}

// New returns an empty timetable.
func New() *Timetable {
	t := &Timetable{}
	t.Reset()
	return t
}

// Reset clears every booking and index.
func (t *Timetable) Reset() {
	t.bookings = nil
	t.bySection = make(map[string][]*Booking)
	t.byInstructor = make(map[string][]*Booking)
	t.byRoom = make(map[string][]*Booking)
	t.usedDays = make(map[courseKey]map[Weekday]int)
}

// Clone returns an independent copy sharing the immutable bookings.
func (t *Timetable) Clone() *Timetable {
	c := New()
	for _, b := range t.bookings {
		c.Add(b)
	}
	return c
}

// Len returns the number of committed bookings.
func (t *Timetable) Len() int { return len(t.bookings) }

// Bookings returns the committed bookings in commit order.
func (t *Timetable) Bookings() []*Booking {
	return append([]*Booking(nil), t.bookings...)
}

// Add commits b to the list and every index.
func (t *Timetable) Add(b *Booking) {
	t.bookings = append(t.bookings, b)
	t.bySection[b.Section()] = append(t.bySection[b.Section()], b)
	t.byInstructor[b.Instructor()] = append(t.byInstructor[b.Instructor()], b)
	for _, room := range b.Rooms {
		t.byRoom[room] = append(t.byRoom[room], b)
	}
	key := courseKey{section: b.Section(), course: b.CourseID()}
	days, ok := t.usedDays[key]
	if !ok {
		days = make(map[Weekday]int)
		t.usedDays[key] = days
	}
	days[b.Day]++
}

// Remove drops b from the list and every index. It reports false when b was
// not committed.
func (t *Timetable) Remove(b *Booking) bool {
	idx := lo.IndexOf(t.bookings, b)
	if idx < 0 {
		return false
	}
	t.bookings = append(t.bookings[:idx], t.bookings[idx+1:]...)
	t.bySection[b.Section()] = without(t.bySection[b.Section()], b)
	t.byInstructor[b.Instructor()] = without(t.byInstructor[b.Instructor()], b)
	for _, room := range b.Rooms {
		t.byRoom[room] = without(t.byRoom[room], b)
	}
	key := courseKey{section: b.Section(), course: b.CourseID()}
	if days, ok := t.usedDays[key]; ok {
		days[b.Day]--
		if days[b.Day] <= 0 {
			delete(days, b.Day)
		}
		if len(days) == 0 {
			delete(t.usedDays, key)
		}
	}
	return true
}

func without(list []*Booking, b *Booking) []*Booking {
	out := list[:0]
	for _, item := range list {
		if item != b {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DayUsed reports whether the course already meets on day for the section.
func (t *Timetable) DayUsed(section, course string, day Weekday) bool {
	return t.usedDays[courseKey{section: section, course: course}][day] > 0
}

// FreeDays filters the request's days down to those its course has not used yet.
func (t *Timetable) FreeDays(req *Request) []Weekday {
	return lo.Filter(req.Days, func(d Weekday, _ int) bool {
		return !t.DayUsed(req.Section, req.CourseID, d)
	})
}

// SectionLoad counts the section's bookings per day.
func (t *Timetable) SectionLoad(section string) map[Weekday]int {
	return lo.CountValuesBy(t.bySection[section], func(b *Booking) Weekday { return b.Day })
}

// Blockers lists the committed bookings that would overlap the request placed
// at day/start holding rooms, through its section, instructor or any room.
func (t *Timetable) Blockers(req *Request, day Weekday, start int, rooms []string) []*Booking {
	var found []*Booking
	collect := func(list []*Booking) {
		for _, b := range list {
			if b.Day == day && Overlaps(b.Start, b.Duration(), start, req.Duration) {
				found = append(found, b)
			}
		}
	}
	collect(t.bySection[req.Section])
	collect(t.byInstructor[req.Instructor])
	for _, room := range rooms {
		collect(t.byRoom[room])
	}
	return lo.Uniq(found)
}

// CanPlace reports whether the request fits at day/start in rooms without
// breaking the overlap or same-day-per-course rules.
func (t *Timetable) CanPlace(req *Request, day Weekday, start int, rooms []string) bool {
	if t.DayUsed(req.Section, req.CourseID, day) {
		return false
	}
	return len(t.Blockers(req, day, start, rooms)) == 0
}

// Conflicts lists the overlaps between b and the other committed bookings.
func (t *Timetable) Conflicts(b *Booking) []Conflict {
	var out []Conflict
	for _, other := range t.bookings {
		if other == b {
			continue
		}
		out = append(out, pairConflicts(b, other)...)
	}
	return out
}

// Validate scans every pair of bookings and returns each overlap once per
// shared resource. An empty result means the timetable is legal.
func (t *Timetable) Validate() []Conflict {
	var out []Conflict
	for i, a := range t.bookings {
		for _, b := range t.bookings[i+1:] {
			out = append(out, pairConflicts(a, b)...)
		}
	}
	return out
}

func pairConflicts(a, b *Booking) []Conflict {
	if a.Day != b.Day || !Overlaps(a.Start, a.Duration(), b.Start, b.Duration()) {
		return nil
	}
	var out []Conflict
	at := fmt.Sprintf("%s %s-%s", a.Day, a.StartClock(), a.EndClock())
	if a.Section() == b.Section() {
		out = append(out, Conflict{
			Kind:    ConflictSection,
			Message: fmt.Sprintf("Section %s conflict at %s: %s overlaps %s", a.Section(), at, a.CourseID(), b.CourseID()),
			Booking: a,
			Other:   b,
		})
	}
	if a.Instructor() == b.Instructor() {
		out = append(out, Conflict{
			Kind:    ConflictInstructor,
			Message: fmt.Sprintf("Employee %s conflict at %s: %s overlaps %s", a.Instructor(), at, a.CourseID(), b.CourseID()),
			Booking: a,
			Other:   b,
		})
	}
	for _, room := range lo.Intersect(a.Rooms, b.Rooms) {
		out = append(out, Conflict{
			Kind:    ConflictRoom,
			Message: fmt.Sprintf("Room %s conflict at %s: %s overlaps %s", room, at, a.CourseID(), b.CourseID()),
			Booking: a,
			Other:   b,
		})
	}
	return out
}
