package timetable

import "github.com/samber/lo"

// ResourceUsage aggregates the bookings held by one room or instructor.
type ResourceUsage struct {
	Sessions int
	Minutes  int
	// Percent is Minutes relative to one daytime workday.
	Percent float64
}

// Stats summarises a result.
type Stats struct {
	Requests     int
	Placed       int
	Unplaced     int
	Forced       int
	Conflicts    int
	TotalMinutes int
	PerDay       map[Weekday]int
	Rooms        map[string]ResourceUsage
	Instructors  map[string]ResourceUsage
}

// Summarize computes usage figures for res. Conflicts are counted over the
// result's own bookings, so only forced placements can contribute.
func Summarize(requests int, res Result) Stats {
	st := Stats{
		Requests:    requests,
		Placed:      res.Placed(),
		Unplaced:    len(res.Unplaced),
		Forced:      len(res.Forced()),
		PerDay:      lo.CountValuesBy(res.Bookings, func(b *Booking) Weekday { return b.Day }),
		Rooms:       make(map[string]ResourceUsage),
		Instructors: make(map[string]ResourceUsage),
	}
	tt := New()
	for _, b := range res.Bookings {
		tt.Add(b)
		st.TotalMinutes += b.Duration()
		for _, room := range b.Rooms {
			st.Rooms[room] = accumulate(st.Rooms[room], b.Duration())
		}
		st.Instructors[b.Instructor()] = accumulate(st.Instructors[b.Instructor()], b.Duration())
	}
	st.Conflicts = len(tt.Validate())
	return st
}

func accumulate(u ResourceUsage, minutes int) ResourceUsage {
	u.Sessions++
	u.Minutes += minutes
	u.Percent = float64(u.Minutes) / float64(WorkdayMinutes) * 100
	return u
}
