package timetable

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// SessionKind distinguishes daytime sessions from evening overload sessions.
type SessionKind string

const (
	KindRegular  SessionKind = "regular"
	KindOverload SessionKind = "overload"
)

// Strategy names a producer of a Result.
type Strategy string

const (
	StrategyGreedy       Strategy = "greedy"
	StrategyBacktracking Strategy = "backtracking"
	StrategyGenetic      Strategy = "genetic"
	StrategyRepair       Strategy = "repair"
	StrategyPipeline     Strategy = "pipeline"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyGreedy, StrategyBacktracking, StrategyGenetic, StrategyRepair, StrategyPipeline:
		return true
	}
	return false
}

// Request is one recurring session that needs a weekday and a start time.
// Requests are never mutated after construction.
type Request struct {
	ID         int
	CourseID   string
	CourseName string
	Section    string
	Duration   int
	Rooms      []string
	Instructor string
	Days       []Weekday
	Kind       SessionKind
	// AnyRoom lets a single room from Rooms satisfy the request instead of all of them.
	AnyRoom bool
}

// Validate checks the structural invariants of a request.
func (r *Request) Validate() error {
	var errs []error
	if r.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %d", r.Duration))
	}
	if len(r.Rooms) == 0 {
		errs = append(errs, errors.New("at least one room is required"))
	}
	if r.Instructor == "" {
		errs = append(errs, errors.New("instructor is required"))
	}
	if r.Section == "" {
		errs = append(errs, errors.New("section is required"))
	}
	if len(r.Days) == 0 {
		errs = append(errs, errors.New("at least one day is required"))
	}
	for _, d := range r.Days {
		if d.Index() < 0 {
			errs = append(errs, fmt.Errorf("unknown weekday %q", d))
		}
	}
	return errors.Join(errs...)
}

// window returns the window the request starts in, given the regular window in force.
func (r *Request) window(regular Window) Window {
	if r.Kind == KindOverload {
		return OverloadWindow
	}
	return regular
}

// placeable reports whether the request has a day and a start time it could
// ever use, ignoring the rest of the timetable.
func (r *Request) placeable(regular Window) bool {
	return len(r.Days) > 0 && r.window(regular).Fits(r.Duration)
}

// roomOptions lists the room sets that can host the request, in preference order.
func (r *Request) roomOptions() [][]string {
	if r.AnyRoom && len(r.Rooms) > 1 {
		return lo.Map(r.Rooms, func(room string, _ int) []string { return []string{room} })
	}
	return [][]string{r.Rooms}
}

// Key identifies a request by course, section, duration, rooms and instructor.
func (r *Request) Key() string {
	rooms := append([]string(nil), r.Rooms...)
	sort.Strings(rooms)
	return fmt.Sprintf("%s|%s|%d|%s|%s", r.CourseID, r.Section, r.Duration, strings.Join(rooms, ","), r.Instructor)
}

func (r *Request) String() string {
	return fmt.Sprintf("%s (%s) section %s", r.CourseID, r.CourseName, r.Section)
}

// Booking places one Request on a weekday. Bookings are immutable; moving a
// session means removing its booking and adding a new one.
type Booking struct {
	Request *Request
	Day     Weekday
	Start   int
	End     int
	Rooms   []string
	// Forced marks a placement committed despite conflicts.
	Forced bool
}

func newBooking(req *Request, day Weekday, start int, rooms []string) *Booking {
	return &Booking{
		Request: req,
		Day:     day,
		Start:   start,
		End:     start + req.Duration,
		Rooms:   rooms,
	}
}

func (b *Booking) Duration() int { return b.End - b.Start }
func (b *Booking) Section() string { return b.Request.Section }
func (b *Booking) CourseID() string { return b.Request.CourseID }
func (b *Booking) CourseName() string { return b.Request.CourseName }
func (b *Booking) Instructor() string { return b.Request.Instructor }
func (b *Booking) StartClock() string { return FormatClock(b.Start) }
func (b *Booking) EndClock() string { return FormatClock(b.End) }

func (b *Booking) String() string {
	return fmt.Sprintf("%s %s %s-%s", b.Request, b.Day, b.StartClock(), b.EndClock())
}

// ConflictKind names the resource two bookings compete for.
type ConflictKind string

const (
	ConflictSection    ConflictKind = "section"
	ConflictInstructor ConflictKind = "instructor"
	ConflictRoom       ConflictKind = "room"
)

// Conflict is a diagnostic overlap finding; it is never part of committed state.
type Conflict struct {
	Kind    ConflictKind
	Message string
	Booking *Booking
	Other   *Booking
}

// Unplaced records a request no strategy could commit.
type Unplaced struct {
	Request *Request
	Reason  string
}

// Result is the common output of every strategy.
type Result struct {
	Strategy Strategy
	Success  bool
	Bookings []*Booking
	Unplaced []Unplaced
}

// Placed returns the number of bookings in the result.
func (r Result) Placed() int { return len(r.Bookings) }

// Forced returns the bookings committed through forced placement.
func (r Result) Forced() []*Booking {
	return lo.Filter(r.Bookings, func(b *Booking, _ int) bool { return b.Forced })
}
