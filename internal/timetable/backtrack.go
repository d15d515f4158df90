package timetable

import (
	"sort"

	"go.uber.org/zap"
)

// DefaultBacktrackSteps bounds the number of placement attempts per search.
const DefaultBacktrackSteps = 500000

// BacktrackOptions tunes the exhaustive scheduler.
type BacktrackOptions struct {
	// Window is the regular start window; zero means DaytimeWindow.
	Window Window
	// MaxSteps caps placement attempts; zero means DefaultBacktrackSteps.
	MaxSteps int
}

// Backtracker searches depth-first for a timetable that places every request.
// The search keeps its own frame stack so depth is bounded by the request
// count, not by the goroutine stack.
type Backtracker struct {
	opts   BacktrackOptions
	logger *zap.Logger
}

// NewBacktracker constructs a backtracking scheduler.
func NewBacktracker(opts BacktrackOptions, logger *zap.Logger) *Backtracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Window == (Window{}) {
		opts.Window = DaytimeWindow
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultBacktrackSteps
	}
	return &Backtracker{opts: opts, logger: logger}
}

type frame struct {
	req     *Request
	days    []Weekday
	starts  []int
	rooms   [][]string
	cursor  int
	booking *Booking
}

func (f *frame) size() int { return len(f.days) * len(f.starts) * len(f.rooms) }

// at decodes cursor position i into a day, start and room set.
func (f *frame) at(i int) (Weekday, int, []string) {
	r := i % len(f.rooms)
	i /= len(f.rooms)
	s := i % len(f.starts)
	d := i / len(f.starts)
	return f.days[d], f.starts[s], f.rooms[r]
}

// Schedule resets tt and searches for a complete placement. On failure tt
// holds the deepest partial assignment reached and the result lists every
// request left without a booking.
func (bt *Backtracker) Schedule(tt *Timetable, requests []*Request) Result {
	tt.Reset()
	res := Result{Strategy: StrategyBacktracking}

	order := make([]*Request, 0, len(requests))
	var infeasible []*Request
	for _, req := range requests {
		if !req.placeable(bt.opts.Window) {
			infeasible = append(infeasible, req)
			continue
		}
		order = append(order, req)
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].Duration > order[j].Duration })

	complete, steps := bt.search(tt, order)
	if !complete {
		bt.logger.Debug("backtracking search failed",
			zap.Int("requests", len(order)),
			zap.Int("steps", steps),
			zap.Int("best_placed", tt.Len()),
		)
	}

	placed := make(map[*Request]bool, tt.Len())
	for _, b := range tt.Bookings() {
		placed[b.Request] = true
	}
	for _, req := range requests {
		if !placed[req] {
			res.Unplaced = append(res.Unplaced, Unplaced{Request: req, Reason: Diagnose(tt, req, bt.opts.Window)})
		}
	}
	res.Bookings = tt.Bookings()
	res.Success = complete && len(infeasible) == 0
	return res
}

// search runs the depth-first walk over order. It reports whether every
// request was placed and how many attempts were spent.
func (bt *Backtracker) search(tt *Timetable, order []*Request) (bool, int) {
	if len(order) == 0 {
		return true, 0
	}
	var best []*Booking
	steps := 0
	stack := []*frame{bt.newFrame(order[0])}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.booking != nil {
			tt.Remove(top.booking)
			top.booking = nil
		}
		committed := false
		for top.cursor < top.size() {
			if steps >= bt.opts.MaxSteps {
				bt.logger.Warn("backtracking step budget exhausted", zap.Int("max_steps", bt.opts.MaxSteps))
				restore(tt, best)
				return false, steps
			}
			steps++
			day, start, rooms := top.at(top.cursor)
			top.cursor++
			if tt.CanPlace(top.req, day, start, rooms) {
				top.booking = newBooking(top.req, day, start, rooms)
				tt.Add(top.booking)
				committed = true
				break
			}
		}
		if !committed {
			stack = stack[:len(stack)-1]
			continue
		}
		if tt.Len() > len(best) {
			best = tt.Bookings()
		}
		if len(stack) == len(order) {
			return true, steps
		}
		stack = append(stack, bt.newFrame(order[len(stack)]))
	}
	restore(tt, best)
	return false, steps
}

func (bt *Backtracker) newFrame(req *Request) *frame {
	return &frame{
		req:    req,
		days:   req.Days,
		starts: req.window(bt.opts.Window).Starts(req.Duration),
		rooms:  req.roomOptions(),
	}
}

func restore(tt *Timetable, bookings []*Booking) {
	tt.Reset()
	for _, b := range bookings {
		tt.Add(b)
	}
}
