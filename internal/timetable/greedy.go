package timetable

import (
	"sort"

	"go.uber.org/zap"
)

// GreedyOptions tunes the first-fit scheduler.
type GreedyOptions struct {
	// Window is the regular start window; zero means DaytimeWindow.
	Window Window
	// AllowForced commits requests that found no free slot at the window
	// start, ignoring conflicts. Such bookings carry Forced.
	AllowForced bool
}

// Greedy places requests one at a time on the first free slot, balancing
// each section's load across its allowed days. It never revisits a decision.
type Greedy struct {
	opts   GreedyOptions
	logger *zap.Logger
}

// NewGreedy constructs a greedy scheduler.
func NewGreedy(opts GreedyOptions, logger *zap.Logger) *Greedy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Window == (Window{}) {
		opts.Window = DaytimeWindow
	}
	return &Greedy{opts: opts, logger: logger}
}

// Schedule resets tt and fills it from requests in input order.
func (g *Greedy) Schedule(tt *Timetable, requests []*Request) Result {
	tt.Reset()
	res := Result{Strategy: StrategyGreedy}
	for _, req := range requests {
		if b := firstFit(tt, req, g.orderedDays(tt, req), g.opts.Window); b != nil {
			tt.Add(b)
			continue
		}
		if b := g.force(tt, req); b != nil {
			tt.Add(b)
			continue
		}
		res.Unplaced = append(res.Unplaced, Unplaced{Request: req, Reason: Diagnose(tt, req, g.opts.Window)})
	}
	res.Bookings = tt.Bookings()
	res.Success = len(res.Unplaced) == 0 && len(res.Forced()) == 0
	g.logger.Debug("greedy pass finished",
		zap.Int("requests", len(requests)),
		zap.Int("placed", res.Placed()),
		zap.Int("forced", len(res.Forced())),
		zap.Int("unplaced", len(res.Unplaced)),
	)
	return res
}

// orderedDays returns the request's unused days, least loaded for its section first.
func (g *Greedy) orderedDays(tt *Timetable, req *Request) []Weekday {
	days := tt.FreeDays(req)
	load := tt.SectionLoad(req.Section)
	sort.SliceStable(days, func(i, j int) bool { return load[days[i]] < load[days[j]] })
	return days
}

func (g *Greedy) force(tt *Timetable, req *Request) *Booking {
	if !g.opts.AllowForced {
		return nil
	}
	w := req.window(g.opts.Window)
	days := g.orderedDays(tt, req)
	if len(days) == 0 || !w.Fits(req.Duration) {
		return nil
	}
	b := newBooking(req, days[0], w.Start, req.roomOptions()[0])
	b.Forced = true
	g.logger.Warn("forced placement ignores conflicts",
		zap.String("course", req.CourseID),
		zap.String("section", req.Section),
		zap.String("instructor", req.Instructor),
		zap.String("day", string(b.Day)),
		zap.String("start", b.StartClock()),
	)
	return b
}

// firstFit returns a booking for the first conflict-free day, start and room
// set, scanning days in the given order, or nil.
func firstFit(tt *Timetable, req *Request, days []Weekday, regular Window) *Booking {
	starts := req.window(regular).Starts(req.Duration)
	for _, day := range days {
		for _, start := range starts {
			for _, rooms := range req.roomOptions() {
				if tt.CanPlace(req, day, start, rooms) {
					return newBooking(req, day, start, rooms)
				}
			}
		}
	}
	return nil
}
