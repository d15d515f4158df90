package timetable

import (
	"go.uber.org/zap"
)

// DefaultRepairSteps bounds the slot attempts made by one repair call.
const DefaultRepairSteps = 200000

// RepairOptions tunes the displacement solver.
type RepairOptions struct {
	// Window is the regular start window; zero means DaytimeWindow.
	Window Window
	// MaxSteps caps slot attempts; zero means DefaultRepairSteps.
	MaxSteps int
	// MaxDepth caps nested placements; zero derives it from the input size.
	MaxDepth int
}

// Repairer places leftover requests into an existing timetable by evicting
// the bookings that block a slot and placing them again elsewhere.
type Repairer struct {
	opts   RepairOptions
	logger *zap.Logger
}

// NewRepairer constructs a displacement solver.
func NewRepairer(opts RepairOptions, logger *zap.Logger) *Repairer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Window == (Window{}) {
		opts.Window = DaytimeWindow
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultRepairSteps
	}
	return &Repairer{opts: opts, logger: logger}
}

type repairRun struct {
	tt       *Timetable
	window   Window
	visited  map[string]struct{}
	steps    int
	maxSteps int
	maxDepth int
	stopped  bool
}

// Repair tries to place every residual request. It works on a copy of tt
// and only writes back when all of them fit; otherwise tt is untouched and
// the result lists the residual requests as unplaced.
func (r *Repairer) Repair(tt *Timetable, residual []*Request) Result {
	res := Result{Strategy: StrategyRepair}
	maxDepth := r.opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 4 * (len(residual) + tt.Len())
		if maxDepth < 64 {
			maxDepth = 64
		}
	}
	run := &repairRun{
		tt:       tt.Clone(),
		window:   r.opts.Window,
		visited:  make(map[string]struct{}),
		maxSteps: r.opts.MaxSteps,
		maxDepth: maxDepth,
	}
	if run.place(residual, 0) {
		restore(tt, run.tt.Bookings())
		res.Success = true
		res.Bookings = tt.Bookings()
		r.logger.Debug("repair placed residual requests",
			zap.Int("residual", len(residual)),
			zap.Int("steps", run.steps),
		)
		return res
	}
	if run.stopped {
		r.logger.Warn("repair budget exhausted",
			zap.Int("steps", run.steps),
			zap.Int("max_steps", run.maxSteps),
			zap.Int("max_depth", run.maxDepth),
		)
	}
	res.Bookings = tt.Bookings()
	for _, req := range residual {
		res.Unplaced = append(res.Unplaced, Unplaced{Request: req, Reason: Diagnose(tt, req, r.opts.Window)})
	}
	return res
}

type slot struct {
	day   Weekday
	start int
	rooms []string
}

func (run *repairRun) slots(req *Request) []slot {
	var out []slot
	starts := req.window(run.window).Starts(req.Duration)
	for _, day := range run.tt.FreeDays(req) {
		for _, start := range starts {
			for _, rooms := range req.roomOptions() {
				out = append(out, slot{day: day, start: start, rooms: rooms})
			}
		}
	}
	return out
}

// spend consumes one attempt and reports whether the budget allows it.
func (run *repairRun) spend() bool {
	if run.steps >= run.maxSteps {
		run.stopped = true
		return false
	}
	run.steps++
	return true
}

// place commits queue[0] and recurses on the rest, first on free slots and
// then by displacing blockers. Every change is undone on failure.
func (run *repairRun) place(queue []*Request, depth int) bool {
	if len(queue) == 0 {
		return true
	}
	if depth >= run.maxDepth {
		run.stopped = true
		return false
	}
	head, tail := queue[0], queue[1:]
	candidates := run.slots(head)

	for _, s := range candidates {
		if !run.spend() {
			return false
		}
		if !run.tt.CanPlace(head, s.day, s.start, s.rooms) {
			continue
		}
		b := newBooking(head, s.day, s.start, s.rooms)
		run.tt.Add(b)
		if run.place(tail, depth+1) {
			return true
		}
		run.tt.Remove(b)
		if run.stopped {
			return false
		}
	}

	for _, s := range candidates {
		if !run.spend() {
			return false
		}
		blockers := run.tt.Blockers(head, s.day, s.start, s.rooms)
		if len(blockers) == 0 {
			continue
		}
		keys, fresh := run.pairKeys(head, blockers)
		if !fresh {
			continue
		}
		for _, k := range keys {
			run.visited[k] = struct{}{}
		}
		for _, b := range blockers {
			run.tt.Remove(b)
		}
		if run.tt.CanPlace(head, s.day, s.start, s.rooms) {
			nb := newBooking(head, s.day, s.start, s.rooms)
			run.tt.Add(nb)
			next := make([]*Request, 0, len(blockers)+len(tail))
			for _, b := range blockers {
				next = append(next, b.Request)
			}
			next = append(next, tail...)
			if run.place(next, depth+1) {
				return true
			}
			run.tt.Remove(nb)
		}
		for _, b := range blockers {
			run.tt.Add(b)
		}
		for _, k := range keys {
			delete(run.visited, k)
		}
		if run.stopped {
			return false
		}
	}
	return false
}

// pairKeys builds the visited keys for displacing blockers in favour of req.
// fresh is false when any pairing was already tried on the current path.
func (run *repairRun) pairKeys(req *Request, blockers []*Booking) ([]string, bool) {
	keys := make([]string, 0, len(blockers))
	for _, b := range blockers {
		k := req.Key() + "=>" + b.Request.Key()
		if _, seen := run.visited[k]; seen {
			return nil, false
		}
		keys = append(keys, k)
	}
	return keys, true
}
