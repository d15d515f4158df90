package timetable

import (
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Genetic optimizer defaults.
const (
	DefaultGenerations    = 200
	DefaultPopulationSize = 50
	DefaultEliteCount     = 4
	DefaultParentPool     = 10
	DefaultCrossoverRate  = 0.7

	// Penalty is subtracted once per hard violation or missing request.
	Penalty = 1000.0
	// SpreadBonus rewards each distinct (section, day) pair in use.
	SpreadBonus = 0.1
)

// GeneticOptions tunes the optimizer. Zero values take the defaults above.
type GeneticOptions struct {
	Window         Window
	Generations    int
	PopulationSize int
	EliteCount     int
	ParentPool     int
	CrossoverRate  float64
	// DisableRepair skips the insertion pass applied to the best chromosome.
	DisableRepair bool
	// Rand drives every random choice; nil seeds from the clock.
	Rand *rand.Rand
}

type gene struct {
	placed bool
	day    Weekday
	start  int
	rooms  []string
}

// Chromosome is one candidate placement per request, indexed like the
// request slice it was built from.
type Chromosome struct {
	genes      []gene
	fitness    float64
	violations int
	missing    int
}

// Fitness returns the last evaluated score.
func (c *Chromosome) Fitness() float64 { return c.fitness }

// Legal reports whether every request is placed without any hard violation.
func (c *Chromosome) Legal() bool { return c.violations == 0 && c.missing == 0 }

// Placed counts the genes that carry a placement.
func (c *Chromosome) Placed() int { return len(c.genes) - c.missing }

func (c *Chromosome) clone() *Chromosome {
	cp := *c
	cp.genes = append([]gene(nil), c.genes...)
	return &cp
}

// Genetic evolves a population of chromosomes towards a conflict-free timetable.
type Genetic struct {
	opts   GeneticOptions
	rng    *rand.Rand
	logger *zap.Logger

	requests []*Request
	starts   [][]int
}

// NewGenetic constructs an optimizer.
func NewGenetic(opts GeneticOptions, logger *zap.Logger) *Genetic {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Window == (Window{}) {
		opts.Window = DaytimeWindow
	}
	if opts.Generations <= 0 {
		opts.Generations = DefaultGenerations
	}
	if opts.PopulationSize <= 0 {
		opts.PopulationSize = DefaultPopulationSize
	}
	if opts.EliteCount <= 0 {
		opts.EliteCount = DefaultEliteCount
	}
	if opts.EliteCount > opts.PopulationSize {
		opts.EliteCount = opts.PopulationSize
	}
	if opts.ParentPool <= 0 {
		opts.ParentPool = DefaultParentPool
	}
	if opts.CrossoverRate <= 0 {
		opts.CrossoverRate = DefaultCrossoverRate
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Genetic{opts: opts, rng: rng, logger: logger}
}

// Schedule evolves a timetable for requests and loads the legal part of the
// best chromosome into tt, which is reset first.
func (g *Genetic) Schedule(tt *Timetable, requests []*Request) Result {
	best := g.Evolve(requests)
	tt.Reset()
	kept := g.materialize(tt, best)

	res := Result{Strategy: StrategyGenetic, Bookings: tt.Bookings()}
	for i, req := range requests {
		if !kept[i] {
			res.Unplaced = append(res.Unplaced, Unplaced{Request: req, Reason: Diagnose(tt, req, g.opts.Window)})
		}
	}
	res.Success = best.Legal() && len(res.Unplaced) == 0
	g.logger.Debug("genetic run finished",
		zap.Float64("fitness", best.Fitness()),
		zap.Bool("legal", best.Legal()),
		zap.Int("placed", res.Placed()),
		zap.Int("unplaced", len(res.Unplaced)),
	)
	return res
}

// Evolve runs the full generation budget and returns the best chromosome
// seen, repaired unless repair is disabled.
func (g *Genetic) Evolve(requests []*Request) *Chromosome {
	g.requests = requests
	g.starts = make([][]int, len(requests))
	for i, req := range requests {
		g.starts[i] = req.window(g.opts.Window).Starts(req.Duration)
	}

	population := make([]*Chromosome, g.opts.PopulationSize)
	for i := range population {
		population[i] = g.randomChromosome()
		g.evaluate(population[i])
	}

	var best *Chromosome
	for gen := 0; gen < g.opts.Generations; gen++ {
		sortByFitness(population)
		if best == nil || population[0].fitness > best.fitness {
			best = population[0].clone()
		}
		population = g.nextGeneration(population)
	}
	sortByFitness(population)
	if best == nil || population[0].fitness > best.fitness {
		best = population[0].clone()
	}

	if !g.opts.DisableRepair {
		best = g.repair(best)
	}
	return best
}

func sortByFitness(pop []*Chromosome) {
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].fitness > pop[j].fitness })
}

// nextGeneration keeps the elite prefix and refills the population from
// crossover or mutation of parents drawn from the top of the ranking.
func (g *Genetic) nextGeneration(ranked []*Chromosome) []*Chromosome {
	next := make([]*Chromosome, 0, g.opts.PopulationSize)
	for _, elite := range ranked[:g.opts.EliteCount] {
		next = append(next, elite)
	}
	pool := ranked
	if len(pool) > g.opts.ParentPool {
		pool = pool[:g.opts.ParentPool]
	}
	for len(next) < g.opts.PopulationSize {
		var child *Chromosome
		if len(pool) > 1 && g.rng.Float64() < g.opts.CrossoverRate {
			i := g.rng.Intn(len(pool))
			j := g.rng.Intn(len(pool) - 1)
			if j >= i {
				j++
			}
			child = g.crossover(pool[i], pool[j])
		} else {
			child = pool[g.rng.Intn(len(pool))].clone()
			g.mutate(child)
		}
		g.evaluate(child)
		next = append(next, child)
	}
	return next
}

func (g *Genetic) randomChromosome() *Chromosome {
	ch := &Chromosome{genes: make([]gene, len(g.requests))}
	for i := range g.requests {
		ch.genes[i] = g.randomGene(i, true)
	}
	return ch
}

// randomGene samples a placement for request i. Early starts are preferred
// on creation by drawing from the first half of the valid start times.
func (g *Genetic) randomGene(i int, early bool) gene {
	req := g.requests[i]
	starts := g.starts[i]
	if len(starts) == 0 || len(req.Days) == 0 {
		return gene{}
	}
	span := len(starts)
	if early {
		span = (span + 1) / 2
	}
	return gene{
		placed: true,
		day:    req.Days[g.rng.Intn(len(req.Days))],
		start:  starts[g.rng.Intn(span)],
		rooms:  g.randomRooms(req),
	}
}

func (g *Genetic) randomRooms(req *Request) []string {
	options := req.roomOptions()
	return options[g.rng.Intn(len(options))]
}

// crossover splices a prefix of a with the suffix of b at a random point.
func (g *Genetic) crossover(a, b *Chromosome) *Chromosome {
	child := a.clone()
	if len(child.genes) < 2 {
		return child
	}
	point := 1 + g.rng.Intn(len(child.genes)-1)
	copy(child.genes[point:], b.genes[point:])
	return child
}

// mutate resets the day, start time or room choice of one random gene.
func (g *Genetic) mutate(ch *Chromosome) {
	if len(ch.genes) == 0 {
		return
	}
	i := g.rng.Intn(len(ch.genes))
	req := g.requests[i]
	current := ch.genes[i]
	if !current.placed {
		ch.genes[i] = g.randomGene(i, false)
		return
	}
	choices := 2
	if len(req.roomOptions()) > 1 {
		choices = 3
	}
	switch g.rng.Intn(choices) {
	case 0:
		current.day = req.Days[g.rng.Intn(len(req.Days))]
	case 1:
		current.start = g.starts[i][g.rng.Intn(len(g.starts[i]))]
	default:
		current.rooms = g.randomRooms(req)
	}
	ch.genes[i] = current
}

type sectionDay struct {
	section string
	day     Weekday
}

type courseDay struct {
	section string
	course  string
	day     Weekday
}

// evaluate scores ch: one point per placed request and a small bonus per
// distinct (section, day), minus Penalty for every missing request, every
// repeated course day and every overlapping pair sharing a resource.
func (g *Genetic) evaluate(ch *Chromosome) {
	spread := make(map[sectionDay]struct{})
	courseDays := make(map[courseDay]int)
	missing, violations := 0, 0
	for i, gn := range ch.genes {
		if !gn.placed {
			missing++
			continue
		}
		req := g.requests[i]
		spread[sectionDay{req.Section, gn.day}] = struct{}{}
		courseDays[courseDay{req.Section, req.CourseID, gn.day}]++
	}
	for _, n := range courseDays {
		if n > 1 {
			violations += n - 1
		}
	}
	for i := range ch.genes {
		for j := i + 1; j < len(ch.genes); j++ {
			if g.clash(ch.genes[i], g.requests[i], ch.genes[j], g.requests[j]) {
				violations++
			}
		}
	}
	ch.missing = missing
	ch.violations = violations
	placed := len(ch.genes) - missing
	ch.fitness = float64(placed) + SpreadBonus*float64(len(spread)) - Penalty*float64(violations+missing)
}

func (g *Genetic) clash(a gene, ra *Request, b gene, rb *Request) bool {
	if !a.placed || !b.placed || a.day != b.day {
		return false
	}
	if !Overlaps(a.start, ra.Duration, b.start, rb.Duration) {
		return false
	}
	if ra.Section == rb.Section || ra.Instructor == rb.Instructor {
		return true
	}
	for _, x := range a.rooms {
		for _, y := range b.rooms {
			if x == y {
				return true
			}
		}
	}
	return false
}

// repair places every missing gene at the first free slot, then drops genes
// that still violate a hard rule, and rescores the chromosome.
func (g *Genetic) repair(ch *Chromosome) *Chromosome {
	out := ch.clone()
	tt := New()
	bookings := make([]*Booking, len(out.genes))
	for i, gn := range out.genes {
		if gn.placed {
			bookings[i] = newBooking(g.requests[i], gn.day, gn.start, gn.rooms)
			tt.Add(bookings[i])
		}
	}
	for i, gn := range out.genes {
		if gn.placed {
			continue
		}
		req := g.requests[i]
		if b := firstFit(tt, req, tt.FreeDays(req), g.opts.Window); b != nil {
			tt.Add(b)
			bookings[i] = b
			out.genes[i] = gene{placed: true, day: b.Day, start: b.Start, rooms: b.Rooms}
		}
	}
	for i := range out.genes {
		if bookings[i] != nil && violates(tt, bookings[i]) {
			tt.Remove(bookings[i])
			bookings[i] = nil
			out.genes[i] = gene{}
		}
	}
	g.evaluate(out)
	return out
}

// materialize loads the legal genes of ch into tt, dropping any gene that
// clashes with one kept before it. It reports which requests were kept.
func (g *Genetic) materialize(tt *Timetable, ch *Chromosome) []bool {
	kept := make([]bool, len(ch.genes))
	for i, gn := range ch.genes {
		if !gn.placed {
			continue
		}
		req := g.requests[i]
		if !tt.CanPlace(req, gn.day, gn.start, gn.rooms) {
			continue
		}
		tt.Add(newBooking(req, gn.day, gn.start, gn.rooms))
		kept[i] = true
	}
	return kept
}

// violates reports whether b overlaps another booking in tt or shares its
// day with another session of the same course.
func violates(tt *Timetable, b *Booking) bool {
	if tt.usedDays[courseKey{section: b.Section(), course: b.CourseID()}][b.Day] > 1 {
		return true
	}
	return len(tt.Conflicts(b)) > 0
}
