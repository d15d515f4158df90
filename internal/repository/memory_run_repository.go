package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-timetable/internal/models"
)

type memoryRun struct {
	run      models.TimetableRun
	bookings []models.TimetableBooking
	unplaced []models.TimetableUnplaced
}

// MemoryRunRepository keeps runs in process memory. It backs the service
// when no database is configured and mirrors TimetableRunRepository.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]memoryRun
}

// NewMemoryRunRepository constructs an empty store.
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]memoryRun)}
}

// Create stores a run.
func (r *MemoryRunRepository) Create(_ context.Context, run *models.TimetableRun, bookings []models.TimetableBooking, unplaced []models.TimetableUnplaced) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	for i := range bookings {
		bookings[i].RunID = run.ID
	}
	for i := range unplaced {
		unplaced[i].RunID = run.ID
	}
	r.mu.Lock()
	r.runs[run.ID] = memoryRun{
		run:      *run,
		bookings: append([]models.TimetableBooking(nil), bookings...),
		unplaced: append([]models.TimetableUnplaced(nil), unplaced...),
	}
	r.mu.Unlock()
	return nil
}

func (r *MemoryRunRepository) lookup(id string) (memoryRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.runs[id]
	if !ok {
		return memoryRun{}, sql.ErrNoRows
	}
	return entry, nil
}

// FindByID returns sql.ErrNoRows for unknown ids, like the SQL store.
func (r *MemoryRunRepository) FindByID(_ context.Context, id string) (*models.TimetableRun, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	run := entry.run
	return &run, nil
}

// ListBookings returns a copy of the run's bookings.
func (r *MemoryRunRepository) ListBookings(_ context.Context, runID string) ([]models.TimetableBooking, error) {
	entry, err := r.lookup(runID)
	if err != nil {
		return nil, nil
	}
	return append([]models.TimetableBooking(nil), entry.bookings...), nil
}

// ListUnplaced returns a copy of the run's unplaced sessions.
func (r *MemoryRunRepository) ListUnplaced(_ context.Context, runID string) ([]models.TimetableUnplaced, error) {
	entry, err := r.lookup(runID)
	if err != nil {
		return nil, nil
	}
	return append([]models.TimetableUnplaced(nil), entry.unplaced...), nil
}

// List returns runs newest first.
func (r *MemoryRunRepository) List(_ context.Context, filter models.TimetableRunFilter) ([]models.TimetableRun, int, error) {
	r.mu.RLock()
	matched := make([]models.TimetableRun, 0, len(r.runs))
	for _, entry := range r.runs {
		if filter.Strategy != "" && entry.run.Strategy != filter.Strategy {
			continue
		}
		if filter.Success != nil && entry.run.Success != *filter.Success {
			continue
		}
		matched = append(matched, entry.run)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(matched) {
		return []models.TimetableRun{}, len(matched), nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

// Delete removes a run or returns sql.ErrNoRows.
func (r *MemoryRunRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.runs, id)
	return nil
}
