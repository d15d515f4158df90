package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable/internal/models"
)

const runColumns = "id, strategy, success, seed, requests, placed, unplaced, forced, elapsed_ms, meta, created_at"

// TimetableRunRepository persists scheduling runs with their bookings and
// unplaced sessions.
type TimetableRunRepository struct {
	db *sqlx.DB
}

// NewTimetableRunRepository constructs the repository.
func NewTimetableRunRepository(db *sqlx.DB) *TimetableRunRepository {
	return &TimetableRunRepository{db: db}
}

// Create stores a run and its rows in a single transaction.
func (r *TimetableRunRepository) Create(ctx context.Context, run *models.TimetableRun, bookings []models.TimetableBooking, unplaced []models.TimetableUnplaced) (err error) {
	if run == nil {
		return fmt.Errorf("run payload is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if len(run.Meta) == 0 {
		run.Meta = types.JSONText(`{}`)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin timetable run tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertRun = `
INSERT INTO timetable_runs (id, strategy, success, seed, requests, placed, unplaced, forced, elapsed_ms, meta, created_at)
VALUES (:id, :strategy, :success, :seed, :requests, :placed, :unplaced, :forced, :elapsed_ms, :meta, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("insert timetable run: %w", err)
	}

	const insertBooking = `
INSERT INTO timetable_bookings (id, run_id, course_id, course_name, section, day, start_min, end_min, rooms, instructor, kind, forced)
VALUES (:id, :run_id, :course_id, :course_name, :section, :day, :start_min, :end_min, :rooms, :instructor, :kind, :forced)`
	for i := range bookings {
		row := &bookings[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.RunID = run.ID
		if _, err = tx.NamedExecContext(ctx, insertBooking, row); err != nil {
			return fmt.Errorf("insert timetable booking: %w", err)
		}
	}

	const insertUnplaced = `
INSERT INTO timetable_unplaced (id, run_id, course_id, course_name, section, duration, rooms, instructor, days, reason)
VALUES (:id, :run_id, :course_id, :course_name, :section, :duration, :rooms, :instructor, :days, :reason)`
	for i := range unplaced {
		row := &unplaced[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.RunID = run.ID
		if _, err = tx.NamedExecContext(ctx, insertUnplaced, row); err != nil {
			return fmt.Errorf("insert timetable unplaced: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit timetable run: %w", err)
	}
	return nil
}

// FindByID loads a run. A missing run yields sql.ErrNoRows.
func (r *TimetableRunRepository) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	query := "SELECT " + runColumns + " FROM timetable_runs WHERE id = $1"
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListBookings returns the bookings of a run in weekday and start order.
func (r *TimetableRunRepository) ListBookings(ctx context.Context, runID string) ([]models.TimetableBooking, error) {
	const query = `SELECT id, run_id, course_id, course_name, section, day, start_min, end_min, rooms, instructor, kind, forced
FROM timetable_bookings WHERE run_id = $1
ORDER BY array_position(ARRAY['Monday','Tuesday','Wednesday','Thursday','Friday','Saturday','Sunday'], day), start_min, section`
	var rows []models.TimetableBooking
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("list timetable bookings: %w", err)
	}
	return rows, nil
}

// ListUnplaced returns the unplaced sessions of a run.
func (r *TimetableRunRepository) ListUnplaced(ctx context.Context, runID string) ([]models.TimetableUnplaced, error) {
	const query = `SELECT id, run_id, course_id, course_name, section, duration, rooms, instructor, days, reason
FROM timetable_unplaced WHERE run_id = $1 ORDER BY section, course_id`
	var rows []models.TimetableUnplaced
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("list timetable unplaced: %w", err)
	}
	return rows, nil
}

// List returns a page of runs, newest first, and the total matching count.
func (r *TimetableRunRepository) List(ctx context.Context, filter models.TimetableRunFilter) ([]models.TimetableRun, int, error) {
	base := "FROM timetable_runs WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Strategy != "" {
		conditions = append(conditions, fmt.Sprintf("strategy = $%d", len(args)+1))
		args = append(args, filter.Strategy)
	}
	if filter.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", len(args)+1))
		args = append(args, *filter.Success)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", runColumns, base, size, offset)
	var runs []models.TimetableRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetable runs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable runs: %w", err)
	}
	return runs, total, nil
}

// Delete removes a run; bookings and unplaced rows cascade.
func (r *TimetableRunRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM timetable_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
