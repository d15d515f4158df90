package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func newTimetableRunRepoMock(t *testing.T) (*TimetableRunRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewTimetableRunRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func sampleRunRows() ([]models.TimetableBooking, []models.TimetableUnplaced) {
	bookings := []models.TimetableBooking{{
		CourseID: "101", CourseName: "Physics", Section: "3A", Day: "Monday",
		StartMin: 480, EndMin: 570, Rooms: pq.StringArray{"R1"}, Instructor: "E1", Kind: "regular",
	}}
	unplaced := []models.TimetableUnplaced{{
		CourseID: "102", CourseName: "Chemistry", Section: "3A", Duration: 600,
		Rooms: pq.StringArray{"R2"}, Instructor: "E2", Days: pq.StringArray{"Monday"},
		Reason: "Duration exceeds operating window",
	}}
	return bookings, unplaced
}

func TestTimetableRunRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_runs")).
		WithArgs(sqlmock.AnyArg(), "pipeline", false, int64(42), 2, 1, 1, 0, int64(15), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_bookings")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_unplaced")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	bookings, unplaced := sampleRunRows()
	run := &models.TimetableRun{Strategy: "pipeline", Seed: 42, Requests: 2, Placed: 1, Unplaced: 1, ElapsedMs: 15}
	require.NoError(t, repo.Create(context.Background(), run, bookings, unplaced))

	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.Equal(t, run.ID, bookings[0].RunID)
	assert.Equal(t, run.ID, unplaced[0].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryCreateRollsBack(t *testing.T) {
	repo, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_runs")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_bookings")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	bookings, unplaced := sampleRunRows()
	err := repo.Create(context.Background(), &models.TimetableRun{Strategy: "greedy"}, bookings, unplaced)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert timetable booking")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryFindByID(t *testing.T) {
	repo, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "strategy", "success", "seed", "requests", "placed", "unplaced", "forced", "elapsed_ms", "meta", "created_at"}).
		AddRow("run-1", "greedy", true, 7, 3, 3, 0, 0, 12, types.JSONText(`{}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := repo.FindByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "greedy", run.Strategy)
	assert.True(t, run.Success)
	assert.EqualValues(t, 7, run.Seed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryListBookings(t *testing.T) {
	repo, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "run_id", "course_id", "course_name", "section", "day", "start_min", "end_min", "rooms", "instructor", "kind", "forced"}).
		AddRow("b-1", "run-1", "101", "Physics", "3A", "Monday", 480, 570, "{R1,LAB}", "E1", "regular", false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_bookings WHERE run_id = $1")).
		WithArgs("run-1").
		WillReturnRows(rows)

	list, err := repo.ListBookings(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pq.StringArray{"R1", "LAB"}, list[0].Rooms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryListFilters(t *testing.T) {
	repo, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()

	success := true
	rows := sqlmock.NewRows([]string{"id", "strategy", "success", "seed", "requests", "placed", "unplaced", "forced", "elapsed_ms", "meta", "created_at"}).
		AddRow("run-1", "genetic", true, 1, 2, 2, 0, 0, 30, types.JSONText(`{}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_runs WHERE 1=1 AND strategy = $1 AND success = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("genetic", true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_runs WHERE 1=1 AND strategy = $1 AND success = $2")).
		WithArgs("genetic", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	runs, total, err := repo.List(context.Background(), models.TimetableRunFilter{Strategy: "genetic", Success: &success, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryDeleteNotFound(t *testing.T) {
	repo, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_runs WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
