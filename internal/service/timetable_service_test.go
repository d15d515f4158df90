package service

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

func newTimetableServiceForTest(t *testing.T, cache *CacheService) (*TimetableService, *repository.MemoryRunRepository) {
	t.Helper()
	runs := repository.NewMemoryRunRepository()
	cfg := config.TimetableConfig{
		Generations:     20,
		PopulationSize:  10,
		GeneticAttempts: 1,
		RunTimeout:      time.Minute,
	}
	return NewTimetableService(runs, cache, NewMetricsService(), nil, zap.NewNop(), cfg), runs
}

func TestTimetableServiceGenerateGreedy(t *testing.T) {
	svc, _ := newTimetableServiceForTest(t, nil)

	resp, err := svc.Generate(context.Background(), seededRequest(t, "greedy", 7))
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "greedy", resp.Strategy)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(7), resp.Seed)
	assert.Len(t, resp.Bookings, 4)
	assert.Empty(t, resp.Unplaced)
	assert.Empty(t, resp.Conflicts)
	assert.Len(t, resp.Skipped, 2)
	require.Len(t, resp.Stages, 1)
	assert.Equal(t, "greedy", resp.Stages[0].Strategy)
	assert.Equal(t, 4, resp.Stats.Requests)
	assert.Equal(t, 4, resp.Stats.Placed)

	days := map[string]bool{}
	for _, b := range resp.Bookings {
		if b.CourseID == "101" {
			days[b.Day] = true
		}
		if b.CourseID == "CHE" {
			assert.Equal(t, "Monday", b.Day)
			assert.Equal(t, "17:30", b.Start)
			assert.Equal(t, "overload", b.Kind)
		}
	}
	assert.Len(t, days, 2, "one course never repeats on a day for a section")
	assert.Equal(t, "Monday", resp.Bookings[0].Day)
}

func TestTimetableServiceDefaultsToPipeline(t *testing.T) {
	svc, _ := newTimetableServiceForTest(t, nil)

	resp, err := svc.Generate(context.Background(), seededRequest(t, "", 3))
	require.NoError(t, err)
	assert.Equal(t, "pipeline", resp.Strategy)
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.Stages)
	assert.Equal(t, "greedy", resp.Stages[0].Strategy)
}

func TestTimetableServiceEveryStrategyPlacesSample(t *testing.T) {
	for _, strategy := range []string{"greedy", "backtracking", "genetic", "repair", "pipeline"} {
		t.Run(strategy, func(t *testing.T) {
			svc, _ := newTimetableServiceForTest(t, nil)
			resp, err := svc.Generate(context.Background(), seededRequest(t, strategy, 11))
			require.NoError(t, err)
			assert.Empty(t, resp.Conflicts)
			assert.Equal(t, resp.Stats.Placed, len(resp.Bookings))
			assert.Equal(t, 4, resp.Stats.Placed+resp.Stats.Unplaced)
		})
	}
}

func TestTimetableServiceGenerateValidation(t *testing.T) {
	svc, _ := newTimetableServiceForTest(t, nil)

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	bad := decodeRequest(t, `[{"Courses":[{"courseid":"C","section":"S","classschedule":[{"duration":"x","roomid":"R","employeeid":"E"}]}]}]`)
	_, err = svc.Generate(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, appErrors.FromError(err).Message, "session 0")

	skippedOnly := decodeRequest(t, `[{"Courses":[{"courseid":"C","section":"S","classschedule":[{"duration":"1:00","employeeid":"E"}]}]}]`)
	_, err = svc.Generate(context.Background(), skippedOnly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnprocessable))
}

func TestTimetableServiceGenerateCancelled(t *testing.T) {
	svc, runs := newTimetableServiceForTest(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Generate(ctx, seededRequest(t, "greedy", 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrServiceUnavailable))

	_, total, err := runs.List(context.Background(), modelsFilter())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTimetableServiceGetListDelete(t *testing.T) {
	svc, _ := newTimetableServiceForTest(t, nil)
	ctx := context.Background()

	first, err := svc.Generate(ctx, seededRequest(t, "greedy", 1))
	require.NoError(t, err)
	_, err = svc.Generate(ctx, seededRequest(t, "backtracking", 2))
	require.NoError(t, err)

	loaded, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, loaded.ID)
	assert.Equal(t, first.Bookings, loaded.Bookings)
	assert.Equal(t, first.Skipped, loaded.Skipped)
	assert.Equal(t, first.Stats.Placed, loaded.Stats.Placed)

	items, page, err := svc.List(ctx, dto.TimetableRunQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	items, _, err = svc.List(ctx, dto.TimetableRunQuery{Strategy: "greedy"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, items[0].ID)

	_, _, err = svc.List(ctx, dto.TimetableRunQuery{PageSize: 500})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	require.NoError(t, svc.Delete(ctx, first.ID))
	_, err = svc.Get(ctx, first.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, first.ID), appErrors.ErrNotFound))
}

func TestTimetableServiceReusesSeededRunFromCache(t *testing.T) {
	repo := newMemCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc, _ := newTimetableServiceForTest(t, cache)
	ctx := context.Background()

	first, err := svc.Generate(ctx, seededRequest(t, "greedy", 5))
	require.NoError(t, err)
	assert.True(t, repo.has(runKey(first.ID)))
	assert.False(t, first.Cached)

	again, err := svc.Generate(ctx, seededRequest(t, "greedy", 5))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Cached)

	other, err := svc.Generate(ctx, seededRequest(t, "greedy", 6))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	require.NoError(t, svc.Delete(ctx, first.ID))
	assert.False(t, repo.has(runKey(first.ID)))
}

func TestTimetableServiceListCacheInvalidatedOnWrites(t *testing.T) {
	repo := newMemCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc, _ := newTimetableServiceForTest(t, cache)
	ctx := context.Background()

	first, err := svc.Generate(ctx, seededRequest(t, "greedy", 1))
	require.NoError(t, err)

	items, _, err := svc.List(ctx, dto.TimetableRunQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, repo.has("list::any:1:20"))

	cachedItems, page, err := svc.List(ctx, dto.TimetableRunQuery{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, cachedItems[0].ID)
	assert.Equal(t, 1, page.TotalCount)

	_, err = svc.Generate(ctx, seededRequest(t, "greedy", 2))
	require.NoError(t, err)
	assert.False(t, repo.has("list::any:1:20"))

	items, page, err = svc.List(ctx, dto.TimetableRunQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, page.TotalCount)

	require.NoError(t, svc.Delete(ctx, first.ID))
	items, _, err = svc.List(ctx, dto.TimetableRunQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestTimetableServiceMalformedRunIDIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	runs := repository.NewTimetableRunRepository(sqlx.NewDb(db, "sqlmock"))
	svc := NewTimetableService(runs, nil, NewMetricsService(), nil, zap.NewNop(), config.TimetableConfig{})
	ctx := context.Background()

	for _, id := range []string{"abc", "", "123", "00000000-0000-0000-0000-00000000000g"} {
		_, err := svc.Get(ctx, id)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr), id)
		assert.Equal(t, appErrors.ErrNotFound.Status, appErr.Status, id)
		assert.True(t, errors.Is(svc.Delete(ctx, id), appErrors.ErrNotFound), id)
	}
	assert.NoError(t, mock.ExpectationsWereMet(), "malformed ids never reach the database")
}
