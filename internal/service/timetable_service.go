package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	"github.com/noah-isme/sma-timetable/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	applog "github.com/noah-isme/sma-timetable/pkg/logger"
)

// TimetableRunStore persists runs. Missing runs surface as sql.ErrNoRows.
type TimetableRunStore interface {
	Create(ctx context.Context, run *models.TimetableRun, bookings []models.TimetableBooking, unplaced []models.TimetableUnplaced) error
	FindByID(ctx context.Context, id string) (*models.TimetableRun, error)
	ListBookings(ctx context.Context, runID string) ([]models.TimetableBooking, error)
	ListUnplaced(ctx context.Context, runID string) ([]models.TimetableUnplaced, error)
	List(ctx context.Context, filter models.TimetableRunFilter) ([]models.TimetableRun, int, error)
	Delete(ctx context.Context, id string) error
}

// TimetableRunSummary is a list entry for a stored run.
type TimetableRunSummary struct {
	ID        string    `json:"id"`
	Strategy  string    `json:"strategy"`
	Success   bool      `json:"success"`
	Requests  int       `json:"requests"`
	Placed    int       `json:"placed"`
	Unplaced  int       `json:"unplaced"`
	Forced    int       `json:"forced"`
	ElapsedMs int64     `json:"elapsedMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// TimetableService validates input, runs the engine and stores the outcome.
type TimetableService struct {
	runs     TimetableRunStore
	cache    *CacheService
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
	cfg      config.TimetableConfig
	now      func() time.Time
}

// NewTimetableService wires the service. runs must not be nil.
func NewTimetableService(runs TimetableRunStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg config.TimetableConfig) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !timetable.Strategy(cfg.Strategy).Valid() {
		cfg.Strategy = string(timetable.StrategyPipeline)
	}
	return &TimetableService{
		runs:     runs,
		cache:    cache,
		metrics:  metrics,
		validate: validate,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate schedules the request and persists the run.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableRunResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload")
	}
	requests, skipped, err := BuildRequests(req.Groups)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if len(requests) == 0 {
		return nil, appErrors.ErrUnprocessable
	}

	strategy := timetable.Strategy(req.Strategy)
	if strategy == "" {
		strategy = timetable.Strategy(s.cfg.Strategy)
	}
	seed, deterministic := s.seed(req)

	var inputKey string
	if deterministic {
		inputKey = "input:" + fingerprint(req, strategy, seed)
		var runID string
		if s.cache.Get(ctx, inputKey, &runID) {
			if cached, err := s.Get(ctx, runID); err == nil {
				s.logger.Debug("timetable run served from cache", zap.String("run_id", runID))
				cached.Cached = true
				return cached, nil
			}
		}
	}

	runCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	started := s.now()
	outcome, err := s.execute(runCtx, strategy, req, requests, rand.New(rand.NewSource(seed)))
	elapsed := s.now().Sub(started)
	if err != nil {
		s.metrics.ObserveRun(string(strategy), false, elapsed, len(outcome.Unplaced), len(outcome.Forced()))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "scheduling run cancelled")
	}
	for _, stage := range outcome.Stages {
		s.metrics.ObserveStage(string(stage.Strategy), stage.Elapsed)
	}
	s.metrics.ObserveRun(string(strategy), outcome.Success, elapsed, len(outcome.Unplaced), len(outcome.Forced()))

	resp := buildRunResponse(uuid.NewString(), seed, started.UTC(), elapsed, len(requests), outcome, skipped)
	// Report the requested strategy; stages carry the one that produced the result.
	resp.Strategy = string(strategy)

	if err := s.store(ctx, resp); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, listKeyPattern)
	s.cache.Set(ctx, runKey(resp.ID), resp, s.cfg.CacheTTL)
	if inputKey != "" {
		s.cache.Set(ctx, inputKey, resp.ID, s.cfg.CacheTTL)
	}

	applog.WithContext(ctx, s.logger).Info("timetable run finished",
		zap.String("run_id", resp.ID),
		zap.String("strategy", resp.Strategy),
		zap.Bool("success", resp.Success),
		zap.Int("requests", len(requests)),
		zap.Int("placed", resp.Stats.Placed),
		zap.Int("unplaced", resp.Stats.Unplaced),
		zap.Int("skipped", len(skipped)),
		zap.Duration("elapsed", elapsed),
	)
	return &resp, nil
}

// Get returns a stored run.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableRunResponse, error) {
	if !validRunID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
	}
	var cached dto.TimetableRunResponse
	if s.cache.Get(ctx, runKey(id), &cached) {
		return &cached, nil
	}

	start := time.Now()
	run, err := s.runs.FindByID(ctx, id)
	s.metrics.ObserveDBQuery("find_run", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
	}
	bookings, err := s.runs.ListBookings(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	unplaced, err := s.runs.ListUnplaced(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unplaced sessions")
	}
	resp, err := runFromRows(run, bookings, unplaced)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode timetable run")
	}
	s.cache.Set(ctx, runKey(id), resp, s.cfg.CacheTTL)
	return &resp, nil
}

// List pages through stored runs.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableRunQuery) ([]TimetableRunSummary, *models.Pagination, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid list query")
	}
	filter := models.TimetableRunFilter{Strategy: query.Strategy, Success: query.Success, Page: query.Page, PageSize: query.PageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	key := listKey(filter)
	var cached cachedRunPage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Items, &cached.Pagination, nil
	}

	start := time.Now()
	runs, total, err := s.runs.List(ctx, filter)
	s.metrics.ObserveDBQuery("list_runs", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable runs")
	}
	items := make([]TimetableRunSummary, 0, len(runs))
	for _, run := range runs {
		items = append(items, TimetableRunSummary{
			ID:        run.ID,
			Strategy:  run.Strategy,
			Success:   run.Success,
			Requests:  run.Requests,
			Placed:    run.Placed,
			Unplaced:  run.Unplaced,
			Forced:    run.Forced,
			ElapsedMs: run.ElapsedMs,
			CreatedAt: run.CreatedAt,
		})
	}
	page := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	s.cache.Set(ctx, key, cachedRunPage{Items: items, Pagination: page}, s.cfg.CacheTTL)
	return items, &page, nil
}

// Delete removes a stored run.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if !validRunID(id) {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
	}
	if err := s.runs.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable run")
	}
	s.cache.Delete(ctx, runKey(id))
	s.cache.Invalidate(ctx, listKeyPattern)
	return nil
}

// validRunID reports whether id can name a stored run. Run ids are UUIDs.
func validRunID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *TimetableService) store(ctx context.Context, resp dto.TimetableRunResponse) error {
	run, bookings, unplaced, err := runRows(resp)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable run")
	}
	start := time.Now()
	err = s.runs.Create(ctx, run, bookings, unplaced)
	s.metrics.ObserveDBQuery("create_run", time.Since(start))
	if err != nil {
		s.logger.Error("failed to persist timetable run", zap.String("run_id", resp.ID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable run")
	}
	return nil
}

// seed picks the request seed, then the configured one, then the clock. The
// second result reports whether the run is reproducible.
func (s *TimetableService) seed(req dto.GenerateTimetableRequest) (int64, bool) {
	if req.Seed != nil {
		return *req.Seed, true
	}
	if s.cfg.Seed != 0 {
		return s.cfg.Seed, true
	}
	return s.now().UnixNano(), false
}

func (s *TimetableService) execute(ctx context.Context, strategy timetable.Strategy, req dto.GenerateTimetableRequest, requests []*timetable.Request, rng *rand.Rand) (timetable.Outcome, error) {
	window := timetable.DaytimeWindow
	if req.ExtendedWindow || s.cfg.ExtendedWindow {
		window = timetable.ExtendedWindow
	}
	allowForced := s.cfg.AllowForced
	if req.AllowForced != nil {
		allowForced = *req.AllowForced
	}
	genetic := timetable.GeneticOptions{
		Window:         window,
		Generations:    firstPositive(req.Generations, s.cfg.Generations),
		PopulationSize: firstPositive(req.PopulationSize, s.cfg.PopulationSize),
		EliteCount:     s.cfg.EliteCount,
		ParentPool:     s.cfg.ParentPool,
		CrossoverRate:  s.cfg.CrossoverRate,
		DisableRepair:  s.cfg.DisableRepair,
		Rand:           rng,
	}
	backtrack := timetable.BacktrackOptions{Window: window, MaxSteps: s.cfg.BacktrackMaxSteps}
	repair := timetable.RepairOptions{Window: window, MaxSteps: s.cfg.RepairMaxSteps}

	single := func(run func() timetable.Result) (timetable.Outcome, error) {
		if err := ctx.Err(); err != nil {
			return timetable.Outcome{}, err
		}
		started := time.Now()
		res := run()
		return timetable.Outcome{
			Result: res,
			Stages: []timetable.StageReport{{
				Strategy: res.Strategy,
				Success:  res.Success,
				Placed:   res.Placed(),
				Forced:   len(res.Forced()),
				Unplaced: len(res.Unplaced),
				Elapsed:  time.Since(started),
			}},
		}, nil
	}

	switch strategy {
	case timetable.StrategyGreedy:
		return single(func() timetable.Result {
			return timetable.NewGreedy(timetable.GreedyOptions{Window: window, AllowForced: allowForced}, s.logger).Schedule(timetable.New(), requests)
		})
	case timetable.StrategyBacktracking:
		return single(func() timetable.Result {
			return timetable.NewBacktracker(backtrack, s.logger).Schedule(timetable.New(), requests)
		})
	case timetable.StrategyGenetic:
		return single(func() timetable.Result {
			return timetable.NewGenetic(genetic, s.logger).Schedule(timetable.New(), requests)
		})
	case timetable.StrategyRepair:
		return single(func() timetable.Result {
			return timetable.NewRepairer(repair, s.logger).Repair(timetable.New(), requests)
		})
	default:
		pipeline := timetable.NewPipeline(timetable.PipelineOptions{
			Window:          window,
			AllowForced:     allowForced,
			GeneticAttempts: firstPositive(req.GeneticAttempts, s.cfg.GeneticAttempts),
			Genetic:         genetic,
			GenerationStep:  s.cfg.GenerationStep,
			PopulationStep:  s.cfg.PopulationStep,
			Backtrack:       backtrack,
			Repair:          repair,
			Rand:            rng,
		}, s.logger)
		return pipeline.Run(ctx, requests)
	}
}

const listKeyPattern = "list:*"

type cachedRunPage struct {
	Items      []TimetableRunSummary `json:"items"`
	Pagination models.Pagination     `json:"pagination"`
}

func runKey(id string) string {
	return "run:" + id
}

func listKey(f models.TimetableRunFilter) string {
	success := "any"
	if f.Success != nil {
		success = strconv.FormatBool(*f.Success)
	}
	return fmt.Sprintf("list:%s:%s:%d:%d", f.Strategy, success, f.Page, f.PageSize)
}

// fingerprint hashes everything that determines a seeded run's outcome.
func fingerprint(req dto.GenerateTimetableRequest, strategy timetable.Strategy, seed int64) string {
	req.Strategy = string(strategy)
	req.Seed = &seed
	payload, err := json.Marshal(req)
	if err != nil {
		return uuid.NewString()
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
