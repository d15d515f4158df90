package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	applog "github.com/noah-isme/sma-timetable/pkg/logger"
	"github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
)

// TimetableJobType tags queue jobs carrying a scheduling run.
const TimetableJobType = "timetable.generate"

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type runGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableRunResponse, error)
}

type jobRecord struct {
	status     dto.TimetableJobResponse
	request    dto.GenerateTimetableRequest
	finishedAt time.Time
}

// JobStore tracks asynchronous runs in memory. Finished entries expire after ttl.
type JobStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*jobRecord
	now   func() time.Time
}

// NewJobStore constructs a store.
func NewJobStore(ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JobStore{ttl: ttl, items: make(map[string]*jobRecord), now: time.Now}
}

func (s *JobStore) put(id, requestID string, req dto.GenerateTimetableRequest) dto.TimetableJobResponse {
	status := dto.TimetableJobResponse{ID: id, RequestID: requestID, Status: dto.JobStatusQueued, EnqueuedAt: s.now().UTC()}
	s.mu.Lock()
	s.items[id] = &jobRecord{status: status, request: req}
	s.mu.Unlock()
	return status
}

func (s *JobStore) request(id string) (dto.GenerateTimetableRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	if !ok {
		return dto.GenerateTimetableRequest{}, false
	}
	return rec.request, true
}

func (s *JobStore) update(id string, fn func(*dto.TimetableJobResponse)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return
	}
	fn(&rec.status)
	if rec.status.Status == dto.JobStatusSucceeded || rec.status.Status == dto.JobStatusFailed {
		now := s.now().UTC()
		rec.finishedAt = now
		rec.status.FinishedAt = &now
		rec.request = dto.GenerateTimetableRequest{}
	}
}

// Get returns the job status. Finished jobs older than the TTL are dropped.
func (s *JobStore) Get(id string) (dto.TimetableJobResponse, bool) {
	s.mu.RLock()
	rec, ok := s.items[id]
	var status dto.TimetableJobResponse
	var finishedAt time.Time
	if ok {
		status = rec.status
		finishedAt = rec.finishedAt
	}
	s.mu.RUnlock()
	if !ok {
		return dto.TimetableJobResponse{}, false
	}
	if !finishedAt.IsZero() && s.now().Sub(finishedAt) > s.ttl {
		s.Delete(id)
		return dto.TimetableJobResponse{}, false
	}
	return status, true
}

// Delete forgets a job.
func (s *JobStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Purge drops every finished job older than the TTL and returns how many went.
func (s *JobStore) Purge() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.items {
		if !rec.finishedAt.IsZero() && rec.finishedAt.Before(cutoff) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// TimetableJobService accepts asynchronous runs and reports their state.
type TimetableJobService struct {
	store    *JobStore
	queue    jobDispatcher
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewTimetableJobService constructs the service.
func NewTimetableJobService(store *JobStore, queue jobDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TimetableJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableJobService{store: store, queue: queue, metrics: metrics, validate: validate, logger: logger}
}

// Enqueue validates the request and hands it to the worker pool.
func (s *TimetableJobService) Enqueue(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableJobResponse, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	id := uuid.NewString()
	reqID := requestid.FromContext(ctx)
	status := s.store.put(id, reqID, req)
	if err := s.queue.Enqueue(jobs.Job{ID: id, Type: TimetableJobType, Payload: reqID}); err != nil {
		s.store.Delete(id)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "scheduling queue is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "scheduling queue unavailable")
	}
	s.metrics.JobQueued()
	s.logger.Info("timetable job queued", zap.String("job_id", id), zap.String("request_id", reqID))
	return &status, nil
}

// Status returns the state of a job.
func (s *TimetableJobService) Status(_ context.Context, id string) (*dto.TimetableJobResponse, error) {
	status, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable job not found")
	}
	return &status, nil
}

// StartCleanup purges expired jobs every interval until ctx ends.
func (s *TimetableJobService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.store.Purge(); n > 0 {
					s.logger.Debug("expired timetable jobs purged", zap.Int("count", n))
				}
			}
		}
	}()
}

// TimetableWorker runs queued jobs.
type TimetableWorker struct {
	store      *JobStore
	generator  runGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewTimetableWorker constructs a worker.
func NewTimetableWorker(store *JobStore, generator runGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *TimetableWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TimetableWorker{store: store, generator: generator, metrics: metrics, logger: logger, maxRetries: maxRetries}
}

// Handle processes one queue job. Client errors and shutdown fail the job at
// once; anything else is retried until the attempt budget runs out.
func (w *TimetableWorker) Handle(ctx context.Context, job jobs.Job) error {
	if reqID, ok := job.Payload.(string); ok && reqID != "" {
		ctx = requestid.NewContext(ctx, reqID)
	}
	req, ok := w.store.request(job.ID)
	if !ok {
		w.logger.Warn("timetable job vanished before processing", zap.String("job_id", job.ID))
		return nil
	}
	w.store.update(job.ID, func(st *dto.TimetableJobResponse) {
		st.Status = dto.JobStatusRunning
		st.Error = ""
	})

	run, err := w.generator.Generate(ctx, req)
	if err != nil {
		appErr := appErrors.FromError(err)
		// A cancelled worker context means the queue is stopping and no retry will run.
		retriable := appErr.Status >= 500 && job.Attempt < w.maxRetries && ctx.Err() == nil
		if retriable {
			w.store.update(job.ID, func(st *dto.TimetableJobResponse) {
				st.Status = dto.JobStatusQueued
				st.Error = appErr.Message
			})
			return err
		}
		w.store.update(job.ID, func(st *dto.TimetableJobResponse) {
			st.Status = dto.JobStatusFailed
			st.Error = appErr.Message
		})
		w.metrics.JobFinished(string(dto.JobStatusFailed))
		applog.WithContext(ctx, w.logger).Warn("timetable job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		return nil
	}

	w.store.update(job.ID, func(st *dto.TimetableJobResponse) {
		st.Status = dto.JobStatusSucceeded
		st.Error = ""
		st.Run = run
	})
	w.metrics.JobFinished(string(dto.JobStatusSucceeded))
	return nil
}

// Fail marks a job failed when the queue gives up on it.
func (w *TimetableWorker) Fail(job jobs.Job, err error) {
	w.store.update(job.ID, func(st *dto.TimetableJobResponse) {
		st.Status = dto.JobStatusFailed
		st.Error = err.Error()
	})
	w.metrics.JobFinished(string(dto.JobStatusFailed))
}
