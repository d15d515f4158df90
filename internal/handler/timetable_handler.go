package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type timetableRunner interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableRunResponse, error)
	Get(ctx context.Context, id string) (*dto.TimetableRunResponse, error)
	List(ctx context.Context, query dto.TimetableRunQuery) ([]service.TimetableRunSummary, *models.Pagination, error)
	Delete(ctx context.Context, id string) error
}

type timetableJobs interface {
	Enqueue(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableJobResponse, error)
	Status(ctx context.Context, id string) (*dto.TimetableJobResponse, error)
}

type timetableExporter interface {
	Export(ctx context.Context, runID string, req dto.ExportTimetableRequest) (*dto.ExportTimetableResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// TimetableHandler exposes scheduling runs over HTTP.
type TimetableHandler struct {
	runs    timetableRunner
	jobs    timetableJobs
	exports timetableExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(runs *service.TimetableService, jobs *service.TimetableJobService, exports *service.ExportService) *TimetableHandler {
	return &TimetableHandler{runs: runs, jobs: jobs, exports: exports}
}

// Generate godoc
// @Summary Generate a weekly timetable
// @Description Schedules every session in the payload and stores the run. The body may be the bare course group array.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param seed query int false "Random seed, overrides the body"
// @Param payload body dto.GenerateTimetableRequest true "Course groups and run options"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	run, err := h.runs.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, run.Cached)
	response.JSON(c, http.StatusCreated, run, nil, middleware.ExtractMeta(c))
}

// Enqueue godoc
// @Summary Queue an asynchronous timetable run
// @Tags Timetables
// @Accept json
// @Produce json
// @Param seed query int false "Random seed, overrides the body"
// @Param payload body dto.GenerateTimetableRequest true "Course groups and run options"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetables/jobs [post]
func (h *TimetableHandler) Enqueue(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	job, err := h.jobs.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// JobStatus godoc
// @Summary Get the state of an asynchronous run
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *TimetableHandler) JobStatus(c *gin.Context) {
	job, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// List godoc
// @Summary List stored timetable runs
// @Tags Timetables
// @Produce json
// @Param strategy query string false "Strategy filter"
// @Param success query bool false "Only successful or failed runs"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableRunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	runs, pagination, err := h.runs.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// Get godoc
// @Summary Get a stored timetable run
// @Tags Timetables
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Delete godoc
// @Summary Delete a stored timetable run
// @Tags Timetables
// @Param id path string true "Run ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.runs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Render a stored run and return a signed download link
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Param payload body dto.ExportTimetableRequest true "Format and view"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id}/exports [post]
func (h *TimetableHandler) Export(c *gin.Context) {
	var req dto.ExportTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	result, err := h.exports.Export(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a rendered timetable
// @Tags Timetables
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 403 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /export/{token} [get]
func (h *TimetableHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.exports.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	response.Attachment(c, result.Filename, result.ContentType, result.SizeBytes, result.File)
}

func bindGenerateRequest(c *gin.Context) (dto.GenerateTimetableRequest, bool) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return req, false
	}
	seed, err := dto.ParseSeed(c.Query("seed"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return req, false
	}
	if seed != nil {
		req.Seed = seed
	}
	return req, true
}
