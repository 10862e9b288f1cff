// Package http provides HTTP handlers for anonymization jobs.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	"github.com/allisson/compliance/internal/anonymization/http/dto"
	anonymizationUseCase "github.com/allisson/compliance/internal/anonymization/usecase"
	"github.com/allisson/compliance/internal/httputil"
	customValidation "github.com/allisson/compliance/internal/validation"
)

// AnonymizationHandler handles HTTP requests for anonymization jobs.
type AnonymizationHandler struct {
	anonymizationUseCase anonymizationUseCase.UseCase
	logger               *slog.Logger
}

// NewAnonymizationHandler creates a new anonymization handler.
func NewAnonymizationHandler(useCase anonymizationUseCase.UseCase, logger *slog.Logger) *AnonymizationHandler {
	return &AnonymizationHandler{anonymizationUseCase: useCase, logger: logger}
}

// ScheduleHandler schedules an anonymization job.
// POST /v1/anonymization-jobs - Returns 202 Accepted with the pending job.
func (h *AnonymizationHandler) ScheduleHandler(c *gin.Context) {
	var req dto.ScheduleAnonymizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	job, err := h.anonymizationUseCase.Schedule(c.Request.Context(), req.ScheduleInput(httputil.UserID(c)))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.MapJobToResponse(job))
}

// GetHandler returns the status of a job.
// GET /v1/anonymization-jobs/:id
func (h *AnonymizationHandler) GetHandler(c *gin.Context) {
	id, err := httputil.ParseUUIDParam(c, "id")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	job, err := h.anonymizationUseCase.GetJobStatus(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}

// ListHandler lists jobs, optionally by status.
// GET /v1/anonymization-jobs?status=pending&offset=0&limit=50
func (h *AnonymizationHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var status *anonymizationDomain.Status
	if value := c.Query("status"); value != "" {
		s := anonymizationDomain.Status(value)
		status = &s
	}

	jobs, err := h.anonymizationUseCase.ListJobs(c.Request.Context(), status, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobsToListResponse(jobs))
}

// CancelHandler cancels a pending job.
// POST /v1/anonymization-jobs/:id/cancel - Returns 409 Conflict once the job has started.
func (h *AnonymizationHandler) CancelHandler(c *gin.Context) {
	id, err := httputil.ParseUUIDParam(c, "id")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	job, err := h.anonymizationUseCase.Cancel(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}
