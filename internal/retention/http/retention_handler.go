// Package http provides HTTP handlers for retention policies.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/compliance/internal/httputil"
	"github.com/allisson/compliance/internal/retention/http/dto"
	retentionUseCase "github.com/allisson/compliance/internal/retention/usecase"
	customValidation "github.com/allisson/compliance/internal/validation"
)

// RetentionHandler handles HTTP requests for retention policies.
type RetentionHandler struct {
	retentionUseCase retentionUseCase.UseCase
	logger           *slog.Logger
}

// NewRetentionHandler creates a new retention handler.
func NewRetentionHandler(useCase retentionUseCase.UseCase, logger *slog.Logger) *RetentionHandler {
	return &RetentionHandler{retentionUseCase: useCase, logger: logger}
}

// CreateHandler creates a retention policy.
// POST /v1/retention-policies - Returns 201 Created, or 422 when the period breaks the legal bounds.
func (h *RetentionHandler) CreateHandler(c *gin.Context) {
	var req dto.CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	policy, err := h.retentionUseCase.CreatePolicy(c.Request.Context(), req.CreatePolicyInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapPolicyToResponse(policy))
}

// ListHandler lists every policy in execution order.
// GET /v1/retention-policies
func (h *RetentionHandler) ListHandler(c *gin.Context) {
	policies, err := h.retentionUseCase.ListPolicies(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPoliciesToListResponse(policies))
}

// SetActiveHandler enables or disables a policy.
// PUT /v1/retention-policies/:id/active
func (h *RetentionHandler) SetActiveHandler(c *gin.Context) {
	id, err := httputil.ParseUUIDParam(c, "id")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.SetPolicyActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	policy, err := h.retentionUseCase.SetPolicyActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPolicyToResponse(policy))
}

// StatusHandler reports policies and their outcome counts.
// GET /v1/retention-policies/status
func (h *RetentionHandler) StatusHandler(c *gin.Context) {
	status, err := h.retentionUseCase.GetStatus(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusToResponse(status))
}

// ExecuteHandler runs every active policy synchronously.
// POST /v1/retention-policies/execute - Returns 409 Conflict while another run is in progress.
func (h *RetentionHandler) ExecuteHandler(c *gin.Context) {
	report, err := h.retentionUseCase.ExecutePolicies(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRunReportToResponse(report))
}

// ExecuteSingleHandler runs one active policy.
// POST /v1/retention-policies/:id/execute
func (h *RetentionHandler) ExecuteSingleHandler(c *gin.Context) {
	id, err := httputil.ParseUUIDParam(c, "id")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	report, err := h.retentionUseCase.ExecuteSinglePolicy(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPolicyReportToResponse(report))
}
