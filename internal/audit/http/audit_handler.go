// Package http provides HTTP handlers for the audit log and security alerts.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/compliance/internal/audit/http/dto"
	auditUseCase "github.com/allisson/compliance/internal/audit/usecase"
	"github.com/allisson/compliance/internal/httputil"
)

// AuditHandler handles HTTP requests for audit log operations.
type AuditHandler struct {
	auditUseCase auditUseCase.UseCase
	logger       *slog.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(useCase auditUseCase.UseCase, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{auditUseCase: useCase, logger: logger}
}

// ListHandler queries audit entries.
// GET /v1/audit-logs?entity_type=student&entity_id=S1&from=...&to=...&decrypt=true&offset=0&limit=50
// Entries are ordered newest first; both time bounds are inclusive RFC3339 timestamps.
func (h *AuditHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.QueryAuditLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	from, err := httputil.ParseTimeQuery(c, "from")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	to, err := httputil.ParseTimeQuery(c, "to")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if from != nil && to != nil && from.After(*to) {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("from must be before or equal to to"), h.logger)
		return
	}

	filter := req.Filter()
	filter.From = from
	filter.To = to
	filter.Offset = offset
	filter.Limit = limit

	result, err := h.auditUseCase.Query(c.Request.Context(), filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapQueryResultToResponse(result))
}

// VerifyHandler recomputes the checksum of one entry.
// GET /v1/audit-logs/:id/verify
func (h *AuditHandler) VerifyHandler(c *gin.Context) {
	id, err := httputil.ParseUUIDParam(c, "id")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	result, err := h.auditUseCase.VerifyIntegrity(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.IntegrityResponse{
		EntryID:   result.EntryID.String(),
		Valid:     result.Valid,
		Tampering: result.Tampering,
	})
}

// ListAlertsHandler lists security alerts.
// GET /v1/security-alerts?resolved=false&offset=0&limit=50
func (h *AuditHandler) ListAlertsHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	resolved, err := httputil.ParseBoolQuery(c, "resolved")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	alerts, err := h.auditUseCase.ListAlerts(c.Request.Context(), resolved, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecurityAlertsToListResponse(alerts))
}

// ResolveAlertHandler closes a security alert on behalf of the caller.
// POST /v1/security-alerts/:id/resolve
func (h *AuditHandler) ResolveAlertHandler(c *gin.Context) {
	id, err := httputil.ParseUUIDParam(c, "id")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	resolvedBy := ""
	if userID := httputil.UserID(c); userID != nil {
		resolvedBy = *userID
	}

	alert, err := h.auditUseCase.ResolveAlert(c.Request.Context(), id, resolvedBy)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecurityAlertToResponse(alert))
}
