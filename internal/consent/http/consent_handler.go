// Package http provides HTTP handlers for the parental consent workflow.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	"github.com/allisson/compliance/internal/consent/http/dto"
	consentUseCase "github.com/allisson/compliance/internal/consent/usecase"
	"github.com/allisson/compliance/internal/httputil"
	customValidation "github.com/allisson/compliance/internal/validation"
)

// ConsentHandler handles HTTP requests for parental consents.
type ConsentHandler struct {
	consentUseCase consentUseCase.UseCase
	logger         *slog.Logger
}

// NewConsentHandler creates a new consent handler.
func NewConsentHandler(useCase consentUseCase.UseCase, logger *slog.Logger) *ConsentHandler {
	return &ConsentHandler{consentUseCase: useCase, logger: logger}
}

// InitiateHandler starts a consent and emails the first confirmation token.
// POST /v1/consents - Returns 201 Created. Tokens are never part of the response.
func (h *ConsentHandler) InitiateHandler(c *gin.Context) {
	var req dto.InitiateConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	consent, err := h.consentUseCase.Initiate(
		c.Request.Context(),
		req.InitiateInput(c.ClientIP(), c.Request.UserAgent()),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapConsentToResponse(consent))
}

func (h *ConsentHandler) bindToken(c *gin.Context) (string, bool) {
	var req dto.ConfirmConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return "", false
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return "", false
	}
	return req.Token, true
}

// FirstConfirmationHandler confirms the first step.
// POST /v1/consents/first-confirmation - Returns 410 Gone when the token expired.
func (h *ConsentHandler) FirstConfirmationHandler(c *gin.Context) {
	token, ok := h.bindToken(c)
	if !ok {
		return
	}

	consent, err := h.consentUseCase.ProcessFirstConsent(c.Request.Context(), token)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConsentToResponse(consent))
}

// SecondConfirmationHandler verifies the consent and creates the student.
// POST /v1/consents/second-confirmation
func (h *ConsentHandler) SecondConfirmationHandler(c *gin.Context) {
	token, ok := h.bindToken(c)
	if !ok {
		return
	}

	consent, err := h.consentUseCase.ProcessSecondConsent(c.Request.Context(), token)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConsentToResponse(consent))
}

// GetHandler returns a consent.
// GET /v1/consents/:id
func (h *ConsentHandler) GetHandler(c *gin.Context) {
	id, err := httputil.ParseUUIDParam(c, "id")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	consent, err := h.consentUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConsentToResponse(consent))
}

// RevokeHandler withdraws a consent.
// POST /v1/consents/:id/revoke - Returns 403 Forbidden when the email does not match.
func (h *ConsentHandler) RevokeHandler(c *gin.Context) {
	id, err := httputil.ParseUUIDParam(c, "id")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.RevokeConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	consent, err := h.consentUseCase.Revoke(c.Request.Context(), &consentDomain.RevokeInput{
		ConsentID:   id,
		ParentEmail: req.ParentEmail,
		Reason:      req.Reason,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConsentToResponse(consent))
}

// ValidityHandler reports whether a student's data may be processed for a purpose.
// GET /v1/students/:id/consent-validity?type=progress_tracking
func (h *ConsentHandler) ValidityHandler(c *gin.Context) {
	studentID, err := httputil.ParseUUIDParam(c, "id")
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	consentType := consentDomain.Type(c.Query("type"))
	valid, err := h.consentUseCase.IsValidForProcessing(c.Request.Context(), studentID, consentType)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ConsentValidityResponse{
		StudentID:   studentID.String(),
		ConsentType: string(consentType),
		Valid:       valid,
	})
}
