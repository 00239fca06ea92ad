package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"dictation/internal/logging"
	"dictation/internal/models"
	"dictation/internal/security"
	"dictation/internal/service"
	"dictation/internal/validation"
)

// ReportHandler accepts feedback reports
type ReportHandler struct {
	reports  *service.ReportService
	clientIP *security.ClientIPResolver
	logger   *zap.Logger
}

// NewReportHandler creates a new report handler. A nil clientIP keys rate
// limits on the connection's remote address.
func NewReportHandler(reports *service.ReportService, clientIP *security.ClientIPResolver, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, clientIP: clientIP, logger: logging.OrNop(logger)}
}

type reportResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Submit handles POST /api/reports
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in models.ReportInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}

	id, err := h.reports.Submit(r.Context(), in, service.ClientInfo{
		IP:        h.clientIP.ClientIP(r),
		UserAgent: r.UserAgent(),
	})

	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		respondWithFieldErrors(w, verrs.Fields())
	case errors.Is(err, service.ErrRateLimited):
		respondWithError(w, h.logger, http.StatusTooManyRequests, err.Error(), "", nil)
	case err != nil:
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "failed to submit report", err)
	default:
		respondJSON(w, http.StatusCreated, reportResponse{ID: id, Message: "Report submitted successfully"})
	}
}
