package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cassiomorais/paysheet/internal/application/session"
	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/go-chi/chi/v5"
)

const (
	defaultAttemptLimit = 50
	maxAttemptLimit     = 500
)

// AttemptLister reads the coupon attempt audit trail.
type AttemptLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*session.Attempt, error)
}

// AttemptController serves the audit trail of coupon-change events. Finished
// sessions stay readable here after the sheet is dismissed.
type AttemptController struct {
	attempts AttemptLister
}

func NewAttemptController(attempts AttemptLister) *AttemptController {
	return &AttemptController{attempts: attempts}
}

// List handles GET /api/v1/sessions/{id}/attempts
func (h *AttemptController) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultAttemptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAttemptLimit {
			writeError(w, domainErrors.NewValidationError("limit", "must be between 1 and 500"))
			return
		}
		limit = n
	}

	sessionID := chi.URLParam(r, "id")
	attempts, err := h.attempts.ListBySession(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := AttemptListResponse{SessionID: sessionID, Attempts: make([]AttemptResponse, 0, len(attempts))}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, toAttemptResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}
