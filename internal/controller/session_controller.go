package controller

import (
	"net/http"

	"github.com/cassiomorais/paysheet/internal/application/session"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/cassiomorais/paysheet/internal/infrastructure/host"
	"github.com/cassiomorais/paysheet/internal/infrastructure/pricing"
	"github.com/go-chi/chi/v5"
)

// MerchantDefaults fill in order fields a client may omit.
type MerchantDefaults struct {
	DisplayName string
	Currency    string
}

// SessionController handles payment sheet HTTP requests.
type SessionController struct {
	coordinator *session.Coordinator
	registry    *host.Registry
	pricer      pricing.Pricer
	defaults    MerchantDefaults
}

// NewSessionController creates a new SessionController. A nil pricer means
// sessions never support coupons.
func NewSessionController(
	coordinator *session.Coordinator,
	registry *host.Registry,
	pricer pricing.Pricer,
	defaults MerchantDefaults,
) *SessionController {
	return &SessionController{
		coordinator: coordinator,
		registry:    registry,
		pricer:      pricer,
		defaults:    defaults,
	}
}

// Capability handles GET /api/v1/capability
func (h *SessionController) Capability(w http.ResponseWriter, r *http.Request) {
	c := h.coordinator.QueryPaymentCapability(r.Context())
	writeJSON(w, http.StatusOK, CapabilityResponse{
		CanMakePayments:         c.CanMakePayments,
		CanUseSupportedNetworks: c.CanUseSupportedNetworks,
	})
}

// Start handles POST /api/v1/sessions
func (h *SessionController) Start(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	order := toOrder(req.Order, h.defaults.DisplayName, h.defaults.Currency)
	coupons := sheet.Unsupported()
	if req.CouponsEnabled && h.pricer != nil {
		coupons = sheet.Supported(pricing.ForOrder(h.pricer, order))
	}

	s, err := h.coordinator.StartPayment(r.Context(), order, coupons)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{
		SessionID:      s.ID(),
		PaymentRequest: toPaymentRequestResponse(s.PaymentRequest()),
	})
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionController) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.registry.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		SessionID:      d.ID(),
		PaymentRequest: toPaymentRequestResponse(d.PaymentRequest()),
	})
}

// ChangeCoupon handles POST /api/v1/sessions/{id}/coupon
// A rejected coupon is a normal outcome and is answered with 200.
func (h *SessionController) ChangeCoupon(w http.ResponseWriter, r *http.Request) {
	d, err := h.registry.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req CouponRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	update := d.CouponCodeChanged(r.Context(), req.Code)
	writeJSON(w, http.StatusOK, toCouponUpdateResponse(update))
}

// Finish handles POST /api/v1/sessions/{id}/finish
func (h *SessionController) Finish(w http.ResponseWriter, r *http.Request) {
	d, err := h.registry.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	d.Finish(r.Context())
	writeJSON(w, http.StatusOK, SessionResponse{
		SessionID:      d.ID(),
		Finished:       true,
		PaymentRequest: toPaymentRequestResponse(d.PaymentRequest()),
	})
}
