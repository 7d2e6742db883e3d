package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrSessionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrSessionFinished, http.StatusConflict, "session_finished"},
	{domainErrors.ErrSessionAlreadyActive, http.StatusConflict, "session_active"},
	{domainErrors.ErrInvalidCouponCode, http.StatusBadRequest, "invalid_coupon_code"},
	{domainErrors.ErrCouponUnsupported, http.StatusUnprocessableEntity, "coupon_unsupported"},
	{domainErrors.ErrCouponSuperseded, http.StatusConflict, "coupon_superseded"},
	{domainErrors.ErrCouponRejected, http.StatusUnprocessableEntity, "coupon_rejected"},
	{domainErrors.ErrPricingTimeout, http.StatusGatewayTimeout, "pricing_timeout"},
	{domainErrors.ErrPricingUnavailable, http.StatusServiceUnavailable, "pricing_unavailable"},
	{domainErrors.ErrEmptyOrder, http.StatusBadRequest, "empty_order"},
	{domainErrors.ErrInvalidCurrency, http.StatusBadRequest, "invalid_currency"},
	{domainErrors.ErrSessionSetup, http.StatusUnprocessableEntity, "session_setup_failed"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Namespace(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
