package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

const (
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidID          = "invalid_id"
	codeInvalidAccount     = "invalid_account"
	codeMissingAccount     = "missing_account"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var domainErrors = []errorMapping{
	{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{domain.ErrNotOwner, http.StatusForbidden, "not_owner"},
	{domain.ErrNotOwnerOrApproved, http.StatusForbidden, "not_owner_or_approved"},
	{domain.ErrNotSellerOrAdmin, http.StatusForbidden, "not_seller_or_admin"},

	{domain.ErrUnknownEvent, http.StatusNotFound, "event_not_found"},
	{domain.ErrUnknownTicket, http.StatusNotFound, "ticket_not_found"},
	{domain.ErrUnknownListing, http.StatusNotFound, "listing_not_found"},

	{domain.ErrInvalidEvent, http.StatusBadRequest, "invalid_event"},
	{domain.ErrInvalidSchedule, http.StatusBadRequest, "invalid_schedule"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrInvalidAccount, http.StatusBadRequest, codeInvalidAccount},
	{domain.ErrUnknownRole, http.StatusBadRequest, "unknown_role"},
	{domain.ErrUnknownScope, http.StatusBadRequest, "unknown_scope"},

	{domain.ErrInsufficientPayment, http.StatusPaymentRequired, "insufficient_payment"},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{domain.ErrPriceTooHigh, http.StatusUnprocessableEntity, "price_too_high"},

	{domain.ErrEventInactive, http.StatusConflict, "event_inactive"},
	{domain.ErrOutsideWindow, http.StatusConflict, "outside_window"},
	{domain.ErrSoldOut, http.StatusConflict, "sold_out"},
	{domain.ErrBuyerLimitExceeded, http.StatusConflict, "buyer_limit_exceeded"},
	{domain.ErrAlreadyUsed, http.StatusConflict, "already_used"},
	{domain.ErrTicketNotValid, http.StatusConflict, "ticket_not_valid"},
	{domain.ErrTicketNoLongerValid, http.StatusConflict, "ticket_no_longer_valid"},
	{domain.ErrNoActiveListing, http.StatusConflict, "no_active_listing"},
	{domain.ErrMarketNotApproved, http.StatusConflict, "market_not_approved"},
	{domain.ErrForeignRegistry, http.StatusConflict, "foreign_registry"},
	{domain.ErrLastAdmin, http.StatusConflict, "last_admin"},
}

// writeServiceError maps domain errors to their status and code. Anything
// else is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, m.err.Error())
			return
		}
	}
	loggerFrom(r.Context()).ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
