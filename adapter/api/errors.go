package api

import (
	"errors"
	"net/http"

	"github.com/felixgeelhaar/billora/internal/audit"
	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/billora/internal/billing/domain"
	identityDomain "github.com/felixgeelhaar/billora/internal/identity/domain"
	paymentDomain "github.com/felixgeelhaar/billora/internal/payment/domain"
)

// APIError represents an API error response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Common API errors.
var (
	ErrBadRequest     = &APIError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "Invalid request"}
	ErrUnauthorized   = &APIError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "Authentication required"}
	ErrNotFound       = &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Resource not found"}
	ErrInternalServer = &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "Internal server error"}
)

func badRequest(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: msg}
}

var notFoundErrors = []error{
	billingDomain.ErrSubscriptionNotFound,
	billingDomain.ErrInvoiceNotFound,
	billingDomain.ErrPlanNotFound,
	identityDomain.ErrUserNotFound,
	paymentDomain.ErrMethodNotFound,
	audit.ErrNoRevision,
}

var conflictErrors = []error{
	identityDomain.ErrEmailTaken,
	billingDomain.ErrDuplicateInvoiceNumber,
	billingDomain.ErrConcurrentModification,
	billingApp.ErrRunInProgress,
}

var unauthorizedErrors = []error{
	identityDomain.ErrInvalidCredentials,
	identityDomain.ErrInvalidToken,
}

var badRequestErrors = []error{
	billingDomain.ErrInvalidStatus,
	billingDomain.ErrInvalidTier,
	billingDomain.ErrInvalidPrice,
	billingDomain.ErrEmptyPlanName,
	billingDomain.ErrInvalidRange,
	identityDomain.ErrInvalidEmail,
	identityDomain.ErrFieldTooLong,
	identityDomain.ErrPasswordTooWeak,
	paymentDomain.ErrInvalidMethod,
	paymentDomain.ErrUnknownKind,
}

var unprocessableErrors = []error{
	billingDomain.ErrSubscriptionNotActive,
	billingDomain.ErrInvoiceNotPayable,
	paymentDomain.ErrMethodInactive,
	paymentDomain.ErrMethodNotOwned,
}

// mapError translates a service error into the response it deserves.
func mapError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case matchAny(err, notFoundErrors):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case matchAny(err, conflictErrors):
		return &APIError{Status: http.StatusConflict, Code: "CONFLICT", Message: err.Error()}
	case matchAny(err, unauthorizedErrors):
		return &APIError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: err.Error()}
	case matchAny(err, badRequestErrors):
		return badRequest(err.Error())
	case matchAny(err, unprocessableErrors):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "UNPROCESSABLE", Message: err.Error()}
	default:
		return ErrInternalServer
	}
}

func matchAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
