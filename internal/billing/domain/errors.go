package domain

import "errors"

var (
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrPlanNotFound           = errors.New("plan not found")
	ErrSubscriptionNotActive  = errors.New("subscription is not active")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidTier            = errors.New("invalid plan tier")
	ErrInvalidPrice           = errors.New("price must not be negative")
	ErrEmptyPlanName          = errors.New("plan name cannot be empty")
	ErrInvoiceNotPayable      = errors.New("invoice cannot be paid in its current status")
	ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")
	ErrConcurrentModification = errors.New("record was modified concurrently")
	ErrInvalidRange           = errors.New("invalid range")
)
