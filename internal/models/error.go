package models

import "errors"

var (
	ErrInvalidCart        = errors.New("invalid cart snapshot")
	ErrDuplicateOrder     = errors.New("order already submitted")
	ErrOrderNumberTaken   = errors.New("order number already taken")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrInvalidState       = errors.New("order is not in a valid state for this operation")
	ErrRenderFailed       = errors.New("invoice rendering failed")
	ErrInvoicePending     = errors.New("order created, invoice rendering pending")
	ErrDeliveryFailed     = errors.New("notification delivery failed")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrCaptureDeclined    = errors.New("payment capture declined")
	ErrCaptureMismatch    = errors.New("captured amount differs from order total")
	ErrInvalidCredentials = errors.New("invalid login or password")
)
