package models

// capture status of an authorization
const (
	AuthorizationCreated   = "created"
	AuthorizationCompleted = "completed"
	AuthorizationFailed    = "failed"
)

// Authorization is a processor-side hold on funds, capturable later. The
// order only ever stores ProviderOrderID; gateway-side state stays with the
// processor.
type Authorization struct {
	ProviderOrderID string
	ApprovalURL     string
	Amount          float64
	Currency        string
	Status          string
}

// CaptureResult is the outcome of finalizing an authorization
type CaptureResult struct {
	Status         string
	CapturedAmount float64
}
