package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CheckoutService is the part of the orchestrator the worker drives
type CheckoutService interface {
	// ReconcilePayments settles stale awaiting_payment orders against the
	// processor's authoritative state
	ReconcilePayments(ctx context.Context, minAge time.Duration) error
}

// PaymentReconciler periodically resolves orders whose payment outcome is
// locally indeterminate (gateway timeout, abandoned redirect).
type PaymentReconciler struct {
	svc      CheckoutService
	interval time.Duration
	minAge   time.Duration
	logger   *zap.Logger
}

// NewPaymentReconciler creates new payment reconciler
func NewPaymentReconciler(svc CheckoutService, interval, minAge time.Duration, logger *zap.Logger) *PaymentReconciler {
	return &PaymentReconciler{
		svc:      svc,
		interval: interval,
		minAge:   minAge,
		logger:   logger,
	}
}

// Run blocks until ctx is done
func (pr *PaymentReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(pr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pr.logger.Debug("payment reconciler is done")
			return
		case <-ticker.C:
			if err := pr.svc.ReconcilePayments(ctx, pr.minAge); err != nil {
				pr.logger.Error("payment reconciliation pass failed", zap.Error(err))
			}
		}
	}
}
