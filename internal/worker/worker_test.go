package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubCheckoutService struct {
	calls atomic.Int64
}

func (s *stubCheckoutService) ReconcilePayments(ctx context.Context, minAge time.Duration) error {
	s.calls.Add(1)
	return nil
}

func TestPaymentReconciler_Run(t *testing.T) {
	svc := &stubCheckoutService{}
	pr := NewPaymentReconciler(svc, 10*time.Millisecond, time.Minute, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pr.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop on context cancellation")
	}

	assert.Greater(t, svc.calls.Load(), int64(0), "reconciliation must run on the ticker")
}
