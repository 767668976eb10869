package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/hstoff/storefront/internal/models"
)

// AdminService serves the administrative order operations: listing, status
// updates, tracking numbers and the manual recovery paths.
type AdminService struct {
	repo     OrderRepository
	mailer   Dispatcher
	checkout *CheckoutService
	logger   *zap.Logger
}

// NewAdminService creates new AdminService instance. It shares the checkout
// service's per-order locks so admin updates never race a capture.
func NewAdminService(repo OrderRepository, mailer Dispatcher, checkout *CheckoutService, logger *zap.Logger) *AdminService {
	return &AdminService{
		repo:     repo,
		mailer:   mailer,
		checkout: checkout,
		logger:   logger,
	}
}

// ListOrders returns a page of orders and the total match count
func (as *AdminService) ListOrders(ctx context.Context, filter models.OrderFilter, page, limit int) ([]models.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return as.repo.ListOrders(ctx, filter, page, limit)
}

// GetOrder returns a single order
func (as *AdminService) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	return as.repo.GetOrderByNumber(ctx, orderNumber)
}

// UpdateOrder applies an admin patch to the mutable order fields. Unreachable
// status transitions fail with models.ErrInvalidTransition and leave the
// order unchanged. Flipping the payment status to paid renders a missing
// invoice and re-sends the confirmation (manual recovery after a degraded
// checkout); the shipped transition triggers the shipping notification.
func (as *AdminService) UpdateOrder(ctx context.Context, orderNumber string, patch models.OrderPatch) (*models.Order, error) {
	unlock := as.checkout.locks.Lock(orderNumber)
	defer unlock()

	order, err := as.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	if err := validatePatch(order, patch); err != nil {
		return nil, err
	}

	wasPaid := order.PaymentStatus == models.PaymentStatusPaid
	wasShipped := order.OrderStatus == models.OrderStatusShipped

	updated, err := as.repo.UpdateOrderStatus(ctx, orderNumber, patch)
	if err != nil {
		return nil, err
	}

	as.logger.Info("order updated by admin",
		zap.String("order", orderNumber),
		zap.String("order_status", updated.OrderStatus),
		zap.String("payment_status", updated.PaymentStatus))

	if !wasPaid && updated.PaymentStatus == models.PaymentStatusPaid {
		as.checkout.confirmPayment(ctx, updated)
	}
	if !wasShipped && updated.OrderStatus == models.OrderStatusShipped {
		if err := as.mailer.SendShippingNotification(ctx, updated); err != nil {
			as.logger.Error("shipping notification failed", zap.String("order", orderNumber), zap.Error(err))
		}
	}

	return updated, nil
}

