package service

import "github.com/hstoff/storefront/internal/models"

// orderTransitions is the closed reachability table of the order lifecycle.
// delivered and cancelled are terminal; payment_failed exits only through an
// admin intervention back to processing.
var orderTransitions = map[string][]string{
	models.OrderStatusNew:             {models.OrderStatusAwaitingPayment, models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusAwaitingPayment: {models.OrderStatusProcessing, models.OrderStatusPaymentFailed, models.OrderStatusCancelled},
	models.OrderStatusProcessing:      {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusPaymentFailed:   {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusShipped:         {models.OrderStatusDelivered},
	models.OrderStatusDelivered:       {},
	models.OrderStatusCancelled:       {},
}

var paymentTransitions = map[string][]string{
	models.PaymentStatusPending:  {models.PaymentStatusPaid, models.PaymentStatusFailed},
	models.PaymentStatusFailed:   {models.PaymentStatusPaid},
	models.PaymentStatusPaid:     {models.PaymentStatusRefunded},
	models.PaymentStatusRefunded: {},
}

func canTransition(table map[string][]string, from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// validatePatch checks that the requested statuses are reachable from the
// current ones. The order is left untouched when the check fails.
func validatePatch(order *models.Order, patch models.OrderPatch) error {
	if patch.OrderStatus != nil {
		if _, known := orderTransitions[*patch.OrderStatus]; !known {
			return models.ErrInvalidTransition
		}
		if !canTransition(orderTransitions, order.OrderStatus, *patch.OrderStatus) {
			return models.ErrInvalidTransition
		}
	}
	if patch.PaymentStatus != nil {
		if _, known := paymentTransitions[*patch.PaymentStatus]; !known {
			return models.ErrInvalidTransition
		}
		if !canTransition(paymentTransitions, order.PaymentStatus, *patch.PaymentStatus) {
			return models.ErrInvalidTransition
		}
	}
	return nil
}
