package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hstoff/storefront/internal/models"
)

// amounts are compared with a half-cent tolerance
const amountEpsilon = 0.005

// attempts to find a free order number before giving up
const orderNumberAttempts = 3

// OrderRepository is interface for interacting with the order ledger
type OrderRepository interface {
	// CreateOrder persists a new order atomically; a duplicate submission
	// within the idempotency window yields the existing order together with
	// models.ErrDuplicateOrder. A collision on the generated order number
	// yields models.ErrOrderNumberTaken and the caller picks a fresh number.
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// GetOrderByNumber returns order with its line items
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	// UpdateOrderStatus applies patch to the mutable order columns
	UpdateOrderStatus(ctx context.Context, number string, patch models.OrderPatch) (*models.Order, error)
	// SetInvoicePath stores the path of the rendered invoice document
	SetInvoicePath(ctx context.Context, number string, path string) error
	// SetPayPalOrder stores the processor-assigned authorization identifier
	SetPayPalOrder(ctx context.Context, number string, providerOrderID string) error
	// MarkNotificationFailed flags the order for manual notification follow-up
	MarkNotificationFailed(ctx context.Context, number string) error
	// ListOrders returns a filtered page of orders and the total match count
	ListOrders(ctx context.Context, filter models.OrderFilter, page, limit int) ([]models.Order, int, error)
	// ListAwaitingPayment returns stale awaiting_payment orders for reconciliation
	ListAwaitingPayment(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

// InvoiceRenderer turns an order snapshot into the invoice document
type InvoiceRenderer interface {
	Render(order *models.Order) (string, error)
}

// Dispatcher delivers the outbound order mails
type Dispatcher interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, invoicePath string) error
	SendShippingNotification(ctx context.Context, order *models.Order) error
}

// PaymentGateway creates and settles processor-side authorizations
type PaymentGateway interface {
	CreateAuthorization(ctx context.Context, order *models.Order) (*models.Authorization, error)
	Capture(ctx context.Context, providerOrderID string) (*models.CaptureResult, error)
	GetAuthorization(ctx context.Context, providerOrderID string) (*models.Authorization, error)
}

// CheckoutResult is the outcome of a checkout submission
type CheckoutResult struct {
	Order            *models.Order
	RedirectRequired bool
	ApprovalURL      string
	Duplicate        bool
}

// CheckoutService is the order fulfillment orchestrator: it sequences ledger
// write, invoice rendering, notification and payment authorization, and owns
// the per-order locking that keeps submit, capture and reconciliation from
// racing each other.
type CheckoutService struct {
	repo     OrderRepository
	renderer InvoiceRenderer
	mailer   Dispatcher
	gateway  PaymentGateway
	locks    *keyMutex
	logger   *zap.Logger
}

// NewCheckoutService creates new CheckoutService instance
func NewCheckoutService(repo OrderRepository, renderer InvoiceRenderer, mailer Dispatcher, gateway PaymentGateway, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		repo:     repo,
		renderer: renderer,
		mailer:   mailer,
		gateway:  gateway,
		locks:    newKeyMutex(),
		logger:   logger,
	}
}

// SubmitCheckout validates the cart, persists the order and runs the invoice,
// notification and authorization steps. A duplicate submission within the
// idempotency window resolves to the already created order. When invoice
// rendering fails the order stays persisted in status new and the call
// returns the order together with models.ErrInvoicePending.
func (cs *CheckoutService) SubmitCheckout(ctx context.Context, cart *models.Cart) (*CheckoutResult, error) {
	if err := validateCart(cart); err != nil {
		return nil, err
	}

	fingerprint := cart.IdempotencyKey
	if fingerprint == "" {
		fingerprint = models.OrderFingerprint(cart.Customer.Email, cart.Total, cart.Items)
	}

	unlock := cs.locks.Lock(fingerprint)
	defer unlock()

	order := newOrderFromCart(cart, fingerprint)

	created, err := cs.repo.CreateOrder(ctx, order)
	// the four random suffix characters can collide within a day; pick a
	// fresh number and try again
	for attempt := 1; errors.Is(err, models.ErrOrderNumberTaken) && attempt < orderNumberAttempts; attempt++ {
		cs.logger.Warn("order number collision", zap.String("order", order.OrderNumber))
		order.OrderNumber = models.NewOrderNumber(time.Now())
		created, err = cs.repo.CreateOrder(ctx, order)
	}
	if errors.Is(err, models.ErrDuplicateOrder) {
		return cs.resumeDuplicate(ctx, fingerprint, created)
	}
	if err != nil {
		return nil, err
	}

	cs.logger.Info("order created", zap.String("order", created.OrderNumber), zap.String("payment_method", created.PaymentMethod))

	invoicePath, err := cs.renderer.Render(created)
	if err != nil {
		cs.logger.Error("invoice rendering failed", zap.String("order", created.OrderNumber), zap.Error(err))
		return &CheckoutResult{Order: created}, models.ErrInvoicePending
	}
	if err := cs.repo.SetInvoicePath(ctx, created.OrderNumber, invoicePath); err != nil {
		return nil, err
	}
	created.InvoicePath = &invoicePath

	if err := cs.mailer.SendOrderConfirmation(ctx, created, invoicePath); err != nil {
		// non-fatal: the order is durably recorded, flag it for follow-up
		cs.logger.Error("order notification failed", zap.String("order", created.OrderNumber), zap.Error(err))
		if err := cs.repo.MarkNotificationFailed(ctx, created.OrderNumber); err != nil {
			cs.logger.Error("marking notification failure", zap.String("order", created.OrderNumber), zap.Error(err))
		}
		created.NotificationFailed = true
	}

	if created.PaymentMethod == models.PaymentMethodPayPal {
		return cs.authorize(ctx, created)
	}

	updated, err := cs.applyPatch(ctx, created, models.OrderPatch{OrderStatus: ptr(models.OrderStatusProcessing)})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{Order: updated}, nil
}

// resumeDuplicate returns the already created order. A paypal order whose
// authorization never got created (or whose previous one is void) gets a
// fresh authorization, one still waiting for approval gets its approval URL
// looked up again, so the client can always repeat the redirect.
func (cs *CheckoutService) resumeDuplicate(ctx context.Context, fingerprint string, order *models.Order) (*CheckoutResult, error) {
	cs.logger.Info("duplicate checkout resolved", zap.String("order", order.OrderNumber))

	// resume may write to the order, so it runs under the same lock as
	// capture and reconciliation
	if fingerprint != order.OrderNumber {
		unlock := cs.locks.Lock(order.OrderNumber)
		defer unlock()
	}

	result := &CheckoutResult{Order: order, Duplicate: true}

	if order.PaymentMethod != models.PaymentMethodPayPal {
		return result, nil
	}

	switch {
	case order.OrderStatus == models.OrderStatusNew:
		// the authorization step failed on the first submission, retry it
		return cs.reauthorize(ctx, order)

	case order.OrderStatus == models.OrderStatusAwaitingPayment && order.PayPalOrderID != nil:
		auth, err := cs.gateway.GetAuthorization(ctx, *order.PayPalOrderID)
		if err != nil {
			return result, nil
		}
		switch {
		case auth.Status == models.AuthorizationCreated && auth.ApprovalURL != "":
			result.RedirectRequired = true
			result.ApprovalURL = auth.ApprovalURL
		case auth.Status == models.AuthorizationFailed:
			// the previous authorization is void, open a new one
			return cs.reauthorize(ctx, order)
		}
	}

	return result, nil
}

func (cs *CheckoutService) reauthorize(ctx context.Context, order *models.Order) (*CheckoutResult, error) {
	result, err := cs.authorize(ctx, order)
	if result != nil {
		result.Duplicate = true
	}
	return result, err
}

func (cs *CheckoutService) authorize(ctx context.Context, order *models.Order) (*CheckoutResult, error) {
	auth, err := cs.gateway.CreateAuthorization(ctx, order)
	if err != nil {
		// the order is persisted; the client may retry checkout and the
		// duplicate path resumes from here
		cs.logger.Error("payment authorization failed", zap.String("order", order.OrderNumber), zap.Error(err))
		return &CheckoutResult{Order: order}, err
	}

	if err := cs.repo.SetPayPalOrder(ctx, order.OrderNumber, auth.ProviderOrderID); err != nil {
		return nil, err
	}
	order.PayPalOrderID = &auth.ProviderOrderID

	updated, err := cs.applyPatch(ctx, order, models.OrderPatch{OrderStatus: ptr(models.OrderStatusAwaitingPayment)})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		Order:            updated,
		RedirectRequired: true,
		ApprovalURL:      auth.ApprovalURL,
	}, nil
}

// CaptureCheckout settles the authorization of an awaiting_payment order.
// Repeating the call on an already settled order returns the settled order
// without touching the processor again.
func (cs *CheckoutService) CaptureCheckout(ctx context.Context, orderNumber string) (*models.Order, error) {
	unlock := cs.locks.Lock(orderNumber)
	defer unlock()

	order, err := cs.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	switch order.OrderStatus {
	case models.OrderStatusAwaitingPayment:
		// proceed with capture
	case models.OrderStatusPaymentFailed:
		return order, nil
	case models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusDelivered:
		if order.PaymentStatus == models.PaymentStatusPaid {
			return order, nil
		}
		return nil, models.ErrInvalidState
	default:
		return nil, models.ErrInvalidState
	}

	if order.PayPalOrderID == nil {
		return nil, models.ErrInvalidState
	}

	result, err := cs.gateway.Capture(ctx, *order.PayPalOrderID)
	if err != nil {
		// indeterminate: the order stays awaiting_payment until a retry or
		// the reconciliation pass settles it
		return nil, err
	}

	return cs.settle(ctx, order, result)
}

// settle applies a definite capture outcome to the ledger
func (cs *CheckoutService) settle(ctx context.Context, order *models.Order, result *models.CaptureResult) (*models.Order, error) {
	if result.Status == models.AuthorizationCompleted {
		if math.Abs(result.CapturedAmount-order.Total) > amountEpsilon {
			cs.logger.Error("captured amount differs from order total",
				zap.String("order", order.OrderNumber),
				zap.Float64("captured", result.CapturedAmount),
				zap.Float64("total", order.Total))
			return nil, models.ErrCaptureMismatch
		}

		updated, err := cs.applyPatch(ctx, order, models.OrderPatch{
			OrderStatus:   ptr(models.OrderStatusProcessing),
			PaymentStatus: ptr(models.PaymentStatusPaid),
		})
		if err != nil {
			return nil, err
		}
		cs.logger.Info("payment captured", zap.String("order", order.OrderNumber))

		// a degraded submission may have skipped the invoice and the mails;
		// the paid order is the last chance to deliver them
		if updated.InvoicePath == nil {
			cs.confirmPayment(ctx, updated)
		}
		return updated, nil
	}

	updated, err := cs.applyPatch(ctx, order, models.OrderPatch{
		OrderStatus:   ptr(models.OrderStatusPaymentFailed),
		PaymentStatus: ptr(models.PaymentStatusFailed),
	})
	if err != nil {
		return nil, err
	}
	cs.logger.Warn("payment capture failed", zap.String("order", order.OrderNumber))
	return updated, nil
}

// GetOrder returns an order by its externally visible number. Possession of
// the number is the customer's authorization.
func (cs *CheckoutService) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	return cs.repo.GetOrderByNumber(ctx, orderNumber)
}

// ReconcilePayments queries the processor's authoritative status for orders
// stuck in awaiting_payment and settles the determinate ones. It runs under
// the same per-order locks as capture.
func (cs *CheckoutService) ReconcilePayments(ctx context.Context, minAge time.Duration) error {
	stale, err := cs.repo.ListAwaitingPayment(ctx, time.Now().Add(-minAge))
	if err != nil {
		return err
	}

	for i := range stale {
		cs.reconcileOrder(ctx, stale[i].OrderNumber)
	}

	return nil
}

func (cs *CheckoutService) reconcileOrder(ctx context.Context, orderNumber string) {
	unlock := cs.locks.Lock(orderNumber)
	defer unlock()

	order, err := cs.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		cs.logger.Error("reconcile: loading order", zap.String("order", orderNumber), zap.Error(err))
		return
	}
	if order.OrderStatus != models.OrderStatusAwaitingPayment || order.PayPalOrderID == nil {
		return
	}

	auth, err := cs.gateway.GetAuthorization(ctx, *order.PayPalOrderID)
	if err != nil {
		cs.logger.Warn("reconcile: gateway lookup failed", zap.String("order", orderNumber), zap.Error(err))
		return
	}

	switch auth.Status {
	case models.AuthorizationCompleted:
		if _, err := cs.settle(ctx, order, &models.CaptureResult{Status: models.AuthorizationCompleted, CapturedAmount: auth.Amount}); err != nil {
			cs.logger.Error("reconcile: settling order", zap.String("order", orderNumber), zap.Error(err))
			return
		}
		cs.logger.Info("reconcile: settled paid order", zap.String("order", orderNumber))
	case models.AuthorizationFailed:
		if _, err := cs.settle(ctx, order, &models.CaptureResult{Status: models.AuthorizationFailed}); err != nil {
			cs.logger.Error("reconcile: settling order", zap.String("order", orderNumber), zap.Error(err))
			return
		}
		cs.logger.Info("reconcile: marked failed order", zap.String("order", orderNumber))
	default:
		// authorization still open, leave the order pending
	}
}

// confirmPayment renders the invoice if the order has none yet and sends the
// confirmations. Used after a capture that followed a degraded submission and
// by the admin paid-flip recovery. Failures are logged, never fatal.
func (cs *CheckoutService) confirmPayment(ctx context.Context, order *models.Order) {
	invoicePath := ""
	if order.InvoicePath != nil {
		invoicePath = *order.InvoicePath
	} else {
		path, err := cs.renderer.Render(order)
		if err != nil {
			cs.logger.Error("invoice rendering on payment confirmation failed", zap.String("order", order.OrderNumber), zap.Error(err))
		} else {
			if err := cs.repo.SetInvoicePath(ctx, order.OrderNumber, path); err != nil {
				cs.logger.Error("storing invoice path", zap.String("order", order.OrderNumber), zap.Error(err))
			}
			order.InvoicePath = &path
			invoicePath = path
		}
	}

	if err := cs.mailer.SendOrderConfirmation(ctx, order, invoicePath); err != nil {
		cs.logger.Error("confirmation on payment failed", zap.String("order", order.OrderNumber), zap.Error(err))
		if err := cs.repo.MarkNotificationFailed(ctx, order.OrderNumber); err != nil {
			cs.logger.Error("marking notification failure", zap.String("order", order.OrderNumber), zap.Error(err))
		}
	}
}

// applyPatch validates the requested transition and writes it to the ledger
func (cs *CheckoutService) applyPatch(ctx context.Context, order *models.Order, patch models.OrderPatch) (*models.Order, error) {
	if err := validatePatch(order, patch); err != nil {
		return nil, err
	}
	return cs.repo.UpdateOrderStatus(ctx, order.OrderNumber, patch)
}

func newOrderFromCart(cart *models.Cart, fingerprint string) *models.Order {
	customer := cart.Customer
	if customer.Country == "" {
		customer.Country = "Deutschland"
	}

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   models.NewOrderNumber(time.Now()),
		Customer:      customer,
		Items:         cart.Items,
		Subtotal:      cart.Subtotal,
		Shipping:      cart.Shipping,
		Total:         cart.Total,
		PaymentMethod: cart.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		OrderStatus:   models.OrderStatusNew,
		Fingerprint:   fingerprint,
	}

	if notes := strings.TrimSpace(cart.CustomerNotes); notes != "" {
		order.CustomerNotes = &notes
	}

	return order
}

func validateCart(cart *models.Cart) error {
	if len(cart.Items) == 0 {
		return fmt.Errorf("%w: cart has no items", models.ErrInvalidCart)
	}

	var itemSum float64
	for i, item := range cart.Items {
		if item.ProductID == "" || item.Name == "" {
			return fmt.Errorf("%w: item %d has no product reference", models.ErrInvalidCart, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has non-positive quantity", models.ErrInvalidCart, i)
		}
		if item.Price <= 0 {
			return fmt.Errorf("%w: item %d has non-positive price", models.ErrInvalidCart, i)
		}
		itemSum += item.Price * float64(item.Quantity)
	}

	if cart.Shipping < 0 {
		return fmt.Errorf("%w: negative shipping cost", models.ErrInvalidCart)
	}
	if math.Abs(itemSum-cart.Subtotal) > amountEpsilon {
		return fmt.Errorf("%w: subtotal does not match line items", models.ErrInvalidCart)
	}
	if math.Abs(cart.Subtotal+cart.Shipping-cart.Total) > amountEpsilon {
		return fmt.Errorf("%w: total does not equal subtotal plus shipping", models.ErrInvalidCart)
	}

	switch cart.PaymentMethod {
	case models.PaymentMethodPayPal, models.PaymentMethodInvoice, models.PaymentMethodPrepayment:
	default:
		return fmt.Errorf("%w: unknown payment method %q", models.ErrInvalidCart, cart.PaymentMethod)
	}

	c := cart.Customer
	required := map[string]string{
		"first name":   c.FirstName,
		"last name":    c.LastName,
		"email":        c.Email,
		"street":       c.Street,
		"house number": c.HouseNumber,
		"zip":          c.Zip,
		"city":         c.City,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: missing customer %s", models.ErrInvalidCart, field)
		}
	}
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("%w: invalid customer email", models.ErrInvalidCart)
	}

	return nil
}

func ptr(s string) *string {
	return &s
}
