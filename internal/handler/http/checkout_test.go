package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstoff/storefront/internal/models"
	"github.com/hstoff/storefront/internal/service"
)

// stubCheckoutService lets each test script the orchestrator's answers
type stubCheckoutService struct {
	submit  func(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error)
	capture func(ctx context.Context, orderNumber string) (*models.Order, error)
	get     func(ctx context.Context, orderNumber string) (*models.Order, error)
}

func (s *stubCheckoutService) SubmitCheckout(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error) {
	return s.submit(ctx, cart)
}

func (s *stubCheckoutService) CaptureCheckout(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.capture(ctx, orderNumber)
}

func (s *stubCheckoutService) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.get(ctx, orderNumber)
}

func newCheckoutRouter(svc CheckoutService) http.Handler {
	ch := NewCheckoutHandler(svc)
	router := chi.NewRouter()
	router.Post("/api/checkout", ch.SubmitCheckout())
	router.Post("/api/checkout/capture/{orderNumber}", ch.CaptureCheckout())
	router.Get("/api/checkout/order/{orderNumber}", ch.GetOrder())
	return router
}

func stubOrder(orderStatus, paymentStatus string) *models.Order {
	return &models.Order{
		OrderNumber: "HS-250114-7QX2",
		Customer: models.Customer{
			FirstName: "Erika", LastName: "Mustermann", Email: "erika@example.com",
			Street: "Musterstraße", HouseNumber: "12", Zip: "47495", City: "Rheinberg",
		},
		Items: []models.OrderItem{
			{ProductID: "fabric-1", Name: "Baumwollstoff", Price: 10.00, Quantity: 2},
		},
		Subtotal:      20.00,
		Total:         20.00,
		PaymentMethod: models.PaymentMethodPayPal,
		PaymentStatus: paymentStatus,
		OrderStatus:   orderStatus,
	}
}

const checkoutBody = `{
	"customer": {
		"firstName": "Erika", "lastName": "Mustermann", "email": "erika@example.com",
		"street": "Musterstraße", "houseNumber": "12", "zip": "47495", "city": "Rheinberg"
	},
	"items": [{"productId": "fabric-1", "name": "Baumwollstoff", "price": 10.00, "quantity": 2}],
	"subtotal": 20.00,
	"shipping": 0,
	"total": 20.00,
	"paymentMethod": "paypal"
}`

func TestSubmitCheckoutHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submit     func(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error)
		wantStatus int
		wantInBody string
	}{
		{
			name: "created",
			body: checkoutBody,
			submit: func(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error) {
				return &service.CheckoutResult{
					Order:            stubOrder(models.OrderStatusAwaitingPayment, models.PaymentStatusPending),
					RedirectRequired: true,
					ApprovalURL:      "https://paypal.example/approve",
				}, nil
			},
			wantStatus: http.StatusCreated,
			wantInBody: `"approvalUrl":"https://paypal.example/approve"`,
		},
		{
			name: "duplicate_returns_200",
			body: checkoutBody,
			submit: func(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error) {
				return &service.CheckoutResult{
					Order:     stubOrder(models.OrderStatusProcessing, models.PaymentStatusPending),
					Duplicate: true,
				}, nil
			},
			wantStatus: http.StatusOK,
			wantInBody: `"orderNumber":"HS-250114-7QX2"`,
		},
		{
			name: "invalid_cart",
			body: checkoutBody,
			submit: func(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error) {
				return nil, fmt.Errorf("%w: cart has no items", models.ErrInvalidCart)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed_json",
			body:       `{"items": [`,
			submit:     nil,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invoice_pending_still_201",
			body: checkoutBody,
			submit: func(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error) {
				return &service.CheckoutResult{
					Order: stubOrder(models.OrderStatusNew, models.PaymentStatusPending),
				}, models.ErrInvoicePending
			},
			wantStatus: http.StatusCreated,
			wantInBody: `"warning"`,
		},
		{
			name: "gateway_down_returns_502_with_order",
			body: checkoutBody,
			submit: func(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error) {
				return &service.CheckoutResult{
					Order: stubOrder(models.OrderStatusNew, models.PaymentStatusPending),
				}, fmt.Errorf("%w: timeout", models.ErrGatewayUnavailable)
			},
			wantStatus: http.StatusBadGateway,
			wantInBody: `"orderNumber":"HS-250114-7QX2"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newCheckoutRouter(&stubCheckoutService{submit: tt.submit})

			req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantInBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantInBody)
			}
		})
	}
}

func TestSubmitCheckoutHandler_ForwardsIdempotencyKey(t *testing.T) {
	var gotKey string
	router := newCheckoutRouter(&stubCheckoutService{
		submit: func(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error) {
			gotKey = cart.IdempotencyKey
			return &service.CheckoutResult{Order: stubOrder(models.OrderStatusProcessing, models.PaymentStatusPending)}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(checkoutBody))
	req.Header.Set("Idempotency-Key", "client-key-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "client-key-42", gotKey)
}

func TestCaptureCheckoutHandler(t *testing.T) {
	tests := []struct {
		name       string
		capture    func(ctx context.Context, orderNumber string) (*models.Order, error)
		wantStatus int
	}{
		{
			name: "settled",
			capture: func(ctx context.Context, orderNumber string) (*models.Order, error) {
				return stubOrder(models.OrderStatusProcessing, models.PaymentStatusPaid), nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "declined",
			capture: func(ctx context.Context, orderNumber string) (*models.Order, error) {
				return stubOrder(models.OrderStatusPaymentFailed, models.PaymentStatusFailed), nil
			},
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name: "not_found",
			capture: func(ctx context.Context, orderNumber string) (*models.Order, error) {
				return nil, models.ErrOrderNotFound
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "not_awaiting_payment",
			capture: func(ctx context.Context, orderNumber string) (*models.Order, error) {
				return nil, models.ErrInvalidState
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "gateway_unavailable",
			capture: func(ctx context.Context, orderNumber string) (*models.Order, error) {
				return nil, fmt.Errorf("%w: timeout", models.ErrGatewayUnavailable)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "amount_mismatch",
			capture: func(ctx context.Context, orderNumber string) (*models.Order, error) {
				return nil, models.ErrCaptureMismatch
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newCheckoutRouter(&stubCheckoutService{capture: tt.capture})

			req := httptest.NewRequest(http.MethodPost, "/api/checkout/capture/HS-250114-7QX2", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetOrderHandler(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{
		get: func(ctx context.Context, orderNumber string) (*models.Order, error) {
			if orderNumber != "HS-250114-7QX2" {
				return nil, models.ErrOrderNotFound
			}
			return stubOrder(models.OrderStatusProcessing, models.PaymentStatusPaid), nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/order/HS-250114-7QX2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "HS-250114-7QX2", resp.OrderNumber)
	assert.Equal(t, models.PaymentStatusPaid, resp.PaymentStatus)

	req = httptest.NewRequest(http.MethodGet, "/api/checkout/order/HS-000000-ZZZZ", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
