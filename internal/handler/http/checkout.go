package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hstoff/storefront/internal/models"
	"github.com/hstoff/storefront/internal/service"
)

// CheckoutService is the orchestrator surface the checkout handlers use
type CheckoutService interface {
	SubmitCheckout(ctx context.Context, cart *models.Cart) (*service.CheckoutResult, error)
	CaptureCheckout(ctx context.Context, orderNumber string) (*models.Order, error)
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
}

// CheckoutHandler represents HTTP handler for checkout-related requests
type CheckoutHandler struct {
	svc CheckoutService
}

// NewCheckoutHandler creates new CheckoutHandler instance
func NewCheckoutHandler(svc CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

type checkoutRequest struct {
	Customer struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		Street      string `json:"street"`
		HouseNumber string `json:"houseNumber"`
		Zip         string `json:"zip"`
		City        string `json:"city"`
		Country     string `json:"country"`
	} `json:"customer"`
	Items []struct {
		ProductID string  `json:"productId"`
		Name      string  `json:"name"`
		Price     float64 `json:"price"`
		Quantity  int     `json:"quantity"`
		ImageURL  string  `json:"imageUrl"`
	} `json:"items"`
	Subtotal      float64 `json:"subtotal"`
	Shipping      float64 `json:"shipping"`
	Total         float64 `json:"total"`
	PaymentMethod string  `json:"paymentMethod"`
	CustomerNotes string  `json:"customerNotes"`
}

type checkoutResponse struct {
	Order       orderResponse `json:"order"`
	ApprovalURL string        `json:"approvalUrl,omitempty"`
	Warning     string        `json:"warning,omitempty"`
}

// SubmitCheckout accepts a cart snapshot and runs the fulfillment pipeline
// 201 — order created
// 200 — duplicate submission, existing order returned
// 400 — malformed or inconsistent cart
// 502 — payment gateway unavailable (order persisted)
// 500 — internal error
func (ch *CheckoutHandler) SubmitCheckout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		cart := models.Cart{
			Customer: models.Customer{
				FirstName:   req.Customer.FirstName,
				LastName:    req.Customer.LastName,
				Email:       req.Customer.Email,
				Phone:       req.Customer.Phone,
				Street:      req.Customer.Street,
				HouseNumber: req.Customer.HouseNumber,
				Zip:         req.Customer.Zip,
				City:        req.Customer.City,
				Country:     req.Customer.Country,
			},
			Subtotal:       req.Subtotal,
			Shipping:       req.Shipping,
			Total:          req.Total,
			PaymentMethod:  req.PaymentMethod,
			CustomerNotes:  req.CustomerNotes,
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
		}
		for _, item := range req.Items {
			cart.Items = append(cart.Items, models.OrderItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     item.Price,
				Quantity:  item.Quantity,
				ImageURL:  item.ImageURL,
			})
		}

		result, err := ch.svc.SubmitCheckout(r.Context(), &cart)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrInvalidCart):
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			case errors.Is(err, models.ErrInvoicePending):
				// the order is persisted; tell the customer instead of
				// pretending the checkout vanished
				writeJSON(w, http.StatusCreated, checkoutResponse{
					Order:   newOrderResponse(result.Order),
					Warning: "invoice generation pending, you will receive it separately",
				})
				return
			case errors.Is(err, models.ErrGatewayUnavailable), errors.Is(err, models.ErrCaptureDeclined):
				writeJSON(w, http.StatusBadGateway, checkoutResponse{
					Order:   newOrderResponse(result.Order),
					Warning: "payment setup failed, please retry the checkout",
				})
				return
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}

		writeJSON(w, status, checkoutResponse{
			Order:       newOrderResponse(result.Order),
			ApprovalURL: result.ApprovalURL,
		})
	}
}

// CaptureCheckout finalizes the payment of an awaiting_payment order
// 200 — order settled (repeat calls return the settled order)
// 402 — processor rejected the payment
// 404 — unknown order number
// 409 — order is not awaiting payment
// 502 — gateway outcome indeterminate, retry later
func (ch *CheckoutHandler) CaptureCheckout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := chi.URLParam(r, "orderNumber")
		if orderNumber == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		order, err := ch.svc.CaptureCheckout(r.Context(), orderNumber)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, models.ErrInvalidState):
				http.Error(w, "order is not awaiting payment", http.StatusConflict)
			case errors.Is(err, models.ErrGatewayUnavailable):
				http.Error(w, "payment gateway unavailable, retry later", http.StatusBadGateway)
			case errors.Is(err, models.ErrCaptureMismatch):
				http.Error(w, "payment inconsistency detected, please contact the shop", http.StatusInternalServerError)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		status := http.StatusOK
		if order.PaymentStatus == models.PaymentStatusFailed {
			status = http.StatusPaymentRequired
		}

		writeJSON(w, status, newOrderResponse(order))
	}
}

// GetOrder returns an order for the customer confirmation page
// 200 — order found
// 404 — unknown order number
func (ch *CheckoutHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := chi.URLParam(r, "orderNumber")

		order, err := ch.svc.GetOrder(r.Context(), orderNumber)
		if err != nil {
			if errors.Is(err, models.ErrOrderNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, newOrderResponse(order))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		return
	}
}
