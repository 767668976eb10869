package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hstoff/storefront/internal/models"
)

// AdminService is the order administration surface
type AdminService interface {
	ListOrders(ctx context.Context, filter models.OrderFilter, page, limit int) ([]models.Order, int, error)
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderNumber string, patch models.OrderPatch) (*models.Order, error)
}

// AdminHandler represents HTTP handler for admin order requests
type AdminHandler struct {
	svc AdminService
}

// NewAdminHandler creates new AdminHandler instance
func NewAdminHandler(svc AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// ListOrders returns a filtered page of orders, newest first
// 200 — successful listing
// 401 — not authenticated
// 500 — internal error
func (ah *AdminHandler) ListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 {
			limit = 20
		}

		filter := models.OrderFilter{
			OrderStatus:   r.URL.Query().Get("status"),
			PaymentStatus: r.URL.Query().Get("paymentStatus"),
		}

		orders, total, err := ah.svc.ListOrders(r.Context(), filter, page, limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := orderListResponse{
			Orders: make([]orderResponse, 0, len(orders)),
			Total:  total,
			Page:   page,
			Limit:  limit,
		}
		for i := range orders {
			resp.Orders = append(resp.Orders, newOrderResponse(&orders[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// GetOrder returns a single order
// 200 — order found
// 404 — unknown order number
func (ah *AdminHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := ah.svc.GetOrder(r.Context(), chi.URLParam(r, "orderNumber"))
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

type orderPatchRequest struct {
	OrderStatus    *string `json:"orderStatus"`
	PaymentStatus  *string `json:"paymentStatus"`
	TrackingNumber *string `json:"trackingNumber"`
}

// UpdateOrder patches the mutable order fields
// 200 — order updated
// 400 — empty or malformed patch
// 404 — unknown order number
// 409 — requested status not reachable from the current one
func (ah *AdminHandler) UpdateOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderPatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if req.OrderStatus == nil && req.PaymentStatus == nil && req.TrackingNumber == nil {
			http.Error(w, "empty patch", http.StatusBadRequest)
			return
		}

		order, err := ah.svc.UpdateOrder(r.Context(), chi.URLParam(r, "orderNumber"), models.OrderPatch{
			OrderStatus:    req.OrderStatus,
			PaymentStatus:  req.PaymentStatus,
			TrackingNumber: req.TrackingNumber,
		})
		if err != nil {
			switch {
			case errors.Is(err, models.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, models.ErrInvalidTransition):
				http.Error(w, "status transition not allowed", http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, newOrderResponse(order))
	}
}

// GetInvoice serves the generated invoice document of an order
// 200 — invoice PDF
// 404 — unknown order or no invoice rendered yet
func (ah *AdminHandler) GetInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := ah.svc.GetOrder(r.Context(), chi.URLParam(r, "orderNumber"))
		if err != nil {
			if errors.Is(err, models.ErrOrderNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if order.InvoicePath == nil {
			http.Error(w, "no invoice for this order", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		http.ServeFile(w, r, *order.InvoicePath)
	}
}
