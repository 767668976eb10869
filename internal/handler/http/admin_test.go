package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstoff/storefront/internal/models"
)

type stubAdminService struct {
	list   func(ctx context.Context, filter models.OrderFilter, page, limit int) ([]models.Order, int, error)
	get    func(ctx context.Context, orderNumber string) (*models.Order, error)
	update func(ctx context.Context, orderNumber string, patch models.OrderPatch) (*models.Order, error)
}

func (s *stubAdminService) ListOrders(ctx context.Context, filter models.OrderFilter, page, limit int) ([]models.Order, int, error) {
	return s.list(ctx, filter, page, limit)
}

func (s *stubAdminService) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.get(ctx, orderNumber)
}

func (s *stubAdminService) UpdateOrder(ctx context.Context, orderNumber string, patch models.OrderPatch) (*models.Order, error) {
	return s.update(ctx, orderNumber, patch)
}

func newAdminRouter(svc AdminService) http.Handler {
	ah := NewAdminHandler(svc)
	router := chi.NewRouter()
	router.Get("/api/orders/admin", ah.ListOrders())
	router.Get("/api/orders/admin/{orderNumber}", ah.GetOrder())
	router.Patch("/api/orders/admin/{orderNumber}", ah.UpdateOrder())
	router.Get("/api/orders/admin/{orderNumber}/invoice", ah.GetInvoice())
	return router
}

func TestListOrdersHandler(t *testing.T) {
	var gotFilter models.OrderFilter
	var gotPage, gotLimit int

	router := newAdminRouter(&stubAdminService{
		list: func(ctx context.Context, filter models.OrderFilter, page, limit int) ([]models.Order, int, error) {
			gotFilter, gotPage, gotLimit = filter, page, limit
			return []models.Order{*stubOrder(models.OrderStatusProcessing, models.PaymentStatusPaid)}, 1, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/admin?page=2&limit=10&status=processing&paymentStatus=paid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.OrderFilter{OrderStatus: "processing", PaymentStatus: "paid"}, gotFilter)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 10, gotLimit)

	var resp struct {
		Orders []orderResponse `json:"orders"`
		Total  int             `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Orders, 1)
}

func TestUpdateOrderHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		update     func(ctx context.Context, orderNumber string, patch models.OrderPatch) (*models.Order, error)
		wantStatus int
	}{
		{
			name: "updated",
			body: `{"orderStatus": "shipped", "trackingNumber": "00340434161094000001"}`,
			update: func(ctx context.Context, orderNumber string, patch models.OrderPatch) (*models.Order, error) {
				require.NotNil(t, patch.OrderStatus)
				assert.Equal(t, models.OrderStatusShipped, *patch.OrderStatus)
				require.NotNil(t, patch.TrackingNumber)
				return stubOrder(models.OrderStatusShipped, models.PaymentStatusPaid), nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty_patch",
			body:       `{}`,
			update:     nil,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid_transition",
			body: `{"orderStatus": "delivered"}`,
			update: func(ctx context.Context, orderNumber string, patch models.OrderPatch) (*models.Order, error) {
				return nil, models.ErrInvalidTransition
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "not_found",
			body: `{"orderStatus": "processing"}`,
			update: func(ctx context.Context, orderNumber string, patch models.OrderPatch) (*models.Order, error) {
				return nil, models.ErrOrderNotFound
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAdminRouter(&stubAdminService{update: tt.update})

			req := httptest.NewRequest(http.MethodPatch, "/api/orders/admin/HS-250114-7QX2", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetInvoiceHandler_NoInvoice(t *testing.T) {
	router := newAdminRouter(&stubAdminService{
		get: func(ctx context.Context, orderNumber string) (*models.Order, error) {
			return stubOrder(models.OrderStatusNew, models.PaymentStatusPending), nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/admin/HS-250114-7QX2/invoice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
