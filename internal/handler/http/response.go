package handler

import (
	"time"

	"github.com/hstoff/storefront/internal/models"
)

type customerResponse struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber"`
	Zip         string `json:"zip"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

type itemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

type orderResponse struct {
	OrderNumber        string           `json:"orderNumber"`
	Customer           customerResponse `json:"customer"`
	Items              []itemResponse   `json:"items"`
	Subtotal           float64          `json:"subtotal"`
	Shipping           float64          `json:"shipping"`
	Total              float64          `json:"total"`
	PaymentMethod      string           `json:"paymentMethod"`
	PaymentStatus      string           `json:"paymentStatus"`
	OrderStatus        string           `json:"orderStatus"`
	PayPalOrderID      *string          `json:"paypalOrderId,omitempty"`
	InvoicePath        *string          `json:"invoicePath,omitempty"`
	TrackingNumber     *string          `json:"trackingNumber,omitempty"`
	CustomerNotes      *string          `json:"customerNotes,omitempty"`
	NotificationFailed bool             `json:"notificationFailed,omitempty"`
	CreatedAt          string           `json:"createdAt"`
	UpdatedAt          string           `json:"updatedAt"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]itemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}

	return orderResponse{
		OrderNumber: order.OrderNumber,
		Customer: customerResponse{
			FirstName:   order.Customer.FirstName,
			LastName:    order.Customer.LastName,
			Email:       order.Customer.Email,
			Phone:       order.Customer.Phone,
			Street:      order.Customer.Street,
			HouseNumber: order.Customer.HouseNumber,
			Zip:         order.Customer.Zip,
			City:        order.Customer.City,
			Country:     order.Customer.Country,
		},
		Items:              items,
		Subtotal:           order.Subtotal,
		Shipping:           order.Shipping,
		Total:              order.Total,
		PaymentMethod:      order.PaymentMethod,
		PaymentStatus:      order.PaymentStatus,
		OrderStatus:        order.OrderStatus,
		PayPalOrderID:      order.PayPalOrderID,
		InvoicePath:        order.InvoicePath,
		TrackingNumber:     order.TrackingNumber,
		CustomerNotes:      order.CustomerNotes,
		NotificationFailed: order.NotificationFailed,
		CreatedAt:          order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          order.UpdatedAt.Format(time.RFC3339),
	}
}
