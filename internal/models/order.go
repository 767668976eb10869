package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// order status
const (
	OrderStatusNew             = "new"
	OrderStatusAwaitingPayment = "awaiting_payment"
	OrderStatusProcessing      = "processing"
	OrderStatusShipped         = "shipped"
	OrderStatusDelivered       = "delivered"
	OrderStatusPaymentFailed   = "payment_failed"
	OrderStatusCancelled       = "cancelled"
)

// payment status
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// payment method
const (
	PaymentMethodPayPal     = "paypal"
	PaymentMethodInvoice    = "invoice"
	PaymentMethodPrepayment = "prepayment"
)

// Customer is billing and shipping contact of an order
type Customer struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Street      string
	HouseNumber string
	Zip         string
	City        string
	Country     string
}

// OrderItem is single order line
type OrderItem struct {
	ProductID string
	Name      string
	Price     float64
	Quantity  int
	ImageURL  string
}

// Order is order entity. Subtotal, Shipping, Total and the line items are
// fixed at creation time. Only payment status, order status, tracking number,
// invoice path and the notification flag may change afterwards.
type Order struct {
	ID                 uuid.UUID
	OrderNumber        string
	Customer           Customer
	Items              []OrderItem
	Subtotal           float64
	Shipping           float64
	Total              float64
	PaymentMethod      string
	PaymentStatus      string
	OrderStatus        string
	PayPalOrderID      *string
	InvoicePath        *string
	TrackingNumber     *string
	CustomerNotes      *string
	NotificationFailed bool
	Fingerprint        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrderPatch carries the mutable order fields. Nil fields are left untouched.
type OrderPatch struct {
	OrderStatus    *string
	PaymentStatus  *string
	TrackingNumber *string
}

// OrderFilter restricts admin order listings
type OrderFilter struct {
	OrderStatus   string
	PaymentStatus string
}

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrderNumber generates externally visible order number, e.g. HS-250114-7QX2
func NewOrderNumber(now time.Time) string {
	var b strings.Builder
	b.WriteString("HS-")
	b.WriteString(now.Format("060102"))
	b.WriteString("-")
	alphabetLen := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := 0; i < 4; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			n = big.NewInt(int64(i))
		}
		b.WriteByte(orderNumberAlphabet[n.Int64()])
	}
	return b.String()
}

// OrderFingerprint derives the duplicate-detection key of a submission from
// the customer email, the total and the line items. Items are sorted so that
// cart ordering does not change the key.
func OrderFingerprint(email string, total float64, items []OrderItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s:%d:%.2f", item.ProductID, item.Quantity, item.Price))
	}
	sort.Strings(lines)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%.2f|%s", strings.ToLower(strings.TrimSpace(email)), total, strings.Join(lines, ";"))
	return hex.EncodeToString(h.Sum(nil))
}
