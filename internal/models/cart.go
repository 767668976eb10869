package models

// Cart is the checkout submission as handed over by the storefront. Product
// ids and prices were validated at cart-build time by the catalog; the
// pipeline only checks internal consistency.
type Cart struct {
	Customer      Customer
	Items         []OrderItem
	Subtotal      float64
	Shipping      float64
	Total         float64
	PaymentMethod string
	CustomerNotes string
	// IdempotencyKey is optional. When the client supplies one it replaces
	// the content fingerprint for duplicate detection.
	IdempotencyKey string
}
