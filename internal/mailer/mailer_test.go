package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hstoff/storefront/internal/models"
)

func mailTestOrder(method string) *models.Order {
	return &models.Order{
		OrderNumber: "HS-250114-7QX2",
		Customer: models.Customer{
			FirstName: "Erika",
			LastName:  "Mustermann",
			Email:     "erika@example.com",
		},
		Items: []models.OrderItem{
			{ProductID: "fabric-1", Name: "Baumwollstoff", Price: 10.00, Quantity: 2},
			{ProductID: "fabric-2", Name: "Jersey", Price: 5.50, Quantity: 1},
		},
		Subtotal:      25.50,
		Total:         25.50,
		PaymentMethod: method,
		PaymentStatus: models.PaymentStatusPending,
		OrderStatus:   models.OrderStatusNew,
	}
}

func TestCustomerBody(t *testing.T) {
	body := customerBody(mailTestOrder(models.PaymentMethodInvoice))

	assert.Contains(t, body, "HS-250114-7QX2")
	assert.Contains(t, body, "Baumwollstoff x 2")
	assert.Contains(t, body, "Gesamtsumme: 25.50 EUR")
	assert.Contains(t, body, "Zahlungsart: Rechnung")
	assert.Contains(t, body, "IBAN: DE21 3545 0000 1201 2022 96")
	assert.Contains(t, body, "Verwendungszweck: HS-250114-7QX2")
	assert.Contains(t, body, "innerhalb von 14 Tagen")
}

func TestCustomerBody_PayPalOmitsBankDetails(t *testing.T) {
	body := customerBody(mailTestOrder(models.PaymentMethodPayPal))

	assert.Contains(t, body, "Zahlungsart: PayPal")
	assert.NotContains(t, body, "IBAN")
}

func TestCustomerBody_Prepayment(t *testing.T) {
	body := customerBody(mailTestOrder(models.PaymentMethodPrepayment))

	assert.Contains(t, body, "Zahlungsart: Vorkasse")
	assert.Contains(t, body, "vor dem Versand")
}

func TestShopBody(t *testing.T) {
	order := mailTestOrder(models.PaymentMethodInvoice)
	notes := "Bitte als Geschenk verpacken"
	order.CustomerNotes = &notes

	body := shopBody(order)

	assert.Contains(t, body, "Neue Bestellung eingegangen!")
	assert.Contains(t, body, "Erika Mustermann")
	assert.Contains(t, body, "erika@example.com")
	assert.Contains(t, body, "Kundenanmerkungen: Bitte als Geschenk verpacken")
	assert.Contains(t, body, "Vollständige Bestelldaten:")
}

func TestShippingBody(t *testing.T) {
	order := mailTestOrder(models.PaymentMethodInvoice)

	body := shippingBody(order)
	assert.Contains(t, body, "wurde versandt")
	assert.NotContains(t, body, "Sendungsnummer")

	tracking := "00340434161094000001"
	order.TrackingNumber = &tracking
	body = shippingBody(order)
	assert.Contains(t, body, "Sendungsnummer: 00340434161094000001")
}
