package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/hstoff/storefront/internal/models"
)

const (
	// one initial attempt plus two retries, doubling backoff
	maxAttempts    = 3
	initialBackoff = 2 * time.Second
)

// Config carries the SMTP connection settings and the two fixed addresses
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	From      string
	ShopEmail string
}

// Mailer delivers order mails over SMTP. It is stateless apart from the
// connection settings; every send dials a fresh session.
type Mailer struct {
	cfg    Config
	logger *zap.Logger
}

// New creates new Mailer instance
func New(cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// SendOrderConfirmation delivers the confirmation to the customer and the
// order notification to the shop address, both with the invoice attached.
// invoicePath may be empty when rendering failed; the mails then go out
// without attachment.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, order *models.Order, invoicePath string) error {
	customer, err := m.newMessage(order.Customer.Email,
		fmt.Sprintf("Bestellbestätigung #%s - Henkes Stoffzauber", order.OrderNumber),
		customerBody(order), invoicePath, order.OrderNumber)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}

	shop, err := m.newMessage(m.cfg.ShopEmail,
		fmt.Sprintf("Neue Bestellung #%s", order.OrderNumber),
		shopBody(order), invoicePath, order.OrderNumber)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}

	if err := m.send(ctx, order.OrderNumber, customer); err != nil {
		return err
	}
	return m.send(ctx, order.OrderNumber, shop)
}

// SendShippingNotification tells the customer the order went out
func (m *Mailer) SendShippingNotification(ctx context.Context, order *models.Order) error {
	msg, err := m.newMessage(order.Customer.Email,
		fmt.Sprintf("Versandbestätigung #%s - Henkes Stoffzauber", order.OrderNumber),
		shippingBody(order), "", order.OrderNumber)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	return m.send(ctx, order.OrderNumber, msg)
}

func (m *Mailer) newMessage(to, subject, body, invoicePath, orderNumber string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	if invoicePath != "" {
		msg.AttachFile(invoicePath, mail.WithFileName(fmt.Sprintf("Rechnung-%s.pdf", orderNumber)))
	}
	return msg, nil
}

// send dials and sends with bounded retries. After exhaustion it returns
// models.ErrDeliveryFailed; the caller decides whether that is fatal.
func (m *Mailer) send(ctx context.Context, orderNumber string, msg *mail.Msg) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := m.newClient()
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
		}

		lastErr = client.DialAndSendWithContext(ctx, msg)
		if lastErr == nil {
			m.logger.Info("email sent", zap.String("order", orderNumber))
			return nil
		}

		m.logger.Warn("email delivery failed",
			zap.String("order", orderNumber),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, lastErr)
}

func (m *Mailer) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.User != "" && m.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return mail.NewClient(m.cfg.Host, opts...)
}

func itemLines(order *models.Order) string {
	var b strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x %d: %.2f EUR\n", item.Name, item.Quantity, item.Price)
	}
	return b.String()
}

func paymentMethodLabel(method string) string {
	switch method {
	case models.PaymentMethodPayPal:
		return "PayPal"
	case models.PaymentMethodInvoice:
		return "Rechnung"
	case models.PaymentMethodPrepayment:
		return "Vorkasse"
	}
	return method
}

func customerBody(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vielen Dank für Ihre Bestellung!\n\n")
	fmt.Fprintf(&b, "Bestellnummer: %s\n\n", order.OrderNumber)
	fmt.Fprintf(&b, "Artikel:\n%s\n", itemLines(order))
	fmt.Fprintf(&b, "Gesamtsumme: %.2f EUR\n", order.Total)
	fmt.Fprintf(&b, "Zahlungsart: %s\n", paymentMethodLabel(order.PaymentMethod))

	if order.PaymentMethod == models.PaymentMethodInvoice || order.PaymentMethod == models.PaymentMethodPrepayment {
		fmt.Fprintf(&b, "\nBankverbindung:\n")
		fmt.Fprintf(&b, "Kontoinhaber: Henkes Stoffzauber\n")
		fmt.Fprintf(&b, "Bank: Sparkasse am Niederrhein\n")
		fmt.Fprintf(&b, "IBAN: DE21 3545 0000 1201 2022 96\n")
		fmt.Fprintf(&b, "BIC: WELADED1MOR\n")
		fmt.Fprintf(&b, "Verwendungszweck: %s\n", order.OrderNumber)
		if order.PaymentMethod == models.PaymentMethodInvoice {
			fmt.Fprintf(&b, "Zahlbar innerhalb von 14 Tagen nach Erhalt der Ware.\n")
		} else {
			fmt.Fprintf(&b, "Bitte überweisen Sie den Betrag vor dem Versand.\n")
		}
	}

	fmt.Fprintf(&b, "\nBei Fragen stehen wir Ihnen gerne zur Verfügung.\n\n")
	fmt.Fprintf(&b, "Herzliche Grüße,\nIhr Team von Henkes Stoffzauber\n")
	return b.String()
}

// shopBody includes the full order payload so the shop can reconcile manually
func shopBody(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Neue Bestellung eingegangen!\n\n")
	fmt.Fprintf(&b, "Bestellnummer: %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "Kunde: %s %s\n", order.Customer.FirstName, order.Customer.LastName)
	fmt.Fprintf(&b, "E-Mail: %s\n", order.Customer.Email)
	phone := order.Customer.Phone
	if phone == "" {
		phone = "-"
	}
	fmt.Fprintf(&b, "Telefon: %s\n\n", phone)
	fmt.Fprintf(&b, "Lieferadresse:\n%s %s\n%s %s\n\n", order.Customer.Street, order.Customer.HouseNumber, order.Customer.Zip, order.Customer.City)
	fmt.Fprintf(&b, "Artikel:\n%s\n", itemLines(order))
	fmt.Fprintf(&b, "Gesamtsumme: %.2f EUR\n", order.Total)
	fmt.Fprintf(&b, "Zahlungsart: %s\n", paymentMethodLabel(order.PaymentMethod))
	fmt.Fprintf(&b, "Zahlungsstatus: %s\n", order.PaymentStatus)
	if order.CustomerNotes != nil && *order.CustomerNotes != "" {
		fmt.Fprintf(&b, "Kundenanmerkungen: %s\n", *order.CustomerNotes)
	}

	if payload, err := json.MarshalIndent(order, "", "  "); err == nil {
		fmt.Fprintf(&b, "\nVollständige Bestelldaten:\n%s\n", payload)
	}
	return b.String()
}

func shippingBody(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ihre Bestellung wurde versandt!\n\n")
	fmt.Fprintf(&b, "Liebe/r %s %s,\n\n", order.Customer.FirstName, order.Customer.LastName)
	fmt.Fprintf(&b, "Ihre Bestellung #%s wurde versandt.\n", order.OrderNumber)
	if order.TrackingNumber != nil && *order.TrackingNumber != "" {
		fmt.Fprintf(&b, "Sendungsnummer: %s\n", *order.TrackingNumber)
	}
	fmt.Fprintf(&b, "\nHerzliche Grüße,\nIhr Team von Henkes Stoffzauber\n")
	return b.String()
}
