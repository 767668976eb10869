package invoice

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/hstoff/storefront/internal/models"
)

// Merchant is the static merchant metadata printed on every invoice
type Merchant struct {
	Name          string
	Street        string
	City          string
	Phone         string
	Web           string
	Email         string
	BankName      string
	IBAN          string
	FormattedIBAN string
	BIC           string
}

// DefaultMerchant returns the shop letterhead
func DefaultMerchant() Merchant {
	return Merchant{
		Name:          "Henkes Stoffzauber",
		Street:        "Rheinstraße 40",
		City:          "47495 Rheinberg",
		Phone:         "Telefon: 015565 612722",
		Web:           "www.henkes-stoffzauber.de",
		Email:         "info@henkes-stoffzauber.de",
		BankName:      "Sparkasse am Niederrhein",
		IBAN:          "DE21354500001201202296",
		FormattedIBAN: "DE21 3545 0000 1201 2022 96",
		BIC:           "WELADED1MOR",
	}
}

// Renderer produces the invoice PDF for an order. Rendering is a pure
// function of the order snapshot and the merchant metadata; rendering the
// same snapshot twice yields identical bytes.
type Renderer struct {
	dir      string
	merchant Merchant
	logger   *zap.Logger
}

// New creates new Renderer writing into dir
func New(dir string, merchant Merchant, logger *zap.Logger) *Renderer {
	return &Renderer{dir: dir, merchant: merchant, logger: logger}
}

// Path returns the stable invoice location for an order number
func (r *Renderer) Path(orderNumber string) string {
	return filepath.Join(r.dir, fmt.Sprintf("invoice-%s.pdf", orderNumber))
}

// Render writes the invoice for order and returns its path. The document is
// written to a temporary file first and renamed into place, so a failed
// render never leaves a partial invoice behind.
func (r *Renderer) Render(order *models.Order) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create invoice dir: %v", models.ErrRenderFailed, err)
	}

	path := r.Path(order.OrderNumber)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}

	pdf := r.compose(order)
	if err := pdf.Output(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}

	r.logger.Info("invoice generated", zap.String("order", order.OrderNumber), zap.String("path", path))

	return path, nil
}

func (r *Renderer) compose(order *models.Order) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// fixed dates and sorted resource dictionaries keep re-renders of the
	// same snapshot byte-identical
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(order.CreatedAt.UTC())
	pdf.SetModificationDate(order.CreatedAt.UTC())
	pdf.SetTitle(fmt.Sprintf("Rechnung %s", order.OrderNumber), true)
	pdf.SetAuthor(r.merchant.Name, true)
	pdf.SetAutoPageBreak(true, 30)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// merchant header
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(90, 71, 71)
	pdf.CellFormat(120, 10, tr(r.merchant.Name), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "RECHNUNG", "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(120, 5, tr(r.merchant.Street), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Rechnungsnummer: %s", order.OrderNumber)), "", 1, "R", false, 0, "")
	pdf.CellFormat(120, 5, tr(r.merchant.City), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Datum: %s", order.CreatedAt.Format("02.01.2006"))), "", 1, "R", false, 0, "")
	pdf.CellFormat(120, 5, tr(r.merchant.Phone), "", 1, "L", false, 0, "")
	pdf.CellFormat(120, 5, tr(r.merchant.Web), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetDrawColor(242, 178, 180)
	pdf.SetLineWidth(0.6)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(6)

	// customer block
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(90, 71, 71)
	pdf.CellFormat(0, 6, tr("Rechnungsadresse:"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(51, 51, 51)
	c := order.Customer
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s %s", c.FirstName, c.LastName)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s %s", c.Street, c.HouseNumber)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s %s", c.Zip, c.City)), "", 1, "L", false, 0, "")
	country := c.Country
	if country == "" {
		country = "Deutschland"
	}
	pdf.CellFormat(0, 5, tr(country), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// items table
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(90, 71, 71)
	pdf.CellFormat(95, 6, tr("Artikel"), "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 6, tr("Menge"), "B", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, tr("Preis"), "B", 0, "R", false, 0, "")
	pdf.CellFormat(40, 6, tr("Gesamt"), "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(51, 51, 51)
	for _, item := range order.Items {
		lineTotal := item.Price * float64(item.Quantity)
		pdf.CellFormat(95, 6, tr(item.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, tr(formatEUR(item.Price)), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, tr(formatEUR(lineTotal)), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	// totals
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(150, 6, tr("Zwischensumme:"), "T", 0, "R", false, 0, "")
	pdf.CellFormat(40, 6, tr(formatEUR(order.Subtotal)), "T", 1, "R", false, 0, "")
	if order.Shipping > 0 {
		pdf.CellFormat(150, 6, tr("Versandkosten:"), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, tr(formatEUR(order.Shipping)), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(90, 71, 71)
	pdf.CellFormat(150, 8, tr("Gesamtbetrag:"), "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, tr(formatEUR(order.Total)), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(136, 136, 136)
	pdf.CellFormat(0, 5, tr("Gemäß § 19 UStG wird keine Umsatzsteuer berechnet (Kleinunternehmerregelung)."), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	r.paymentBlock(pdf, tr, order)

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(136, 136, 136)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Vielen Dank für Ihren Einkauf bei %s!", r.merchant.Name)), "", 1, "C", false, 0, "")

	return pdf
}

func (r *Renderer) paymentBlock(pdf *gofpdf.Fpdf, tr func(string) string, order *models.Order) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(90, 71, 71)
	pdf.CellFormat(0, 6, tr("Zahlungsinformationen:"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(51, 51, 51)

	switch order.PaymentMethod {
	case models.PaymentMethodPayPal:
		pdf.CellFormat(0, 5, tr("Zahlung erfolgt via PayPal."), "", 1, "L", false, 0, "")
	case models.PaymentMethodInvoice, models.PaymentMethodPrepayment:
		intro := "Bitte überweisen Sie den Betrag innerhalb von 14 Tagen auf folgendes Konto:"
		if order.PaymentMethod == models.PaymentMethodPrepayment {
			intro = "Bitte überweisen Sie den Betrag vor Versand auf folgendes Konto:"
		}
		pdf.CellFormat(0, 5, tr(intro), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Kontoinhaber: %s", r.merchant.Name)), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Bank: %s", r.merchant.BankName)), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("IBAN: %s", r.merchant.FormattedIBAN)), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("BIC: %s", r.merchant.BIC)), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Verwendungszweck: %s", order.OrderNumber)), "", 1, "L", false, 0, "")
	}
}

func formatEUR(v float64) string {
	return fmt.Sprintf("%.2f EUR", v)
}
