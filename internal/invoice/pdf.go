package invoice

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/meligy89/invoice-app/internal/bill"
	"github.com/meligy89/invoice-app/internal/parsing"
)

// renderInvoicePDF renders the selected items and their split summary as a
// simple single-page PDF. The summary is expected to be pre-rounded.
func renderInvoicePDF(inv *Invoice, items []parsing.Item, summary bill.Summary, partySize int) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	// Core fonts are cp1252 only; translate what we can, cleaned item
	// names are ASCII-safe in practice.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Invoice Summary", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	if inv.Title != "" {
		pdf.CellFormat(0, 8, tr(inv.Title), "", 1, "C", false, 0, "")
	}
	pdf.Ln(5)

	for _, item := range items {
		line := fmt.Sprintf("%s - Qty: %d - Unit: %s - Total: %s",
			item.Name, item.Quantity,
			item.UnitPrice.StringFixed(2), item.TotalPrice.StringFixed(2))
		pdf.CellFormat(0, 8, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	cur := inv.Currency
	summaryRows := []struct {
		label  string
		amount decimal.Decimal
	}{
		{"Subtotal", summary.Subtotal},
		{"Service Charge", summary.Service},
		{"VAT", summary.VAT},
		{"Tip", summary.Tip},
		{"Grand Total", summary.GrandTotal},
	}
	for _, row := range summaryRows {
		pdf.CellFormat(0, 8, fmt.Sprintf("%s: %s %s", row.label, cur, row.amount.StringFixed(2)), "", 1, "L", false, 0, "")
	}

	pdf.CellFormat(0, 8, fmt.Sprintf("Split between %d: %s %s each", partySize, cur, summary.PerPerson.StringFixed(2)), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}
