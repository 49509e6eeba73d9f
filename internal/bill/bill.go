// Package bill computes the shareable split for a set of selected receipt
// items. VAT is applied on top of the service charge (service-inclusive VAT
// base), which is how the establishments this app targets bill; confirm with
// product before changing.
package bill

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meligy89/invoice-app/internal/parsing"
)

var hundred = decimal.NewFromInt(100)

// Params are the caller-chosen split parameters.
type Params struct {
	ServicePct decimal.Decimal `json:"service_pct"`
	VATPct     decimal.Decimal `json:"vat_pct"`
	Tip        decimal.Decimal `json:"tip"`
	PartySize  int             `json:"party_size"`
}

// Summary is the derived bill breakdown. It is always recomputed from its
// inputs and never persisted. Values are exact; call Rounded before display.
type Summary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Service    decimal.Decimal `json:"service"`
	VAT        decimal.Decimal `json:"vat"`
	Tip        decimal.Decimal `json:"tip"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	PerPerson  decimal.Decimal `json:"per_person"`
}

// Compute derives the bill summary for the selected items. Intermediates stay
// unrounded so percentage stacking does not compound rounding error.
func Compute(items []parsing.Item, p Params) (Summary, error) {
	if p.PartySize < 1 {
		return Summary{}, fmt.Errorf("party size must be at least 1, got %d", p.PartySize)
	}
	if p.Tip.IsNegative() {
		return Summary{}, fmt.Errorf("tip must not be negative, got %s", p.Tip)
	}
	if p.ServicePct.IsNegative() || p.VATPct.IsNegative() {
		return Summary{}, fmt.Errorf("percentages must not be negative")
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}

	service := subtotal.Mul(p.ServicePct).Div(hundred)
	vat := subtotal.Add(service).Mul(p.VATPct).Div(hundred)
	grand := subtotal.Add(service).Add(vat).Add(p.Tip)
	perPerson := grand.Div(decimal.NewFromInt(int64(p.PartySize)))

	return Summary{
		Subtotal:   subtotal,
		Service:    service,
		VAT:        vat,
		Tip:        p.Tip,
		GrandTotal: grand,
		PerPerson:  perPerson,
	}, nil
}

// Rounded returns the summary with every amount rounded to two decimal
// places, the presentation form.
func (s Summary) Rounded() Summary {
	return Summary{
		Subtotal:   s.Subtotal.Round(2),
		Service:    s.Service.Round(2),
		VAT:        s.VAT.Round(2),
		Tip:        s.Tip.Round(2),
		GrandTotal: s.GrandTotal.Round(2),
		PerPerson:  s.PerPerson.Round(2),
	}
}
