package parsing

import "github.com/shopspring/decimal"

// UnnamedItem is the placeholder name used when cleanup leaves nothing.
const UnnamedItem = "Unnamed Item"

// Item is one recovered receipt line item. TotalPrice is the only field read
// directly off the line; Quantity and Name are inferred and may be wrong or
// defaulted, which is why the surrounding app lets users correct them.
type Item struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// ExtractItems runs the full pipeline over raw OCR text: normalize lines,
// drop denylisted lines, then extract an item from each remaining line that
// carries a price. Items keep the order of their source lines. An empty
// result is a normal outcome (blurry photo, no prices found) and callers are
// expected to fall back to manual entry.
func (p *Parser) ExtractItems(text string) []Item {
	lines := NormalizeLines(text)

	items := make([]Item, 0)
	for i, line := range lines {
		if p.ignored(line) {
			continue
		}
		item, ok := p.extractItem(line, i, lines)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}
