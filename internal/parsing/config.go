package parsing

// Config controls the heuristics used to recover line items from receipt
// text. The defaults match the receipts this app was built for (Egyptian
// restaurant receipts priced in EGP), but every knob is plain data so other
// locales only need a different Config.
type Config struct {
	// IgnoreKeywords marks summary/footer lines that must never become
	// items, matched case-insensitively as substrings.
	IgnoreKeywords []string

	// CurrencyVariants are the spellings of the receipt currency seen in
	// the wild, folded to CurrencyToken before price matching. Order
	// matters: longer spellings must come before their prefixes.
	CurrencyVariants []string

	// CurrencyToken is the canonical token every variant is folded to.
	CurrencyToken string

	// QuantitySeparators are the characters allowed between a leading
	// quantity and the item name. A space entry also matches tabs.
	QuantitySeparators []rune
}

// DefaultConfig returns the heuristics tuned for EGP restaurant receipts.
func DefaultConfig() Config {
	return Config{
		IgnoreKeywords: []string{
			"subtotal", "vat", "total", "service", "thank", "count",
			"cash", "payment", "balance", "%", "tip", "delivery",
		},
		CurrencyVariants:   []string{"EGP", "LE", "L.E.", "L.E", "جنيه"},
		CurrencyToken:      "EGP",
		QuantitySeparators: []rune{' ', '-', '_', '.', 'x', 'X', '*'},
	}
}
