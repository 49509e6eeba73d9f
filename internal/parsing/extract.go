package parsing

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Parser applies the extraction heuristics described by a Config. A Parser is
// immutable after construction and safe for concurrent use.
type Parser struct {
	cfg     Config
	priceRE *regexp.Regexp
	qtyRE   *regexp.Regexp
}

// New compiles the heuristics for the given config. Zero-value fields fall
// back to the defaults so a partially filled Config still works.
func New(cfg Config) *Parser {
	def := DefaultConfig()
	if len(cfg.IgnoreKeywords) == 0 {
		cfg.IgnoreKeywords = def.IgnoreKeywords
	}
	if cfg.CurrencyToken == "" {
		cfg.CurrencyToken = def.CurrencyToken
	}
	if len(cfg.CurrencyVariants) == 0 {
		cfg.CurrencyVariants = def.CurrencyVariants
	}
	if len(cfg.QuantitySeparators) == 0 {
		cfg.QuantitySeparators = def.QuantitySeparators
	}

	token := regexp.QuoteMeta(cfg.CurrencyToken)
	return &Parser{
		cfg: cfg,
		// A price is digits with optional thousands separators and
		// exactly two decimals, optionally wrapped in currency tokens.
		priceRE: regexp.MustCompile(`(?i)(` + token + `)?\s*([\d,]+\.\d{2})\s*(` + token + `)?`),
		qtyRE:   regexp.MustCompile(`^(\d+)[` + separatorClass(cfg.QuantitySeparators) + `]*(.*)`),
	}
}

// NewDefault returns a Parser with DefaultConfig heuristics.
func NewDefault() *Parser {
	return New(DefaultConfig())
}

// separatorClass renders the separator set as a regexp character class body.
func separatorClass(seps []rune) string {
	var b strings.Builder
	for _, r := range seps {
		switch r {
		case ' ':
			b.WriteString(`\s`)
		case '\\', ']', '^', '-':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ignored reports whether the line contains any denylisted keyword. Lines
// like "Subtotal EGP 450.00" carry price-shaped numbers but must never be
// turned into items.
func (p *Parser) ignored(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range p.cfg.IgnoreKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// foldCurrency replaces every recognized currency spelling with the canonical
// token. Variants are applied in config order so longer spellings win over
// their prefixes.
func (p *Parser) foldCurrency(line string) string {
	for _, variant := range p.cfg.CurrencyVariants {
		line = strings.ReplaceAll(line, variant, p.cfg.CurrencyToken)
	}
	return line
}

// extractItem recovers a single item from a candidate line, using the full
// normalized sequence for predecessor lookback. A line without a price token
// yields no item; that is a skip, not an error.
func (p *Parser) extractItem(line string, pos int, lines []string) (Item, bool) {
	folded := p.foldCurrency(line)

	m := p.priceRE.FindStringSubmatch(folded)
	if m == nil {
		return Item{}, false
	}
	total, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return Item{}, false
	}

	// Strip every price-shaped token (with any currency wrapping) so only
	// name and quantity material remains.
	lineClean := strings.TrimSpace(p.priceRE.ReplaceAllString(folded, ""))

	qty, rawName := p.resolveQuantityAndName(lineClean, pos, lines)

	name := cleanName(rawName)
	if name == "" {
		name = UnnamedItem
	}

	unit := total
	if qty > 0 {
		unit = total.Div(decimal.NewFromInt(int64(qty))).Round(2)
	}

	return Item{Name: name, Quantity: qty, UnitPrice: unit, TotalPrice: total}, true
}

// quantityResult is what a strategy proposes: the quantity and the raw text
// the item name should be cleaned from.
type quantityResult struct {
	quantity int
	name     string
}

// quantityStrategy inspects the price-stripped line and reports whether it
// can supply quantity and name source for the item.
type quantityStrategy func(p *Parser, lineClean string, pos int, lines []string) (quantityResult, bool)

// quantityStrategies is an ordered chain, first match wins: an explicit
// leading quantity on the line itself, then the previous line as name source,
// then the cleaned line as a last resort. Keeping these as a list keeps the
// precedence auditable and lets each rule be tested in isolation.
var quantityStrategies = []quantityStrategy{
	embeddedQuantity,
	previousLineName,
	cleanedLineName,
}

func (p *Parser) resolveQuantityAndName(lineClean string, pos int, lines []string) (int, string) {
	for _, strategy := range quantityStrategies {
		if res, ok := strategy(p, lineClean, pos, lines); ok {
			return res.quantity, res.name
		}
	}
	// Unreachable: cleanedLineName always matches.
	return 1, lineClean
}

// embeddedQuantity matches lines of the form "2x Club Sandwich": a leading
// integer, optional separators, then the name. A quantity that fails to parse
// despite the match degrades to 1 rather than failing the line.
func embeddedQuantity(p *Parser, lineClean string, _ int, _ []string) (quantityResult, bool) {
	m := p.qtyRE.FindStringSubmatch(lineClean)
	if m == nil {
		return quantityResult{}, false
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil {
		qty = 1
	}
	return quantityResult{quantity: qty, name: m[2]}, true
}

// previousLineName handles multi-line items where the name is printed above a
// bare price line. The previous line is only borrowed when it is not itself a
// denylisted summary line.
func previousLineName(p *Parser, _ string, pos int, lines []string) (quantityResult, bool) {
	if pos == 0 {
		return quantityResult{}, false
	}
	prev := lines[pos-1]
	if p.ignored(prev) {
		return quantityResult{}, false
	}
	return quantityResult{quantity: 1, name: prev}, true
}

// cleanedLineName is the terminal fallback: whatever is left of the line
// after price stripping becomes the name.
func cleanedLineName(_ *Parser, lineClean string, _ int, _ []string) (quantityResult, bool) {
	return quantityResult{quantity: 1, name: lineClean}, true
}

// cleanName strips everything that is not a letter, digit or whitespace,
// collapses runs of whitespace, and title-cases the result.
func cleanName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	collapsed := strings.Join(strings.Fields(b.String()), " ")
	if collapsed == "" {
		return ""
	}
	return cases.Title(language.Und).String(collapsed)
}
