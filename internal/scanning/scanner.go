package scanning

// Scanner turns an uploaded receipt image or PDF into raw text. The text is
// handed to the parsing heuristics downstream; scanners do no item-level
// interpretation themselves.
type Scanner interface {
	// ExtractText reads all visible text from a receipt, preserving line
	// breaks so that line-oriented parsing still works.
	ExtractText(imageData []byte, contentType string) (string, error)
	// Close releases scanner resources.
	Close() error
}
