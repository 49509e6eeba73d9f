package scanning

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements the Scanner interface with a local Tesseract install.
// It needs no network or API key, at the cost of being more sensitive to
// photo quality than the vision-model scanners.
type Tesseract struct {
	languages []string
}

// NewTesseract creates a Tesseract Scanner. Languages default to English
// plus Arabic, which covers the receipts this app was built around.
func NewTesseract(languages ...string) (*Tesseract, error) {
	if len(languages) == 0 {
		languages = []string{"eng", "ara"}
	}

	// Fail fast if the tesseract install or language data is unusable.
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(languages...); err != nil {
		return nil, fmt.Errorf("configuring tesseract languages %v: %w", languages, err)
	}

	return &Tesseract{languages: languages}, nil
}

// ExtractText runs OCR over the receipt and returns the recognized text.
func (t *Tesseract) ExtractText(imageData []byte, contentType string) (string, error) {
	pngData, err := preparePNG(imageData, contentType)
	if err != nil {
		return "", err
	}

	// gosseract clients are not safe for concurrent use, so each call gets
	// its own.
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("configuring tesseract languages: %w", err)
	}
	if err := client.SetImageFromBytes(pngData); err != nil {
		return "", fmt.Errorf("loading image into tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("running OCR: %w", err)
	}
	return text, nil
}

// Close closes the scanner (no persistent resources for Tesseract).
func (t *Tesseract) Close() error {
	return nil
}
