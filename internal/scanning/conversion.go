package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// transcribePrompt is shared by the vision-model scanners. It asks for a
// faithful transcription, not interpretation; item recovery happens in the
// parsing package.
const transcribePrompt = `You are reading a photographed or scanned retail receipt. Transcribe ALL text you can see, line by line, exactly as printed.

Rules:
- Output one receipt line per text line, top to bottom.
- Keep prices, quantities, and currency symbols exactly as printed (e.g. "2x Club Sandwich EGP 120.00").
- Keep summary lines too (Subtotal, Service, VAT, Total, ...).
- Preserve non-Latin text (e.g. Arabic) as-is.
- Output plain text only. No markdown, no commentary, no JSON.`

// renderPDFPage rasterizes the first page of a PDF as PNG. Receipts are
// almost always single page.
func renderPDFPage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeToPNG re-encodes any supported image format as PNG. HEIC/HEIF (the
// iPhone default) needs its own decoder; the standard image package handles
// JPEG, PNG and GIF.
func decodeToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	if isHEIC(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image (supported: JPEG, PNG, GIF, HEIC, PDF): %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC sniffs the ftyp box brands HEIC containers start with.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// preparePNG normalizes an upload to PNG bytes regardless of the incoming
// format, so every scanner backend only has to handle one format.
func preparePNG(imageData []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	if mimeType == "application/pdf" {
		return renderPDFPage(imageData)
	}
	if mimeType == "image/png" && !isHEIC(imageData) {
		return imageData, nil
	}
	return decodeToPNG(imageData, mimeType)
}
