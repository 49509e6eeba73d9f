package invoice

import (
	"time"

	"github.com/meligy89/invoice-app/internal/parsing"
)

// Invoice is one uploaded receipt with its extracted item table. Items may be
// empty when extraction found nothing usable; the client then offers manual
// entry and fills the table via ReplaceItems.
type Invoice struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Currency    string         `json:"currency"`
	Items       []parsing.Item `json:"items"`
	RawText     string         `json:"raw_text,omitempty"` // OCR output, kept for review and re-parsing
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
