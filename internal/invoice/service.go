package invoice

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meligy89/invoice-app/internal/bill"
	"github.com/meligy89/invoice-app/internal/parsing"
	"github.com/meligy89/invoice-app/internal/scanning"
)

// IDGenerator generates unique IDs for invoices
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// SplitRequest selects a subset of an invoice's items and the split
// parameters. An empty ItemIndexes selects every item.
type SplitRequest struct {
	ItemIndexes []int `json:"item_indexes,omitempty"`
	bill.Params
}

// EmailRequest describes an invoice email: recipient, message, and the split
// to render into the attached PDF.
type EmailRequest struct {
	Recipient string       `json:"recipient"`
	Subject   string       `json:"subject"`
	Body      string       `json:"body"`
	Split     SplitRequest `json:"split"`
}

// Service handles invoice operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	parser      *parsing.Parser
	mailer      Mailer
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source.
// mailer may be nil when email is not configured.
func NewService(db DB, scanner scanning.Scanner, storage Storage, parser *parsing.Parser, mailer Mailer) *Service {
	if parser == nil {
		parser = parsing.NewDefault()
	}
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		parser:      parser,
		mailer:      mailer,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, parser *parsing.Parser, mailer Mailer, idGen IDGenerator, timeSrc TimeSource) *Service {
	s := NewService(db, scanner, storage, parser, mailer)
	s.idGenerator = idGen
	s.timeSource = timeSrc
	return s
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length; phone cameras produce long, messy names.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// titleFor picks a display title for the invoice: the first line of the
// scanned text is usually the merchant name. Falls back to the filename.
func titleFor(rawText, filename string) string {
	if lines := parsing.NormalizeLines(rawText); len(lines) > 0 {
		return lines[0]
	}
	if name := strings.TrimSuffix(filename, filepath.Ext(filename)); name != "" {
		return name
	}
	return "Receipt"
}

// ProcessInvoice saves the upload, scans it to text, and extracts the item
// table. Zero extracted items is a normal outcome: the invoice is persisted
// with an empty table and the raw text, and the client falls back to manual
// entry.
func (s *Service) ProcessInvoice(filename string, data []byte, contentType string) (*Invoice, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	rawText, err := s.scanner.ExtractText(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		// The saved file is useless without text; clean it up.
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	items := s.parser.ExtractItems(rawText)
	if len(items) == 0 {
		slog.Warn("No items extracted from receipt",
			"filename", filename,
			"text_lines", len(parsing.NormalizeLines(rawText)),
		)
	}

	inv := &Invoice{
		ID:          id,
		Title:       titleFor(rawText, cleanFilename),
		Currency:    "EGP",
		Items:       items,
		RawText:     rawText,
		Filename:    savedPath,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.SaveInvoice(inv); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving invoice to database: %w", err)
	}

	return inv, nil
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(id string) (*Invoice, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices returns all invoices
func (s *Service) ListInvoices() ([]*Invoice, error) {
	invoices, err := s.db.ListInvoices()
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// DeleteInvoice removes an invoice and its file
func (s *Service) DeleteInvoice(id string) error {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return fmt.Errorf("getting invoice for deletion: %w", err)
	}

	if err := s.storage.Delete(inv.Filename); err != nil {
		slog.Warn("Failed to delete file", "filename", inv.Filename, "error", err)
	}

	if err := s.db.DeleteInvoice(id); err != nil {
		return fmt.Errorf("deleting invoice from database: %w", err)
	}
	return nil
}

// GetInvoiceFile retrieves the original upload for an invoice
func (s *Service) GetInvoiceFile(id string) ([]byte, string, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice: %w", err)
	}

	data, err := s.storage.Get(inv.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice file: %w", err)
	}

	return data, inv.ContentType, nil
}

// ReplaceItems overwrites the invoice's item table. This is both the manual
// entry fallback for failed extractions and the correction path for wrong
// ones. Unit prices are recomputed server-side so the item invariant holds
// regardless of what the client sent.
func (s *Service) ReplaceItems(id string, items []parsing.Item) (*Invoice, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	for i := range items {
		if strings.TrimSpace(items[i].Name) == "" {
			items[i].Name = parsing.UnnamedItem
		}
		if items[i].Quantity < 1 {
			return nil, fmt.Errorf("item %d: quantity must be at least 1", i)
		}
		if items[i].TotalPrice.IsNegative() {
			return nil, fmt.Errorf("item %d: total price must not be negative", i)
		}
		items[i].UnitPrice = items[i].TotalPrice.
			Div(decimal.NewFromInt(int64(items[i].Quantity))).Round(2)
	}

	inv.Items = items
	inv.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveInvoice(inv); err != nil {
		return nil, fmt.Errorf("saving invoice: %w", err)
	}
	return inv, nil
}

// selectItems resolves a SplitRequest's item indexes against the invoice's
// table. Empty indexes means every item.
func selectItems(inv *Invoice, indexes []int) ([]parsing.Item, error) {
	if len(indexes) == 0 {
		return inv.Items, nil
	}
	selected := make([]parsing.Item, 0, len(indexes))
	for _, idx := range indexes {
		if idx < 0 || idx >= len(inv.Items) {
			return nil, fmt.Errorf("item index %d out of range (invoice has %d items)", idx, len(inv.Items))
		}
		selected = append(selected, inv.Items[idx])
	}
	return selected, nil
}

// ComputeSplit derives the bill summary for the selected items. Summaries are
// never persisted; every call recomputes from the invoice.
func (s *Service) ComputeSplit(id string, req SplitRequest) (bill.Summary, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return bill.Summary{}, fmt.Errorf("getting invoice: %w", err)
	}

	selected, err := selectItems(inv, req.ItemIndexes)
	if err != nil {
		return bill.Summary{}, err
	}

	summary, err := bill.Compute(selected, req.Params)
	if err != nil {
		return bill.Summary{}, err
	}
	return summary.Rounded(), nil
}

// RenderPDF renders the PDF invoice for a split.
func (s *Service) RenderPDF(id string, req SplitRequest) ([]byte, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	selected, err := selectItems(inv, req.ItemIndexes)
	if err != nil {
		return nil, err
	}

	summary, err := bill.Compute(selected, req.Params)
	if err != nil {
		return nil, err
	}

	return renderInvoicePDF(inv, selected, summary.Rounded(), req.PartySize)
}

// ExportCSV renders the invoice's item table as CSV.
func (s *Service) ExportCSV(id string) ([]byte, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return writeItemsCSV(inv.Items)
}

// ErrMailNotConfigured is returned by EmailInvoice when no mailer was wired
// at startup.
var ErrMailNotConfigured = errors.New("email is not configured")

// EmailInvoice renders the split PDF and mails it to the recipient.
func (s *Service) EmailInvoice(id string, req EmailRequest) error {
	if s.mailer == nil {
		return ErrMailNotConfigured
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return fmt.Errorf("recipient is required")
	}
	if req.Subject == "" {
		req.Subject = "Your Shared Invoice"
	}
	if req.Body == "" {
		req.Body = "Here's your split invoice summary."
	}

	pdfData, err := s.RenderPDF(id, req.Split)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(req.Recipient, req.Subject, req.Body, pdfData, "invoice.pdf"); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}
