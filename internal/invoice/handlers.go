package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meligy89/invoice-app/internal/parsing"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleListInvoices returns a list of all invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.ListInvoices()
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, invoices)
}

// handleUploadInvoice accepts a multipart upload, scans it and returns the
// invoice with its extracted items. An invoice with zero items is still a
// success; the client offers manual entry in that case.
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	// MaxBytesReader enforces the limit on the wire; ParseMultipartForm's
	// argument only caps what is held in memory.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		setCORSHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		errorMsg := "Error parsing form"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		json.NewEncoder(w).Encode(map[string]string{"error": errorMsg})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		corsError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading uploaded file", "error", err)
		corsError(w, "Error reading file", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	inv, err := s.service.ProcessInvoice(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing invoice", "error", err)
		corsError(w, "Error processing invoice", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, inv)
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inv, err := s.service.GetInvoice(id)
	if err != nil {
		corsError(w, "Invoice not found", http.StatusNotFound)
		return
	}
	writeJSON(w, inv)
}

// handleDeleteInvoice removes an invoice
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeleteInvoice(id); err != nil {
		corsError(w, "Invoice not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetInvoiceFile serves the original upload
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, contentType, err := s.service.GetInvoiceFile(id)
	if err != nil {
		corsError(w, "Invoice file not found", http.StatusNotFound)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleReplaceItems overwrites the item table (manual entry / correction)
func (s *Server) handleReplaceItems(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var items []parsing.Item
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	inv, err := s.service.ReplaceItems(id, items)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			corsError(w, "Invoice not found", http.StatusNotFound)
			return
		}
		corsError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, inv)
}

// handleComputeSplit computes the bill summary for a selection. The summary
// is derived, not stored, so this is a POST that changes nothing.
func (s *Server) handleComputeSplit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PartySize < 1 {
		corsError(w, "party_size must be at least 1", http.StatusBadRequest)
		return
	}

	summary, err := s.service.ComputeSplit(id, req)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			corsError(w, "Invoice not found", http.StatusNotFound)
			return
		}
		corsError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, summary)
}

// splitRequestFromQuery builds a SplitRequest from URL query parameters, for
// the GET endpoints (PDF download links). Defaults mirror the receipts this
// app targets: 12% service, 14% VAT, no tip, no split.
func splitRequestFromQuery(r *http.Request) (SplitRequest, error) {
	req := SplitRequest{}
	req.ServicePct = decimal.NewFromInt(12)
	req.VATPct = decimal.NewFromInt(14)
	req.Tip = decimal.Zero
	req.PartySize = 1

	q := r.URL.Query()
	var err error
	if v := q.Get("service_pct"); v != "" {
		if req.ServicePct, err = decimal.NewFromString(v); err != nil {
			return req, err
		}
	}
	if v := q.Get("vat_pct"); v != "" {
		if req.VATPct, err = decimal.NewFromString(v); err != nil {
			return req, err
		}
	}
	if v := q.Get("tip"); v != "" {
		if req.Tip, err = decimal.NewFromString(v); err != nil {
			return req, err
		}
	}
	if v := q.Get("party_size"); v != "" {
		if req.PartySize, err = strconv.Atoi(v); err != nil {
			return req, err
		}
	}
	if v := q.Get("items"); v != "" {
		for _, part := range strings.Split(v, ",") {
			idx, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return req, err
			}
			req.ItemIndexes = append(req.ItemIndexes, idx)
		}
	}
	return req, nil
}

// handleInvoicePDF renders the split as a downloadable PDF
func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	req, err := splitRequestFromQuery(r)
	if err != nil {
		corsError(w, "Invalid split parameters", http.StatusBadRequest)
		return
	}

	data, err := s.service.RenderPDF(id, req)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			corsError(w, "Invoice not found", http.StatusNotFound)
			return
		}
		slog.Error("Error rendering PDF", "invoice_id", id, "error", err)
		corsError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice.pdf"`)
	w.Write(data)
}

// handleInvoiceCSV exports the item table as CSV
func (s *Server) handleInvoiceCSV(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	data, err := s.service.ExportCSV(id)
	if err != nil {
		corsError(w, "Invoice not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice.csv"`)
	w.Write(data)
}

// handleEmailInvoice renders the split PDF and emails it
func (s *Server) handleEmailInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.service.EmailInvoice(id, req); err != nil {
		if errors.Is(err, ErrMailNotConfigured) {
			corsError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if errors.Is(err, ErrInvoiceNotFound) {
			corsError(w, "Invoice not found", http.StatusNotFound)
			return
		}
		slog.Error("Error emailing invoice", "invoice_id", id, "error", err)
		corsError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]string{"status": "sent"})
}
