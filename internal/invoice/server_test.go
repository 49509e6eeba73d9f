package invoice

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/meligy89/invoice-app/internal/parsing"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		scanner     *mockScanner
		storage     *mockStorage
		service     *Service
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	seedInvoice := func() {
		db.invoices["inv1"] = &Invoice{
			ID:       "inv1",
			Title:    "Cairo Corner",
			Currency: "EGP",
			Items: []parsing.Item{
				{Name: "Club Sandwich", Quantity: 2, UnitPrice: decimal.RequireFromString("60.00"), TotalPrice: decimal.RequireFromString("120.00")},
				{Name: "Mango Juice", Quantity: 1, UnitPrice: decimal.RequireFromString("30.00"), TotalPrice: decimal.RequireFromString("30.00")},
			},
		}
	}

	BeforeEach(func() {
		db = newMockDB()
		scanner = newMockScanner()
		storage = newMockStorage()
		auth = BasicAuth{}
		service = newTestService(db, scanner, storage, &mockMailer{})
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("serves the HTML interface", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Yalla Split"))
		})
	})

	Describe("handleListInvoices", func() {
		When("invoices exist", func() {
			BeforeEach(func() {
				seedInvoice()
			})

			It("returns them as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var invoices []*Invoice
				Expect(json.NewDecoder(resp.Body).Decode(&invoices)).To(Succeed())
				Expect(invoices).To(HaveLen(1))
				Expect(invoices[0].Items).To(HaveLen(2))
			})
		})

		When("no invoices exist", func() {
			It("returns an empty JSON array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
			})
		})
	})

	Describe("handleUploadInvoice", func() {
		var uploadResponse *http.Response

		upload := func() {
			var buf bytes.Buffer
			writer := multipart.NewWriter(&buf)
			part, err := writer.CreateFormFile("file", "receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("image data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).To(Succeed())

			req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/invoices", &buf)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", writer.FormDataContentType())
			uploadResponse, err = http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
		}

		When("the upload scans cleanly", func() {
			BeforeEach(func() {
				scanner.text = "Cairo Corner\n2x Club Sandwich EGP 120.00"
				upload()
			})

			AfterEach(func() {
				uploadResponse.Body.Close()
			})

			It("returns 201 with the extracted invoice", func() {
				Expect(uploadResponse.StatusCode).To(Equal(http.StatusCreated))
				var inv Invoice
				Expect(json.NewDecoder(uploadResponse.Body).Decode(&inv)).To(Succeed())
				Expect(inv.Items).To(HaveLen(1))
				Expect(inv.Items[0].Name).To(Equal("Club Sandwich"))
			})
		})

		When("extraction finds no items", func() {
			BeforeEach(func() {
				scanner.text = "blurry nonsense"
				upload()
			})

			AfterEach(func() {
				uploadResponse.Body.Close()
			})

			It("still returns 201 with an empty item table", func() {
				Expect(uploadResponse.StatusCode).To(Equal(http.StatusCreated))
				var inv Invoice
				Expect(json.NewDecoder(uploadResponse.Body).Decode(&inv)).To(Succeed())
				Expect(inv.Items).To(BeEmpty())
			})
		})

		When("the body exceeds the upload limit", func() {
			BeforeEach(func() {
				server.maxUploadBytes = 512
			})

			It("rejects the upload with the size message", func() {
				var buf bytes.Buffer
				writer := multipart.NewWriter(&buf)
				part, err := writer.CreateFormFile("file", "receipt.jpg")
				Expect(err).NotTo(HaveOccurred())
				_, err = part.Write(bytes.Repeat([]byte("x"), 2048))
				Expect(err).NotTo(HaveOccurred())
				Expect(writer.Close()).To(Succeed())

				req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/invoices", &buf)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", writer.FormDataContentType())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("too large"))
				Expect(db.invoices).To(BeEmpty())
			})
		})

		When("no file is provided", func() {
			It("returns 400", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", "multipart/form-data; boundary=x", strings.NewReader("--x--\r\n"))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleGetInvoice", func() {
		BeforeEach(func() {
			seedInvoice()
		})

		It("returns the invoice", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices/inv1")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("returns 404 for unknown IDs", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices/nope")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleDeleteInvoice", func() {
		BeforeEach(func() {
			seedInvoice()
		})

		It("deletes and returns 204", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/invoices/inv1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.invoices).To(BeEmpty())
		})
	})

	Describe("handleReplaceItems", func() {
		BeforeEach(func() {
			seedInvoice()
		})

		It("replaces the item table", func() {
			body := `[{"name":"Koshari","quantity":2,"unit_price":"0","total_price":"90.00"}]`
			req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/invoices/inv1/items", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var inv Invoice
			Expect(json.NewDecoder(resp.Body).Decode(&inv)).To(Succeed())
			Expect(inv.Items).To(HaveLen(1))
			Expect(inv.Items[0].UnitPrice.Equal(decimal.RequireFromString("45.00"))).To(BeTrue())
		})

		It("rejects invalid items", func() {
			body := `[{"name":"Koshari","quantity":0,"unit_price":"0","total_price":"90.00"}]`
			req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/invoices/inv1/items", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for unknown invoices", func() {
			body := `[{"name":"Koshari","quantity":1,"unit_price":"0","total_price":"90.00"}]`
			req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/invoices/nope/items", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleComputeSplit", func() {
		BeforeEach(func() {
			seedInvoice()
		})

		post := func(body string) *http.Response {
			resp, err := http.Post(ghttpServer.URL()+"/api/invoices/inv1/split", "application/json", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("computes the summary", func() {
			resp := post(`{"service_pct":"12","vat_pct":"14","tip":"0","party_size":2}`)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var summary map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&summary)).To(Succeed())
			Expect(summary["subtotal"]).To(Equal("150"))
			Expect(summary["service"]).To(Equal("18"))
			Expect(summary["vat"]).To(Equal("23.52"))
			Expect(summary["grand_total"]).To(Equal("191.52"))
			Expect(summary["per_person"]).To(Equal("95.76"))
		})

		It("rejects a missing party size", func() {
			resp := post(`{"service_pct":"12","vat_pct":"14","tip":"0"}`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects malformed bodies", func() {
			resp := post(`not json`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for unknown invoices", func() {
			body := `{"service_pct":"12","vat_pct":"14","tip":"0","party_size":2}`
			resp, err := http.Post(ghttpServer.URL()+"/api/invoices/nope/split", "application/json", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleInvoicePDF", func() {
		BeforeEach(func() {
			seedInvoice()
		})

		It("serves a PDF download", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices/inv1/pdf?service_pct=12&vat_pct=14&tip=0&party_size=2")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body[:5])).To(Equal("%PDF-"))
		})

		It("rejects malformed split parameters", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices/inv1/pdf?service_pct=abc")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleInvoiceCSV", func() {
		BeforeEach(func() {
			seedInvoice()
		})

		It("serves the item table as CSV", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices/inv1/csv")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/csv"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(HavePrefix("name,quantity,unit_price,total_price\n"))
			Expect(string(body)).To(ContainSubstring("Club Sandwich,2,60.00,120.00"))
		})
	})

	Describe("handleEmailInvoice", func() {
		BeforeEach(func() {
			seedInvoice()
		})

		It("sends the invoice", func() {
			body := `{"recipient":"friend@example.com","split":{"service_pct":"12","vat_pct":"14","tip":"0","party_size":2}}`
			resp, err := http.Post(ghttpServer.URL()+"/api/invoices/inv1/email", "application/json", strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		When("email is not configured", func() {
			BeforeEach(func() {
				service = newTestService(db, scanner, storage, nil)
				setupServer()
				seedInvoice()
			})

			It("returns 503", func() {
				body := `{"recipient":"friend@example.com","split":{"service_pct":"12","vat_pct":"14","tip":"0","party_size":2}}`
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices/inv1/email", "application/json", strings.NewReader(body))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			setupServer()
		})

		It("rejects unauthenticated requests", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/invoices", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
