package expense

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/zombor/billed/internal/bill"
)

var anyPath = regexp.MustCompile(`.*`)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, storage, nil,
			&mockIDGenerator{ids: []string{"new-id"}},
			&mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)})
		server := NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.RouteToHandler(http.MethodGet, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodPost, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodPatch, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodPut, anyPath, server.ServeHTTP)
		ghttpServer.RouteToHandler(http.MethodOptions, anyPath, server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path string, body io.Reader, contentType string) (*http.Response, string) {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if auth.Username != "" {
			req.SetBasicAuth(auth.Username, auth.Password)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, string(data)
	}

	multipartBody := func(filename string, data []byte, email string) (*bytes.Buffer, string) {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		if filename != "" {
			part, err := writer.CreateFormFile("file", filename)
			Expect(err).NotTo(HaveOccurred())
			part.Write(data)
		}
		Expect(writer.WriteField("email", email)).To(Succeed())
		Expect(writer.Close()).To(Succeed())
		return &b, writer.FormDataContentType()
	}

	Describe("GET /api/bills", func() {
		BeforeEach(func() {
			db.bills["id1"] = &Record{Bill: bill.Bill{ID: "id1", Email: "a@test.tld", Amount: decimal.NewFromInt(100)}}
			db.bills["id2"] = &Record{Bill: bill.Bill{ID: "id2", Email: "b@test.tld"}}
		})

		It("returns every bill as JSON", func() {
			resp, body := do(http.MethodGet, "/api/bills", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var bills []bill.Bill
			Expect(json.Unmarshal([]byte(body), &bills)).To(Succeed())
			Expect(bills).To(HaveLen(2))
		})

		It("filters by email", func() {
			_, body := do(http.MethodGet, "/api/bills?email=a@test.tld", nil, "")
			var bills []bill.Bill
			Expect(json.Unmarshal([]byte(body), &bills)).To(Succeed())
			Expect(bills).To(HaveLen(1))
			Expect(bills[0].ID).To(Equal("id1"))
			Expect(bills[0].Amount.Equal(decimal.NewFromInt(100))).To(BeTrue())
		})

		It("does not expose storage fields", func() {
			db.bills["id1"].FilePath = "id1_secret.png"
			_, body := do(http.MethodGet, "/api/bills", nil, "")
			Expect(body).NotTo(ContainSubstring("filePath"))
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("database error")
			})

			It("returns Erreur 500", func() {
				resp, body := do(http.MethodGet, "/api/bills", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(body).To(ContainSubstring("Erreur 500"))
			})
		})
	})

	Describe("POST /api/bills/upload", func() {
		It("stores the receipt and returns the bill key", func() {
			body, contentType := multipartBody("facture.png", imageFixture(10, 10, imaging.PNG), "a@test.tld")
			resp, respBody := do(http.MethodPost, "/api/bills/upload", body, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result bill.UploadResult
			Expect(json.Unmarshal([]byte(respBody), &result)).To(Succeed())
			Expect(result.Key).To(Equal("new-id"))
			Expect(result.FileURL).To(Equal("/api/bills/new-id/file"))
			Expect(db.bills).To(HaveKey("new-id"))
		})

		It("rejects other extensions", func() {
			body, contentType := multipartBody("facture.pdf", []byte("%PDF-1.4"), "a@test.tld")
			resp, respBody := do(http.MethodPost, "/api/bills/upload", body, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(respBody).To(ContainSubstring("jpg, jpeg ou png"))
			Expect(db.bills).To(BeEmpty())
		})

		It("requires a file", func() {
			body, contentType := multipartBody("", nil, "a@test.tld")
			resp, respBody := do(http.MethodPost, "/api/bills/upload", body, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(respBody).To(ContainSubstring("No file was selected"))
		})

		It("rejects bodies that are not multipart", func() {
			resp, respBody := do(http.MethodPost, "/api/bills/upload", strings.NewReader("{}"), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(respBody).To(ContainSubstring("Error parsing form"))
		})
	})

	Describe("POST /api/bills", func() {
		It("creates a pending bill", func() {
			payload := `{"email":"a@test.tld","type":"Transports","name":"Vol","amount":"348","date":"2004-04-04","vat":"70","pct":20,"commentary":"séminaire","status":"accepted"}`
			resp, body := do(http.MethodPost, "/api/bills", strings.NewReader(payload), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created bill.Bill
			Expect(json.Unmarshal([]byte(body), &created)).To(Succeed())
			Expect(created.ID).To(Equal("new-id"))
			Expect(created.Status).To(Equal(bill.StatusPending))
		})

		It("rejects malformed JSON", func() {
			resp, body := do(http.MethodPost, "/api/bills", strings.NewReader("{"), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body).To(ContainSubstring("Invalid request body"))
		})
	})

	Describe("PATCH /api/bills/{id}", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Record{Bill: bill.Bill{ID: "b1", Email: "a@test.tld", Status: bill.StatusPending}}
		})

		It("updates the bill", func() {
			payload := `{"email":"a@test.tld","type":"Transports","name":"Train","amount":"42.5","date":"2022-09-01","pct":20}`
			resp, body := do(http.MethodPatch, "/api/bills/b1", strings.NewReader(payload), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring(`"name":"Train"`))
			Expect(db.bills["b1"].Name).To(Equal("Train"))
		})

		It("returns Erreur 404 for unknown bills", func() {
			resp, body := do(http.MethodPatch, "/api/bills/missing", strings.NewReader(`{}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body).To(ContainSubstring("Erreur 404"))
		})
	})

	Describe("PUT /api/bills/{id}/status", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Record{Bill: bill.Bill{ID: "b1", Status: bill.StatusPending}}
		})

		It("sets the status", func() {
			resp, _ := do(http.MethodPut, "/api/bills/b1/status", strings.NewReader(`{"status":"accepted"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(db.bills["b1"].Status).To(Equal(bill.StatusAccepted))
		})

		It("rejects unknown statuses", func() {
			resp, _ := do(http.MethodPut, "/api/bills/b1/status", strings.NewReader(`{"status":"lost"}`), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/bills/{id}/file", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Record{
				Bill:        bill.Bill{ID: "b1"},
				FilePath:    "b1_receipt.png",
				ContentType: "image/png",
			}
			storage.files["b1_receipt.png"] = []byte("png data")
		})

		It("serves the receipt with its content type", func() {
			resp, body := do(http.MethodGet, "/api/bills/b1/file", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			Expect(body).To(Equal("png data"))
		})
	})

	Describe("GET /api/bills/{id}/preview", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Record{
				Bill:        bill.Bill{ID: "b1"},
				FilePath:    "b1_receipt.png",
				ContentType: "image/png",
			}
			storage.files["b1_receipt.png"] = imageFixture(400, 200, imaging.PNG)
		})

		It("serves a scaled image", func() {
			resp, body := do(http.MethodGet, "/api/bills/b1/preview?width=100", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			img, err := imaging.Decode(strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(100))
		})

		It("rejects a bad width", func() {
			resp, _ := do(http.MethodGet, "/api/bills/b1/preview?width=wide", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/bills/b1", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Origin", "http://localhost:8080")
			req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("accepts valid credentials", func() {
			resp, _ := do(http.MethodGet, "/api/bills", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects missing credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/bills")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("leaves metrics open", func() {
			do(http.MethodGet, "/api/bills", nil, "")
			resp, err := http.Get(ghttpServer.URL() + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("billed_http_request_duration_seconds"))
		})
	})
})
