package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/zombor/billed/internal/bill"
)

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// Unwrap classifies the status: 404 is bill.ErrNotFound, anything else
// bill.ErrServer.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return bill.ErrNotFound
	}
	return bill.ErrServer
}

// Client is a bill.Store backed by the billed HTTP API, scoped to one session
type Client struct {
	baseURL  string
	session  bill.Session
	client   *http.Client
	username string
	password string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithBasicAuth sends basic auth credentials with every request
func WithBasicAuth(username, password string) Option {
	return func(cl *Client) {
		cl.username = username
		cl.password = password
	}
}

// New creates a Client for session against the server at baseURL
func New(baseURL string, session bill.Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the session's bills. Administrators get every bill. Loosely
// typed amounts and dates are kept raw; only records that are not bill
// objects are skipped.
func (c *Client) List(ctx context.Context) ([]bill.Bill, error) {
	path := "/api/bills"
	if c.session.Type != bill.UserAdmin {
		path += "?" + url.Values{"email": {c.session.Email}}.Encode()
	}

	var raw []json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, "", &raw); err != nil {
		return nil, err
	}

	bills := make([]bill.Bill, 0, len(raw))
	for i, r := range raw {
		b, err := decodeBill(r)
		if err != nil {
			slog.Warn("Skipping undecodable bill", "index", i, "error", err)
			continue
		}
		bills = append(bills, b)
	}
	return bills, nil
}

// Create uploads a receipt as multipart form data
func (c *Client) Create(ctx context.Context, upload bill.Upload) (*bill.UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.File.Name))
	contentType := upload.File.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(upload.File.Data); err != nil {
		return nil, fmt.Errorf("writing form file: %w", err)
	}
	if err := writer.WriteField("email", upload.Email); err != nil {
		return nil, fmt.Errorf("writing form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	var result bill.UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/bills/upload", &body, writer.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Update patches the bill under id, or creates one when id is empty
func (c *Client) Update(ctx context.Context, b bill.Bill, id string) (*bill.Bill, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshaling bill: %w", err)
	}

	method, path := http.MethodPatch, "/api/bills/"+url.PathEscape(id)
	if id == "" {
		method, path = http.MethodPost, "/api/bills"
	}

	var saved bill.Bill
	if err := c.do(ctx, method, path, bytes.NewReader(data), "application/json", &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// do sends a request and decodes a JSON response into out. Transport
// failures wrap bill.ErrServer.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: calling %s %s: %w", bill.ErrServer, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", bill.ErrServer, err)
	}
	return nil
}

// statusError reads the {"error": ...} body the server sends with failures
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	return &StatusError{Code: resp.StatusCode, Message: message}
}

// IsStatus reports whether err carries the given HTTP status
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}
