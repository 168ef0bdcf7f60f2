package expense

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/zombor/billed/internal/bill"
)

//go:embed templates/*.html
var templatesFS embed.FS

var (
	billsPage = template.Must(template.ParseFS(templatesFS, "templates/layout.html", "templates/bills.html"))
	errorPage = template.Must(template.ParseFS(templatesFS, "templates/layout.html", "templates/error.html"))
)

type billsPageData struct {
	Rows         []bill.Row
	NewBillRoute string
}

type errorPageData struct {
	Message string
}

// renderPage executes a page into a buffer first so a template failure
// never leaves a half-written response.
func renderPage(w http.ResponseWriter, code int, page *template.Template, data any) {
	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("Error rendering page", "error", err)
		http.Error(w, bill.ErrServer.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

// sessionFromRequest reads the viewer from the query string. Sign-in is
// handled outside this server.
func sessionFromRequest(r *http.Request) bill.Session {
	session := bill.Session{
		Email: r.URL.Query().Get("email"),
		Type:  bill.UserEmployee,
	}
	if bill.UserType(r.URL.Query().Get("type")) == bill.UserAdmin {
		session.Type = bill.UserAdmin
	}
	return session
}

// handleBillsPage renders the bills table of the viewer
func (s *Server) handleBillsPage(w http.ResponseWriter, r *http.Request) {
	list := bill.NewBillsList(s.service.For(sessionFromRequest(r)))
	rows, err := list.FetchAndFormat(r.Context())
	if err != nil {
		renderFetchError(w, err)
		return
	}

	renderPage(w, http.StatusOK, billsPage, billsPageData{
		Rows:         rows,
		NewBillRoute: bill.RouteNewBill,
	})
}

// renderFetchError renders the error page for a failed listing
func renderFetchError(w http.ResponseWriter, err error) {
	slog.Error("Error listing bills", "error", err)

	message := bill.ErrServer.Error()
	var fetchErr *bill.FetchError
	if errors.As(err, &fetchErr) {
		message = fetchErr.Message()
	}

	code := http.StatusInternalServerError
	if message == bill.ErrNotFound.Error() {
		code = http.StatusNotFound
	}
	renderPage(w, code, errorPage, errorPageData{Message: message})
}
