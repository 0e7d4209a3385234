package dashboard

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/rfm-dashboard/internal/charts"
	"github.com/KaramelBytes/rfm-dashboard/internal/dataset"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"safeCSS": func(s string) template.CSS { return template.CSS(s) },
}).ParseFS(templateFS, "templates/*.html.tmpl"))

type errorPage struct {
	Title     string
	Summary   string
	Detail    string
	RequestID string
}

// Handler serves the dashboard page.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

// NewHandler returns the GET / handler for svc.
func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// ServeHTTP renders the page for the ?view= toggle. Every request reloads the
// dataset through the service.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	view, err := charts.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errorPage{
			Title:     "Unknown view",
			Summary:   "The view selector accepts only the dashboard's two options.",
			Detail:    err.Error(),
			RequestID: reqID,
		})
		return
	}

	page, err := h.svc.Render(r.Context(), view)
	if err != nil {
		status, summary := http.StatusInternalServerError, "The dashboard could not be rendered."
		if errors.Is(err, dataset.ErrLoad) {
			status, summary = http.StatusBadGateway, "The segmentation dataset could not be loaded. No partial results are shown."
		}
		h.writeError(w, status, errorPage{
			Title:     h.svc.Profile().Title,
			Summary:   summary,
			Detail:    err.Error(),
			RequestID: reqID,
		})
		return
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "page.html.tmpl", page); err != nil {
		h.log.Error().Err(err).Str("request_id", reqID).Msg("execute page template")
		h.writeError(w, http.StatusInternalServerError, errorPage{
			Title:     h.svc.Profile().Title,
			Summary:   "The dashboard could not be rendered.",
			Detail:    err.Error(),
			RequestID: reqID,
		})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) writeError(w http.ResponseWriter, status int, p errorPage) {
	if p.Title == "" {
		p.Title = http.StatusText(status)
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "error.html.tmpl", p); err != nil {
		h.log.Error().Err(err).Msg("execute error template")
		http.Error(w, p.Detail, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
