package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/hpungsan/recall/internal/errors"
	"github.com/hpungsan/recall/internal/logger"
	"github.com/hpungsan/recall/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Zone    string
	Nav     string // active nav item: "browse", "captures", "status", "report"
}

// CapturesPageData is the template data for the capture table.
type CapturesPageData struct {
	PageData
	*ops.ListOutput
	ShowTokens bool
}

// BrowsePageData is the template data for the three-slot browser.
type BrowsePageData struct {
	PageData
	*ops.BrowseOutput
	Start string
	End   string
}

// StatusPageData is the template data for the status page. The summary is
// a named field since StatusOutput.Zone would shadow PageData.Zone.
type StatusPageData struct {
	PageData
	Summary *ops.StatusOutput
}

// ReportPageData is the template data for the report page.
type ReportPageData struct {
	PageData
	Report *ops.ReportOutput
	Body   template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Code       string
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	zone      string
	log       logger.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version, zone string, log logger.Logger) (*Renderer, error) {
	funcMap := template.FuncMap{
		"add":       func(a, b int) int { return a + b },
		"sub":       func(a, b int) int { return a - b },
		"imageURL":  imageURL,
		"browseURL": browseURL,
	}

	layoutTmpl, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"captures": "captures.html",
		"browse":   "browse.html",
		"status":   "status.html",
		"report":   "report.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layoutTmpl.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		zone:      zone,
		log:       log,
	}, nil
}

func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Zone: r.zone, Nav: nav}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", logger.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.log.Error("template execution error", logger.String("template", name), logger.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	rErr := errors.As(err)
	if rErr.Code == errors.ErrInternal {
		r.log.Error("request failed", logger.String("path", req.URL.Path), logger.Error(err))
	}

	if wantsJSON(req) {
		renderJSON(w, rErr.Status, map[string]any{
			"error": map[string]any{
				"code":    string(rErr.Code),
				"message": rErr.Message,
				"status":  rErr.Status,
			},
		})
		return
	}

	r.renderPageStatus(w, rErr.Status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", rErr.Status), ""),
		StatusCode: rErr.Status,
		Code:       string(rErr.Code),
		Message:    rErr.Message,
	})
}

// wantsJSON reports whether the client asked for JSON.
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json") || req.URL.Query().Get("format") == "json"
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// safeHTML marks goldmark output as trusted. goldmark runs without
// html.WithUnsafe, so raw HTML inside window titles is omitted, not emitted.
func safeHTML(s string) template.HTML {
	return template.HTML(s)
}

func imageURL(token, box string) string {
	return "/images/" + url.PathEscape(token) + "?box=" + url.QueryEscape(box)
}

func browseURL(pos int, start, end string) string {
	q := url.Values{}
	q.Set("pos", fmt.Sprint(pos))
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	return "/browse?" + q.Encode()
}
