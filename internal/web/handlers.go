package web

import (
	"image/jpeg"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/recall/internal/errors"
	"github.com/hpungsan/recall/internal/imagestore"
	"github.com/hpungsan/recall/internal/logger"
	"github.com/hpungsan/recall/internal/ops"
)

var imageDecoder imagestore.Decoder = imagestore.FileDecoder{}

// Handlers contains HTTP route handlers for the dashboard. They hold no
// per-client state: each request reloads from the database.
type Handlers struct {
	viewer   *ops.Viewer
	renderer *Renderer
	decoder  imagestore.Decoder
	log      logger.Logger
	started  time.Time
	version  string
}

// HandleCaptures handles GET /captures: the full capture table.
func (h *Handlers) HandleCaptures(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Limit:      parseIntParam(r, "limit", 0),
		Offset:     parseIntParam(r, "offset", 0),
		ShowTokens: parseBoolParam(r, "tokens"),
	}

	result, err := ops.List(r.Context(), h.viewer, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "captures", CapturesPageData{
		PageData:   h.renderer.page("Captures", "captures"),
		ListOutput: result,
		ShowTokens: input.ShowTokens,
	})
}

// HandleBrowse handles GET /browse: the current capture plus neighbours.
// Query: pos, and optionally start/end (display time) or start_ms/end_ms.
func (h *Handlers) HandleBrowse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.BrowseInput{
		Position: parseIntParam(r, "pos", 0),
		Range: ops.RangeInput{
			Start:   q.Get("start"),
			End:     q.Get("end"),
			StartMs: parseInt64Param(r, "start_ms"),
			EndMs:   parseInt64Param(r, "end_ms"),
		},
	}

	result, err := ops.Browse(r.Context(), h.viewer, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data := BrowsePageData{
		PageData:     h.renderer.page("Browse", "browse"),
		BrowseOutput: result,
	}
	switch {
	case result.Range != nil:
		data.Start, data.End = result.Range.Start, result.Range.End
	case result.DefaultRange != nil:
		data.Start, data.End = result.DefaultRange.Start, result.DefaultRange.End
	}
	h.renderer.renderPage(w, "browse", data)
}

// HandleStatus handles GET /status: counts and the deletion check.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Status(r.Context(), h.viewer)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "status", StatusPageData{
		PageData: h.renderer.page("Status", "status"),
		Summary:  result,
	})
}

// HandleReport handles GET /report: the forensic summary. Never writes
// to disk.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	format := ops.FormatHTML
	if wantsJSON(r) && r.URL.Query().Get("markdown") == "true" {
		format = ops.FormatMarkdown
	}

	result, err := ops.Report(r.Context(), h.viewer, ops.ReportInput{
		Format: format,
		Limit:  parseIntParam(r, "limit", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "report", ReportPageData{
		PageData: h.renderer.page("Report", "report"),
		Report:   result,
		Body:     safeHTML(result.HTML),
	})
}

// HandleImage handles GET /images/{token}: a screenshot scaled into
// ?box= (primary, preview, table, viewer, WxH, or original).
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	path, err := h.viewer.Images.Resolve(token)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	boxName := r.URL.Query().Get("box")
	if boxName == "" {
		boxName = "primary"
	}
	var box imagestore.Size
	if boxName != "original" {
		box, err = imagestore.ParseBox(boxName)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest(err.Error()))
			return
		}
	}

	raster, err := h.decoder.Decode(r.Context(), path)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	img := raster.Image
	if boxName != "original" {
		img = imagestore.Scale(raster, box)
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 85}); err != nil {
		h.log.Warn("image encode failed", logger.String("token", token), logger.Error(err))
	}
}

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Database      string  `json:"database"`
}

// HandleHealthz handles GET /healthz.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	renderJSON(w, http.StatusOK, healthzResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.started).Seconds(),
		Version:       h.version,
		Database:      h.viewer.Repo.Path(),
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseInt64Param returns nil when the parameter is absent or malformed.
func parseInt64Param(r *http.Request, name string) *int64 {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
