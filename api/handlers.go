package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"property-underwriter/models"
	"property-underwriter/services"
	"property-underwriter/storage"
)

// Handler serves the underwriting API.
type Handler struct {
	deps      Deps
	sessions  *sessionStore
	maxUpload int64
}

// NewHandler creates a Handler keeping at most keepLast analyses in memory.
func NewHandler(deps Deps, keepLast int, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{deps: deps, sessions: newSessionStore(keepLast), maxUpload: maxUpload}
}

// RegisterRoutes mounts the API on router.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/fields", h.ListFields)
	router.POST("/analyze", h.Analyze)
	router.GET("/analyses/:id", h.GetAnalysis)
	router.GET("/analyses/:id/chart", h.Chart)
	router.POST("/analyses/:id/insights", h.Insights)
	router.GET("/analyses/:id/export", h.Export)
}

type fieldView struct {
	Name   string   `json:"name"`
	Label  string   `json:"label"`
	Kind   string   `json:"kind"`
	Column string   `json:"column,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// ListFields describes the manual input form.
// GET /api/fields
func (h *Handler) ListFields(c *gin.Context) {
	out := make([]fieldView, 0, len(models.Fields))
	for _, f := range models.Fields {
		v := fieldView{Name: f.Name, Label: f.Label, Kind: "number", Column: f.Column}
		if f.Kind == models.Text {
			v.Kind = "text"
		} else {
			lo, hi := f.Min, f.Max
			v.Min = &lo
			if !math.IsInf(hi, 1) {
				v.Max = &hi
			}
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{
		"fields":           out,
		"required_columns": models.RequiredColumns,
		"optional_columns": models.OptionalColumns,
	})
}

type analyzeRequest struct {
	Fields map[string]any `json:"fields"`
}

// Analyze runs the pipeline on an optional upload plus manual fields. It
// accepts multipart forms (file, fields as a JSON string) or a JSON body.
// POST /api/analyze
func (h *Handler) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	var (
		raw    map[string]any
		upload *services.Upload
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(h.maxUpload); err != nil {
			var tooLarge *http.MaxBytesError
			if !errors.As(err, &tooLarge) {
				err = &models.InvalidInputError{Field: "form", Reason: err.Error()}
			}
			respondError(c, err)
			return
		}
		if s := c.PostForm("fields"); s != "" {
			if err := json.Unmarshal([]byte(s), &raw); err != nil {
				respondError(c, &models.InvalidInputError{Field: "fields", Reason: "not a JSON object"})
				return
			}
		}
		fh, err := c.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			respondError(c, &models.InvalidInputError{Field: "file", Reason: err.Error()})
			return
		default:
			f, err := fh.Open()
			if err != nil {
				respondError(c, err)
				return
			}
			defer f.Close()
			upload = &services.Upload{Name: fh.Filename, Body: f}
		}
	} else if c.Request.ContentLength != 0 {
		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, &models.InvalidInputError{Field: "body", Reason: err.Error()})
			return
		}
		raw = req.Fields
	}

	manual, unknown, err := models.RecordFromMap(raw)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := manual.CheckRanges(); err != nil {
		respondError(c, err)
		return
	}

	analysis, err := h.deps.Analyzer.Analyze(upload, manual)
	if err != nil {
		respondError(c, err)
		return
	}
	h.sessions.put(analysis)

	warnings := []string{}
	if w := analysis.MissingWarning; w != nil {
		warnings = append(warnings, w.Error())
	}
	for _, k := range unknown {
		warnings = append(warnings, fmt.Sprintf("unknown field %q ignored", k))
	}
	c.JSON(http.StatusCreated, gin.H{"analysis": analysis, "warnings": warnings})
}

// GetAnalysis returns a stored analysis and its latest insight.
// GET /api/analyses/:id
func (h *Handler) GetAnalysis(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis":     s.analysis,
		"insight_kind": s.insightKind,
		"insight":      s.insight,
	})
}

// Chart renders the analysis metrics as a PNG.
// GET /api/analyses/:id/chart?kind=bar&metrics=core
func (h *Handler) Chart(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	kind, err := services.ParseChartKind(c.DefaultQuery("kind", string(services.ChartBar)))
	if err != nil {
		respondError(c, err)
		return
	}
	metrics, err := services.ChartMetrics(s.analysis.Metrics, c.Query("metrics"))
	if err != nil {
		respondError(c, err)
		return
	}
	img, err := h.deps.Charts.Render(metrics, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	h.sessions.update(s.analysis.ID, func(e *session) {
		e.chartKind, e.chart = string(kind), img
	})
	c.Data(http.StatusOK, "image/png", img)
}

type insightRequest struct {
	Kind string `json:"kind"`
}

// Insights asks the text-generation provider about the analysis.
// POST /api/analyses/:id/insights
func (h *Handler) Insights(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req insightRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, &models.InvalidInputError{Field: "body", Reason: err.Error()})
			return
		}
	}
	kind, err := services.ParseInsightKind(req.Kind)
	if err != nil {
		respondError(c, err)
		return
	}

	text, err := h.deps.Insights.Generate(c.Request.Context(), s.analysis.Metrics, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	h.sessions.update(s.analysis.ID, func(e *session) {
		e.insightKind, e.insight = string(kind), text
	})
	c.JSON(http.StatusOK, gin.H{"kind": kind, "insight": text})
}

// Export downloads the analysis as csv, xlsx or pdf and logs it to the
// archive when one is configured.
// GET /api/analyses/:id/export?format=pdf
func (h *Handler) Export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	exporter, err := storage.NewExporter(c.DefaultQuery("format", storage.FormatCSV), h.deps.PDF)
	if err != nil {
		respondError(c, err)
		return
	}
	report := s.report()
	data, err := exporter.Export(c.Request.Context(), report)
	if err != nil {
		h.deps.Logger.Error("[api] %s export of %s failed: %v", exporter.Format(), s.analysis.ID, err)
		respondError(c, err)
		return
	}
	if h.deps.Archive != nil {
		if err := h.deps.Archive.Write(c.Request.Context(), report); err != nil {
			h.deps.Logger.Warn("[api] archive %s: %v", s.analysis.ID, err)
		}
	}

	name := fmt.Sprintf("underwriting-%s.%s", s.analysis.ID, exporter.Format())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, exporter.ContentType(), data)
}

func (h *Handler) session(c *gin.Context) (session, bool) {
	s, ok := h.sessions.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
	}
	return s, ok
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		unsupported *models.UnsupportedFormatError
		parseErr    *models.ParseError
		invalid     *models.InvalidInputError
		external    *models.ExternalServiceError
		tooLarge    *http.MaxBytesError
	)
	status := http.StatusInternalServerError
	key := "error"
	switch {
	case errors.As(err, &unsupported):
		status = http.StatusUnsupportedMediaType
	case errors.As(err, &parseErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrInsightsUnavailable):
		status = http.StatusServiceUnavailable
	case errors.As(err, &external):
		status = http.StatusBadGateway
	case services.IsChartWarning(err):
		status, key = http.StatusUnprocessableEntity, "warning"
	}
	c.JSON(status, gin.H{key: err.Error()})
}
