package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/JoelleM-design/veeni-app-sub002/internal/ai"
	"github.com/JoelleM-design/veeni-app-sub002/internal/db"
	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
	"github.com/JoelleM-design/veeni-app-sub002/internal/pipeline"
	"github.com/JoelleM-design/veeni-app-sub002/internal/storage"
)

const (
	MaxBodySize = 1 * 1024 * 1024 // 1MB
	Version     = "1.0.0"
)

// Handler handles HTTP requests for label interpretation
type Handler struct {
	config   *models.Config
	pipeline *pipeline.Pipeline
	enricher ai.EnrichmentClient
	metrics  *Metrics
	log      *slog.Logger
}

// NewHandler creates a new API handler. enricher may be nil when AI
// enrichment is disabled; metrics may be nil.
func NewHandler(config *models.Config, p *pipeline.Pipeline, enricher ai.EnrichmentClient, metrics *Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		config:   config,
		pipeline: p,
		enricher: enricher,
		metrics:  metrics,
		log:      logger,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.instrument)

	// Main endpoints
	router.HandleFunc("/api/parse-label", h.ParseLabel).Methods("POST")
	router.HandleFunc(ai.EnrichPath, h.EnrichLabel).Methods("POST")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	if h.metrics != nil {
		router.Handle("/metrics", h.metrics.Handler()).Methods("GET")
	}

	return router
}

// ParseLabelRequest is the body of POST /api/parse-label
type ParseLabelRequest struct {
	OCRText string   `json:"ocrText"`
	Enrich  bool     `json:"enrich"`           // run the AI stage when fields are missing
	Fields  []string `json:"fields,omitempty"` // ask the AI stage for these fields only, overriding them
}

// ParseLabel interprets OCR text from a wine label
func (h *Handler) ParseLabel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	startTime := time.Now()

	var req ParseLabelRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if bad := models.UnknownFields(req.Fields); len(bad) > 0 {
		h.sendError(w, http.StatusBadRequest, "unknown fields: "+strings.Join(bad, ", "))
		return
	}

	var (
		wine models.ParsedWine
		err  error
	)
	switch {
	case !req.Enrich || strings.TrimSpace(req.OCRText) == "":
		// Empty text yields the all-default record; there is nothing to enrich.
		wine = h.pipeline.Parse(req.OCRText)
	case len(req.Fields) > 0:
		rec := models.NewRecord(h.pipeline.Parse(req.OCRText))
		err = h.pipeline.EnrichFields(r.Context(), rec, req.Fields)
		wine = rec.Snapshot()
	default:
		wine, err = h.pipeline.Process(r.Context(), req.OCRText)
	}

	response := map[string]interface{}{
		"success":        true,
		"data":           wine,
		"processingTime": time.Since(startTime).Seconds(),
	}
	if err != nil {
		// The local result is still valid; report the skipped stage.
		response["warning"] = err.Error()
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// EnrichLabel is the remote enrichment endpoint used by ai.RemoteClient
func (h *Handler) EnrichLabel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	startTime := time.Now()

	if h.enricher == nil {
		h.sendError(w, http.StatusServiceUnavailable, "AI enrichment is disabled")
		return
	}

	var req models.EnrichmentRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.OCRText) == "" {
		h.sendError(w, http.StatusBadRequest, "ocrText is required")
		return
	}
	if bad := models.UnknownFields(req.MissingFields); len(bad) > 0 {
		h.sendError(w, http.StatusBadRequest, "unknown fields: "+strings.Join(bad, ", "))
		return
	}

	current := req.CurrentParsing
	if current.RawText == "" && current.Name == "" && current.Producer == "" {
		current = h.pipeline.Parse(req.OCRText)
	}
	missing := req.MissingFields
	if len(missing) == 0 {
		missing = current.MissingFields()
	}

	resp, err := h.enricher.RequestEnrichment(r.Context(), req.OCRText, current, missing)
	if err != nil {
		h.observe("remote_enrich", pipeline.OutcomeError, startTime)
		h.log.Warn("api.enrich.failed", "error", err)
		h.sendError(w, upstreamStatus(err), err.Error())
		return
	}

	outcome := pipeline.OutcomeMerged
	if resp.Fallback {
		outcome = pipeline.OutcomeFallback
	}
	h.observe("remote_enrich", outcome, startTime)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// upstreamStatus maps an enrichment failure to the status reported to our
// own callers.
func upstreamStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Timestamp    string            `json:"timestamp"`
	Uptime       string            `json:"uptime"`
	Memory       MemoryStats       `json:"memory"`
	Dictionaries ServiceStatus     `json:"dictionaries"`
	Dataset      ServiceStatus     `json:"dataset"`
	Database     ServiceStatus     `json:"database"`
	Storage      ServiceStatus     `json:"storage"`
	AI           map[string]string `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Memory statistics
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	aiStatus := map[string]string{"enabled": "false"}
	if h.pipeline.AIEnabled() {
		aiStatus["enabled"] = "true"
		aiStatus["defaultProvider"] = h.config.AI.DefaultProvider
	}

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Dictionaries: ServiceStatus{
			Available: true,
			Version:   fmt.Sprintf("v%d", h.pipeline.Parser().Dictionaries().Version()),
		},
		Dataset:  h.checkDataset(),
		Database: h.checkDatabase(),
		Storage:  h.checkStorage(),
		AI:       aiStatus,
	}

	// The parser works without a dataset, so a missing one only degrades
	if !response.Dataset.Available && h.config.Dataset.Source != "" && h.config.Dataset.Source != "none" {
		response.Status = "degraded"
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkDataset reports the loaded wine dataset
func (h *Handler) checkDataset() ServiceStatus {
	ds := h.pipeline.Dataset()
	if ds == nil {
		return ServiceStatus{
			Available: false,
			Error:     "no dataset loaded",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   fmt.Sprintf("%s (%d wines)", h.config.Dataset.Source, ds.Len()),
	}
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.EnrichmentResponse{
		Success: false,
		Error:   message,
	})
}

func (h *Handler) observe(stage, outcome string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveStage(stage, outcome, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per route template and status code
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if h.metrics == nil {
			return
		}
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		h.metrics.observeRequest(route, rec.status)
	})
}
