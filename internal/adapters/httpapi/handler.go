// Package httpapi serves the catalog and schematic validation over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pidcheck/internal/blob"
	"pidcheck/internal/ctxlog"
	"pidcheck/pkg/domain"
)

// maxBodyBytes bounds posted schematic documents.
const maxBodyBytes = 4 << 20

// Service is the subset of core.Service the handler needs.
type Service interface {
	ListComponentTypes() []domain.ComponentType
	GetComponentType(id string) (domain.ComponentType, error)
	ValidatePayload(ctx context.Context, p domain.SchematicPayload) (domain.Report, error)
	ValidateStored(ctx context.Context, id string) (domain.Report, error)
	SaveSchematic(ctx context.Context, p domain.SchematicPayload) (domain.SchematicPayload, error)
	LoadSchematic(ctx context.Context, id string) (domain.SchematicPayload, error)
	ListSchematics(ctx context.Context) ([]domain.SchematicSummary, error)
	ArchiveReport(ctx context.Context, r domain.Report) (blob.Info, error)
}

// Handler routes:
//
//	GET  /api/components
//	GET  /api/components/{id}
//	GET  /api/schematic
//	POST /api/schematic
//	GET  /api/schematic/{id}
//	POST /api/schematic/validate
//	GET  /api/schematic/{id}/validate
//	GET  /metrics
//
// Validation routes archive the report when called with ?archive=true and
// return its key in the X-Report-Key header.
type Handler struct {
	Service Service
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewHandler returns a handler over svc.
func NewHandler(svc Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.serve(rec, r)
	h.logger(r.Context()).Info("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(started),
	)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/metrics":
		if h.Metrics == nil || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		h.Metrics.ServeHTTP(w, r)
	case path == "/api/components":
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, h.Service.ListComponentTypes())
	case strings.HasPrefix(path, "/api/components/"):
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleComponent(w, strings.TrimPrefix(path, "/api/components/"))
	case path == "/api/schematic":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleSave(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case path == "/api/schematic/validate":
		if !allow(w, r, http.MethodPost) {
			return
		}
		h.handleValidatePayload(w, r)
	case strings.HasPrefix(path, "/api/schematic/"):
		if !allow(w, r, http.MethodGet) {
			return
		}
		rest := strings.TrimPrefix(path, "/api/schematic/")
		if id, ok := strings.CutSuffix(rest, "/validate"); ok && id != "" && !strings.Contains(id, "/") {
			h.handleValidateStored(w, r, id)
			return
		}
		if rest == "" || strings.Contains(rest, "/") {
			http.NotFound(w, r)
			return
		}
		h.handleLoad(w, r, rest)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleComponent(w http.ResponseWriter, id string) {
	ct, err := h.Service.GetComponentType(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Component not found")
		return
	}
	writeJSON(w, http.StatusOK, ct)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListSchematics(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schematics": list})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePayload(w, r)
	if !ok {
		return
	}
	saved, err := h.Service.SaveSchematic(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Schematic saved successfully",
		"id":      saved.ID,
	})
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.Service.LoadSchematic(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleValidatePayload(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePayload(w, r)
	if !ok {
		return
	}
	report, err := h.Service.ValidatePayload(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeReport(w, r, report)
}

func (h *Handler) handleValidateStored(w http.ResponseWriter, r *http.Request, id string) {
	report, err := h.Service.ValidateStored(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeReport(w, r, report)
}

func (h *Handler) writeReport(w http.ResponseWriter, r *http.Request, report domain.Report) {
	if archive := r.URL.Query().Get("archive"); archive == "true" || archive == "1" {
		info, err := h.Service.ArchiveReport(r.Context(), report)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("X-Report-Key", info.Key)
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var schema domain.SchemaError
	var notFound domain.ErrNotFound
	switch {
	case errors.As(err, &schema):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": schema.Error(), "path": schema.Path})
	case errors.As(err, &notFound) && notFound.Entity == domain.EntitySchematic:
		writeError(w, http.StatusNotFound, "Schematic not found")
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	default:
		h.logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) logger(ctx context.Context) *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return ctxlog.FromContext(ctx)
}

func decodePayload(w http.ResponseWriter, r *http.Request) (domain.SchematicPayload, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schematic payload")
		return domain.SchematicPayload{}, false
	}
	if len(data) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "schematic payload too large")
		return domain.SchematicPayload{}, false
	}
	p, err := domain.DecodeSchematicPayload(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schematic payload")
		return domain.SchematicPayload{}, false
	}
	return p, true
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}
