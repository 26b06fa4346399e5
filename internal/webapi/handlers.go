package webapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/optimizer"
	"github.com/paintlab/paintopt/internal/predictor"
	"github.com/paintlab/paintopt/internal/service"
	"github.com/paintlab/paintopt/internal/validation"
)

// Version is set at build time or defaults to dev.
var Version = "dev"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	backend  service.Backend
	store    RunStore
	validate *validator.Validate
}

// NewHandlers creates Handlers over the given backend and run store. A nil
// store keeps runs in memory only.
func NewHandlers(b service.Backend, store RunStore) *Handlers {
	if store == nil {
		store = NewFileStore("")
	}
	return &Handlers{backend: b.WithDefaults(), store: store, validate: validator.New()}
}

// HandleHealth reports service and predictor health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: Version, Predictor: "ok"}
	if err := predictor.CheckHealth(r.Context(), h.backend.Predictor); err != nil {
		h.backend.Logger.Warn("predictor health check failed", "error", err)
		resp.Status = "degraded"
		resp.Predictor = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleValidate validates a recipe and reports its PVC and pH.
func (h *Handlers) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var body ValidateRequest
	if !h.decodeBody(w, r, &body) {
		return
	}

	var doc any
	if err := json.Unmarshal(body.Recipe, &doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validation.ValidateRecipe(doc); len(errs) > 0 {
		writeErrorDetails(w, http.StatusUnprocessableEntity, "recipe failed schema validation", errs)
		return
	}
	recipe, err := models.ParseRecipe(body.Recipe)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.backend.Inspect(*recipe, body.TargetType))
}

// HandleOptimize runs an optimization synchronously and stores the result.
// The run stops early when the client goes away.
func (h *Handlers) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if errs := validation.ValidateRequest(doc); len(errs) > 0 {
		writeErrorDetails(w, http.StatusUnprocessableEntity, "request failed schema validation", errs)
		return
	}

	var req models.OptimizationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.backend.NewOptimizer().Run(r.Context(), req)
	if err != nil {
		if optimizer.IsStructural(err) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if err := h.store.Save(result); err != nil {
		h.backend.Logger.Warn("failed to store run", "run_id", result.RunID, "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleSummary returns aggregate metrics across all runs.
func (h *Handlers) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, err := h.store.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleRuns lists stored runs. Query params: sort, order, targetType, scope.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := RunQuery{
		Sort:       params.Get("sort"),
		Order:      params.Get("order"),
		TargetType: params.Get("targetType"),
		Scope:      models.Scope(params.Get("scope")),
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := h.store.ListRuns(q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleRunDetail returns a stored run with its candidates and history.
func (h *Handlers) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	run, err := h.store.GetRun(id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleCatalog returns the material catalogue.
func (h *Handlers) HandleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.Catalog)
}

func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/validate", h.HandleValidate)
	mux.HandleFunc("POST /api/optimize", h.HandleOptimize)
	mux.HandleFunc("GET /api/summary", h.HandleSummary)
	mux.HandleFunc("GET /api/runs", h.HandleRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.HandleRunDetail)
	mux.HandleFunc("GET /api/catalog", h.HandleCatalog)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}

func writeErrorDetails(w http.ResponseWriter, code int, msg string, details []string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code, Details: details})
}
