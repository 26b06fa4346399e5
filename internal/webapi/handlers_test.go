package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/optimizer"
	"github.com/paintlab/paintopt/internal/predictor"
	"github.com/paintlab/paintopt/internal/service"
)

// mockStore implements RunStore for testing.
type mockStore struct {
	runs    map[string]*models.OptimizationResult
	saveErr error
	listErr error
	getErr  error
	sumErr  error
}

func newMockStore() *mockStore {
	return &mockStore{runs: make(map[string]*models.OptimizationResult)}
}

func (m *mockStore) Save(r *models.OptimizationResult) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.runs[r.RunID] = r
	return nil
}

func (m *mockStore) ListRuns(q RunQuery) ([]RunSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return summarize(m.runs, q), nil
}

func (m *mockStore) GetRun(id string) (*models.OptimizationResult, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return r, nil
}

func (m *mockStore) Summary() (*SummaryResponse, error) {
	if m.sumErr != nil {
		return nil, m.sumErr
	}
	return &SummaryResponse{TotalRuns: len(m.runs)}, nil
}

func testBackend() service.Backend {
	cfg := optimizer.DefaultConfig()
	cfg.PopulationSize = 8
	cfg.Generations = 2
	cfg.EliteSize = 1
	cfg.Workers = 2
	return service.Backend{Optimizer: cfg}
}

func sampleResult(id string, best float64, started time.Time) *models.OptimizationResult {
	return &models.OptimizationResult{
		RunID:       id,
		Scope:       models.ScopeGlobal,
		Objectives:  []models.Objective{{Name: "gloss", Target: 85, Weight: 1, Direction: models.DirectionTarget}},
		Candidates:  []models.RankedRecipe{{Rank: 1, Fitness: best}},
		Generations: 5,
		Evaluations: 100,
		DurationMs:  1500,
		StartedAt:   started,
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(testBackend(), newMockStore())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
	if resp.Version == "" {
		t.Error("expected non-empty version")
	}
}

type unhealthyPredictor struct {
	predictor.Predictor
	*predictor.MockHealthChecker
}

func TestHandleHealthDegraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	hc := predictor.NewMockHealthChecker(ctrl)
	hc.EXPECT().Health(gomock.Any()).Return(errors.New("model server down"))

	b := testBackend()
	b.Predictor = unhealthyPredictor{Predictor: predictor.NewMockPredictor(ctrl), MockHealthChecker: hc}
	h := NewHandlers(b, nil)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected status degraded, got %q", resp.Status)
	}
	if !strings.Contains(resp.Predictor, "model server down") {
		t.Errorf("expected predictor error in response, got %q", resp.Predictor)
	}
}

func TestHandleValidate(t *testing.T) {
	h := NewHandlers(testBackend(), newMockStore())

	body := `{"recipe": {"components": [
		{"name": "Acrylic resin", "category": "binder", "amount": 45, "ph": 8.5},
		{"name": "TiO2", "category": "pigment", "amount": 20, "density": 4.1},
		{"name": "Water", "category": "solvent", "amount": 35}
	]}, "target_type": "high_gloss"}`
	req := httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleValidate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp service.RecipeReport
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.IsValid {
		t.Errorf("expected valid recipe, got errors %+v", resp.Errors)
	}
	if !resp.WaterBased {
		t.Error("expected water-based recipe")
	}
	if resp.PVC <= 0 {
		t.Errorf("expected positive PVC, got %f", resp.PVC)
	}
}

func TestHandleValidateErrors(t *testing.T) {
	h := NewHandlers(testBackend(), newMockStore())

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "not json", body: "{", want: http.StatusBadRequest},
		{name: "missing recipe", body: `{}`, want: http.StatusBadRequest},
		{name: "schema violation", body: `{"recipe": {"components": [{"name": "x"}]}}`, want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleValidate(rec, httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tt.want || resp.Error == "" {
				t.Errorf("unexpected error body %+v", resp)
			}
		})
	}
}

func TestHandleOptimize(t *testing.T) {
	store := newMockStore()
	h := NewHandlers(testBackend(), store)

	body := `{"objectives": {"gloss": 85, "total_cost": {"target": 40, "direction": "min"}}, "top_k": 3, "seed": 11}`
	rec := httptest.NewRecorder()
	h.HandleOptimize(rec, httptest.NewRequest(http.MethodPost, "/api/optimize", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.OptimizationResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.RunID == "" {
		t.Fatal("expected a run id")
	}
	if result.Generations != 2 {
		t.Errorf("expected 2 generations, got %d", result.Generations)
	}
	if len(result.Candidates) == 0 || len(result.Candidates) > 3 {
		t.Errorf("expected 1-3 candidates, got %d", len(result.Candidates))
	}
	if _, ok := store.runs[result.RunID]; !ok {
		t.Error("expected run to be stored")
	}
}

func TestHandleOptimizeStoreFailureStillReturnsResult(t *testing.T) {
	store := newMockStore()
	store.saveErr = errors.New("disk full")
	h := NewHandlers(testBackend(), store)

	rec := httptest.NewRecorder()
	h.HandleOptimize(rec, httptest.NewRequest(http.MethodPost, "/api/optimize", strings.NewReader(`{"objectives": {"gloss": 85}}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleOptimizeErrors(t *testing.T) {
	h := NewHandlers(testBackend(), newMockStore())

	var binders []string
	for _, b := range h.backend.Catalog.Binders {
		binders = append(binders, `"`+b.Code+`"`)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "not json", body: "objectives", want: http.StatusBadRequest},
		{name: "empty objectives", body: `{"objectives": {}}`, want: http.StatusUnprocessableEntity},
		{name: "unknown field", body: `{"objectives": {"gloss": 85}, "colour": "red"}`, want: http.StatusUnprocessableEntity},
		{
			name: "every binder prohibited",
			body: `{"objectives": {"gloss": 85}, "constraints": {"prohibited_material_ids": [` + strings.Join(binders, ",") + `]}}`,
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleOptimize(rec, httptest.NewRequest(http.MethodPost, "/api/optimize", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleOptimizeClientGone(t *testing.T) {
	store := newMockStore()
	h := NewHandlers(testBackend(), store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/optimize", strings.NewReader(`{"objectives": {"gloss": 85}}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.HandleOptimize(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result models.OptimizationResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if !result.Cancelled {
		t.Error("expected cancelled result")
	}
}

func TestHandleSummary(t *testing.T) {
	store := newMockStore()
	store.runs["a"] = sampleResult("a", 1, time.Now())
	h := NewHandlers(testBackend(), store)

	rec := httptest.NewRecorder()
	h.HandleSummary(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp SummaryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalRuns != 1 {
		t.Errorf("expected 1 run, got %d", resp.TotalRuns)
	}

	store.sumErr = errors.New("boom")
	rec = httptest.NewRecorder()
	h.HandleSummary(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHandleRunsWithSort(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	store.runs["old"] = sampleResult("old", 5, now.Add(-time.Hour))
	store.runs["new"] = sampleResult("new", 2, now)
	store.runs["new"].TargetType = "matte"
	h := NewHandlers(testBackend(), store)

	tests := []struct {
		query string
		count int
		first string
	}{
		{query: "", count: 2, first: "new"},
		{query: "?order=asc", count: 2, first: "old"},
		{query: "?sort=fitness&order=asc", count: 2, first: "new"},
		{query: "?sort=fitness", count: 2, first: "old"},
		{query: "?targetType=matte", count: 1, first: "new"},
		{query: "?scope=global&targetType=high_gloss", count: 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs"+tt.query, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var runs []RunSummary
			if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
				t.Fatal(err)
			}
			if len(runs) != tt.count {
				t.Fatalf("expected %d runs, got %d", tt.count, len(runs))
			}
			if tt.count > 0 && runs[0].ID != tt.first {
				t.Errorf("expected %s first, got %s", tt.first, runs[0].ID)
			}
		})
	}
}

func TestHandleRunsBadQuery(t *testing.T) {
	h := NewHandlers(testBackend(), newMockStore())

	for _, query := range []string{"?sort=colour", "?order=sideways"} {
		rec := httptest.NewRecorder()
		h.HandleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs"+query, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestHandleRunDetail(t *testing.T) {
	store := newMockStore()
	store.runs["run-1"] = sampleResult("run-1", 3, time.Now())
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandlers(testBackend(), store))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result models.OptimizationResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.RunID != "run-1" || len(result.Candidates) != 1 {
		t.Errorf("unexpected run %+v", result)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandleCatalog(t *testing.T) {
	h := NewHandlers(testBackend(), nil)

	rec := httptest.NewRecorder()
	h.HandleCatalog(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Binders []models.RecipeComponent `json:"binders"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Binders) == 0 {
		t.Error("expected binders in catalogue")
	}
}

func TestCORSMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("no origins configured means no CORS header", func(t *testing.T) {
		handler := CORSMiddleware(inner)
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://evil.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no CORS header when no origins configured")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("allowed origin gets CORS header", func(t *testing.T) {
		handler := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodPost, "/api/optimize", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
			t.Error("expected CORS header for allowed origin")
		}
		if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
			t.Error("expected POST among allowed methods")
		}
	})

	t.Run("OPTIONS preflight", func(t *testing.T) {
		handler := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
		}
	})
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandlers(testBackend(), newMockStore()))

	for _, path := range []string{"/api/health", "/api/summary", "/api/runs", "/api/catalog"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 from %s, got %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/optimize", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /api/optimize, got %d", rec.Code)
	}
}
