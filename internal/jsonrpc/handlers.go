package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/paintlab/paintopt/internal/catalog"
	"github.com/paintlab/paintopt/internal/chemistry"
	"github.com/paintlab/paintopt/internal/features"
	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/optimizer"
	"github.com/paintlab/paintopt/internal/service"
	"github.com/paintlab/paintopt/internal/validation"
)

// ProgressMethod is the notification sent for each optimizer progress event
// when the caller asks for progress.
const ProgressMethod = "optimize.progress"

// HandlerContext provides shared state for method handlers.
type HandlerContext struct {
	backend  service.Backend
	validate *validator.Validate
}

// NewHandlerContext creates a new handler context. Missing backend pieces
// fall back to the service defaults.
func NewHandlerContext(b service.Backend) *HandlerContext {
	return &HandlerContext{backend: b.WithDefaults(), validate: validator.New()}
}

// RegisterHandlers registers the recipe and catalogue methods plus
// rpc.methods.
func RegisterHandlers(registry *MethodRegistry, hctx *HandlerContext) {
	registry.Register("recipe.validate", "Validate a recipe (inline or by path)", hctx.handleRecipeValidate)
	registry.Register("recipe.normalize", "Scale a recipe to 100%", hctx.handleRecipeNormalize)
	registry.Register("recipe.features", "Mixture features sent to the predictor", hctx.handleRecipeFeatures)
	registry.Register("recipe.optimize", "Run an optimization; \"progress\": true streams optimize.progress notifications", hctx.handleRecipeOptimize)
	registry.Register("catalog.list", "The material catalogue", hctx.handleCatalogList)
	registry.Register("rpc.methods", "List the methods this server answers", func(context.Context, json.RawMessage) (any, *Error) {
		return registry.Describe(), nil
	})
}

// decodeParams unmarshals params into p and checks its validate tags.
func (h *HandlerContext) decodeParams(params json.RawMessage, p any) *Error {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	if err := json.Unmarshal(params, p); err != nil {
		return ErrInvalidParams(err.Error())
	}
	if err := h.validate.Struct(p); err != nil {
		return ErrInvalidParams(err.Error())
	}
	return nil
}

// --- shared recipe loading ---

// RecipeParams identifies a recipe either inline or by file path.
type RecipeParams struct {
	Recipe     json.RawMessage `json:"recipe,omitempty" validate:"required_without=Path"`
	Path       string          `json:"path,omitempty" validate:"required_without=Recipe"`
	TargetType string          `json:"target_type,omitempty"`
}

func (h *HandlerContext) loadRecipe(p RecipeParams) (*models.Recipe, *Error) {
	data := []byte(p.Recipe)
	if p.Path != "" {
		raw, err := os.ReadFile(p.Path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound(p.Path)
		}
		if err != nil {
			return nil, ErrInternalError(err.Error())
		}
		data = raw
	}

	if errs := validation.ValidateRecipeBytes(data); len(errs) > 0 {
		return nil, ErrSchemaViolation(errs)
	}
	r, err := models.ParseRecipe(data)
	if err != nil {
		return nil, ErrInvalidParams(err.Error())
	}
	return r, nil
}

// --- recipe.validate ---

// RecipeValidateResult is the validation report plus the measured values
// behind it.
type RecipeValidateResult = service.RecipeReport

func (h *HandlerContext) handleRecipeValidate(_ context.Context, params json.RawMessage) (any, *Error) {
	var p RecipeParams
	if rpcErr := h.decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	r, rpcErr := h.loadRecipe(p)
	if rpcErr != nil {
		return nil, rpcErr
	}

	result := h.backend.Inspect(*r, p.TargetType)
	return &result, nil
}

// --- recipe.normalize ---

// RecipeNormalizeResult is a recipe scaled to 100%.
type RecipeNormalizeResult struct {
	Recipe      models.Recipe `json:"recipe"`
	TotalBefore float64       `json:"total_before"`
}

func (h *HandlerContext) handleRecipeNormalize(_ context.Context, params json.RawMessage) (any, *Error) {
	var p RecipeParams
	if rpcErr := h.decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	r, rpcErr := h.loadRecipe(p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &RecipeNormalizeResult{
		Recipe:      chemistry.NormalizeRecipe(*r),
		TotalBefore: r.TotalAmount(),
	}, nil
}

// --- recipe.features ---

// RecipeFeaturesResult is the feature vector the predictor would receive.
type RecipeFeaturesResult struct {
	Features map[string]float64 `json:"features"`
}

func (h *HandlerContext) handleRecipeFeatures(_ context.Context, params json.RawMessage) (any, *Error) {
	var p RecipeParams
	if rpcErr := h.decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	r, rpcErr := h.loadRecipe(p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &RecipeFeaturesResult{Features: features.Compute(chemistry.NormalizeRecipe(*r))}, nil
}

// --- recipe.optimize ---

// OptimizeParams carries an optimization request inline or by file path.
type OptimizeParams struct {
	Request json.RawMessage `json:"request,omitempty" validate:"required_without=Path"`
	Path    string          `json:"path,omitempty" validate:"required_without=Request"`
	// Progress asks for optimize.progress notifications during the run.
	Progress bool `json:"progress,omitempty"`
}

func (h *HandlerContext) handleRecipeOptimize(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p OptimizeParams
	if rpcErr := h.decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	req, rpcErr := h.loadRequest(p)
	if rpcErr != nil {
		return nil, rpcErr
	}

	opt := h.backend.NewOptimizer()
	if p.Progress {
		notify := NotifierFrom(ctx)
		opt.OnProgress(func(ev optimizer.ProgressEvent) {
			notify(ProgressMethod, ev)
		})
	}

	result, err := opt.Run(ctx, *req)
	if err != nil {
		if optimizer.IsStructural(err) {
			return nil, ErrInfeasible(err.Error())
		}
		return nil, ErrOptimizationFailed(err.Error())
	}
	return result, nil
}

func (h *HandlerContext) loadRequest(p OptimizeParams) (*models.OptimizationRequest, *Error) {
	if p.Path != "" {
		if _, err := os.Stat(p.Path); errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound(p.Path)
		}
		if errs, err := validation.ValidateRequestFile(p.Path); err != nil {
			return nil, ErrInternalError(err.Error())
		} else if len(errs) > 0 {
			return nil, ErrSchemaViolation(errs)
		}
		req, err := models.LoadOptimizationRequest(p.Path)
		if err != nil {
			return nil, ErrInvalidParams(err.Error())
		}
		return req, nil
	}

	var doc any
	if err := json.Unmarshal(p.Request, &doc); err != nil {
		return nil, ErrInvalidParams(err.Error())
	}
	if errs := validation.ValidateRequest(doc); len(errs) > 0 {
		return nil, ErrSchemaViolation(errs)
	}

	var req models.OptimizationRequest
	if err := json.Unmarshal(p.Request, &req); err != nil {
		return nil, ErrInvalidParams(err.Error())
	}
	if err := h.validate.Struct(&req); err != nil {
		return nil, ErrInvalidParams(err.Error())
	}
	if err := req.Validate(); err != nil {
		return nil, ErrInvalidParams(err.Error())
	}
	return &req, nil
}

// --- catalog.list ---

// CatalogListResult is the material catalogue grouped by pool.
type CatalogListResult struct {
	Count int `json:"count"`
	*catalog.Catalog
}

func (h *HandlerContext) handleCatalogList(_ context.Context, _ json.RawMessage) (any, *Error) {
	cat := h.backend.Catalog
	if cat == nil {
		return nil, ErrInternalError("no catalogue loaded")
	}
	return &CatalogListResult{Count: cat.Len(), Catalog: cat}, nil
}
