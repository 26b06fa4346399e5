package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "paintopt/1.0"
	maxBodyBytes   = 1 << 20
)

// HTTPPredictor queries a remote model service. The service answers
// POST {endpoint}/predict with {"success": bool, "predictions": {...}} and
// GET {endpoint}/health with {"status": "healthy"}.
type HTTPPredictor struct {
	endpoint string
	modelID  string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
}

// HTTPOption configures an HTTPPredictor.
type HTTPOption func(*HTTPPredictor)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPPredictor) { p.client = c }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(p *HTTPPredictor) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables
// throttling.
func WithRateLimit(perSecond float64) HTTPOption {
	return func(p *HTTPPredictor) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithModelID names the remote model; it is sent with every request.
func WithModelID(id string) HTTPOption {
	return func(p *HTTPPredictor) { p.modelID = id }
}

// WithAPIKey sets a bearer token.
func WithAPIKey(key string) HTTPOption {
	return func(p *HTTPPredictor) { p.apiKey = key }
}

// NewHTTPPredictor returns a predictor for the service at endpoint.
func NewHTTPPredictor(endpoint string, opts ...HTTPOption) *HTTPPredictor {
	p := &HTTPPredictor{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModelID returns the configured model id.
func (p *HTTPPredictor) ModelID() string {
	return p.modelID
}

type predictRequest struct {
	ModelID     string             `json:"model_id,omitempty"`
	RequestType string             `json:"request_type"`
	Features    map[string]float64 `json:"features"`
}

type predictResponse struct {
	Success     bool               `json:"success"`
	Predictions map[string]float64 `json:"predictions"`
	Error       string             `json:"error,omitempty"`
}

// Predict implements Predictor.
func (p *HTTPPredictor) Predict(ctx context.Context, features map[string]float64) (map[string]float64, error) {
	body, err := json.Marshal(predictRequest{
		ModelID:     p.modelID,
		RequestType: "predict",
		Features:    features,
	})
	if err != nil {
		return nil, p.fail(fmt.Errorf("%w: encoding request: %v", ErrBadResponse, err))
	}

	data, err := p.do(ctx, http.MethodPost, "/predict", body)
	if err != nil {
		return nil, err
	}

	var resp predictResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, p.fail(fmt.Errorf("%w: %v", ErrBadResponse, err))
	}
	if resp.Error != "" {
		return nil, p.fail(fmt.Errorf("%w: %s", ErrUnavailable, resp.Error))
	}
	if !resp.Success || len(resp.Predictions) == 0 {
		return nil, p.fail(ErrNoPredictions)
	}
	return resp.Predictions, nil
}

// Health reports whether the service answers its health check.
func (p *HTTPPredictor) Health(ctx context.Context) error {
	data, err := p.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return p.fail(fmt.Errorf("%w: %v", ErrBadResponse, err))
	}
	if status.Status != "healthy" {
		return p.fail(fmt.Errorf("%w: status %q", ErrUnavailable, status.Status))
	}
	return nil
}

func (p *HTTPPredictor) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if p.endpoint == "" {
		return nil, p.fail(fmt.Errorf("%w: no endpoint configured", ErrUnavailable))
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, p.fail(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.endpoint+path, reader)
	if err != nil {
		return nil, p.fail(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, p.fail(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, p.fail(fmt.Errorf("%w: reading body: %v", ErrUnavailable, err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, p.fail(fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(data))))
	}
	return data, nil
}

func (p *HTTPPredictor) fail(err error) error {
	return &Error{ModelID: p.modelID, Err: err}
}
