package webapi

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/paintlab/paintopt/internal/metrics"
	"github.com/paintlab/paintopt/internal/models"
)

// ErrRunNotFound is returned when a run ID does not match any stored run.
var ErrRunNotFound = errors.New("run not found")

// Sort fields accepted by RunQuery.
const (
	SortTimestamp   = "timestamp"
	SortFitness     = "fitness"
	SortEvaluations = "evaluations"
	SortDuration    = "duration"
	SortImprovement = "improvement"
)

// RunQuery selects and orders runs. Empty fields mean "any" and the
// default order, newest first.
type RunQuery struct {
	Sort       string
	Order      string
	TargetType string
	Scope      models.Scope
}

// Validate rejects unknown sort fields and orders.
func (q RunQuery) Validate() error {
	switch q.Sort {
	case "", SortTimestamp, SortFitness, SortEvaluations, SortDuration, SortImprovement:
	default:
		return fmt.Errorf("unknown sort field %q", q.Sort)
	}
	switch q.Order {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("order must be asc or desc, got %q", q.Order)
	}
	return nil
}

func (q RunQuery) matches(r *models.OptimizationResult) bool {
	if q.TargetType != "" && r.TargetType != q.TargetType {
		return false
	}
	if q.Scope != "" && r.Scope != q.Scope {
		return false
	}
	return true
}

// RunStore keeps finished optimization runs.
type RunStore interface {
	Save(r *models.OptimizationResult) error
	ListRuns(q RunQuery) ([]RunSummary, error)
	// GetRun returns a single run with its ranked candidates and history.
	GetRun(id string) (*models.OptimizationResult, error)
	Summary() (*SummaryResponse, error)
}

// FileStore keeps one <run_id>.json per finished run in dir. With an empty
// dir it only holds runs in memory. Files are read lazily on first use.
type FileStore struct {
	dir string

	mu     sync.RWMutex
	runs   map[string]*models.OptimizationResult
	loaded bool
}

// NewFileStore creates a FileStore that reads and writes results in dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:  dir,
		runs: make(map[string]*models.OptimizationResult),
	}
}

// readDir decodes every result file in dir. Files that are not results are
// skipped; a missing dir holds no runs.
func readDir(dir string) (map[string]*models.OptimizationResult, error) {
	runs := make(map[string]*models.OptimizationResult)
	if dir == "" {
		return runs, nil
	}

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return runs, nil
		}
		return nil, err
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var result models.OptimizationResult
		if err := json.Unmarshal(data, &result); err != nil {
			continue
		}
		if result.RunID == "" {
			result.RunID = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		runs[result.RunID] = &result
	}
	return runs, nil
}

func (fs *FileStore) ensureLoaded() error {
	fs.mu.RLock()
	loaded := fs.loaded
	fs.mu.RUnlock()
	if loaded {
		return nil
	}

	runs, err := readDir(fs.dir)
	if err != nil {
		return fmt.Errorf("reading results dir: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.loaded {
		// runs saved before the first load stay in memory
		for id, r := range fs.runs {
			runs[id] = r
		}
		fs.runs = runs
		fs.loaded = true
	}
	return nil
}

// Reload drops the in-memory view and reads the directory again.
func (fs *FileStore) Reload() error {
	fs.mu.Lock()
	fs.runs = make(map[string]*models.OptimizationResult)
	fs.loaded = false
	fs.mu.Unlock()
	return fs.ensureLoaded()
}

// Save stores r and, when the store has a directory, writes it as
// <run_id>.json. The file is written under a temporary name and renamed so
// a concurrent Reload never sees half a result.
func (fs *FileStore) Save(r *models.OptimizationResult) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("result has no run id")
	}

	if fs.dir != "" {
		if err := writeResult(fs.dir, r); err != nil {
			return err
		}
	}

	fs.mu.Lock()
	fs.runs[r.RunID] = r
	fs.mu.Unlock()
	return nil
}

func writeResult(dir string, r *models.OptimizationResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".run-*.tmp")
	if err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, r.RunID+".json")); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

// ListRuns returns the runs matching q in q's order.
func (fs *FileStore) ListRuns(q RunQuery) ([]RunSummary, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return summarize(fs.runs, q), nil
}

// GetRun returns a single stored run.
func (fs *FileStore) GetRun(id string) (*models.OptimizationResult, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	r, ok := fs.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return r, nil
}

// Summary aggregates every stored run.
func (fs *FileStore) Summary() (*SummaryResponse, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return aggregate(summarize(fs.runs, RunQuery{Sort: SortFitness, Order: "asc"})), nil
}

func summarize(runs map[string]*models.OptimizationResult, q RunQuery) []RunSummary {
	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		if q.matches(r) {
			out = append(out, resultToSummary(r))
		}
	}
	sortRuns(out, q.Sort, q.Order)
	return out
}

// aggregate expects runs sorted by ascending best fitness. Runs without
// candidates do not count towards the fitness figures.
func aggregate(runs []RunSummary) *SummaryResponse {
	resp := &SummaryResponse{TotalRuns: len(runs)}
	var best, improvement, duration []float64
	for _, s := range runs {
		resp.TotalEvaluations += s.Evaluations
		if s.Cancelled {
			resp.CancelledRuns++
		}
		duration = append(duration, s.Duration)
		if s.Candidates == 0 {
			continue
		}
		if resp.BestRunID == "" {
			resp.BestRunID = s.ID
			resp.BestFitness = s.BestFitness
		}
		best = append(best, s.BestFitness)
		improvement = append(improvement, s.Improvement)
	}
	resp.AvgBestFitness = metrics.Mean(best)
	resp.MedianBestFitness = metrics.Median(best)
	resp.AvgImprovement = metrics.Mean(improvement)
	resp.AvgDuration = metrics.Mean(duration)
	return resp
}

// sortRuns orders runs by field, descending unless order is "asc". Ties
// fall back to the run ID so listings are stable.
func sortRuns(runs []RunSummary, field, order string) {
	key := func(a, b RunSummary) int {
		switch field {
		case SortFitness:
			return cmp.Compare(a.BestFitness, b.BestFitness)
		case SortEvaluations:
			return cmp.Compare(a.Evaluations, b.Evaluations)
		case SortDuration:
			return cmp.Compare(a.Duration, b.Duration)
		case SortImprovement:
			return cmp.Compare(a.Improvement, b.Improvement)
		default:
			return a.Timestamp.Compare(b.Timestamp)
		}
	}
	slices.SortFunc(runs, func(a, b RunSummary) int {
		c := key(a, b)
		if order != "asc" {
			c = -c
		}
		return cmp.Or(c, cmp.Compare(a.ID, b.ID))
	})
}

var _ RunStore = (*FileStore)(nil)
