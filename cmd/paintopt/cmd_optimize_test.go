package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/optimizer"
)

const glossRequestYAML = `objectives:
  gloss: 85
  total_cost: {target: 40, direction: min}
top_k: 3
`

var smallRunFlags = []string{"--population", "8", "--generations", "2", "--elite", "1", "--workers", "2", "--seed", "3"}

func TestOptimize_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "request.yaml", glossRequestYAML)

	args := append([]string{"optimize", path, "--format", "json", "--dir", dir}, smallRunFlags...)
	out, _, err := runCLI(t, args...)
	assert.NotEqual(t, ExitError, exitCode(err), "unexpected error: %v", err)

	var result models.OptimizationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Generations)
	assert.Equal(t, 16, result.Evaluations)
	assert.NotEmpty(t, result.Candidates)
	assert.LessOrEqual(t, len(result.Candidates), 3)
}

func TestOptimize_Deterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "request.yaml", glossRequestYAML)
	args := append([]string{"optimize", path, "--format", "json", "--dir", dir}, smallRunFlags...)

	decode := func() []string {
		out, _, _ := runCLI(t, args...)
		var result models.OptimizationResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		var sigs []string
		for _, c := range result.Candidates {
			sigs = append(sigs, c.Signature)
		}
		return sigs
	}
	assert.Equal(t, decode(), decode())
}

func TestOptimize_TableAndOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "request.yaml", glossRequestYAML)
	outPath := filepath.Join(dir, "result.json")

	args := append([]string{"optimize", path, "-o", outPath, "--progress", "--dir", dir}, smallRunFlags...)
	out, stderr, err := runCLI(t, args...)
	assert.NotEqual(t, ExitError, exitCode(err), "unexpected error: %v", err)

	assert.Contains(t, out, "OPTIMIZATION RESULTS")
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "Predicted:")
	assert.Contains(t, stderr, "generation 1/2")
	assert.Contains(t, stderr, "generation 2/2")
	assert.Contains(t, stderr, "Run completed after 2 generation(s)")
	assert.Contains(t, stderr, "Results saved to: "+outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var result models.OptimizationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.NotEmpty(t, result.RunID)
}

func TestOptimize_NoProgressWithoutTTY(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "request.yaml", glossRequestYAML)

	args := append([]string{"optimize", path, "--dir", dir}, smallRunFlags...)
	_, stderr, _ := runCLI(t, args...)
	assert.NotContains(t, stderr, "generation 1/2")
}

func TestOptimize_ProjectConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".paintopt.yaml", `optimizer:
  population_size: 6
  generations: 3
  elite_size: 1
`)
	path := writeFile(t, dir, "request.yaml", "objectives:\n  opacity: 95\n")

	out, _, err := runCLI(t, "optimize", path, "--format", "json", "--dir", dir)
	assert.NotEqual(t, ExitError, exitCode(err), "unexpected error: %v", err)

	var result models.OptimizationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 3, result.Generations)
	assert.Equal(t, 18, result.Evaluations)

	// flags win over the config file
	out, _, _ = runCLI(t, "optimize", path, "--format", "json", "--generations", "1", "--dir", dir)
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Generations)
}

func TestOptimize_Errors(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "request.yaml", glossRequestYAML)
	schemaBad := writeFile(t, dir, "bad.yaml", "objectives: {}\n")

	var binders []string
	cat, err := loadCatalog(mustConfig(t, dir))
	require.NoError(t, err)
	for _, b := range cat.Binders {
		binders = append(binders, b.Code)
	}
	noBinders := writeFile(t, dir, "nobinders.yaml",
		"objectives:\n  gloss: 85\nconstraints:\n  prohibited_material_ids: ["+strings.Join(binders, ", ")+"]\n")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing file", args: []string{"optimize", filepath.Join(dir, "nope.yaml")}, wantErr: "request file not found"},
		{name: "schema violation", args: []string{"optimize", schemaBad}, wantErr: "does not match the schema"},
		{name: "bad format", args: []string{"optimize", valid, "--format", "csv"}, wantErr: "unsupported format"},
		{name: "invalid parameters", args: []string{"optimize", valid, "--population", "1"}, wantErr: "population_size"},
		{name: "no binders left", args: []string{"optimize", noBinders}, wantErr: "no materials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, append(tt.args, "--dir", dir)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ExitError, exitCode(err))
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{}
	opts := &optimizeOptions{}
	cmd.Flags().IntVar(&opts.population, "population", 0, "")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "")
	cmd.Flags().IntVar(&opts.generations, "generations", 0, "")
	cmd.Flags().IntVar(&opts.elite, "elite", 0, "")
	cmd.Flags().IntVar(&opts.topK, "top-k", 0, "")
	cmd.Flags().StringVar(&opts.targetType, "target-type", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--population", "12", "--workers", "1", "--seed", "0"}))

	req := models.OptimizationRequest{Generations: 9}
	cfg := optimizer.DefaultConfig()
	applyFlags(cmd, opts, &req, &cfg)

	assert.Equal(t, 12, req.PopulationSize)
	assert.Equal(t, 9, req.Generations, "unset flags leave the request alone")
	require.NotNil(t, req.Seed)
	assert.Equal(t, int64(0), *req.Seed, "an explicit zero seed is kept")
	assert.Equal(t, 1, cfg.Workers)
}

func TestProgressListener(t *testing.T) {
	var buf bytes.Buffer
	listen := progressListener(&buf, false)
	listen(optimizer.ProgressEvent{EventType: optimizer.EventRunStart, RunID: "r1", TotalGenerations: 2})
	listen(optimizer.ProgressEvent{EventType: optimizer.EventGenerationComplete, Generation: 0, TotalGenerations: 2, Best: 1234.5, PredictorFailures: 2})
	listen(optimizer.ProgressEvent{EventType: optimizer.EventRunCancelled, Generation: 1, DurationMs: 20})

	out := buf.String()
	assert.Contains(t, out, "Optimizing r1 (2 generations)")
	assert.Contains(t, out, "generation 1/2  best 1,234.5000")
	assert.Contains(t, out, "predictor failures 2")
	assert.Contains(t, out, "Run cancelled after 1 generation(s) in 20ms")
	assert.NotContains(t, out, "\r")

	buf.Reset()
	tty := progressListener(&buf, true)
	tty(optimizer.ProgressEvent{EventType: optimizer.EventGenerationComplete, TotalGenerations: 2})
	assert.True(t, strings.HasPrefix(buf.String(), "\r"))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	assert.False(t, isTerminal(f))
}
