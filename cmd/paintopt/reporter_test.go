package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paintlab/paintopt/internal/catalog"
	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/service"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m3s", formatDuration(123*time.Second))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
	// wide runes take two columns
	assert.Equal(t, "二酸 ", padRight("二酸", 5))
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "short", truncateName("short", 10))
	assert.Equal(t, "Titanium…", truncateName("Titanium dioxide", 9))
}

func TestPrintValidation(t *testing.T) {
	rep := service.RecipeReport{
		ValidationResult: models.ValidationResult{
			IsValid:      false,
			Errors:       []models.ValidationIssue{{Code: models.CodeNegativeAmount, Message: "Xylene has a negative amount", Severity: models.SeverityError}},
			Warnings:     []models.ValidationIssue{{Code: models.CodeMassImbalance, Message: "total is 90%", Severity: models.SeverityWarning}},
			PenaltyScore: 1234.5,
		},
		PVC:          31.25,
		PH:           7.2,
		WaterBased:   true,
		PHSuggestion: "raise it",
		SolidContent: 48.0,
		VOC:          112,
		UnitCost:     1520.5,
	}

	var buf bytes.Buffer
	printValidation(&buf, "Primer", rep)
	out := buf.String()
	assert.Contains(t, out, "Recipe:         Primer")
	assert.Contains(t, out, "✗ invalid")
	assert.Contains(t, out, "PVC:            31.2%")
	assert.Contains(t, out, "Penalty score:  1,234.50")
	assert.Contains(t, out, "Solid content:  48.0%")
	assert.Contains(t, out, "VOC:            112 g/L")
	assert.Contains(t, out, "Unit cost:      1,520.50")
	assert.Contains(t, out, "pH suggestion:  raise it")
	assert.Less(t, strings.Index(out, models.CodeNegativeAmount), strings.Index(out, models.CodeMassImbalance))
}

func TestPrintResult(t *testing.T) {
	res := &models.OptimizationResult{
		RunID:       "run-1",
		Scope:       models.ScopeProject,
		TargetType:  "matte",
		Generations: 4,
		Evaluations: 12000,
		Cancelled:   true,
		DurationMs:  2500,
		Candidates: []models.RankedRecipe{
			{
				Rank:                1,
				Fitness:             0.125,
				Recipe:              models.Recipe{Components: []models.RecipeComponent{{Name: "Acrylic", Category: models.CategoryBinder, Amount: 60}}},
				PredictedProperties: map[string]float64{"opacity": 91, "gloss": 12.5},
				Validation:          models.ValidationResult{IsValid: true},
			},
			{
				Rank:       2,
				Fitness:    9999,
				Validation: models.ValidationResult{Errors: []models.ValidationIssue{{Code: models.CodeEmptyRecipe, Message: "recipe has no components"}}},
			},
		},
	}

	var buf bytes.Buffer
	printResult(&buf, res, 1)
	out := buf.String()
	assert.Contains(t, out, "Run ID:         run-1")
	assert.Contains(t, out, "Target type:    matte")
	assert.Contains(t, out, "4 (cancelled)")
	assert.Contains(t, out, "Evaluations:    12,000")
	assert.Contains(t, out, "9,999.0000")
	assert.Contains(t, out, "Predicted: gloss=12.50  opacity=91.00")
	assert.Contains(t, out, "Acrylic")
	assert.NotContains(t, out, "#2", "only one candidate is printed in detail")
}

func TestPrintResult_NoCandidates(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &models.OptimizationResult{RunID: "r"}, 3)
	assert.Contains(t, buf.String(), "No candidates were evaluated.")
}

func TestPrintCatalog(t *testing.T) {
	cat := catalog.New([]models.RecipeComponent{
		{Code: "B1", Name: "Acrylic resin", Category: models.CategoryBinder, UnitPrice: 1250},
		{Code: "S1", Name: "Water", Category: models.CategorySolvent},
	})

	var buf bytes.Buffer
	n := printCatalog(&buf, cat, "")
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "1,250.00")

	buf.Reset()
	n = printCatalog(&buf, cat, models.CategorySolvent)
	assert.Equal(t, 1, n)
	assert.NotContains(t, buf.String(), "Acrylic")
}
