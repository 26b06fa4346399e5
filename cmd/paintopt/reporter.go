package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/paintlab/paintopt/internal/catalog"
	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/service"
)

// printer groups thousands in report numbers.
var printer = message.NewPrinter(language.English)

const ruleWidth = 60

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// truncateName shortens s to maxWidth display columns, ending in "…".
func truncateName(s string, maxWidth int) string {
	return runewidth.Truncate(s, maxWidth, "…")
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth)) //nolint:errcheck
	fmt.Fprintln(w, " "+title)                      //nolint:errcheck
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth)) //nolint:errcheck
}

// printIssues lists errors before warnings.
func printIssues(w io.Writer, indent string, v models.ValidationResult) {
	for _, issue := range v.Errors {
		fmt.Fprintf(w, "%s✗ %s: %s\n", indent, issue.Code, issue.Message) //nolint:errcheck
	}
	for _, issue := range v.Warnings {
		fmt.Fprintf(w, "%s⚠ %s: %s\n", indent, issue.Code, issue.Message) //nolint:errcheck
	}
}

// printComponents writes an aligned component table.
func printComponents(w io.Writer, indent string, r models.Recipe) {
	nameWidth := len("MATERIAL")
	for _, c := range r.Components {
		if n := runewidth.StringWidth(truncateName(c.DisplayName(), 32)); n > nameWidth {
			nameWidth = n
		}
	}
	fmt.Fprintf(w, "%s%s  %s  %8s\n", indent, padRight("MATERIAL", nameWidth), padRight("CATEGORY", 9), "AMOUNT %") //nolint:errcheck
	for _, c := range r.Components {
		fmt.Fprintf(w, "%s%s  %s  %8.2f\n", indent, //nolint:errcheck
			padRight(truncateName(c.DisplayName(), 32), nameWidth),
			padRight(string(c.Category), 9),
			c.Amount)
	}
}

// printValidation writes a recipe validation report.
func printValidation(w io.Writer, name string, rep service.RecipeReport) {
	heading(w, "RECIPE VALIDATION")
	if name != "" {
		fmt.Fprintf(w, "Recipe:         %s\n", name) //nolint:errcheck
	}
	status := "✓ valid"
	if !rep.IsValid {
		status = "✗ invalid"
	}
	fmt.Fprintf(w, "Status:         %s\n", status)                             //nolint:errcheck
	fmt.Fprintf(w, "PVC:            %.1f%%\n", rep.PVC)                        //nolint:errcheck
	fmt.Fprintf(w, "Estimated pH:   %.2f\n", rep.PH)                           //nolint:errcheck
	fmt.Fprintf(w, "Water-based:    %t\n", rep.WaterBased)                     //nolint:errcheck
	fmt.Fprintf(w, "Solid content:  %.1f%%\n", rep.SolidContent)               //nolint:errcheck
	fmt.Fprintf(w, "VOC:            %.0f g/L\n", rep.VOC)                      //nolint:errcheck
	fmt.Fprintln(w, printer.Sprintf("Unit cost:      %.2f", rep.UnitCost))     //nolint:errcheck
	fmt.Fprintln(w, printer.Sprintf("Penalty score:  %.2f", rep.PenaltyScore)) //nolint:errcheck
	if rep.PHSuggestion != "" {
		fmt.Fprintf(w, "pH suggestion:  %s\n", rep.PHSuggestion) //nolint:errcheck
	}
	if len(rep.Errors)+len(rep.Warnings) > 0 {
		fmt.Fprintln(w) //nolint:errcheck
		printIssues(w, "  ", rep.ValidationResult)
	}
	fmt.Fprintln(w) //nolint:errcheck
}

// printResult writes the run summary, the ranking table and the best
// candidates in detail.
func printResult(w io.Writer, res *models.OptimizationResult, details int) {
	heading(w, "OPTIMIZATION RESULTS")

	fmt.Fprintf(w, "Run ID:         %s\n", res.RunID) //nolint:errcheck
	fmt.Fprintf(w, "Scope:          %s\n", res.Scope) //nolint:errcheck
	if res.TargetType != "" {
		fmt.Fprintf(w, "Target type:    %s\n", res.TargetType) //nolint:errcheck
	}
	gens := fmt.Sprintf("%d", res.Generations)
	if res.Cancelled {
		gens += " (cancelled)"
	}
	fmt.Fprintf(w, "Generations:    %s\n", gens)                            //nolint:errcheck
	fmt.Fprintln(w, printer.Sprintf("Evaluations:    %d", res.Evaluations)) //nolint:errcheck
	if len(res.History) > 1 {
		fmt.Fprintf(w, "Improvement:    %.1f%%\n", res.Improvement()*100) //nolint:errcheck
	}
	fmt.Fprintf(w, "Duration:       %s\n", formatDuration(time.Duration(res.DurationMs)*time.Millisecond)) //nolint:errcheck
	fmt.Fprintln(w)                                                                                        //nolint:errcheck

	if len(res.Candidates) == 0 {
		fmt.Fprintln(w, "No candidates were evaluated.") //nolint:errcheck
		return
	}

	fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("RANK", 4), padRight("FITNESS", 12), padRight("TARGET", 10),
		padRight("CHEMICAL", 10), padRight("PROJECT", 10), "VALID")
	for _, c := range res.Candidates {
		valid := "✓"
		if !c.Validation.IsValid {
			valid = "✗"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
			padRight(fmt.Sprint(c.Rank), 4),
			padRight(printer.Sprintf("%.4f", c.Fitness), 12),
			padRight(printer.Sprintf("%.4f", c.TargetLoss), 10),
			padRight(printer.Sprintf("%.2f", c.ChemicalPenalty), 10),
			padRight(printer.Sprintf("%.2f", c.ProjectPenalty), 10),
			valid)
	}
	fmt.Fprintln(w) //nolint:errcheck

	for i, c := range res.Candidates {
		if i >= details {
			break
		}
		fmt.Fprintln(w, strings.Repeat("-", ruleWidth))           //nolint:errcheck
		fmt.Fprintf(w, " #%d  fitness %.4f\n", c.Rank, c.Fitness) //nolint:errcheck
		fmt.Fprintln(w, strings.Repeat("-", ruleWidth))           //nolint:errcheck
		printComponents(w, "  ", c.Recipe)
		if len(c.PredictedProperties) > 0 {
			fmt.Fprintf(w, "  Predicted: %s\n", formatPredictions(c.PredictedProperties)) //nolint:errcheck
		} else {
			fmt.Fprintln(w, "  Predicted: (predictor failed)") //nolint:errcheck
		}
		printIssues(w, "  ", c.Validation)
		fmt.Fprintln(w) //nolint:errcheck
	}
}

// formatPredictions renders predictions sorted by property name.
func formatPredictions(preds map[string]float64) string {
	names := make([]string, 0, len(preds))
	for name := range preds {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, printer.Sprintf("%s=%.2f", name, preds[name]))
	}
	return strings.Join(parts, "  ")
}

// printCatalog writes the catalogue, optionally limited to one category.
func printCatalog(w io.Writer, cat *catalog.Catalog, category models.MaterialCategory) int {
	var rows []models.RecipeComponent
	for _, m := range cat.All() {
		if category != "" && m.Category != category {
			continue
		}
		rows = append(rows, m)
	}

	codeWidth, nameWidth := len("CODE"), len("NAME")
	for _, m := range rows {
		codeWidth = max(codeWidth, runewidth.StringWidth(m.Code))
		nameWidth = max(nameWidth, runewidth.StringWidth(truncateName(m.Name, 36)))
	}

	fmt.Fprintf(w, "%s  %s  %s  %10s  %8s\n", //nolint:errcheck
		padRight("CODE", codeWidth), padRight("NAME", nameWidth), padRight("CATEGORY", 9), "PRICE", "DENSITY")
	for _, m := range rows {
		fmt.Fprintf(w, "%s  %s  %s  %10s  %8.2f\n", //nolint:errcheck
			padRight(m.Code, codeWidth),
			padRight(truncateName(m.Name, 36), nameWidth),
			padRight(string(m.Category), 9),
			printer.Sprintf("%.2f", m.UnitPrice),
			m.DensityOrDefault())
	}
	return len(rows)
}
