package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paintlab/paintopt/internal/models"
)

// Row represents a single CSV row with column name to value mapping.
type Row map[string]string

// ReadCSV reads CSV rows from r. The first row is treated as headers;
// header names are lowercased and trimmed.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv: empty input (no header row)")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = strings.TrimSpace(record[j])
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// optional numeric columns and the component field each one fills
var numericColumns = map[string]func(*models.RecipeComponent, *float64){
	"density":            func(c *models.RecipeComponent, v *float64) { c.Density = v },
	"solid_content":      func(c *models.RecipeComponent, v *float64) { c.SolidContent = v },
	"ph":                 func(c *models.RecipeComponent, v *float64) { c.PH = v },
	"oh_value":           func(c *models.RecipeComponent, v *float64) { c.OHValue = v },
	"hansen_d":           func(c *models.RecipeComponent, v *float64) { c.HansenD = v },
	"hansen_p":           func(c *models.RecipeComponent, v *float64) { c.HansenP = v },
	"hansen_h":           func(c *models.RecipeComponent, v *float64) { c.HansenH = v },
	"interaction_radius": func(c *models.RecipeComponent, v *float64) { c.InteractionRadius = v },
	"min_limit":          func(c *models.RecipeComponent, v *float64) { c.MinLimit = v },
	"max_limit":          func(c *models.RecipeComponent, v *float64) { c.MaxLimit = v },
	"voc_g_l":            func(c *models.RecipeComponent, v *float64) { c.VOC = v },
	"oil_absorption":     func(c *models.RecipeComponent, v *float64) { c.OilAbsorption = v },
	"glass_transition":   func(c *models.RecipeComponent, v *float64) { c.GlassTransition = v },
	"evaporation_rate":   func(c *models.RecipeComponent, v *float64) { c.EvaporationRate = v },
}

// componentFromRow converts one data-sheet row into a component template.
// line is used in error messages only.
func componentFromRow(row Row, line int) (models.RecipeComponent, error) {
	var c models.RecipeComponent

	c.Name = row["name"]
	c.Code = row["code"]
	if c.Name == "" && c.Code == "" {
		return c, fmt.Errorf("row %d: name or code is required", line)
	}
	if c.Code == "" {
		c.Code = c.Name
	}

	cat, fn := models.ClassifyCategory(row["category"], c.Name)
	c.Category = cat
	c.Function = fn
	if f := row["function"]; f != "" {
		c.Function = strings.ToLower(f)
	}

	if s := row["unit_price"]; s != "" {
		v, err := parseFloat(s)
		if err != nil {
			return c, fmt.Errorf("row %d: unit_price: %w", line, err)
		}
		c.UnitPrice = v
	}

	for col, set := range numericColumns {
		s := row[col]
		if s == "" {
			continue
		}
		v, err := parseFloat(s)
		if err != nil {
			return c, fmt.Errorf("row %d: %s: %w", line, col, err)
		}
		set(&c, &v)
	}
	return c, nil
}

// parseFloat accepts a decimal comma as written by many spreadsheet locales.
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
