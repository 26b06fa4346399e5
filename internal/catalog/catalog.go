// Package catalog loads the raw materials available to the optimizer and
// partitions them by category.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paintlab/paintopt/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed default_materials.csv
var defaultMaterials []byte

// Catalog is a read-only, category-partitioned set of material templates.
// Fillers share the pigment pool; additives and unclassified materials
// share the additive pool.
type Catalog struct {
	Binders   []models.RecipeComponent `json:"binders"`
	Pigments  []models.RecipeComponent `json:"pigments"`
	Solvents  []models.RecipeComponent `json:"solvents"`
	Additives []models.RecipeComponent `json:"additives"`
}

// New partitions materials into a catalogue. Amounts on the templates are
// reset to zero.
func New(materials []models.RecipeComponent) *Catalog {
	c := &Catalog{}
	for _, m := range materials {
		m = m.Clone()
		m.Amount = 0
		switch m.Category {
		case models.CategoryBinder:
			c.Binders = append(c.Binders, m)
		case models.CategoryPigment, models.CategoryFiller:
			c.Pigments = append(c.Pigments, m)
		case models.CategorySolvent:
			c.Solvents = append(c.Solvents, m)
		default:
			c.Additives = append(c.Additives, m)
		}
	}
	return c
}

// Default returns the built-in demonstration catalogue.
func Default() *Catalog {
	mats, err := ParseCSV(bytes.NewReader(defaultMaterials))
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in materials are invalid: %v", err))
	}
	return New(mats)
}

// Load reads a catalogue from a CSV, YAML or JSON file, chosen by extension.
func Load(path string) (*Catalog, error) {
	var (
		mats []models.RecipeComponent
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		mats, err = LoadCSV(path)
	case ".yaml", ".yml", ".json":
		mats, err = LoadYAML(path)
	default:
		return nil, fmt.Errorf("catalog: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return New(mats), nil
}

// LoadCSV reads material templates from a CSV file with a header row. The
// name (or code) and category columns are required; every other column is
// optional.
func LoadCSV(path string) ([]models.RecipeComponent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	mats, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return mats, nil
}

// ParseCSV reads material templates from CSV input.
func ParseCSV(r io.Reader) ([]models.RecipeComponent, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	mats := make([]models.RecipeComponent, 0, len(rows))
	for i, row := range rows {
		c, err := componentFromRow(row, i+2)
		if err != nil {
			return nil, err
		}
		mats = append(mats, c)
	}
	return mats, nil
}

type yamlCatalog struct {
	Materials []models.RecipeComponent `yaml:"materials"`
}

// LoadYAML reads material templates from a YAML or JSON document of the
// form {materials: [...]}.
func LoadYAML(path string) ([]models.RecipeComponent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parsing %s: %w", path, err)
	}

	r := models.Recipe{Components: doc.Materials}
	r.Classify()
	for i := range r.Components {
		if r.Components[i].Code == "" {
			r.Components[i].Code = r.Components[i].Name
		}
	}
	return r.Components, nil
}

// Pool returns the templates for a category.
func (c *Catalog) Pool(cat models.MaterialCategory) []models.RecipeComponent {
	switch cat {
	case models.CategoryBinder:
		return c.Binders
	case models.CategoryPigment, models.CategoryFiller:
		return c.Pigments
	case models.CategorySolvent:
		return c.Solvents
	default:
		return c.Additives
	}
}

// All returns every template, binders first.
func (c *Catalog) All() []models.RecipeComponent {
	out := make([]models.RecipeComponent, 0, c.Len())
	out = append(out, c.Binders...)
	out = append(out, c.Pigments...)
	out = append(out, c.Solvents...)
	out = append(out, c.Additives...)
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.Binders) + len(c.Pigments) + len(c.Solvents) + len(c.Additives)
}

// Without returns a catalogue with the constraint set's prohibited
// materials removed.
func (c *Catalog) Without(cs models.ConstraintSet) *Catalog {
	if len(cs.ProhibitedMaterialIDs) == 0 {
		return c
	}
	keep := func(in []models.RecipeComponent) []models.RecipeComponent {
		var out []models.RecipeComponent
		for _, m := range in {
			if !cs.IsProhibited(m) {
				out = append(out, m)
			}
		}
		return out
	}
	return &Catalog{
		Binders:   keep(c.Binders),
		Pigments:  keep(c.Pigments),
		Solvents:  keep(c.Solvents),
		Additives: keep(c.Additives),
	}
}
