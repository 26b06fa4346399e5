package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCategory(t *testing.T) {
	tests := []struct {
		raw, name string
		wantCat   MaterialCategory
		wantFn    string
	}{
		{"binder", "", CategoryBinder, ""},
		{"Acrylic Resin", "", CategoryBinder, ""},
		{"Calcium Carbonate", "", CategoryFiller, ""},
		{"Titanium Dioxide", "", CategoryPigment, ""},
		{"water", "", CategorySolvent, ""},
		{"additive", "BYK defoamer 024", CategoryAdditive, "defoamer"},
		{"Wetting-Agent", "", CategoryAdditive, "wetting_agent"},
		{"", "Cellulose thickener", CategoryAdditive, "thickener"},
		{"surfactant", "", CategoryAdditive, ""},
		{"", "Mystery", CategoryOther, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw+"/"+tt.name, func(t *testing.T) {
			cat, fn := ClassifyCategory(tt.raw, tt.name)
			assert.Equal(t, tt.wantCat, cat)
			assert.Equal(t, tt.wantFn, fn)
		})
	}
}

func TestRecipeComponent_Defaults(t *testing.T) {
	var c RecipeComponent
	assert.Equal(t, DefaultDensity, c.DensityOrDefault())
	assert.Equal(t, DefaultSolidContent, c.SolidContentOrDefault())
	assert.Equal(t, DefaultPH, c.PHOrDefault())
	assert.False(t, c.HasHansen())

	c.Density = Float(0)
	assert.Equal(t, DefaultDensity, c.DensityOrDefault(), "non-positive density falls back")

	c = RecipeComponent{Code: "TIO2", Density: Float(4.1), HansenD: Float(1), HansenP: Float(2), HansenH: Float(3)}
	assert.Equal(t, 4.1, c.DensityOrDefault())
	assert.True(t, c.HasHansen())
	assert.Equal(t, "TIO2", c.DisplayName())
}

func TestRecipe_Clone(t *testing.T) {
	r := Recipe{Name: "base", Components: []RecipeComponent{{Name: "Resin", Amount: 50, PH: Float(8)}}}
	c := r.Clone()
	c.Components[0].Amount = 10
	*c.Components[0].PH = 3

	assert.Equal(t, 50.0, r.Components[0].Amount)
	assert.Equal(t, 8.0, *r.Components[0].PH)
	assert.Nil(t, Recipe{}.Clone().Components)
}

func TestRecipe_TotalAmount(t *testing.T) {
	r := Recipe{Components: []RecipeComponent{{Amount: 60}, {Amount: 45}, {Amount: -5}}}
	assert.Equal(t, 100.0, r.TotalAmount())
	assert.Equal(t, 3, r.Len())
}

func TestParseRecipe_Classifies(t *testing.T) {
	r, err := ParseRecipe([]byte(`name: Primer
components:
  - {name: Alkyd, category: resin, amount: 40}
  - {name: Foamkill, category: defoamer, amount: 0.5, function: custom}
  - {name: Talc, category: extender, amount: 20}
`))
	require.NoError(t, err)
	assert.Equal(t, "Primer", r.Name)
	assert.Equal(t, CategoryBinder, r.Components[0].Category)
	assert.Equal(t, CategoryAdditive, r.Components[1].Category)
	assert.Equal(t, "custom", r.Components[1].Function, "declared function is kept")
	assert.Equal(t, CategoryFiller, r.Components[2].Category)

	_, err = ParseRecipe([]byte("components: [unclosed"))
	assert.Error(t, err)
}

func TestLoadRecipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"components": [{"name": "Water", "category": "solvent", "amount": 100}]}`), 0o644))

	r, err := LoadRecipe(path)
	require.NoError(t, err)
	require.Len(t, r.Components, 1)
	assert.Equal(t, CategorySolvent, r.Components[0].Category)

	_, err = LoadRecipe(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
