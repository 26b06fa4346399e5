package optimizer

import (
	"math/rand"
	"testing"

	"github.com/paintlab/paintopt/internal/catalog"
	"github.com/paintlab/paintopt/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mat(code string, cat models.MaterialCategory, amount float64) models.RecipeComponent {
	return models.RecipeComponent{Code: code, Name: code, Category: cat, Amount: amount}
}

func assertNormalized(t *testing.T, r models.Recipe) {
	t.Helper()
	assert.InDelta(t, 100.0, r.TotalAmount(), 1e-6)
	for _, c := range r.Components {
		assert.GreaterOrEqual(t, c.Amount, 0.0, c.Name)
	}
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]models.RecipeComponent{
		{Code: "B1", Name: "Acrylic", Category: models.CategoryBinder, UnitPrice: 60},
		{Code: "B2", Name: "Alkyd", Category: models.CategoryBinder, UnitPrice: 45},
		{Code: "P1", Name: "TiO2", Category: models.CategoryPigment, UnitPrice: 120, Density: models.Float(4.1)},
		{Code: "F1", Name: "CaCO3", Category: models.CategoryFiller, UnitPrice: 8, Density: models.Float(2.7)},
		{Code: "S1", Name: "Xylene", Category: models.CategorySolvent, UnitPrice: 20, SolidContent: models.Float(0)},
		{Code: "S2", Name: "Butyl Acetate", Category: models.CategorySolvent, UnitPrice: 25, SolidContent: models.Float(0)},
		{Code: "A1", Name: "Defoamer", Category: models.CategoryAdditive, Function: "defoamer", UnitPrice: 200},
		{Code: "A2", Name: "Thickener", Category: models.CategoryAdditive, Function: "thickener", UnitPrice: 150},
	})
}

func TestInitializePopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pop := InitializePopulation(rng, testCatalog(), 40, 2, 6)
	require.Len(t, pop, 40)

	for _, r := range pop {
		assert.GreaterOrEqual(t, r.Len(), 2)
		assert.LessOrEqual(t, r.Len(), 6)
		assertNormalized(t, r)

		seen := map[string]bool{}
		for _, c := range r.Components {
			assert.False(t, seen[c.Code], "duplicate material %s", c.Code)
			seen[c.Code] = true
		}
		assert.Equal(t, models.CategoryBinder, r.Components[0].Category)
	}
}

func TestInitializePopulation_Deterministic(t *testing.T) {
	a := InitializePopulation(rand.New(rand.NewSource(3)), testCatalog(), 10, 2, 6)
	b := InitializePopulation(rand.New(rand.NewSource(3)), testCatalog(), 10, 2, 6)
	assert.Equal(t, a, b)
}

func TestInitializePopulation_SmallCatalogue(t *testing.T) {
	cat := catalog.New([]models.RecipeComponent{
		{Code: "B1", Name: "Resin", Category: models.CategoryBinder},
		{Code: "S1", Name: "Water", Category: models.CategorySolvent},
	})
	pop := InitializePopulation(rand.New(rand.NewSource(1)), cat, 5, 2, 6)
	require.Len(t, pop, 5)
	for _, r := range pop {
		assert.Equal(t, 2, r.Len())
	}

	assert.Nil(t, InitializePopulation(rand.New(rand.NewSource(1)), catalog.New(nil), 5, 2, 6))
}

func TestSelect(t *testing.T) {
	scored := []Evaluation{{Fitness: 5}, {Fitness: 1}, {Fitness: 3}, {Fitness: 4}}

	// a full-size tournament always finds the fittest
	idx := Select(rand.New(rand.NewSource(1)), scored, len(scored))
	assert.Equal(t, 1, idx)

	// oversize tournaments are clamped
	idx = Select(rand.New(rand.NewSource(1)), scored, 10)
	assert.Equal(t, 1, idx)
}

func TestSelect_TieFavoursFirstSampled(t *testing.T) {
	scored := make([]Evaluation, 8)
	for i := range scored {
		scored[i].Fitness = 2.5
	}
	for seed := int64(0); seed < 5; seed++ {
		want := rand.New(rand.NewSource(seed)).Perm(len(scored))[0]
		got := Select(rand.New(rand.NewSource(seed)), scored, 3)
		assert.Equal(t, want, got)
	}
}

func TestCrossover(t *testing.T) {
	p1 := models.Recipe{Components: []models.RecipeComponent{
		mat("a", models.CategoryBinder, 40), mat("b", models.CategoryPigment, 30),
		mat("c", models.CategorySolvent, 20), mat("d", models.CategoryAdditive, 10),
	}}
	p2 := models.Recipe{Components: []models.RecipeComponent{
		mat("e", models.CategoryBinder, 50), mat("f", models.CategoryFiller, 25),
		mat("g", models.CategorySolvent, 15), mat("h", models.CategoryAdditive, 10),
	}}

	child := Crossover(p1, p2, 6)
	require.Len(t, child.Components, 4)
	assert.Equal(t, []string{"a", "b", "g", "h"}, names(child))
	assertNormalized(t, child)

	// parents untouched
	assert.Equal(t, 40.0, p1.Components[0].Amount)
	child.Components[0].Amount = 0
	assert.Equal(t, 40.0, p1.Components[0].Amount)
}

func TestCrossover_Truncates(t *testing.T) {
	var p1, p2 models.Recipe
	for i := 0; i < 6; i++ {
		p1.Components = append(p1.Components, mat(string(rune('a'+i)), models.CategoryBinder, 10))
		p2.Components = append(p2.Components, mat(string(rune('m'+i)), models.CategorySolvent, 10))
	}
	child := Crossover(p1, p2, 4)
	assert.Equal(t, []string{"a", "b", "c", "p"}, names(child))
	assertNormalized(t, child)
}

func TestMutate(t *testing.T) {
	pool := testCatalog().All()
	base := models.Recipe{Components: []models.RecipeComponent{
		mat("B1", models.CategoryBinder, 60), mat("S1", models.CategorySolvent, 40),
	}}

	t.Run("no mutation", func(t *testing.T) {
		out := Mutate(rand.New(rand.NewSource(1)), base, pool, MutationParams{MinComponents: 2, MaxComponents: 6})
		assert.Equal(t, base, out)
	})

	t.Run("adds under max", func(t *testing.T) {
		out := Mutate(rand.New(rand.NewSource(1)), base, pool, MutationParams{AmountRate: 1, StructuralRate: 1, MinComponents: 2, MaxComponents: 6})
		require.Len(t, out.Components, 3)
		assertNormalized(t, out)
		assert.NotEqual(t, "B1", out.Components[2].Code)
		assert.NotEqual(t, "S1", out.Components[2].Code)
		assert.Len(t, base.Components, 2, "input untouched")
	})

	t.Run("removes at max", func(t *testing.T) {
		full := models.Recipe{Components: []models.RecipeComponent{
			mat("B1", models.CategoryBinder, 40), mat("S1", models.CategorySolvent, 30), mat("P1", models.CategoryPigment, 30),
		}}
		out := Mutate(rand.New(rand.NewSource(2)), full, pool, MutationParams{StructuralRate: 1, MinComponents: 2, MaxComponents: 3})
		require.Len(t, out.Components, 2)
		assertNormalized(t, out)
	})

	t.Run("keeps min", func(t *testing.T) {
		out := Mutate(rand.New(rand.NewSource(2)), base, pool, MutationParams{StructuralRate: 1, MinComponents: 2, MaxComponents: 2})
		assert.Len(t, out.Components, 2)
	})

	t.Run("empty recipe", func(t *testing.T) {
		out := Mutate(rand.New(rand.NewSource(2)), models.Recipe{}, pool, MutationParams{AmountRate: 1, StructuralRate: 1, MaxComponents: 6})
		assert.Empty(t, out.Components)
	})
}

func TestMutate_AlwaysNormalized(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pool := testCatalog().All()
	pop := InitializePopulation(rng, testCatalog(), 30, 2, 6)
	params := MutationParams{AmountRate: 0.7, StructuralRate: 0.5, MinComponents: 2, MaxComponents: 6}
	for i := 0; i < 200; i++ {
		a := pop[rng.Intn(len(pop))]
		b := pop[rng.Intn(len(pop))]
		child := Mutate(rng, Crossover(a, b, 6), pool, params)
		assertNormalized(t, child)
		assert.LessOrEqual(t, child.Len(), 6)
	}
}

func TestSignature(t *testing.T) {
	r1 := models.Recipe{Components: []models.RecipeComponent{
		mat("Xylene", models.CategorySolvent, 39.6), mat("Acrylic", models.CategoryBinder, 60.4),
	}}
	r2 := models.Recipe{Components: []models.RecipeComponent{
		mat("Acrylic", models.CategoryBinder, 59.8), mat("Xylene", models.CategorySolvent, 40.2),
	}}
	assert.Equal(t, "Acrylic:60|Xylene:40", Signature(r1))
	assert.Equal(t, Signature(r1), Signature(r2))
	assert.Equal(t, "", Signature(models.Recipe{}))
}

func names(r models.Recipe) []string {
	out := make([]string, len(r.Components))
	for i, c := range r.Components {
		out[i] = c.Name
	}
	return out
}
