package optimizer

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/paintlab/paintopt/internal/catalog"
	"github.com/paintlab/paintopt/internal/chemistry"
	"github.com/paintlab/paintopt/internal/models"
)

// Amount assigned to a component added by structural mutation, before
// renormalization.
const addedComponentAmount = 5.0

// initial amount range per category, in percent before normalization
var amountRanges = map[models.MaterialCategory][2]float64{
	models.CategoryBinder:   {20, 50},
	models.CategoryPigment:  {5, 30},
	models.CategoryFiller:   {5, 30},
	models.CategorySolvent:  {10, 40},
	models.CategoryAdditive: {0.1, 2},
}

func randomAmount(rng *rand.Rand, cat models.MaterialCategory) float64 {
	r, ok := amountRanges[cat]
	if !ok {
		r = amountRanges[models.CategoryAdditive]
	}
	return r[0] + rng.Float64()*(r[1]-r[0])
}

// InitializePopulation builds size random recipes of minComponents to
// maxComponents distinct materials. The first slots of each recipe cycle
// through the binder, pigment and solvent pools so most individuals start
// with a plausible backbone; the rest are drawn from the whole catalogue.
// Amounts are random within a per-category range and then normalized.
func InitializePopulation(rng *rand.Rand, cat *catalog.Catalog, size, minComponents, maxComponents int) []models.Recipe {
	all := cat.All()
	if len(all) == 0 || size <= 0 {
		return nil
	}

	var backbone [][]models.RecipeComponent
	for _, pool := range [][]models.RecipeComponent{cat.Binders, cat.Pigments, cat.Solvents} {
		if len(pool) > 0 {
			backbone = append(backbone, pool)
		}
	}

	population := make([]models.Recipe, 0, size)
	for i := 0; i < size; i++ {
		n := minComponents + rng.Intn(maxComponents-minComponents+1)
		if n > len(all) {
			n = len(all)
		}

		r := models.Recipe{Components: make([]models.RecipeComponent, 0, n)}
		used := make(map[string]bool, n)
		for slot := 0; slot < n; slot++ {
			pool := all
			if slot < len(backbone) {
				pool = backbone[slot]
			}
			m, ok := pickUnused(rng, pool, used)
			if !ok {
				m, ok = pickUnused(rng, all, used)
			}
			if !ok {
				break
			}
			used[m.Code] = true
			m.Amount = randomAmount(rng, m.Category)
			r.Components = append(r.Components, m)
		}
		population = append(population, chemistry.NormalizeRecipe(r))
	}
	return population
}

// pickUnused draws a template from pool whose code is not in used. It gives
// up after a bounded number of attempts.
func pickUnused(rng *rand.Rand, pool []models.RecipeComponent, used map[string]bool) (models.RecipeComponent, bool) {
	if len(pool) == 0 {
		return models.RecipeComponent{}, false
	}
	for attempt := 0; attempt < 2*len(pool)+4; attempt++ {
		m := pool[rng.Intn(len(pool))]
		if !used[m.Code] {
			return m.Clone(), true
		}
	}
	return models.RecipeComponent{}, false
}

// Select runs a tournament: tournamentSize distinct individuals are sampled
// uniformly and the index of the fittest is returned. On equal fitness the
// first sampled wins. scored must not be empty.
func Select(rng *rand.Rand, scored []Evaluation, tournamentSize int) int {
	k := tournamentSize
	if k > len(scored) {
		k = len(scored)
	}
	if k < 1 {
		k = 1
	}

	sample := rng.Perm(len(scored))[:k]
	best := sample[0]
	for _, idx := range sample[1:] {
		if scored[idx].Fitness < scored[best].Fitness {
			best = idx
		}
	}
	return best
}

// Crossover builds a child from the first half of p1's components and the
// second half of p2's, truncated to maxComponents and normalized. The
// parents are not modified.
func Crossover(p1, p2 models.Recipe, maxComponents int) models.Recipe {
	k1 := len(p1.Components) / 2
	k2 := len(p2.Components) / 2

	child := models.Recipe{Components: make([]models.RecipeComponent, 0, k1+len(p2.Components)-k2)}
	for _, c := range p1.Components[:k1] {
		child.Components = append(child.Components, c.Clone())
	}
	for _, c := range p2.Components[k2:] {
		child.Components = append(child.Components, c.Clone())
	}
	if maxComponents > 0 && len(child.Components) > maxComponents {
		child.Components = child.Components[:maxComponents]
	}
	return chemistry.NormalizeRecipe(child)
}

// MutationParams controls Mutate.
type MutationParams struct {
	AmountRate     float64
	StructuralRate float64
	MinComponents  int
	MaxComponents  int
}

// Mutate returns a mutated copy of r. With probability AmountRate one
// component's amount is scaled by a factor in [0.8, 1.2]. Independently,
// with probability StructuralRate a material from pool is added at 5% when
// the recipe is under MaxComponents, or else a random component is removed
// when it is over MinComponents. The result is normalized.
func Mutate(rng *rand.Rand, r models.Recipe, pool []models.RecipeComponent, p MutationParams) models.Recipe {
	out := r.Clone()
	if len(out.Components) == 0 {
		return out
	}

	if rng.Float64() < p.AmountRate {
		idx := rng.Intn(len(out.Components))
		out.Components[idx].Amount *= 0.8 + 0.4*rng.Float64()
		out = chemistry.NormalizeRecipe(out)
	}

	if rng.Float64() < p.StructuralRate {
		switch {
		case len(out.Components) < p.MaxComponents:
			used := make(map[string]bool, len(out.Components))
			for _, c := range out.Components {
				used[c.Code] = true
			}
			if m, ok := pickUnused(rng, pool, used); ok {
				m.Amount = addedComponentAmount
				out.Components = append(out.Components, m)
			}
		case len(out.Components) > p.MinComponents:
			idx := rng.Intn(len(out.Components))
			out.Components = append(out.Components[:idx], out.Components[idx+1:]...)
		}
		out = chemistry.NormalizeRecipe(out)
	}

	return out
}

// Signature identifies a composition: the sorted "name:amount" pairs, with
// amounts rounded to whole percent, joined by "|".
func Signature(r models.Recipe) string {
	parts := make([]string, len(r.Components))
	for i, c := range r.Components {
		parts[i] = fmt.Sprintf("%s:%d", c.DisplayName(), int64(math.Round(c.Amount)))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
