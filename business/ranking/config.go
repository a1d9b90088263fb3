package ranking

import (
	"sort"

	"furusatoReco/domain"
)

type Config struct {
	OutputCap  int
	MinScore   float64
	RelaxStep  float64
	RelaxFloor float64

	// price fit peaks at remaining ceiling / PriceTargetDivisor; the curve
	// width is relative to that target
	PriceTargetDivisor float64
	PriceFitWidth      float64

	ReviewSaturation int
	GramsPerPerson   int
}

const (
	defaultOutputCap          = 9
	defaultMinScore           = 70
	defaultRelaxStep          = 20
	defaultRelaxFloor         = 0
	defaultPriceTargetDivisor = 3
	defaultPriceFitWidth      = 0.5
	defaultReviewSaturation   = 1000
	defaultGramsPerPerson     = 1000
)

func DefaultConfig() Config {
	return Config{
		OutputCap:          defaultOutputCap,
		MinScore:           defaultMinScore,
		RelaxStep:          defaultRelaxStep,
		RelaxFloor:         defaultRelaxFloor,
		PriceTargetDivisor: defaultPriceTargetDivisor,
		PriceFitWidth:      defaultPriceFitWidth,
		ReviewSaturation:   defaultReviewSaturation,
		GramsPerPerson:     defaultGramsPerPerson,
	}
}

func (c Config) withDefaults() Config {
	if c.OutputCap <= 0 {
		c.OutputCap = defaultOutputCap
	}
	if c.RelaxStep <= 0 {
		c.RelaxStep = defaultRelaxStep
	}
	if c.RelaxFloor > c.MinScore {
		c.RelaxFloor = c.MinScore
	}
	if c.PriceTargetDivisor <= 0 {
		c.PriceTargetDivisor = defaultPriceTargetDivisor
	}
	if c.PriceFitWidth <= 0 {
		c.PriceFitWidth = defaultPriceFitWidth
	}
	if c.ReviewSaturation <= 0 {
		c.ReviewSaturation = defaultReviewSaturation
	}
	if c.GramsPerPerson <= 0 {
		c.GramsPerPerson = defaultGramsPerPerson
	}
	return c
}

// Module names.
const (
	ModuleAIRelevance   = "ai_relevance"
	ModuleCategoryMatch = "category_match"
	ModulePriceFit      = "price_fit"
	ModuleReviewQuality = "review_quality"
	ModuleFamilyFit     = "family_fit"
	ModuleDiversity     = "diversity"
	ModuleSeasonality   = "seasonality"
	ModulePreference    = "preference"
	ModuleNovelty       = "novelty"
	ModuleAllergy       = "allergy"
	ModulePastSelection = "past_selection"
)

// DefaultModules is the built-in module table. Filters carry no weight.
func DefaultModules() []domain.JudgmentModule {
	return []domain.JudgmentModule{
		{Name: ModuleAllergy, Enabled: true, Priority: 0},
		{Name: ModulePastSelection, Enabled: true, Priority: 0},
		{Name: ModuleAIRelevance, Enabled: true, Priority: 1, Weight: 0.35},
		{Name: ModuleCategoryMatch, Enabled: true, Priority: 2, Weight: 0.15},
		{Name: ModulePriceFit, Enabled: true, Priority: 3, Weight: 0.12},
		{Name: ModuleReviewQuality, Enabled: true, Priority: 4, Weight: 0.12},
		{Name: ModuleFamilyFit, Enabled: true, Priority: 5, Weight: 0.08},
		{Name: ModuleDiversity, Enabled: true, Priority: 6, Weight: 0.06},
		{Name: ModuleSeasonality, Enabled: true, Priority: 7, Weight: 0.05},
		{Name: ModulePreference, Enabled: true, Priority: 8, Weight: 0.05},
		{Name: ModuleNovelty, Enabled: true, Priority: 9, Weight: 0.02},
	}
}

// MergeModules overlays overrides onto base by name. Names unknown to base
// are kept so the registry can report them. The result is ordered by
// priority, then name.
func MergeModules(base []domain.JudgmentModule, overrides []domain.JudgmentModule) []domain.JudgmentModule {
	byName := make(map[string]int, len(base))
	out := make([]domain.JudgmentModule, 0, len(base)+len(overrides))
	for _, m := range base {
		byName[m.Name] = len(out)
		out = append(out, m)
	}
	for _, m := range overrides {
		if i, ok := byName[m.Name]; ok {
			out[i] = m
			continue
		}
		byName[m.Name] = len(out)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}
