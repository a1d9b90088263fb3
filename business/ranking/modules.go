package ranking

import (
	"math"
	"time"

	"furusatoReco/domain"
)

// Context is what a module sees while scoring one ranking pass.
type Context struct {
	User     domain.UserContext
	Scores   map[string]domain.ItemScore
	Degraded bool
	Month    time.Month
	Exclude  domain.IDSet
	Config   Config

	// picks already placed above the item being scored
	selectedByCategory map[string]int

	liked             domain.IDSet
	disliked          domain.IDSet
	past              domain.IDSet
	likedMerchants    map[string]bool
	dislikedMerchants map[string]bool
	knownMerchants    map[string]bool
	allergyTerms      []string
	preferredTerms    []string
}

func newContext(user domain.UserContext, scores map[string]domain.ItemScore, degraded bool, month time.Month, exclude domain.IDSet, cfg Config) *Context {
	c := &Context{
		User:               user,
		Scores:             scores,
		Degraded:           degraded,
		Month:              month,
		Exclude:            exclude,
		Config:             cfg,
		selectedByCategory: make(map[string]int),
		liked:              domain.NewIDSet(user.Liked...),
		disliked:           domain.NewIDSet(user.Disliked...),
		past:               domain.NewIDSet(user.PastSelections...),
		likedMerchants:     make(map[string]bool),
		dislikedMerchants:  make(map[string]bool),
		knownMerchants:     make(map[string]bool),
		allergyTerms:       expandAllergyTerms(user.Allergies),
	}
	for _, id := range user.Liked {
		c.likedMerchants[domain.MerchantKey(id)] = true
		c.knownMerchants[domain.MerchantKey(id)] = true
	}
	for _, id := range user.Disliked {
		c.dislikedMerchants[domain.MerchantKey(id)] = true
	}
	for _, id := range user.PastSelections {
		c.knownMerchants[domain.MerchantKey(id)] = true
	}
	for _, p := range user.PreferredCategories {
		if n := normalizeText(p); n != "" {
			c.preferredTerms = append(c.preferredTerms, n)
		}
	}
	return c
}

func (c *Context) aiScore(id string) (domain.ItemScore, bool) {
	if c.Degraded || c.Scores == nil {
		return domain.ItemScore{}, false
	}
	s, ok := c.Scores[id]
	return s, ok
}

// aiMissing reports an item the scoring pass did not rate although the pass
// itself succeeded. Such items are ranked on the deterministic modules alone.
func (c *Context) aiMissing(id string) bool {
	if c.Degraded || c.Scores == nil {
		return false
	}
	_, ok := c.Scores[id]
	return !ok
}

func (c *Context) pick(item domain.Product) {
	c.selectedByCategory[item.Category]++
}

// Module scores one item on a 0-100 scale.
type Module interface {
	Name() string
	Score(item domain.Product, c *Context) float64
}

// Filter removes items before anything is scored. Filters are always
// applied; their module entries cannot disable them.
type Filter interface {
	Name() string
	Exclude(item domain.Product, c *Context) bool
}

// selectionAware modules depend on the picks already made and are
// re-evaluated at every selection step.
type selectionAware interface {
	selectionAware()
}

// aiDependent modules only carry information when the item has an AI score.
type aiDependent interface {
	aiDependent()
}

// Registry maps module names to their implementations.
type Registry struct {
	modules     map[string]Module
	filters     map[string]Filter
	filterOrder []string
}

func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
		filters: make(map[string]Filter),
	}
}

func (r *Registry) RegisterModule(m Module) {
	r.modules[m.Name()] = m
}

func (r *Registry) RegisterFilter(f Filter) {
	if _, ok := r.filters[f.Name()]; !ok {
		r.filterOrder = append(r.filterOrder, f.Name())
	}
	r.filters[f.Name()] = f
}

func (r *Registry) IsFilter(name string) bool {
	_, ok := r.filters[name]
	return ok
}

func (r *Registry) Known(name string) bool {
	_, isModule := r.modules[name]
	_, isFilter := r.filters[name]
	return isModule || isFilter
}

// DefaultRegistry holds every built-in module and filter.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterFilter(allergyFilter{})
	r.RegisterFilter(pastSelectionFilter{})
	r.RegisterModule(aiRelevance{})
	r.RegisterModule(categoryMatch{})
	r.RegisterModule(priceFit{})
	r.RegisterModule(reviewQuality{})
	r.RegisterModule(familyFit{})
	r.RegisterModule(diversity{})
	r.RegisterModule(seasonality{})
	r.RegisterModule(preference{})
	r.RegisterModule(novelty{})
	return r
}

type weighted struct {
	module Module
	weight float64
}

// resolve returns every registered filter and the enabled weighted modules
// with weights normalized to sum to 1. When every enabled weight is zero the
// modules share equally.
func (r *Registry) resolve(defs []domain.JudgmentModule) ([]Filter, []weighted) {
	var (
		filters = make([]Filter, 0, len(r.filterOrder))
		mods    []weighted
		sum     float64
	)
	for _, name := range r.filterOrder {
		filters = append(filters, r.filters[name])
	}
	for _, d := range defs {
		if !d.Enabled {
			continue
		}
		m, ok := r.modules[d.Name]
		if !ok {
			continue
		}
		w := math.Max(d.Weight, 0)
		sum += w
		mods = append(mods, weighted{module: m, weight: w})
	}

	for i := range mods {
		if sum > 0 {
			mods[i].weight /= sum
		} else {
			mods[i].weight = 1 / float64(len(mods))
		}
	}
	return filters, mods
}

// ---- filters ----

type allergyFilter struct{}

func (allergyFilter) Name() string { return ModuleAllergy }

func (allergyFilter) Exclude(item domain.Product, c *Context) bool {
	return containsAllergen(item, c.allergyTerms)
}

type pastSelectionFilter struct{}

func (pastSelectionFilter) Name() string { return ModulePastSelection }

func (pastSelectionFilter) Exclude(item domain.Product, c *Context) bool {
	return c.Exclude.Has(item.ID) || c.past.Has(item.ID)
}

// ---- modules ----

type aiRelevance struct{}

func (aiRelevance) Name() string { return ModuleAIRelevance }

func (aiRelevance) aiDependent() {}

func (aiRelevance) Score(item domain.Product, c *Context) float64 {
	if s, ok := c.aiScore(item.ID); ok {
		return s.Score
	}
	return 0
}

// categoryMatch grows with the share of preferred categories found in the
// item's category label or name (square root, so one hit out of several
// still counts). Neutral when the user stated no preference.
type categoryMatch struct{}

func (categoryMatch) Name() string { return ModuleCategoryMatch }

func (categoryMatch) Score(item domain.Product, c *Context) float64 {
	if len(c.preferredTerms) == 0 {
		return 50
	}
	matched := matchedPreferences(item, c.preferredTerms)
	return 100 * math.Sqrt(float64(matched)/float64(len(c.preferredTerms)))
}

// priceFit is a Gaussian peaked at remaining/PriceTargetDivisor. Items over
// the remaining ceiling score zero; without a ceiling the module is neutral.
type priceFit struct{}

func (priceFit) Name() string { return ModulePriceFit }

func (priceFit) Score(item domain.Product, c *Context) float64 {
	return priceFitScore(item.Price, c.User.Remaining(), c.User.Ceiling > 0, c.Config)
}

func priceFitScore(price, remaining int, hasCeiling bool, cfg Config) float64 {
	if !hasCeiling {
		return 50
	}
	if remaining <= 0 || price > remaining {
		return 0
	}
	target := float64(remaining) / cfg.PriceTargetDivisor
	sigma := cfg.PriceFitWidth * target
	z := (float64(price) - target) / sigma
	return 100 * math.Exp(-0.5*z*z)
}

// reviewQuality mixes the average rating with a log-scaled review volume
// that saturates at ReviewSaturation reviews.
type reviewQuality struct{}

func (reviewQuality) Name() string { return ModuleReviewQuality }

func (reviewQuality) Score(item domain.Product, c *Context) float64 {
	rating := math.Min(math.Max(item.ReviewAverage/5, 0), 1)
	volume := 0.0
	if item.ReviewCount > 0 {
		volume = math.Min(1, math.Log1p(float64(item.ReviewCount))/math.Log1p(float64(c.Config.ReviewSaturation)))
	}
	return 100 * (0.6*rating + 0.4*volume)
}

type familyFit struct{}

func (familyFit) Name() string { return ModuleFamilyFit }

func (familyFit) Score(item domain.Product, c *Context) float64 {
	q, ok := parseQuantity(item.Name)
	if !ok {
		return 50
	}
	household := float64(c.User.HouseholdSize())
	var ratio float64
	switch q.unit {
	case unitGrams:
		ratio = q.amount / (household * float64(c.Config.GramsPerPerson))
	default:
		ratio = q.amount / household
	}
	if ratio <= 0 {
		return 50
	}
	l := math.Log(ratio)
	return 100 * math.Exp(-l*l/2)
}

// diversity lowers the score of items whose category is already
// represented among the higher-ranked picks.
type diversity struct{}

func (diversity) Name() string { return ModuleDiversity }

func (diversity) selectionAware() {}

func (diversity) Score(item domain.Product, c *Context) float64 {
	return 100 / float64(1+c.selectedByCategory[item.Category])
}

type seasonality struct{}

func (seasonality) Name() string { return ModuleSeasonality }

func (seasonality) aiDependent() {}

func (seasonality) Score(item domain.Product, c *Context) float64 {
	if s, ok := c.aiScore(item.ID); ok && s.InSeason {
		return 100
	}
	return 0
}

// preference is neutral at 50. Similarity to liked items raises it towards
// 100 and similarity to disliked items lowers it towards 0 by the same
// amount; only the stronger side applies and a tie stays neutral.
type preference struct{}

func (preference) Name() string { return ModulePreference }

func (preference) Score(item domain.Product, c *Context) float64 {
	ls := similarity(item.ID, c.liked, c.likedMerchants)
	ds := similarity(item.ID, c.disliked, c.dislikedMerchants)
	switch {
	case ls > ds:
		return 50 + 50*ls
	case ds > ls:
		return 50 - 50*ds
	default:
		return 50
	}
}

func similarity(id string, ids domain.IDSet, merchants map[string]bool) float64 {
	if ids.Has(id) {
		return 1
	}
	if merchants[domain.MerchantKey(id)] {
		return 0.5
	}
	return 0
}

// novelty favours merchants the user has no history with.
type novelty struct{}

func (novelty) Name() string { return ModuleNovelty }

func (novelty) Score(item domain.Product, c *Context) float64 {
	if c.knownMerchants[domain.MerchantKey(item.ID)] {
		return 50
	}
	return 100
}
