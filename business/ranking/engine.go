package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"furusatoReco/domain"
	"furusatoReco/pkg/logger"
)

var (
	ErrUnknownModule  = errors.New("unknown judgment module")
	ErrRequiredModule = errors.New("judgment module cannot be disabled")
)

var jst = time.FixedZone("JST", 9*60*60)

// ---- Repository interfaces ----

type Scorer interface {
	Score(ctx context.Context, items []domain.Product, user domain.UserContext, month time.Month) (map[string]domain.ItemScore, error)
}

// ModuleRepository stores runtime overrides of the module table.
type ModuleRepository interface {
	ListModules(ctx context.Context) ([]domain.JudgmentModule, error)
	UpsertModule(ctx context.Context, m domain.JudgmentModule) error
}

// ---- Service ----

type Engine struct {
	scorer     Scorer
	moduleRepo ModuleRepository
	registry   *Registry
	modules    []domain.JudgmentModule
	cfg        Config
	now        func() time.Time
}

// NewEngine wires the engine. modules is the base module table (code
// defaults, optionally merged with a definitions file); nil means
// DefaultModules. scorer and moduleRepo may be nil.
func NewEngine(scorer Scorer, moduleRepo ModuleRepository, modules []domain.JudgmentModule, cfg Config) *Engine {
	if modules == nil {
		modules = DefaultModules()
	}
	registry := DefaultRegistry()
	return &Engine{
		scorer:     scorer,
		moduleRepo: moduleRepo,
		registry:   registry,
		modules:    pinFilters(registry, modules),
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
}

type Request struct {
	Pool    domain.CandidatePool
	User    domain.UserContext
	Exclude domain.IDSet
	Month   time.Month
}

// Recommend filters the pool, asks the scorer for AI scores and ranks the
// rest. A scoring failure is not an error: the result is ranked by the
// deterministic modules alone and flagged Degraded.
func (e *Engine) Recommend(ctx context.Context, req Request) (domain.RankResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.RankResult{}, fmt.Errorf("context error: %w", err)
	}

	modules := e.EffectiveModules(ctx)
	month := req.Month
	if month == 0 {
		month = e.now().In(jst).Month()
	}

	filters, _ := e.registry.resolve(modules)
	fctx := newContext(req.User, nil, false, month, req.Exclude, e.cfg)
	eligible := make([]domain.Product, 0, len(req.Pool.Items))
	for _, it := range req.Pool.Items {
		if !excluded(filters, it, fctx) {
			eligible = append(eligible, it)
		}
	}

	var (
		scores   map[string]domain.ItemScore
		degraded bool
	)
	if len(eligible) > 0 {
		if e.scorer == nil {
			degraded = true
		} else {
			var err error
			scores, err = e.scorer.Score(ctx, eligible, req.User, month)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return domain.RankResult{}, fmt.Errorf("context error: %w", ctxErr)
				}
				degraded = true
				logger.Warn("scoring unavailable, ranking with deterministic modules only",
					"user_id", req.User.UserID,
					"candidates", len(eligible),
					"error", err,
				)
			}
		}
	}

	res := e.Rank(Input{
		Pool:     domain.CandidatePool{Items: eligible, FetchedAt: req.Pool.FetchedAt},
		Scores:   scores,
		User:     req.User,
		Exclude:  req.Exclude,
		Month:    month,
		Degraded: degraded,
		Modules:  modules,
	})

	outcome := string(res.Reason)
	if res.Degraded {
		outcome = "degraded"
	}
	rankingsTotal.WithLabelValues(outcome).Inc()

	return res, nil
}

// Input is everything one ranking pass depends on.
type Input struct {
	Pool     domain.CandidatePool
	Scores   map[string]domain.ItemScore
	User     domain.UserContext
	Exclude  domain.IDSet
	Month    time.Month
	Degraded bool
	Modules  []domain.JudgmentModule
}

type candidate struct {
	item  domain.Product
	index int
	raw   map[string]float64
}

type scored struct {
	*candidate
	contributions map[string]float64
	total         float64
}

// Rank is side-effect free: the same input always yields the same result.
// Items are picked greedily so selection-aware modules (diversity) see the
// picks above them; totals along the pick order never increase, so the
// threshold keeps a prefix of it.
func (e *Engine) Rank(in Input) domain.RankResult {
	defs := in.Modules
	if defs == nil {
		defs = e.modules
	}
	filters, mods := e.registry.resolve(defs)
	c := newContext(in.User, in.Scores, in.Degraded, in.Month, in.Exclude, e.cfg)

	var aiShare float64
	for _, w := range mods {
		if _, ok := w.module.(aiDependent); ok {
			aiShare += w.weight
		}
	}

	var remaining []*candidate
	for i, it := range in.Pool.Items {
		if excluded(filters, it, c) {
			continue
		}
		cd := &candidate{item: it, index: i, raw: make(map[string]float64, len(mods))}
		for _, w := range mods {
			if _, dyn := w.module.(selectionAware); dyn {
				continue
			}
			cd.raw[w.module.Name()] = w.module.Score(it, c)
		}
		remaining = append(remaining, cd)
	}

	res := domain.RankResult{
		Recommendations:    []domain.Recommendation{},
		Degraded:           in.Degraded,
		Reason:             domain.ReasonOK,
		EffectiveThreshold: e.cfg.MinScore,
		Considered:         len(remaining),
	}
	if len(remaining) == 0 {
		res.Reason = domain.ReasonNoMatch
		return res
	}

	var picks []scored
	for len(picks) < e.cfg.OutputCap && len(remaining) > 0 {
		bestIdx := -1
		var best scored
		for j, cd := range remaining {
			s := e.evaluate(cd, mods, aiShare, c)
			if bestIdx < 0 || better(s, best) {
				bestIdx, best = j, s
			}
		}
		picks = append(picks, best)
		c.pick(best.item)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	threshold := e.cfg.MinScore
	for threshold > e.cfg.RelaxFloor && picks[0].total < threshold {
		threshold = math.Max(threshold-e.cfg.RelaxStep, e.cfg.RelaxFloor)
	}
	res.EffectiveThreshold = threshold

	for _, p := range picks {
		if p.total < threshold {
			break
		}
		res.Recommendations = append(res.Recommendations, e.recommendation(p, c))
	}
	if len(res.Recommendations) == 0 {
		res.Reason = domain.ReasonNoMatch
	}
	return res
}

// EffectiveModules is the base module table with stored overrides applied.
// A failing store falls back to the base table.
func (e *Engine) EffectiveModules(ctx context.Context) []domain.JudgmentModule {
	if e.moduleRepo == nil {
		return e.modules
	}
	rows, err := e.moduleRepo.ListModules(ctx)
	if err != nil {
		logger.Warn("load judgment modules failed, using defaults", "error", err)
		return e.modules
	}
	return pinFilters(e.registry, MergeModules(e.modules, rows))
}

// pinFilters reports filters as enabled whatever the stored rows say.
func pinFilters(r *Registry, mods []domain.JudgmentModule) []domain.JudgmentModule {
	out := make([]domain.JudgmentModule, len(mods))
	copy(out, mods)
	for i := range out {
		if r.IsFilter(out[i].Name) {
			out[i].Enabled = true
		}
	}
	return out
}

// UpdateModule stores an override for a known module.
func (e *Engine) UpdateModule(ctx context.Context, m domain.JudgmentModule) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if !e.registry.Known(m.Name) {
		return fmt.Errorf("%w: %s", ErrUnknownModule, m.Name)
	}
	if m.Weight < 0 {
		return fmt.Errorf("module %s: negative weight", m.Name)
	}
	if e.registry.IsFilter(m.Name) && !m.Enabled {
		return fmt.Errorf("%w: %s", ErrRequiredModule, m.Name)
	}
	if e.moduleRepo == nil {
		return errors.New("module store not configured")
	}
	m.UpdatedAt = e.now()
	return e.moduleRepo.UpsertModule(ctx, m)
}

// evaluate computes an item's weighted total. An item the scoring pass left
// unrated drops the AI-dependent modules and has the remaining weights
// rescaled to sum to 1.
func (e *Engine) evaluate(cd *candidate, mods []weighted, aiShare float64, c *Context) scored {
	s := scored{candidate: cd, contributions: make(map[string]float64, len(mods))}
	missing := c.aiMissing(cd.item.ID)
	scale := 1.0
	if missing && aiShare < 1 {
		scale = 1 / (1 - aiShare)
	}

	var sum float64
	for _, w := range mods {
		name := w.module.Name()
		if _, dyn := w.module.(selectionAware); dyn {
			cd.raw[name] = w.module.Score(cd.item, c)
		}
		weight := w.weight * scale
		if _, ai := w.module.(aiDependent); ai && missing {
			weight = 0
		}
		v := round2(weight * cd.raw[name])
		s.contributions[name] = v
		sum += v
	}
	s.total = round2(sum)
	return s
}

func (e *Engine) recommendation(p scored, c *Context) domain.Recommendation {
	rec := domain.Recommendation{
		ID:    p.item.ID,
		Score: p.total,
		Item:  p.item,
		Breakdown: domain.ScoreBreakdown{
			Contributions: p.contributions,
			Total:         p.total,
		},
		Discovery: len(c.preferredTerms) > 0 && matchedPreferences(p.item, c.preferredTerms) == 0,
	}

	if s, ok := c.aiScore(p.item.ID); ok {
		v := s.Score
		rec.Breakdown.AIScore = &v
		rec.Reason = s.Reason
	}
	if rec.Reason == "" {
		rec.Reason = generateReason(p.item, p.raw, p.contributions)
	}
	return rec
}

// better orders by total, then review count, then catalog position.
func better(a, b scored) bool {
	if a.total != b.total {
		return a.total > b.total
	}
	if a.item.ReviewCount != b.item.ReviewCount {
		return a.item.ReviewCount > b.item.ReviewCount
	}
	return a.index < b.index
}

func excluded(filters []Filter, item domain.Product, c *Context) bool {
	for _, f := range filters {
		if f.Exclude(item, c) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
