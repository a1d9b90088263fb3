package candidate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"furusatoReco/domain"
	"furusatoReco/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Query is one catalog search for a single category.
type Query struct {
	Keyword  string
	Hits     int
	Page     int
	MaxPrice int // 0 means no price ceiling
}

// CatalogRepository searches the external catalog. Implementations return
// items sorted by review count, most reviewed first.
type CatalogRepository interface {
	Search(ctx context.Context, q Query) ([]domain.Product, error)
}

// Request describes the pool the caller wants.
type Request struct {
	Categories  []string
	Exclude     domain.IDSet
	CeilingHint int
	Page        int
}

type Fetcher struct {
	catalog CatalogRepository
	cfg     Config
	now     func() time.Time
}

func NewFetcher(catalog CatalogRepository, cfg Config) *Fetcher {
	return &Fetcher{
		catalog: catalog,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// Fetch queries every requested category concurrently and merges the
// results in category order. A failing category is logged and skipped; only
// when all of them fail does Fetch return an error, which then matches both
// domain.ErrNoCandidates and domain.ErrUpstreamUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (domain.CandidatePool, error) {
	if err := ctx.Err(); err != nil {
		return domain.CandidatePool{}, fmt.Errorf("context error: %w", err)
	}

	categories := f.categories(req.Categories)
	page := req.Page
	if page < 1 {
		page = 1
	}
	maxPrice := 0
	if req.CeilingHint >= f.cfg.MinPriceFilter {
		maxPrice = req.CeilingHint
	}

	results := make([][]domain.Product, len(categories))
	errs := make([]error, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, category := range categories {
		g.Go(func() error {
			items, err := f.catalog.Search(gctx, Query{
				Keyword:  category,
				Hits:     f.cfg.PerCategoryHits,
				Page:     page,
				MaxPrice: maxPrice,
			})
			if err != nil {
				errs[i] = fmt.Errorf("category %s: %w", category, err)
				catalogQueriesTotal.WithLabelValues("error").Inc()
				logger.Warn("catalog query failed, skipping category",
					"category", category,
					"page", page,
					"error", err,
				)
				return nil
			}
			catalogQueriesTotal.WithLabelValues("ok").Inc()
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	// Queries that finished before the caller gave up are still merged, so
	// the pool can be cached; only a query cut short fails the fetch.
	if err := ctx.Err(); err != nil {
		for _, qerr := range errs {
			if errors.Is(qerr, context.Canceled) || errors.Is(qerr, context.DeadlineExceeded) {
				return domain.CandidatePool{}, fmt.Errorf("context error: %w", err)
			}
		}
	}

	pool := f.merge(categories, results, req.Exclude)
	for i, err := range errs {
		if err != nil {
			pool.FailedCategories = append(pool.FailedCategories, categories[i])
		}
	}

	if len(categories) > 0 && len(pool.FailedCategories) == len(categories) {
		return pool, fmt.Errorf("%w: %w: all %d category queries failed: %w",
			domain.ErrNoCandidates, domain.ErrUpstreamUnavailable, len(categories), errors.Join(errs...))
	}

	logger.Debug("candidate pool assembled",
		"categories", categories,
		"failed", pool.FailedCategories,
		"excluded", len(req.Exclude),
		"size", pool.Len(),
	)

	return pool, nil
}

// merge runs single-threaded once every query has returned.
func (f *Fetcher) merge(categories []string, results [][]domain.Product, exclude domain.IDSet) domain.CandidatePool {
	pool := domain.CandidatePool{FetchedAt: f.now()}
	seen := make(domain.IDSet)

	for i, items := range results {
		for _, it := range items {
			if len(pool.Items) >= f.cfg.MaxPoolSize {
				return pool
			}
			if it.ID == "" || exclude.Has(it.ID) || seen.Has(it.ID) {
				continue
			}
			seen.Add(it.ID)
			if it.Category == "" {
				it.Category = categories[i]
			}
			pool.Items = append(pool.Items, it)
		}
	}
	return pool
}

// categories trims, dedupes and caps the requested categories, falling back
// to the configured defaults when none were given.
func (f *Fetcher) categories(requested []string) []string {
	src := requested
	if len(cleanList(src)) == 0 {
		src = f.cfg.DefaultCategories
	}

	out := cleanList(src)
	if len(out) > f.cfg.MaxCategories {
		out = out[:f.cfg.MaxCategories]
	}
	return out
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
