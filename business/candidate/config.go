package candidate

import "furusatoReco/domain"

type Config struct {
	MaxCategories     int
	PerCategoryHits   int
	MaxPoolSize       int
	MinPriceFilter    int
	Concurrency       int
	DefaultCategories []string
}

const (
	defaultMaxCategories   = 5
	defaultPerCategoryHits = 30
	defaultMaxPoolSize     = 150
	defaultMinPriceFilter  = 3000
	defaultConcurrency     = 4
)

func DefaultConfig() Config {
	return Config{
		MaxCategories:     defaultMaxCategories,
		PerCategoryHits:   defaultPerCategoryHits,
		MaxPoolSize:       defaultMaxPoolSize,
		MinPriceFilter:    defaultMinPriceFilter,
		Concurrency:       defaultConcurrency,
		DefaultCategories: []string{"肉", "海鮮", "米", "果物", "スイーツ"},
	}
}

func (c Config) withDefaults() Config {
	if c.MaxCategories <= 0 {
		c.MaxCategories = defaultMaxCategories
	}
	if c.MaxCategories > domain.MaxCategories {
		c.MaxCategories = domain.MaxCategories
	}
	if c.PerCategoryHits <= 0 {
		c.PerCategoryHits = defaultPerCategoryHits
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	return c
}
