package domain

import (
	"strings"
	"time"
)

// Product is one catalog item as returned by the marketplace item search.
// The ID is the marketplace item code, "shop:item".
type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Price         int     `json:"price"`
	URL           string  `json:"url"`
	PurchaseURL   string  `json:"purchase_url"`
	ImageURL      string  `json:"image_url,omitempty"`
	Merchant      string  `json:"merchant,omitempty"`
	ReviewCount   int     `json:"review_count"`
	ReviewAverage float64 `json:"review_average"`
	Category      string  `json:"category"`
}

// MerchantKey returns the shop part of a "shop:item" identifier, or the
// whole identifier when it carries no shop prefix.
func MerchantKey(id string) string {
	if i := strings.IndexByte(id, ':'); i > 0 {
		return id[:i]
	}
	return id
}

// CandidatePool is the ordered, deduplicated result of one fetch.
type CandidatePool struct {
	Items            []Product `json:"items"`
	FailedCategories []string  `json:"failed_categories,omitempty"`
	FetchedAt        time.Time `json:"fetched_at"`
}

func (p CandidatePool) Len() int {
	return len(p.Items)
}

func (p CandidatePool) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

// Without returns a copy of the pool minus the excluded identifiers.
// Order is preserved.
func (p CandidatePool) Without(exclude IDSet) CandidatePool {
	out := CandidatePool{
		FailedCategories: p.FailedCategories,
		FetchedAt:        p.FetchedAt,
		Items:            make([]Product, 0, len(p.Items)),
	}
	for _, it := range p.Items {
		if exclude.Has(it.ID) {
			continue
		}
		out.Items = append(out.Items, it)
	}
	return out
}

// PoolRequest identifies one candidate pool lookup.
type PoolRequest struct {
	UserID     string
	Categories []string
	Exclude    IDSet
	Ceiling    int
	Page       int
}
