package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"furusatoReco/business/poolcache"
	"furusatoReco/domain"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogCacheRepository is the persistent pool cache tier. Expired rows
// read as misses and are overwritten by the next fill; nothing sweeps them.
type CatalogCacheRepository struct {
	DB  *gorm.DB
	now func() time.Time
}

var _ poolcache.Tier = (*CatalogCacheRepository)(nil)

func NewCatalogCacheRepository(db *gorm.DB) *CatalogCacheRepository {
	return &CatalogCacheRepository{DB: db, now: time.Now}
}

func (r *CatalogCacheRepository) Name() string {
	return "persistent"
}

func (r *CatalogCacheRepository) Get(ctx context.Context, key string) (domain.CandidatePool, bool, error) {
	var row domain.CatalogCacheEntry
	err := r.DB.WithContext(ctx).First(&row, "cache_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.CandidatePool{}, false, nil
	}
	if err != nil {
		return domain.CandidatePool{}, false, err
	}
	if row.Expired(r.now()) {
		return domain.CandidatePool{}, false, nil
	}

	pool, err := decodePool(row.Payload)
	if err != nil {
		return domain.CandidatePool{}, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return pool, true, nil
}

func (r *CatalogCacheRepository) Put(ctx context.Context, key string, pool domain.CandidatePool, ttl time.Duration) error {
	payload, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("failed to encode pool: %w", err)
	}

	now := r.now()
	row := domain.CatalogCacheEntry{
		Key:        key,
		Categories: strings.Join(poolCategories(pool), ","),
		Payload:    payload,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"categories", "payload", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
}

func decodePool(payload []byte) (domain.CandidatePool, error) {
	var pool domain.CandidatePool
	if err := json.Unmarshal(payload, &pool); err != nil {
		return domain.CandidatePool{}, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}
	return pool, nil
}

func poolCategories(pool domain.CandidatePool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range pool.Items {
		if it.Category != "" && !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	return out
}
