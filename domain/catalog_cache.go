package domain

import "time"

// CREATE TABLE public.catalog_cache_entries (
//     cache_key     TEXT PRIMARY KEY,
//     categories    TEXT,
//     payload       BYTEA NOT NULL,
//     expires_at    TIMESTAMPTZ NOT NULL,
//     created_at    TIMESTAMPTZ DEFAULT NOW(),
//     updated_at    TIMESTAMPTZ DEFAULT NOW()
// );

// CatalogCacheEntry is a persisted candidate pool. Payload holds the
// JSON-encoded CandidatePool; Categories lists the categories it holds, for
// operators.
type CatalogCacheEntry struct {
	Key        string    `gorm:"column:cache_key;primaryKey"`
	Categories string    `gorm:"column:categories;type:text"`
	Payload    []byte    `gorm:"column:payload;type:bytea"`
	ExpiresAt  time.Time `gorm:"column:expires_at;index"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (CatalogCacheEntry) TableName() string {
	return "catalog_cache_entries"
}

func (e CatalogCacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
