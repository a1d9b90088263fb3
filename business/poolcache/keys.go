package poolcache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"furusatoReco/domain"

	json "github.com/goccy/go-json"
)

type ephemeralKey struct {
	User       string   `json:"u"`
	Categories []string `json:"c"`
	Exclude    []string `json:"x"`
	Bucket     int      `json:"b"`
	Page       int      `json:"p"`
}

type persistentKey struct {
	Categories []string `json:"c"`
	Bucket     int      `json:"b"`
	Page       int      `json:"p"`
}

// EphemeralKey covers everything that shapes a request's pool: who asked,
// which categories in which order, what to exclude, the bucket and depth.
func EphemeralKey(req domain.PoolRequest, bucket int) string {
	return hashKey("eph", ephemeralKey{
		User:       req.UserID,
		Categories: normalizeCategories(req.Categories, false),
		Exclude:    req.Exclude.Sorted(),
		Bucket:     bucket,
		Page:       page(req.Page),
	})
}

// PersistentKey only covers what the catalog itself is queried with.
func PersistentKey(req domain.PoolRequest, bucket int) string {
	return hashKey("pool", persistentKey{
		Categories: normalizeCategories(req.Categories, true),
		Bucket:     bucket,
		Page:       page(req.Page),
	})
}

func hashKey(prefix string, v any) string {
	raw, _ := json.Marshal(v)
	sum := sha256.Sum256(raw)
	return prefix + ":" + hex.EncodeToString(sum[:])
}

func normalizeCategories(in []string, sorted bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if sorted {
		sort.Strings(out)
	}
	return out
}

func page(p int) int {
	if p < 1 {
		return 1
	}
	return p
}
