package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"furusatoReco/business/feed"
	"furusatoReco/domain"

	"github.com/redis/go-redis/v9"
)

// SessionRepository keeps feed sessions in Redis so every server instance
// sees the same exclusion set. Both keys of a session share its TTL, which
// is refreshed on every page.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

var _ feed.SessionStore = (*SessionRepository)(nil)

func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		client: client,
		ttl:    ttl,
	}
}

// key format: "reco:session:{id}:seen" (set) and "reco:session:{id}:meta" (hash)
func seenKey(id string) string { return fmt.Sprintf("reco:session:%s:seen", id) }
func metaKey(id string) string { return fmt.Sprintf("reco:session:%s:meta", id) }

func (r *SessionRepository) Load(ctx context.Context, id string) (domain.SessionState, error) {
	st := domain.SessionState{ID: id, Seen: domain.NewIDSet()}

	members, err := r.client.SMembers(ctx, seenKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return st, fmt.Errorf("failed to read session set from Redis: %w", err)
	}
	st.Seen.Add(members...)

	meta, err := r.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return st, fmt.Errorf("failed to read session meta from Redis: %w", err)
	}
	st.Pages, _ = strconv.Atoi(meta["pages"])
	st.Depth, _ = strconv.Atoi(meta["depth"])
	return st, nil
}

func (r *SessionRepository) Append(ctx context.Context, id string, ids []string, depth int) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(ids) > 0 {
			members := make([]any, len(ids))
			for i, v := range ids {
				members[i] = v
			}
			pipe.SAdd(ctx, seenKey(id), members...)
			pipe.Expire(ctx, seenKey(id), r.ttl)
		}
		pipe.HIncrBy(ctx, metaKey(id), "pages", 1)
		pipe.HSet(ctx, metaKey(id), "depth", depth)
		pipe.Expire(ctx, metaKey(id), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append session in Redis: %w", err)
	}
	return nil
}

func (r *SessionRepository) End(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, seenKey(id), metaKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to end session in Redis: %w", err)
	}
	return nil
}
