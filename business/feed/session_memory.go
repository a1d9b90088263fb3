package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"furusatoReco/domain"
)

type memorySession struct {
	seen      domain.IDSet
	pages     int
	depth     int
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process. Idle sessions expire lazily
// after ttl.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	now      func() time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Load(ctx context.Context, id string) (domain.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionState{}, fmt.Errorf("context error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.SessionState{ID: id, Seen: domain.NewIDSet()}
	sess, ok := s.sessions[id]
	if !ok {
		return st, nil
	}
	if s.ttl > 0 && !s.now().Before(sess.expiresAt) {
		delete(s.sessions, id)
		return st, nil
	}
	st.Seen = sess.seen.Union()
	st.Pages = sess.pages
	st.Depth = sess.depth
	return st, nil
}

func (s *MemorySessionStore) Append(ctx context.Context, id string, ids []string, depth int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || (s.ttl > 0 && !s.now().Before(sess.expiresAt)) {
		sess = &memorySession{seen: domain.NewIDSet()}
		s.sessions[id] = sess
	}
	sess.seen.Add(ids...)
	sess.pages++
	sess.depth = depth
	sess.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemorySessionStore) End(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
