package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"furusatoReco/business/ranking"
	"furusatoReco/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	mu      sync.Mutex
	pages   map[int][]domain.Product
	err     error
	calls   []domain.PoolRequest
	blockOn string
	entered chan struct{}
	release chan struct{}
}

func (f *fakeLoader) Load(ctx context.Context, req domain.PoolRequest) (domain.CandidatePool, string, error) {
	if f.blockOn != "" && req.UserID == f.blockOn {
		f.entered <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return domain.CandidatePool{}, "", f.err
	}
	pool := domain.CandidatePool{Items: f.pages[req.Page]}
	return pool.Without(req.Exclude), "fake", nil
}

func (f *fakeLoader) requestedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Page)
	}
	return out
}

func products(prefix string, n int) []domain.Product {
	out := make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Product{
			ID:            fmt.Sprintf("%s:%02d", prefix, i),
			Name:          "黒毛和牛 切り落とし",
			Category:      "肉",
			ReviewCount:   500,
			ReviewAverage: 4.5,
		})
	}
	return out
}

func newTestController(loader *fakeLoader) *Controller {
	engine := ranking.NewEngine(nil, nil, nil, ranking.DefaultConfig())
	return NewController(loader, engine, NewMemorySessionStore(time.Hour), Config{MaxDepth: 5})
}

func TestNextPageConsecutivePagesAreDisjoint(t *testing.T) {
	loader := &fakeLoader{pages: map[int][]domain.Product{1: products("shop", 30)}}
	c := newTestController(loader)
	ctx := context.Background()

	seen := domain.NewIDSet()
	sessionID := "s-1"
	for n := 1; n <= 3; n++ {
		page, err := c.NextPage(ctx, NextPageRequest{SessionID: sessionID})
		require.NoError(t, err)
		assert.Equal(t, n, page.Number)
		assert.Equal(t, sessionID, page.SessionID)
		require.Len(t, page.Recommendations, 9)
		for _, id := range page.IDs() {
			assert.False(t, seen.Has(id), "id %s repeated on page %d", id, n)
			seen.Add(id)
		}
	}
	assert.Len(t, seen, 27)
}

func TestNextPageAdvancesDepthThenRunsDry(t *testing.T) {
	loader := &fakeLoader{pages: map[int][]domain.Product{
		1: products("a", 10),
		2: products("b", 3),
	}}
	c := newTestController(loader)
	ctx := context.Background()
	req := NextPageRequest{SessionID: "deep"}

	p1, err := c.NextPage(ctx, req)
	require.NoError(t, err)
	assert.Len(t, p1.Recommendations, 9)

	p2, err := c.NextPage(ctx, req)
	require.NoError(t, err)
	assert.Len(t, p2.Recommendations, 1)

	p3, err := c.NextPage(ctx, req)
	require.NoError(t, err)
	assert.Len(t, p3.Recommendations, 3)
	assert.Equal(t, "b:00", p3.Recommendations[0].ID)

	p4, err := c.NextPage(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, p4.Recommendations)
	assert.Equal(t, domain.ReasonNoMoreCandidates, p4.Reason)

	assert.Equal(t, []int{1, 1, 1, 2, 2, 3, 4, 5}, loader.requestedPages())

	p5, err := c.NextPage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoMoreCandidates, p5.Reason)
	assert.Equal(t, 5, loader.requestedPages()[len(loader.calls)-1], "depth never exceeds the maximum")
}

func TestNextPageInitialUpstreamFailureIsAnError(t *testing.T) {
	upstream := fmt.Errorf("%w: %w: all 3 category queries failed", domain.ErrNoCandidates, domain.ErrUpstreamUnavailable)
	c := newTestController(&fakeLoader{err: upstream})

	_, err := c.NextPage(context.Background(), NextPageRequest{SessionID: "s"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestNextPageLoadMoreUpstreamFailureIsQuiet(t *testing.T) {
	loader := &fakeLoader{pages: map[int][]domain.Product{1: products("shop", 20)}}
	c := newTestController(loader)
	ctx := context.Background()

	_, err := c.NextPage(ctx, NextPageRequest{SessionID: "s"})
	require.NoError(t, err)

	loader.err = domain.ErrUpstreamUnavailable
	page, err := c.NextPage(ctx, NextPageRequest{SessionID: "s"})
	require.NoError(t, err)
	assert.Empty(t, page.Recommendations)
	assert.Equal(t, domain.ReasonUpstreamUnavailable, page.Reason)
}

func TestNextPageRejectsInvalidUserContext(t *testing.T) {
	loader := &fakeLoader{}
	c := newTestController(loader)

	tests := []struct {
		name string
		user domain.UserContext
	}{
		{"liked and disliked", domain.UserContext{Liked: []string{"x:1"}, Disliked: []string{"x:1"}}},
		{"negative ceiling", domain.UserContext{Ceiling: -1}},
		{"too many categories", domain.UserContext{PreferredCategories: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.NextPage(context.Background(), NextPageRequest{User: tt.user})
			assert.ErrorIs(t, err, domain.ErrInvalidUserContext)
		})
	}
	assert.Empty(t, loader.calls)
}

func TestNextPageMintsSessionID(t *testing.T) {
	c := newTestController(&fakeLoader{pages: map[int][]domain.Product{1: products("shop", 3)}})

	page, err := c.NextPage(context.Background(), NextPageRequest{})
	require.NoError(t, err)
	_, err = uuid.Parse(page.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, 1, page.Number)
}

func TestNextPagePassesRemainingCeilingAndCategories(t *testing.T) {
	loader := &fakeLoader{pages: map[int][]domain.Product{1: products("shop", 3)}}
	c := newTestController(loader)

	user := domain.UserContext{UserID: "u", Ceiling: 50000, Spent: 20000, PreferredCategories: []string{"米"}}
	_, err := c.NextPage(context.Background(), NextPageRequest{SessionID: "s", User: user})
	require.NoError(t, err)
	_, err = c.NextPage(context.Background(), NextPageRequest{SessionID: "t", User: user, Categories: []string{"果物"}})
	require.NoError(t, err)

	require.Len(t, loader.calls, 2)
	assert.Equal(t, 30000, loader.calls[0].Ceiling)
	assert.Equal(t, []string{"米"}, loader.calls[0].Categories)
	assert.Equal(t, []string{"果物"}, loader.calls[1].Categories)
	assert.Equal(t, "u", loader.calls[0].UserID)
}

func TestNextPageConcurrentSameSessionNeverOverlaps(t *testing.T) {
	loader := &fakeLoader{pages: map[int][]domain.Product{1: products("shop", 100)}}
	c := newTestController(loader)

	const callers = 8
	pages := make([]domain.Page, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.NextPage(context.Background(), NextPageRequest{SessionID: "shared"})
			assert.NoError(t, err)
			pages[i] = p
		}(i)
	}
	wg.Wait()

	// Two callers either joined the same build (same page number and ids)
	// or were served one after the other (disjoint ids).
	for i := 0; i < callers; i++ {
		for j := i + 1; j < callers; j++ {
			if pages[i].Number == pages[j].Number {
				assert.Equal(t, pages[i].IDs(), pages[j].IDs())
				continue
			}
			a := domain.NewIDSet(pages[i].IDs()...)
			for _, id := range pages[j].IDs() {
				assert.False(t, a.Has(id), "pages %d and %d overlap on %s", pages[i].Number, pages[j].Number, id)
			}
		}
	}
}

func TestNextPageSessionsDoNotBlockEachOther(t *testing.T) {
	loader := &fakeLoader{
		pages:   map[int][]domain.Product{1: products("shop", 20)},
		blockOn: "slow",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestController(loader)

	slowDone := make(chan error, 1)
	go func() {
		_, err := c.NextPage(context.Background(), NextPageRequest{SessionID: "a", User: domain.UserContext{UserID: "slow"}})
		slowDone <- err
	}()
	<-loader.entered

	page, err := c.NextPage(context.Background(), NextPageRequest{SessionID: "b", User: domain.UserContext{UserID: "fast"}})
	require.NoError(t, err)
	assert.NotEmpty(t, page.Recommendations)

	close(loader.release)
	require.NoError(t, <-slowDone)
}

func TestEndSessionStartsOver(t *testing.T) {
	loader := &fakeLoader{pages: map[int][]domain.Product{1: products("shop", 20)}}
	c := newTestController(loader)
	ctx := context.Background()

	first, err := c.NextPage(ctx, NextPageRequest{SessionID: "s"})
	require.NoError(t, err)
	require.NoError(t, c.EndSession(ctx, "s"))

	again, err := c.NextPage(ctx, NextPageRequest{SessionID: "s"})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Number)
	assert.Equal(t, first.IDs(), again.IDs())

	assert.Error(t, c.EndSession(ctx, ""))
}

func TestNextPageCancelledContext(t *testing.T) {
	c := newTestController(&fakeLoader{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.NextPage(ctx, NextPageRequest{SessionID: "s"})
	assert.True(t, errors.Is(err, context.Canceled))
}
