package scorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"furusatoReco/domain"
	"furusatoReco/pkg/logger"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Prompt is one request to the scoring model.
type Prompt struct {
	System string
	User   string
}

// Backend sends a prompt to a model and returns its raw text reply.
type Backend interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

type Config struct {
	MaxCandidates   int
	Attempts        int
	BaseDelay       time.Duration
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

const (
	defaultMaxCandidates   = 30
	defaultAttempts        = 3
	defaultBaseDelay       = 500 * time.Millisecond
	defaultTimeout         = 20 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = time.Minute
)

func DefaultConfig() Config {
	return Config{
		MaxCandidates:   defaultMaxCandidates,
		Attempts:        defaultAttempts,
		BaseDelay:       defaultBaseDelay,
		Timeout:         defaultTimeout,
		BreakerFailures: defaultBreakerFailures,
		BreakerCooldown: defaultBreakerCooldown,
	}
}

type scores = map[string]domain.ItemScore

type Client struct {
	backend Backend
	cfg     Config
	breaker *gobreaker.CircuitBreaker[scores]
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(backend Backend, cfg Config) *Client {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = defaultMaxCandidates
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}

	name := "scorer-" + backend.Name()
	breakerState.WithLabelValues(name).Set(0)

	return &Client{
		backend: backend,
		cfg:     cfg,
		sleep:   sleepContext,
		breaker: gobreaker.NewCircuitBreaker[scores](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || callerGaveUp(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("scorer circuit breaker state change",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
				breakerState.WithLabelValues(name).Set(stateValue(to))
			},
		}),
	}
}

// Score asks the model to rate at most MaxCandidates items for the user in
// the given month. It makes up to Attempts calls with doubling backoff;
// unreadable replies are retried like transport errors. When every attempt
// fails, or the breaker is open, the error matches both
// domain.ErrScoringUnavailable and domain.ErrUpstreamUnavailable.
func (c *Client) Score(
	ctx context.Context,
	items []domain.Product,
	user domain.UserContext,
	month time.Month,
) (map[string]domain.ItemScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if len(items) == 0 {
		return scores{}, nil
	}

	subset := pickSubset(items, c.cfg.MaxCandidates)

	prompt, err := BuildPrompt(subset, user, month)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	out, err := c.breaker.Execute(func() (scores, error) {
		return c.scoreWithRetry(ctx, prompt, subset)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			attemptsTotal.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: %w: %w", domain.ErrScoringUnavailable, domain.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}
	return out, nil
}

func (c *Client) scoreWithRetry(ctx context.Context, prompt Prompt, subset []domain.Product) (scores, error) {
	known := make(domain.IDSet, len(subset))
	for _, it := range subset {
		known.Add(it.ID)
	}

	delay := c.cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("context error: %w", err)
			}
			delay *= 2
		}

		out, err := c.attempt(ctx, prompt, known)
		if err == nil {
			attemptsTotal.WithLabelValues("ok").Inc()
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("context error: %w", ctxErr)
		}

		lastErr = err
		result := "error"
		if errors.Is(err, domain.ErrMalformedResponse) {
			result = "malformed"
		}
		attemptsTotal.WithLabelValues(result).Inc()
		logger.Warn("scoring attempt failed",
			"backend", c.backend.Name(),
			"attempt", attempt,
			"of", c.cfg.Attempts,
			"error", err,
		)
	}

	return nil, fmt.Errorf("%w: %w: %d attempts: %w",
		domain.ErrScoringUnavailable, domain.ErrUpstreamUnavailable, c.cfg.Attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, prompt Prompt, known domain.IDSet) (scores, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	raw, err := c.backend.Complete(actx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseResponse(raw, known)
}

// pickSubset takes up to n items round-robin over categories, in the order
// categories first appear, so every category of a merged pool gets scored.
// Within a category the pool order is kept.
func pickSubset(items []domain.Product, n int) []domain.Product {
	if len(items) <= n {
		return items
	}

	var order []string
	groups := make(map[string][]domain.Product)
	for _, it := range items {
		if _, ok := groups[it.Category]; !ok {
			order = append(order, it.Category)
		}
		groups[it.Category] = append(groups[it.Category], it)
	}

	out := make([]domain.Product, 0, n)
	for round := 0; len(out) < n; round++ {
		for _, cat := range order {
			if round < len(groups[cat]) {
				out = append(out, groups[cat][round])
				if len(out) == n {
					break
				}
			}
		}
	}
	return out
}

// callerGaveUp reports a cancellation or deadline of the caller's own
// context. Per-attempt timeouts surface wrapped in ErrScoringUnavailable and
// still count against the breaker.
func callerGaveUp(err error) bool {
	if errors.Is(err, domain.ErrScoringUnavailable) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
