package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"furusatoReco/business/ranking"
	"furusatoReco/domain"
	"furusatoReco/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	kindInitial = "initial"
	kindMore    = "more"
)

// ---- Repository interfaces ----

type PoolLoader interface {
	Load(ctx context.Context, req domain.PoolRequest) (domain.CandidatePool, string, error)
}

type Ranker interface {
	Recommend(ctx context.Context, req ranking.Request) (domain.RankResult, error)
}

// SessionStore remembers what each session has been shown. Load of an
// unknown or expired session returns an empty state, not an error.
type SessionStore interface {
	Load(ctx context.Context, id string) (domain.SessionState, error)
	Append(ctx context.Context, id string, ids []string, depth int) error
	End(ctx context.Context, id string) error
}

// ---- Service ----

type Config struct {
	MaxDepth int
}

type Controller struct {
	pools    PoolLoader
	ranker   Ranker
	sessions SessionStore
	cfg      Config

	validate *validator.Validate
	group    singleflight.Group
	now      func() time.Time
}

func NewController(pools PoolLoader, ranker Ranker, sessions SessionStore, cfg Config) *Controller {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 5
	}
	return &Controller{
		pools:    pools,
		ranker:   ranker,
		sessions: sessions,
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
	}
}

type NextPageRequest struct {
	SessionID  string
	User       domain.UserContext
	Categories []string
}

// NextPage serves the next page of a session, minting a session id when the
// request has none. Calls for the same session are collapsed: a caller that
// arrives while a page is being built receives that same page.
func (c *Controller) NextPage(ctx context.Context, req NextPageRequest) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return domain.Page{}, fmt.Errorf("context error: %w", err)
	}
	if err := c.validate.Struct(req.User); err != nil {
		return domain.Page{}, fmt.Errorf("%w: %w", domain.ErrInvalidUserContext, err)
	}
	if err := req.User.Validate(); err != nil {
		return domain.Page{}, err
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	v, err, _ := c.group.Do(req.SessionID, func() (any, error) {
		return c.nextPage(ctx, req)
	})
	if err != nil {
		return domain.Page{}, err
	}
	return v.(domain.Page), nil
}

func (c *Controller) nextPage(ctx context.Context, req NextPageRequest) (domain.Page, error) {
	start := c.now()
	tid := TraceIDFromContext(ctx)

	state, err := c.sessions.Load(ctx, req.SessionID)
	if err != nil {
		return domain.Page{}, fmt.Errorf("load session: %w", err)
	}
	initial := state.Initial()
	kind := kindMore
	if initial {
		kind = kindInitial
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = req.User.PreferredCategories
	}

	depth := max(state.Depth, 1)
	page := domain.Page{
		SessionID:       req.SessionID,
		Number:          state.Pages + 1,
		Recommendations: []domain.Recommendation{},
		Reason:          domain.ReasonOK,
	}

	for {
		pool, source, err := c.pools.Load(ctx, domain.PoolRequest{
			UserID:     req.User.UserID,
			Categories: categories,
			Exclude:    state.Seen,
			Ceiling:    req.User.Remaining(),
			Page:       depth,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Page{}, fmt.Errorf("context error: %w", ctxErr)
			}
			if initial {
				return domain.Page{}, fmt.Errorf("load pool: %w", err)
			}
			logger.Warn("load more: pool unavailable",
				"trace_id", tid,
				"session_id", req.SessionID,
				"depth", depth,
				"error", err,
			)
			page.Reason = domain.ReasonUpstreamUnavailable
			pagesTotal.WithLabelValues(kind, string(page.Reason)).Inc()
			return page, nil
		}

		if pool.Len() == 0 && !initial {
			if depth < c.cfg.MaxDepth {
				depth++
				continue
			}
			page.Reason = domain.ReasonNoMoreCandidates
			break
		}

		res, err := c.ranker.Recommend(ctx, ranking.Request{
			Pool:    pool,
			User:    req.User,
			Exclude: state.Seen,
			Month:   c.now().In(jst).Month(),
		})
		if err != nil {
			return domain.Page{}, fmt.Errorf("rank: %w", err)
		}

		if len(res.Recommendations) == 0 && !initial {
			if depth < c.cfg.MaxDepth {
				depth++
				continue
			}
			res.Reason = domain.ReasonNoMoreCandidates
		}

		page.Recommendations = res.Recommendations
		page.Degraded = res.Degraded
		page.Reason = res.Reason
		page.EffectiveThreshold = res.EffectiveThreshold
		page.Candidates = pool.Len()

		logger.Debug("feed_page",
			"trace_id", tid,
			"session_id", req.SessionID,
			"page", page.Number,
			"depth", depth,
			"source", source,
			"candidates", pool.Len(),
			"returned", len(res.Recommendations),
			"degraded", res.Degraded,
			"threshold", res.EffectiveThreshold,
		)
		break
	}

	// Record before returning so the next call can never repeat these.
	if err := c.sessions.Append(context.WithoutCancel(ctx), req.SessionID, page.IDs(), depth); err != nil {
		return domain.Page{}, fmt.Errorf("record session: %w", err)
	}

	pagesTotal.WithLabelValues(kind, string(page.Reason)).Inc()
	pageLatency.WithLabelValues(kind).Observe(c.now().Sub(start).Seconds())
	return page, nil
}

// EndSession discards a session's history.
func (c *Controller) EndSession(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("session id is required")
	}
	if err := c.sessions.End(ctx, id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

var jst = time.FixedZone("JST", 9*60*60)
