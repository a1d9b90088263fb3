package rest

import (
	"context"
	"net/http"
	"time"

	"furusatoReco/business/feed"
	"furusatoReco/domain"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

const headerUserID = "X-User-ID"

type (
	RecommendationHandler struct {
		validate *validator.Validate
		feed     FeedService
		profiles ProfileService
		timeout  time.Duration
	}

	FeedService interface {
		NextPage(ctx context.Context, req feed.NextPageRequest) (domain.Page, error)
		EndSession(ctx context.Context, id string) error
	}

	ProfileService interface {
		GetProfile(ctx context.Context, userID string) (domain.UserContext, bool, error)
	}

	NextPageRequest struct {
		SessionID  string              `json:"session_id" validate:"omitempty,max=64"`
		Categories []string            `json:"categories" validate:"max=10,dive,required"`
		User       *domain.UserContext `json:"user"`
	}
)

// NewRecommendationHandler wires the feed endpoints. profiles may be nil,
// in which case every request must carry its user inline.
func NewRecommendationHandler(svc FeedService, profiles ProfileService, timeout time.Duration) *RecommendationHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RecommendationHandler{
		validate: validator.New(),
		feed:     svc,
		profiles: profiles,
		timeout:  timeout,
	}
}

// POST /api/v1/recommendations/next
func (h *RecommendationHandler) Next(c echo.Context) error {
	var req NextPageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error(), Code: "bad_request"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error(), Code: "bad_request"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	var user domain.UserContext
	switch {
	case req.User != nil:
		user = *req.User
	default:
		userID := c.Request().Header.Get(headerUserID)
		if userID == "" || h.profiles == nil {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "user or " + headerUserID + " header is required", Code: "bad_request"})
		}
		profile, ok, err := h.profiles.GetProfile(ctx, userID)
		if err != nil {
			return respondError(c, err)
		}
		if !ok {
			return c.JSON(http.StatusNotFound, ResponseError{Message: "user not found", Code: "not_found"})
		}
		user = profile
	}

	page, err := h.feed.NextPage(ctx, feed.NextPageRequest{
		SessionID:  req.SessionID,
		User:       user,
		Categories: req.Categories,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(page))
}

// DELETE /api/v1/recommendations/sessions/:id
func (h *RecommendationHandler) EndSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "session id is required", Code: "bad_request"})
	}
	if err := h.feed.EndSession(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
