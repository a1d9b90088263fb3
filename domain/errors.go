package domain

import "errors"

var (
	// ErrUpstreamUnavailable means a remote dependency (catalog or scoring
	// service) could not be reached; callers may retry later.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNoCandidates means no category query produced a result.
	ErrNoCandidates = errors.New("no candidates")

	ErrScoringUnavailable = errors.New("scoring unavailable")
	ErrMalformedResponse  = errors.New("malformed scoring response")
	ErrInvalidUserContext = errors.New("invalid user context")
)
