package domain

import (
	"fmt"
	"slices"
)

const MaxCategories = 10

// UserContext is the read-only profile the engine ranks against. It is
// supplied fresh on every request and never cached.
type UserContext struct {
	UserID              string   `json:"user_id"`
	Ceiling             int      `json:"ceiling" validate:"gte=0"`
	Spent               int      `json:"spent" validate:"gte=0"`
	Married             bool     `json:"married"`
	Dependents          int      `json:"dependents" validate:"gte=0,lte=20"`
	PreferredCategories []string `json:"preferred_categories" validate:"max=10,dive,required"`
	Allergies           []string `json:"allergies" validate:"dive,required"`
	CustomRequest       string   `json:"custom_request" validate:"max=500"`
	Liked               []string `json:"liked"`
	Disliked            []string `json:"disliked"`
	PastSelections      []string `json:"past_selections"`
}

// Validate checks the invariants that struct tags cannot express.
func (u UserContext) Validate() error {
	if u.Ceiling < 0 || u.Spent < 0 || u.Dependents < 0 {
		return fmt.Errorf("%w: negative ceiling, spent or dependents", ErrInvalidUserContext)
	}
	if len(u.PreferredCategories) > MaxCategories {
		return fmt.Errorf("%w: more than %d preferred categories", ErrInvalidUserContext, MaxCategories)
	}
	liked := NewIDSet(u.Liked...)
	for _, id := range u.Disliked {
		if liked.Has(id) {
			return fmt.Errorf("%w: %q is both liked and disliked", ErrInvalidUserContext, id)
		}
	}
	return nil
}

// Remaining is the ceiling left after what was already spent this period.
func (u UserContext) Remaining() int {
	if r := u.Ceiling - u.Spent; r > 0 {
		return r
	}
	return 0
}

func (u UserContext) HouseholdSize() int {
	n := 1 + u.Dependents
	if u.Married {
		n++
	}
	return n
}

// Like records id as liked and drops it from the disliked set.
func (u *UserContext) Like(id string) {
	u.Disliked = slices.DeleteFunc(u.Disliked, func(s string) bool { return s == id })
	if !slices.Contains(u.Liked, id) {
		u.Liked = append(u.Liked, id)
	}
}

// Dislike records id as disliked and drops it from the liked set.
func (u *UserContext) Dislike(id string) {
	u.Liked = slices.DeleteFunc(u.Liked, func(s string) bool { return s == id })
	if !slices.Contains(u.Disliked, id) {
		u.Disliked = append(u.Disliked, id)
	}
}

func (u *UserContext) ClearPreference(id string) {
	u.Liked = slices.DeleteFunc(u.Liked, func(s string) bool { return s == id })
	u.Disliked = slices.DeleteFunc(u.Disliked, func(s string) bool { return s == id })
}
