package scorer

import (
	"fmt"
	"time"

	"furusatoReco/domain"

	json "github.com/goccy/go-json"
)

const systemPrompt = `You rate hometown-tax gift items for one household.
Score every listed item from 0 to 100 for how well it suits the household,
using the constraints given. Judge whether each item is in season for the
given month. Write each reason in Japanese, one short sentence.
Reply with JSON only, no prose, in exactly this shape:
{"items":[{"id":"<item id>","score":<0-100>,"reason":"<reason>","in_season":<true|false>}]}`

type promptItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    int     `json:"price"`
	Category string  `json:"category"`
	Reviews  int     `json:"reviews"`
	Rating   float64 `json:"rating"`
}

type promptUser struct {
	Remaining     int      `json:"remaining_ceiling"`
	Household     int      `json:"household_size"`
	Married       bool     `json:"married"`
	Dependents    int      `json:"dependents"`
	Preferences   []string `json:"preferred_categories,omitempty"`
	Allergies     []string `json:"allergies,omitempty"`
	CustomRequest string   `json:"custom_request,omitempty"`
	Liked         int      `json:"liked_count"`
	Disliked      int      `json:"disliked_count"`
}

type promptPayload struct {
	Month int          `json:"month"`
	User  promptUser   `json:"user"`
	Items []promptItem `json:"items"`
}

// BuildPrompt renders the scoring request for a bounded item subset.
func BuildPrompt(items []domain.Product, user domain.UserContext, month time.Month) (Prompt, error) {
	payload := promptPayload{
		Month: int(month),
		User: promptUser{
			Remaining:     user.Remaining(),
			Household:     user.HouseholdSize(),
			Married:       user.Married,
			Dependents:    user.Dependents,
			Preferences:   user.PreferredCategories,
			Allergies:     user.Allergies,
			CustomRequest: user.CustomRequest,
			Liked:         len(user.Liked),
			Disliked:      len(user.Disliked),
		},
		Items: make([]promptItem, 0, len(items)),
	}
	for _, it := range items {
		payload.Items = append(payload.Items, promptItem{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.Price,
			Category: it.Category,
			Reviews:  it.ReviewCount,
			Rating:   it.ReviewAverage,
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Prompt{}, fmt.Errorf("marshal prompt payload: %w", err)
	}

	return Prompt{System: systemPrompt, User: string(raw)}, nil
}
