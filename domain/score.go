package domain

// ItemScore is the AI relevance judgment for one item.
type ItemScore struct {
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
	InSeason bool    `json:"in_season"`
}
