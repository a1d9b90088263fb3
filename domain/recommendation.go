package domain

// ScoreBreakdown explains a total score. The contributions are the weighted
// module scores and always sum to Total.
type ScoreBreakdown struct {
	AIScore       *float64           `json:"ai_score"`
	Contributions map[string]float64 `json:"contributions"`
	Total         float64            `json:"total"`
}

type Recommendation struct {
	ID        string         `json:"id"`
	Score     float64        `json:"score"`
	Reason    string         `json:"reason"`
	Discovery bool           `json:"discovery"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Item      Product        `json:"item"`
}

type ReasonCode string

const (
	ReasonOK                  ReasonCode = "ok"
	ReasonNoMatch             ReasonCode = "no_match"
	ReasonNoMoreCandidates    ReasonCode = "no_more_candidates"
	ReasonUpstreamUnavailable ReasonCode = "upstream_unavailable"
)

// RankResult is the output of one ranking pass.
type RankResult struct {
	Recommendations    []Recommendation `json:"recommendations"`
	Degraded           bool             `json:"degraded"`
	Reason             ReasonCode       `json:"reason"`
	EffectiveThreshold float64          `json:"effective_threshold"`
	Considered         int              `json:"considered"`
}

// Page is one page of the infinite recommendation feed.
type Page struct {
	SessionID          string           `json:"session_id"`
	Number             int              `json:"page"`
	Recommendations    []Recommendation `json:"recommendations"`
	Degraded           bool             `json:"degraded"`
	Reason             ReasonCode       `json:"reason"`
	EffectiveThreshold float64          `json:"effective_threshold"`
	Candidates         int              `json:"candidates"`
}

func (p Page) IDs() []string {
	ids := make([]string, 0, len(p.Recommendations))
	for _, r := range p.Recommendations {
		ids = append(ids, r.ID)
	}
	return ids
}
