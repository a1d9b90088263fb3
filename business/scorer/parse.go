package scorer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"furusatoReco/domain"

	json "github.com/goccy/go-json"
)

const maxReasonRunes = 120

type responseItem struct {
	ID       string   `json:"id"`
	Score    *float64 `json:"score"`
	Reason   string   `json:"reason"`
	InSeason bool     `json:"in_season"`
}

type response struct {
	Items []responseItem `json:"items"`
}

// ParseResponse decodes a model reply. Code fences and text around the JSON
// object are tolerated; entries for unknown ids are dropped. A reply with no
// usable entry is reported as domain.ErrMalformedResponse.
func ParseResponse(raw string, known domain.IDSet) (map[string]domain.ItemScore, error) {
	body := extractObject(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", domain.ErrMalformedResponse)
	}

	var resp response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}

	out := make(map[string]domain.ItemScore, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID == "" || it.Score == nil || !known.Has(it.ID) {
			continue
		}
		out[it.ID] = domain.ItemScore{
			Score:    clamp(*it.Score, 0, 100),
			Reason:   truncate(strings.TrimSpace(it.Reason), maxReasonRunes),
			InSeason: it.InSeason,
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no scored items", domain.ErrMalformedResponse)
	}
	return out, nil
}

func extractObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
