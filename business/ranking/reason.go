package ranking

import (
	"fmt"
	"sort"
	"strings"

	"furusatoReco/domain"
)

// strongRaw is the raw module score a signal needs before it is worth
// mentioning in a generated reason.
const strongRaw = 60

// generateReason explains a pick from its two largest module contributions
// when the AI gave no reason.
func generateReason(item domain.Product, raw, contributions map[string]float64) string {
	type kv struct {
		name  string
		value float64
	}
	var parts []kv
	for name, v := range contributions {
		if v > 0 && raw[name] >= strongRaw && name != ModuleAIRelevance {
			parts = append(parts, kv{name, v})
		}
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].value != parts[j].value {
			return parts[i].value > parts[j].value
		}
		return parts[i].name < parts[j].name
	})

	var phrases []string
	for _, p := range parts {
		if phrase := modulePhrase(p.name, item); phrase != "" {
			phrases = append(phrases, phrase)
		}
		if len(phrases) == 2 {
			break
		}
	}
	if len(phrases) == 0 {
		return "条件に合う返礼品です"
	}
	return strings.Join(phrases, "・") + "のおすすめです"
}

func modulePhrase(name string, item domain.Product) string {
	switch name {
	case ModuleCategoryMatch:
		return "ご希望のジャンルに合致"
	case ModulePriceFit:
		return "予算に対して無理のない価格"
	case ModuleReviewQuality:
		if item.ReviewCount > 0 {
			return fmt.Sprintf("レビュー評価%.1f（%d件）", item.ReviewAverage, item.ReviewCount)
		}
		return ""
	case ModuleFamilyFit:
		return "ご家族の人数に合った内容量"
	case ModuleDiversity:
		return "ほかの候補と違うジャンル"
	case ModuleSeasonality:
		return "今が旬"
	case ModulePreference:
		return "お気に入りに近い返礼品"
	case ModuleNovelty:
		return "はじめての事業者"
	default:
		return ""
	}
}
