package ranking

import (
	"regexp"
	"strconv"
	"strings"

	"furusatoReco/domain"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// normalizeText folds width variants, lower-cases and maps katakana to
// hiragana so "ｴﾋﾞ", "エビ" and "えび" compare equal.
func normalizeText(s string) string {
	s = strings.ToLower(norm.NFC.String(width.Fold.String(strings.TrimSpace(s))))
	return strings.Map(func(r rune) rune {
		if r >= 'ァ' && r <= 'ヶ' {
			return r - 0x60
		}
		return r
	}, s)
}

// allergenSynonyms lists alternative spellings per normalized allergen.
var allergenSynonyms = map[string][]string{
	"えび":    {"海老", "しゅりんぷ", "ろぶすたー"},
	"海老":    {"えび", "しゅりんぷ"},
	"かに":    {"蟹"},
	"蟹":     {"かに"},
	"たまご":   {"卵", "玉子"},
	"卵":     {"たまご", "玉子"},
	"こむぎ":   {"小麦"},
	"小麦":    {"こむぎ"},
	"そば":    {"蕎麦"},
	"蕎麦":    {"そば"},
	"らっかせい": {"落花生", "ぴーなっつ"},
	"落花生":   {"らっかせい", "ぴーなっつ"},
	"ぴーなっつ": {"落花生", "らっかせい"},
	"くるみ":   {"胡桃"},
	"胡桃":    {"くるみ"},
}

func expandAllergyTerms(allergies []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, a := range allergies {
		n := normalizeText(a)
		add(n)
		for _, syn := range allergenSynonyms[n] {
			add(normalizeText(syn))
		}
	}
	return out
}

func containsAllergen(item domain.Product, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	text := normalizeText(item.Name + " " + item.Category)
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func matchedPreferences(item domain.Product, preferred []string) int {
	text := normalizeText(item.Category + " " + item.Name)
	n := 0
	for _, p := range preferred {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

// ---- pack quantity ----

type quantityUnit int

const (
	unitServings quantityUnit = iota
	unitGrams
	unitPieces
)

type quantity struct {
	amount float64
	unit   quantityUnit
}

var (
	servingsPattern = regexp.MustCompile(`(\d+)\s*(?:人前|人分)`)
	weightPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(kg|キロ|g|グラム)(?:\s*[×x*]\s*(\d+))?`)
	piecesPattern   = regexp.MustCompile(`(\d+)\s*(?:個|袋|パック|尾|枚|本|缶|箱|玉|食|切)(?:\s*[×x*]\s*(\d+))?`)
)

// parseQuantity reads a pack size from an item name, preferring explicit
// servings, then weight, then a piece count. "500g×4" is 2000 grams.
func parseQuantity(name string) (quantity, bool) {
	s := strings.ToLower(width.Fold.String(name))

	if m := servingsPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		return quantity{amount: n, unit: unitServings}, n > 0
	}

	if m := weightPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		if m[2] == "kg" || m[2] == "キロ" {
			n *= 1000
		}
		n *= multiplier(m[3])
		return quantity{amount: n, unit: unitGrams}, n > 0
	}

	if m := piecesPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		n *= multiplier(m[2])
		return quantity{amount: n, unit: unitPieces}, n > 0
	}

	return quantity{}, false
}

func multiplier(s string) float64 {
	if s == "" {
		return 1
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}
