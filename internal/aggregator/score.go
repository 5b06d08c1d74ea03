package aggregator

import (
	"regexp"
	"strings"

	"github.com/ImportTeam/extensionBack/internal/normalize"
)

var (
	mChipRE  = regexp.MustCompile(`(?i)\bm\s*(\d+)\b`)
	screenRE = regexp.MustCompile(`\b(10|11|12|13|14|15|16|17)(?:\s*인치|\s*inch|\s*형|")?\b`)
)

// accessoryTraps are listing words that turn a product search into an
// accessory hit; a candidate carrying one the query does not is
// disqualified outright.
var accessoryTraps = []string{
	"케이스", "커버", "필름", "거치대", "스탠드", "파우치", "가방",
	"충전기", "케이블", "어댑터", "허브",
}

// MatchScore scores how plausibly a listing title matches the query,
// 0..100. Hard disqualifiers return 0: accessory traps, chip
// mismatches (M1 vs M3), and screen-size mismatches, all of which name
// different products no matter how similar the rest of the title is.
func MatchScore(query, title string) float64 {
	if query == "" || title == "" {
		return 0
	}
	if isAccessoryTrap(query, title) {
		return 0
	}

	q := normalize.Clean(query)
	t := normalize.Clean(title)

	qChips := mChipRE.FindAllString(q, -1)
	tChips := mChipRE.FindAllString(t, -1)
	if len(qChips) > 0 && len(tChips) > 0 && !sameSet(qChips, tChips) {
		return 0
	}

	qScreens := screenRE.FindAllString(q, -1)
	tScreens := screenRE.FindAllString(t, -1)
	if len(qScreens) > 0 && len(tScreens) > 0 && !sameSet(qScreens, tScreens) {
		return 0
	}

	score := tokenOverlap(q, t) * 100

	// Losing a grade token (buds 3 pro vs buds 2) is a near-miss on a
	// different product generation.
	if !normalize.PreservesGrades(q, t) {
		score -= 45
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func isAccessoryTrap(query, title string) bool {
	qLower := strings.ToLower(query)
	tLower := strings.ToLower(title)
	for _, trap := range accessoryTraps {
		if strings.Contains(tLower, trap) && !strings.Contains(qLower, trap) {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	norm := func(items []string) map[string]struct{} {
		out := map[string]struct{}{}
		for _, it := range items {
			out[strings.Join(strings.Fields(strings.ToLower(it)), "")] = struct{}{}
		}
		return out
	}
	sa, sb := norm(a), norm(b)
	if len(sa) != len(sb) {
		return false
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false
		}
	}
	return true
}

func tokenOverlap(a, b string) float64 {
	setA := toSet(strings.Fields(a))
	setB := toSet(strings.Fields(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}
