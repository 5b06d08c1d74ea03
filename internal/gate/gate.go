// Package gate implements the post-hoc validation check applied to
// results obtained from meaning-reducing fallback candidates.
package gate

import (
	"fmt"

	"github.com/ImportTeam/extensionBack/internal/engine"
	"github.com/ImportTeam/extensionBack/internal/normalize"
)

// JaccardThreshold is the minimum token overlap between the raw input
// and the returned product name.
const JaccardThreshold = 0.30

// compatGroups lists categories that may match each other. Categories
// in the same group are compatible; an undetected category on either
// side is always compatible.
var compatGroups = [][]engine.Category{
	{engine.CategoryPhone, "smartphone"},
	{engine.CategoryLaptop, "notebook", "macbook"},
	{engine.CategoryAudio, "earphone", "headphone"},
	{engine.CategoryFood, "grocery"},
	{engine.CategoryAppliance, "home-appliance"},
}

// Gate validates fallback results against the original input.
type Gate struct {
	normalizer *normalize.Normalizer
}

// New builds a Gate sharing the normalizer's lexicons.
func New(normalizer *normalize.Normalizer) *Gate {
	return &Gate{normalizer: normalizer}
}

// Validate implements engine.Gate. It accepts iff the categories are
// compatible, token similarity clears the threshold, detected brands
// agree, and the result carries a positive price. A rejection routes
// the orchestrator to the next candidate; it is not terminal.
func (g *Gate) Validate(raw string, category engine.Category, f *engine.Finding) error {
	if f == nil {
		return fmt.Errorf("empty result")
	}

	resultCategory, _ := g.normalizer.DetectCategory(f.ProductName)
	if !compatible(category, resultCategory) {
		return fmt.Errorf("category mismatch: %s vs %s", category, resultCategory)
	}

	if sim := Jaccard(raw, f.ProductName); sim < JaccardThreshold {
		return fmt.Errorf("similarity %.2f below threshold", sim)
	}

	queryBrand := g.normalizer.DetectBrand(raw)
	resultBrand := g.normalizer.DetectBrand(f.ProductName)
	if queryBrand != "" && resultBrand != "" && queryBrand != resultBrand {
		return fmt.Errorf("brand mismatch: %s vs %s", queryBrand, resultBrand)
	}

	lowest, ok := f.Lowest()
	if !ok || lowest.Price <= 0 {
		return fmt.Errorf("result has no positive price")
	}
	return nil
}

func compatible(a, b engine.Category) bool {
	if a == "" || b == "" || a == engine.CategoryOther || b == engine.CategoryOther {
		return true
	}
	if a == b {
		return true
	}
	for _, group := range compatGroups {
		var hasA, hasB bool
		for _, c := range group {
			if c == a {
				hasA = true
			}
			if c == b {
				hasB = true
			}
		}
		if hasA && hasB {
			return true
		}
	}
	return false
}

// Jaccard computes whitespace-token Jaccard similarity over cleaned
// text.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
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

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range normalize.Tokens(s) {
		out[tok] = struct{}{}
	}
	return out
}
