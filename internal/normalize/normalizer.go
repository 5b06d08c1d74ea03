package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ImportTeam/extensionBack/internal/engine"
)

// maxCandidates caps the candidate list the normalizer emits.
const maxCandidates = 8

// Normalizer turns a raw product name into a primary query plus
// ordered fallback candidates, running the three levels in strict
// order with early exit on a hard-map hit.
type Normalizer struct {
	mappings      []HardMappingEntry // cleaned keys, longest first
	accessories   []string
	colors        map[string]struct{}
	conditions    map[string]struct{}
	translit      []Transliteration
	categories    []CategoryRule
	broadKeywords map[string]struct{}
	brands        []BrandRule
	brandLookup   map[string]string // alias (cleaned) -> canonical name
	logger        *zap.Logger
}

// New builds a Normalizer from validated resources.
func New(res *Resources, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Normalizer{
		mappings:      res.sortedMappings(),
		accessories:   res.Accessories,
		colors:        toSet(res.Colors),
		conditions:    toSet(res.Conditions),
		translit:      res.Transliterations,
		categories:    res.Categories,
		broadKeywords: toSet(res.BroadKeywords),
		brands:        res.Brands,
		brandLookup:   map[string]string{},
		logger:        logger,
	}
	for _, b := range res.Brands {
		n.brandLookup[Clean(b.Name)] = b.Name
		for _, a := range b.Aliases {
			n.brandLookup[Clean(a)] = b.Name
		}
	}
	return n
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[Clean(it)] = struct{}{}
	}
	return out
}

// Normalize implements engine.Normalizer.
func (n *Normalizer) Normalize(raw string) engine.NormalizedQuery {
	category, tag := n.DetectCategory(raw)

	// Level 0: hard map, exact match only, guarded and gated.
	if canonical, ok := n.hardMap(raw); ok {
		n.logger.Debug("hard map hit", zap.String("canonical", canonical))
		brand, model := n.ExtractBrandModel(canonical)
		return engine.NormalizedQuery{
			Primary:     canonical,
			Candidates:  []string{canonical},
			Category:    category,
			Brand:       brand,
			Model:       model,
			HardMapped:  true,
			Level2Start: 1,
			Broad:       n.isBroad(canonical),
		}
	}

	// Level 1: synonym expansion, never contracting meaning.
	primary := Clean(raw)
	candidates := n.expand(primary)

	// Level 2: meaning-reducing fallbacks; results behind these must
	// pass the validation gate.
	brand, model := n.ExtractBrandModel(primary)
	level2Start := len(candidates)
	candidates = n.appendFallbacks(candidates, brand, model, tag)

	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
		if level2Start > maxCandidates {
			level2Start = maxCandidates
		}
	}

	return engine.NormalizedQuery{
		Primary:     primary,
		Candidates:  candidates,
		Category:    category,
		Brand:       brand,
		Model:       model,
		Level2Start: level2Start,
		Broad:       n.isBroad(primary),
	}
}

// hardMap runs Level 0: accessory guard, exact cleaned-key match in
// longest-first order, then the brand/grade acceptance gate.
func (n *Normalizer) hardMap(raw string) (string, bool) {
	lowered := strings.ToLower(raw)
	for _, acc := range n.accessories {
		if strings.Contains(lowered, strings.ToLower(acc)) {
			return "", false
		}
	}

	q := Clean(raw)
	for _, m := range n.mappings {
		if m.Key != q {
			continue
		}
		if containsAny(lowered, m.SkipIfContains) {
			continue
		}
		if !n.hasBrandToken(m.Canonical) {
			n.logger.Debug("hard map rejected: no brand token",
				zap.String("canonical", m.Canonical))
			return "", false
		}
		if !PreservesGrades(raw, m.Canonical) {
			n.logger.Debug("hard map rejected: grade token lost",
				zap.String("canonical", m.Canonical))
			return "", false
		}
		return m.Canonical, true
	}
	return "", false
}

func containsAny(lowered string, tokens []string) bool {
	for _, t := range tokens {
		if t != "" && strings.Contains(lowered, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func (n *Normalizer) hasBrandToken(s string) bool {
	for _, tok := range Tokens(s) {
		if _, ok := n.brandLookup[tok]; ok {
			return true
		}
	}
	return false
}

// expand runs Level 1 over the cleaned primary: color/condition token
// stripping plus Hangul-only and Latin-only transliterations. Every
// emitted candidate keeps the primary's grade tokens.
func (n *Normalizer) expand(primary string) []string {
	candidates := []string{primary}

	stripped := n.stripTokens(primary)
	candidates = appendCandidate(candidates, primary, stripped)
	candidates = appendCandidate(candidates, primary, n.toHangul(stripped))
	candidates = appendCandidate(candidates, primary, n.toLatin(stripped))
	return candidates
}

// appendCandidate adds cand if it is non-empty, new, and does not lose
// grade tokens relative to the primary.
func appendCandidate(candidates []string, primary, cand string) []string {
	cand = Clean(cand)
	if cand == "" || !PreservesGrades(primary, cand) {
		return candidates
	}
	for _, c := range candidates {
		if c == cand {
			return candidates
		}
	}
	return append(candidates, cand)
}

// stripTokens removes color and purchase-condition tokens.
func (n *Normalizer) stripTokens(s string) string {
	var kept []string
	for _, tok := range strings.Fields(s) {
		if _, isColor := n.colors[tok]; isColor {
			continue
		}
		if _, isCond := n.conditions[tok]; isCond {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// toHangul rewrites Latin product terms to their Hangul spellings.
func (n *Normalizer) toHangul(s string) string {
	for _, t := range n.translit {
		s = replaceToken(s, Clean(t.Latin), t.Hangul)
	}
	return s
}

// toLatin rewrites Hangul product terms to their Latin spellings.
func (n *Normalizer) toLatin(s string) string {
	for _, t := range n.translit {
		s = replaceToken(s, Clean(t.Hangul), t.Latin)
	}
	return s
}

func replaceToken(s, from, to string) string {
	if from == "" {
		return s
	}
	toks := strings.Fields(s)
	for i, tok := range toks {
		if tok == from {
			toks[i] = to
		}
	}
	return strings.Join(toks, " ")
}

// appendFallbacks emits the Level-2 candidates in meaning-reduction
// order: brand+model, model, brand, category tag.
func (n *Normalizer) appendFallbacks(candidates []string, brand, model, tag string) []string {
	add := func(cand string) {
		cand = Clean(cand)
		if cand == "" {
			return
		}
		for _, c := range candidates {
			if c == cand {
				return
			}
		}
		candidates = append(candidates, cand)
	}
	if brand != "" && model != "" {
		add(brand + " " + model)
	}
	if model != "" {
		add(model)
	}
	if brand != "" {
		add(brand)
	}
	if tag != "" {
		add(tag)
	}
	return candidates
}

// DetectCategory returns the first category whose keyword appears in
// the input, plus that category's generic tag.
func (n *Normalizer) DetectCategory(raw string) (engine.Category, string) {
	cleaned := Clean(raw)
	for _, c := range n.categories {
		for _, kw := range c.Keywords {
			if containsToken(cleaned, Clean(kw)) {
				return engine.Category(c.Name), c.Tag
			}
		}
	}
	return engine.CategoryOther, ""
}

func containsToken(cleaned, kw string) bool {
	if kw == "" {
		return false
	}
	if strings.Contains(kw, " ") {
		return strings.Contains(cleaned, kw)
	}
	for _, tok := range strings.Fields(cleaned) {
		if tok == kw || strings.Contains(tok, kw) {
			return true
		}
	}
	return false
}

// ExtractBrandModel finds a brand via the lexicon and takes up to
// three following tokens (skipping year tokens) as the model.
func (n *Normalizer) ExtractBrandModel(s string) (string, string) {
	toks := Tokens(s)
	brandIdx := -1
	brand := ""
	for i, tok := range toks {
		if name, ok := n.brandLookup[tok]; ok {
			brandIdx = i
			brand = name
			break
		}
	}
	if brandIdx < 0 {
		return "", ""
	}

	var model []string
	for _, tok := range toks[brandIdx+1:] {
		if isYear(tok) {
			continue
		}
		model = append(model, tok)
		if len(model) == 3 {
			break
		}
	}
	return brand, strings.Join(model, " ")
}

func isYear(tok string) bool {
	if len(tok) != 4 {
		return false
	}
	return strings.HasPrefix(tok, "19") || strings.HasPrefix(tok, "20")
}

// DetectBrand returns the canonical brand name found in s, if any.
func (n *Normalizer) DetectBrand(s string) string {
	for _, tok := range Tokens(s) {
		if name, ok := n.brandLookup[tok]; ok {
			return name
		}
	}
	return ""
}

// isBroad marks short generic queries that get the expanded FastPath
// budget with SlowPath disabled.
func (n *Normalizer) isBroad(primary string) bool {
	toks := strings.Fields(primary)
	if len(toks) > 2 {
		return false
	}
	for _, tok := range toks {
		if _, ok := n.broadKeywords[tok]; ok {
			return true
		}
	}
	return false
}
