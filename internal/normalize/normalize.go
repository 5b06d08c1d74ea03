// Package normalize implements the three-level query rewrite pipeline:
// hard mapping, synonym expansion, and fallback candidate generation.
// All matching runs over one shared normalization function so exact
// equality between queries and rule keys is well-defined.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

func isHangul(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}

func isLatinLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// Clean is the shared normalization function N(s): lowercase, collapse
// whitespace, insert a space at every Hangul-Latin letter boundary,
// strip everything that is not alphanumeric, Hangul, hyphen,
// underscore, or space, then collapse again. Hard-mapping keys are
// stored pre-cleaned with the same function.
func Clean(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s) + 8)
	var prev rune
	for _, r := range s {
		if prev != 0 {
			if (isHangul(prev) && isLatinLetter(r)) || (isLatinLetter(prev) && isHangul(r)) {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
		prev = r
	}

	var out strings.Builder
	out.Grow(b.Len())
	for _, r := range b.String() {
		switch {
		case unicode.IsLetter(r) && (isHangul(r) || isLatinLetter(r)):
			out.WriteRune(r)
		case unicode.IsDigit(r):
			out.WriteRune(r)
		case r == '-' || r == '_':
			out.WriteRune(r)
		case unicode.IsSpace(r):
			out.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(out.String()), " ")
}

// Tokens splits a cleaned string into whitespace tokens.
func Tokens(s string) []string {
	return strings.Fields(Clean(s))
}

var digitRunRE = regexp.MustCompile(`[0-9]+`)

// gradeWords are the Latin grade markers; gradeAliases map the Korean
// spellings onto them. Both sets are fixed by the rewrite contract:
// no candidate may lose one of these.
var gradeWords = map[string]struct{}{
	"pro": {}, "max": {}, "ultra": {}, "fe": {}, "plus": {},
}

var gradeAliases = map[string]string{
	"프로":   "pro",
	"맥스":   "max",
	"울트라": "ultra",
	"플러스": "plus",
}

// GradeTokens extracts the multiset of grade tokens from s: every
// digit run plus every grade word (Korean spellings normalized to the
// Latin form).
func GradeTokens(s string) []string {
	cleaned := Clean(s)
	grades := digitRunRE.FindAllString(cleaned, -1)
	for _, tok := range strings.Fields(cleaned) {
		bare := digitRunRE.ReplaceAllString(tok, "")
		if bare == "" {
			continue
		}
		if _, ok := gradeWords[bare]; ok {
			grades = append(grades, bare)
			continue
		}
		if latin, ok := gradeAliases[bare]; ok {
			grades = append(grades, latin)
		}
	}
	return grades
}

// PreservesGrades reports whether candidate retains every grade token
// of source, counting multiplicity.
func PreservesGrades(source, candidate string) bool {
	need := map[string]int{}
	for _, g := range GradeTokens(source) {
		need[g]++
	}
	for _, g := range GradeTokens(candidate) {
		if need[g] > 0 {
			need[g]--
		}
	}
	for _, n := range need {
		if n > 0 {
			return false
		}
	}
	return true
}
