// Package extract provides defensive typed accessors over untrusted
// HTML. Missing or malformed fields become defaults, never faults: a
// broken offer row is dropped, the request is not.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ImportTeam/extensionBack/internal/engine"
)

// Text returns the trimmed text of the first match, truncated to
// maxLen runes; empty string when the selection is empty.
func Text(sel *goquery.Selection, maxLen int) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	t := strings.TrimSpace(sel.First().Text())
	if maxLen > 0 {
		if runes := []rune(t); len(runes) > maxLen {
			t = string(runes[:maxLen])
		}
	}
	return t
}

// Attr returns the named attribute of the first match, or empty.
func Attr(sel *goquery.Selection, name string) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	v, _ := sel.First().Attr(name)
	return strings.TrimSpace(v)
}

// Price parses a price string by stripping every non-digit rune and
// range-checking the result against [0, 10^9]. The boolean is false
// for empty, malformed, or out-of-range input.
func Price(s string) (int64, bool) {
	var digits []rune
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 || len(digits) > 10 {
		return 0, false
	}
	var v int64
	for _, r := range digits {
		v = v*10 + int64(r-'0')
	}
	if v < 0 || v > engine.MaxPrice {
		return 0, false
	}
	return v, true
}

// URL validates that raw is an absolute http(s) URL, resolving
// protocol-relative and path-relative references against base when
// provided. Returns empty on anything else.
func URL(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}
