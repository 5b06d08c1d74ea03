// Package aggregator is the site adapter for the target
// price-aggregation service: URL construction, page fingerprints, and
// the list/detail HTML parsing shared by the HTTP and browser paths.
package aggregator

import (
	"net/url"
	"strings"
)

// Endpoints describes the aggregator surface the engine talks to.
type Endpoints struct {
	// Origin is the breaker key, e.g. "search.danawa.com".
	Origin string
	// SearchURL is the list endpoint.
	SearchURL string
	// ProductURL is the detail endpoint.
	ProductURL string
}

// DefaultEndpoints targets the production aggregator.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Origin:     "search.danawa.com",
		SearchURL:  "https://search.danawa.com/dsearch.php",
		ProductURL: "https://prod.danawa.com/info/",
	}
}

// ListURL builds the search URL for a candidate query.
func (e Endpoints) ListURL(query string) string {
	q := url.QueryEscape(query)
	return e.SearchURL + "?query=" + q + "&originalQuery=" + q
}

// DetailURL builds the product detail URL for a product code.
func (e Endpoints) DetailURL(productID, query string) string {
	return e.ProductURL + "?pcode=" + url.QueryEscape(productID) + "&keyword=" + url.QueryEscape(query)
}

// minValidHTMLLength: a 200 OK body shorter than this is treated as a
// challenge or stub page rather than real content.
const minValidHTMLLength = 2048

var blockSignatures = []string{
	"robot",
	"captcha",
	"cloudflare",
	"just a moment",
	"access denied",
	"verify you are human",
	"challenge",
	"로봇",
	"캡차",
	"차단",
	"접근이 제한",
}

var noResultsSignatures = []string{
	"검색 결과가 없",
	"검색결과가 없",
	"결과가 없습니다",
}

// IsBlockedBody reports whether the body looks like an anti-bot or
// challenge page. Empty and suspiciously short bodies count as
// blocked.
func IsBlockedBody(body string) bool {
	if len(body) < minValidHTMLLength {
		return true
	}
	lowered := strings.ToLower(body)
	for _, sig := range blockSignatures {
		if strings.Contains(lowered, sig) {
			return true
		}
	}
	return false
}

// IsNoResultsBody reports whether the list page affirmatively states
// zero matches.
func IsNoResultsBody(body string) bool {
	for _, sig := range noResultsSignatures {
		if strings.Contains(body, sig) {
			return true
		}
	}
	return false
}

// BlockedStatus reports whether the HTTP status alone means blocked.
func BlockedStatus(status int) bool {
	return status == 403 || status == 429
}
