package engine

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxPrice bounds every price the engine will accept or emit, in won.
const MaxPrice = 1_000_000_000

// Query is the immutable input bundle built by the HTTP adapter.
type Query struct {
	ProductName  string
	CurrentPrice *int64
	CurrentURL   string
	ProductCode  string
}

// forbidden substrings in product names; the HTTP adapter runs
// Validate before a query reaches the orchestrator.
var forbiddenTokens = []string{"<", ">", "script", "javascript"}

// Validate enforces the input contract: 1..500 chars, no markup
// tokens, price in range, URL scheme http/https when present.
func (q Query) Validate() error {
	name := strings.TrimSpace(q.ProductName)
	if name == "" {
		return fmt.Errorf("product_name is required")
	}
	if len([]rune(q.ProductName)) > 500 {
		return fmt.Errorf("product_name exceeds 500 characters")
	}
	lowered := strings.ToLower(q.ProductName)
	for _, tok := range forbiddenTokens {
		if strings.Contains(lowered, tok) {
			return fmt.Errorf("product_name contains a forbidden token")
		}
	}
	if q.CurrentPrice != nil && (*q.CurrentPrice < 0 || *q.CurrentPrice > MaxPrice) {
		return fmt.Errorf("current_price out of range")
	}
	if q.CurrentURL != "" {
		u, err := url.Parse(q.CurrentURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("current_url must be http or https")
		}
	}
	return nil
}

// Category is the coarse product class detected by the normalizer.
type Category string

// Known categories.
const (
	CategoryPhone     Category = "phone"
	CategoryLaptop    Category = "laptop"
	CategoryAudio     Category = "audio"
	CategoryFood      Category = "food"
	CategoryAppliance Category = "appliance"
	CategoryOther     Category = "other"
)

// NormalizedQuery is the normalizer's output: a primary query plus
// ordered fallback candidates. The primary is always candidate zero;
// candidates at index >= Level2Start are meaning-reducing and must
// pass the validation gate before their results are accepted.
type NormalizedQuery struct {
	Primary    string
	Candidates []string
	Category   Category
	Brand      string
	Model      string

	HardMapped bool
	// Level2Start is the index of the first fallback candidate;
	// len(Candidates) when no fallbacks were emitted.
	Level2Start int
	// Broad marks a short generic query that gets the expanded
	// FastPath budget and no SlowPath.
	Broad bool
}

// NeedsGate reports whether the candidate at index i requires the
// validation gate.
func (n NormalizedQuery) NeedsGate(i int) bool {
	return i >= n.Level2Start
}
