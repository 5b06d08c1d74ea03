package aggregator

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ImportTeam/extensionBack/internal/engine"
	"github.com/ImportTeam/extensionBack/internal/extract"
)

var pcodeRE = regexp.MustCompile(`pcode=(\d+)`)

// HasListFingerprint reports whether the document carries the search
// result structure at all.
func HasListFingerprint(doc *goquery.Document) bool {
	return doc.Find(".prod_item").Length() > 0 ||
		doc.Find(`a[href*="pcode="]`).Length() > 0
}

// HasDetailFingerprint reports whether the document carries the
// product detail structure.
func HasDetailFingerprint(doc *goquery.Document) bool {
	return doc.Find("#lowPriceCompanyArea").Length() > 0 ||
		doc.Find(".prod_tit").Length() > 0
}

type scoredCode struct {
	code  string
	score float64
}

// ParseListCandidates extracts product codes from the list page,
// scored against the query, best first. Zero-score anchors are
// dropped.
func ParseListCandidates(doc *goquery.Document, query string, max int) []string {
	links := doc.Find(".prod_item .prod_name a")
	if links.Length() == 0 {
		links = doc.Find(`a[href*="pcode="]`)
	}

	var scored []scoredCode
	seen := map[string]struct{}{}
	links.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= max*3 {
			return false
		}
		href := extract.Attr(sel, "href")
		m := pcodeRE.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		code := m[1]
		if _, dup := seen[code]; dup {
			return true
		}
		seen[code] = struct{}{}
		title := extract.Text(sel, 300)
		if s := MatchScore(query, title); s > 0 {
			scored = append(scored, scoredCode{code: code, score: s})
		}
		return true
	})

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > max {
		scored = scored[:max]
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.code
	}
	return out
}

const unknownMall = "알 수 없음"

// ParseDetailOffers extracts the product name and up to maxOffers
// seller offers from the detail page. Offers with unusable prices or
// links are dropped, never fatal.
func ParseDetailOffers(doc *goquery.Document, pageURL string, fallbackName string, maxOffers int) (string, []engine.Offer) {
	name := extract.Text(doc.Find(".prod_tit"), 300)
	if name == "" {
		name = fallbackName
	}

	base, _ := url.Parse(pageURL)

	var offers []engine.Offer
	doc.Find("#lowPriceCompanyArea .list__mall-price .list-item").
		EachWithBreak(func(i int, item *goquery.Selection) bool {
			if len(offers) >= maxOffers {
				return false
			}
			price, ok := extract.Price(extract.Text(item.Find(".sell-price .text__num"), 40))
			if !ok || price <= 0 {
				return true
			}
			mall := extract.Attr(item.Find(".box__logo img"), "alt")
			if mall == "" {
				mall = unknownMall
			}
			delivery := extract.Text(item.Find(".box__delivery"), 120)
			link := extract.URL(extract.Attr(item.Find("a.link__full-cover"), "href"), base)
			if link == "" {
				link = pageURL
			}
			offers = append(offers, engine.Offer{
				Rank:         len(offers) + 1,
				Mall:         mall,
				Price:        price,
				FreeShipping: strings.Contains(delivery, "무료"),
				Delivery:     delivery,
				Link:         link,
			})
			return true
		})

	return name, offers
}
