package compare

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/taskpilot/pkg/types"
)

// DefaultMaxCards is how many result cards an extractor reads by default.
// It is also the upper bound.
const DefaultMaxCards = 10

// Extractor reads at most limit items from a target's search results page.
// Relative links are resolved against base.
type Extractor func(doc *goquery.Document, base *url.URL, limit int) []types.PriceItem

var extractors = map[string]Extractor{
	"amazon":   extractAmazon,
	"flipkart": extractFlipkart,
	"meesho":   extractMeesho,
}

// LookupExtractor returns the built-in extractor for a target id.
func LookupExtractor(id string) (Extractor, bool) {
	e, ok := extractors[strings.ToLower(id)]
	return e, ok
}

var moneyRe = regexp.MustCompile(`\d+[\d,.]*`)

// parseMoney returns the first number in text, ignoring thousands separators.
func parseMoney(text string) *float64 {
	m := moneyRe.FindString(strings.ReplaceAll(text, "?", ""))
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimRight(strings.ReplaceAll(m, ",", ""), "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.First().Text()), " ")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	u, err := base.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}

// cards applies fn to the first limit matches of selector, keeping the
// items that have a title.
func cards(doc *goquery.Document, selector string, limit int, fn func(*goquery.Selection) types.PriceItem) []types.PriceItem {
	items := []types.PriceItem{}
	doc.Find(selector).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= limit {
			return false
		}
		if item := fn(card); item.Title != "" {
			items = append(items, item)
		}
		return true
	})
	return items
}

func extractAmazon(doc *goquery.Document, base *url.URL, limit int) []types.PriceItem {
	return cards(doc, "div[data-component-type='s-search-result']", limit, func(card *goquery.Selection) types.PriceItem {
		title := text(card.Find("h2 a span"))
		if title == "" {
			title = text(card.Find("h2 span"))
		}
		href, _ := card.Find("h2 a").First().Attr("href")
		if href == "" {
			href, _ = card.Find("a.a-link-normal").First().Attr("href")
		}
		whole := text(card.Find("span.a-price-whole"))
		fraction := text(card.Find("span.a-price-fraction"))
		return types.PriceItem{
			Title: title,
			Price: parseMoney(whole + fraction),
			URL:   resolve(base, href),
		}
	})
}

func extractFlipkart(doc *goquery.Document, base *url.URL, limit int) []types.PriceItem {
	return cards(doc, "div[data-id]", limit, func(card *goquery.Selection) types.PriceItem {
		var title, href string
		if link := card.Find("a[title]").First(); link.Length() > 0 {
			title, _ = link.Attr("title")
			href, _ = link.Attr("href")
		} else {
			title = text(card.Find("div._4rR01T"))
			href, _ = card.Find("a").First().Attr("href")
		}
		return types.PriceItem{
			Title: strings.TrimSpace(title),
			Price: parseMoney(text(card.Find("div._30jeq3"))),
			URL:   resolve(base, href),
		}
	})
}

func extractMeesho(doc *goquery.Document, base *url.URL, limit int) []types.PriceItem {
	return cards(doc, "a[href*='/product/']", limit, func(card *goquery.Selection) types.PriceItem {
		href, _ := card.Attr("href")
		var prices []string
		card.Find("span").Each(func(_ int, s *goquery.Selection) {
			prices = append(prices, strings.TrimSpace(s.Text()))
		})
		return types.PriceItem{
			Title: text(card.Find("p")),
			Price: parseMoney(strings.Join(prices, " ")),
			URL:   resolve(base, href),
		}
	})
}
