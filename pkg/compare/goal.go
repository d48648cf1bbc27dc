package compare

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/entrhq/taskpilot/pkg/types"
)

var (
	priceCueRe   = regexp.MustCompile(`(?i)\b(under|below)\b`)
	priceBoundRe = regexp.MustCompile(`(?i)\b(?:under|below)\s+(?:rs\.?|inr|₹)?\s*([\d,]+(?:\.\d+)?)`)
	compareCueRe = regexp.MustCompile(`(?i)compare`)
	tokenTrim    = ".,;:!?()\"'"
)

// stopwords are dropped from the goal when building the search query.
var stopwords = map[string]bool{
	"compare": true,
	"price":   true,
	"prices":  true,
	"on":      true,
	"of":      true,
	"and":     true,
	"find":    true,
	"for":     true,
	"the":     true,
	"vs":      true,
	"across":  true,
	"between": true,
}

// IsCompareGoal reports whether goal asks for a multi-target comparison: a
// price cue together with a target name, or an explicit compare cue.
func IsCompareGoal(goal string, targets []Target) bool {
	if compareCueRe.MatchString(goal) {
		return true
	}
	return priceCueRe.MatchString(goal) && mentionsTarget(goal, targets)
}

func mentionsTarget(goal string, targets []Target) bool {
	lowered := strings.ToLower(goal)
	for _, t := range targets {
		if strings.Contains(lowered, strings.ToLower(t.ID)) || strings.Contains(lowered, strings.ToLower(t.Name)) {
			return true
		}
	}
	return false
}

// ParseGoal splits goal into a search query and an optional inclusive upper
// price bound taken from "under N" or "below N".
func ParseGoal(goal string, targets []Target) (string, *float64) {
	var maxPrice *float64
	if m := priceBoundRe.FindStringSubmatch(goal); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			maxPrice = &v
		}
	}
	rest := priceBoundRe.ReplaceAllString(goal, " ")

	names := map[string]bool{}
	for _, t := range targets {
		names[strings.ToLower(t.ID)] = true
		names[strings.ToLower(t.Name)] = true
	}

	var words []string
	for _, field := range strings.Fields(rest) {
		word := strings.Trim(field, tokenTrim)
		lowered := strings.ToLower(word)
		if word == "" || stopwords[lowered] || names[lowered] {
			continue
		}
		words = append(words, word)
	}
	return strings.Join(words, " "), maxPrice
}

// EscapeQuery prepares query for substitution into a search URL: quotes and
// '#' are removed, '&' becomes "and", and the result is query-escaped.
func EscapeQuery(query string) string {
	cleaned := strings.NewReplacer(`"`, "", "'", "", "#", "", "&", "and").Replace(query)
	return url.QueryEscape(strings.TrimSpace(cleaned))
}

// FilterByPrice keeps items without a price and items priced at or below
// maxPrice. A nil bound keeps everything.
func FilterByPrice(items []types.PriceItem, maxPrice *float64) []types.PriceItem {
	if maxPrice == nil {
		return items
	}
	kept := make([]types.PriceItem, 0, len(items))
	for _, item := range items {
		if item.Price == nil || *item.Price <= *maxPrice {
			kept = append(kept, item)
		}
	}
	return kept
}
