package compare

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is one site a comparison fans out to.
type Target struct {
	// ID is the stable key, also used to look up the extractor.
	ID string

	// Name is the display label used on frames and results.
	Name string

	// SearchURL contains a {query} placeholder.
	SearchURL string

	Extract Extractor
}

// SearchURLFor returns the target's search URL for query.
func (t Target) SearchURLFor(query string) string {
	return strings.ReplaceAll(t.SearchURL, "{query}", EscapeQuery(query))
}

func (t Target) base() *url.URL {
	u, err := url.Parse(t.SearchURL)
	if err != nil {
		return nil
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}
}

// DefaultTargets returns the built-in shopping targets.
func DefaultTargets() []Target {
	return []Target{
		{ID: "amazon", Name: "Amazon", SearchURL: "https://www.amazon.in/s?k={query}", Extract: extractAmazon},
		{ID: "flipkart", Name: "Flipkart", SearchURL: "https://www.flipkart.com/search?q={query}", Extract: extractFlipkart},
		{ID: "meesho", Name: "Meesho", SearchURL: "https://www.meesho.com/search?q={query}", Extract: extractMeesho},
	}
}

// NewTarget builds a target with the built-in extractor for id.
func NewTarget(id, name, searchURL string) (Target, error) {
	extract, ok := LookupExtractor(id)
	if !ok {
		return Target{}, fmt.Errorf("no extractor for target %q", id)
	}
	if !strings.Contains(searchURL, "{query}") {
		return Target{}, fmt.Errorf("search url for target %q has no {query} placeholder", id)
	}
	if name == "" {
		name = id
	}
	return Target{ID: id, Name: name, SearchURL: searchURL, Extract: extract}, nil
}
