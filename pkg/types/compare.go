package types

// PriceItem is one structured listing extracted from a target's search page.
type PriceItem struct {
	Title string   `json:"title"`
	Price *float64 `json:"price"`
	URL   string   `json:"url"`
}

// PlatformResult holds the surviving items of one target. Error is set when
// the branch failed; Items is then empty or partial.
type PlatformResult struct {
	Target string      `json:"target"`
	Name   string      `json:"platform"`
	Items  []PriceItem `json:"items"`
	Error  string      `json:"error,omitempty"`
}

// CompareResults aggregates every target branch of one comparison run.
type CompareResults struct {
	Query    string           `json:"query"`
	MaxPrice *float64         `json:"max_price"`
	Results  []PlatformResult `json:"results"`
}
