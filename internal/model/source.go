package model

import "time"

// Source is one retrieved document reference. URL is its identity key.
type Source struct {
	URL            string             `json:"url"`
	Title          string             `json:"title"`
	Snippet        string             `json:"snippet"`
	Content        string             `json:"content"`
	RawContent     string             `json:"raw_content,omitempty"`
	PublishedDate  *time.Time         `json:"published_date,omitempty"`
	Provider       string             `json:"provider"`
	Score          *float64           `json:"score,omitempty"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown,omitempty"`
}

// Provider tags for Source.Provider.
const (
	ProviderTavily     = "tavily"
	ProviderJina       = "jina"
	ProviderPerplexity = "perplexity"
)

// URLs returns the URL of each source in order.
func URLs(sources []Source) []string {
	urls := make([]string, len(sources))
	for i, s := range sources {
		urls[i] = s.URL
	}
	return urls
}
