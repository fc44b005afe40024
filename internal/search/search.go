// Package search adapts web search providers to pipeline.Searcher and guards
// them with rate limiting, retries and a circuit breaker.
package search

import (
	"errors"
	"strings"
	"time"

	"github.com/sells-group/decision-research/internal/pipeline"
	"github.com/sells-group/decision-research/internal/resilience"
	"github.com/sells-group/decision-research/pkg/jina"
	"github.com/sells-group/decision-research/pkg/perplexity"
	"github.com/sells-group/decision-research/pkg/tavily"
)

var (
	_ pipeline.Searcher = (*Service)(nil)
	_ pipeline.Searcher = (*Guarded)(nil)
	_ pipeline.Searcher = (*Counting)(nil)
	_ pipeline.Searcher = (*Tavily)(nil)
	_ pipeline.Searcher = (*Jina)(nil)
	_ pipeline.Searcher = (*Perplexity)(nil)
)

const sitePrefix = "site:"

// siteTarget splits a leading "site:<domain>" operator off query so it can be
// sent through a provider's native domain filter. ok is false when query has
// no such operator or nothing follows it.
func siteTarget(query string) (domain, rest string, ok bool) {
	if !strings.HasPrefix(query, sitePrefix) {
		return "", query, false
	}
	head, tail, _ := strings.Cut(query[len(sitePrefix):], " ")
	domain = strings.ToLower(strings.TrimSpace(head))
	rest = strings.TrimSpace(tail)
	if domain == "" || rest == "" {
		return "", query, false
	}
	return domain, rest, true
}

// classify marks retryable provider responses as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		te *tavily.APIError
		je *jina.APIError
		pe *perplexity.APIError
	)
	switch {
	case errors.As(err, &te):
		return resilience.ClassifyHTTP(err, te.StatusCode)
	case errors.As(err, &je):
		return resilience.ClassifyHTTP(err, je.StatusCode)
	case errors.As(err, &pe):
		return resilience.ClassifyHTTP(err, pe.StatusCode)
	}
	return err
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"1/2/2006",
}

// parseDate accepts the date spellings providers return. Unparseable input
// yields nil.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
