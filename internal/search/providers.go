package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/pkg/jina"
	"github.com/sells-group/decision-research/pkg/perplexity"
	"github.com/sells-group/decision-research/pkg/tavily"
)

// Tavily searches through the Tavily API.
type Tavily struct {
	Client     tavily.Client
	MaxResults int
	RawContent bool
}

// Search implements pipeline.Searcher. The Tavily excerpt becomes the snippet
// and the extracted page text, when requested, the content. A leading site:
// operator becomes include_domains.
func (t *Tavily) Search(ctx context.Context, query string) ([]model.Source, error) {
	req := tavily.SearchRequest{
		Query:             query,
		MaxResults:        t.MaxResults,
		IncludeRawContent: t.RawContent,
	}
	if domain, rest, ok := siteTarget(query); ok {
		req.Query = rest
		req.IncludeDomains = []string{domain}
	}
	resp, err := t.Client.Search(ctx, req)
	if err != nil {
		return nil, eris.Wrap(classify(err), "search: tavily")
	}

	out := make([]model.Source, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, model.Source{
			URL:           r.URL,
			Title:         r.Title,
			Snippet:       r.Content,
			Content:       r.RawContent,
			RawContent:    r.RawContent,
			PublishedDate: parseDate(r.PublishedDate),
			Provider:      model.ProviderTavily,
		})
	}
	return out, nil
}

// Jina searches through Jina AI Search.
type Jina struct {
	Client     jina.Client
	MaxResults int
}

// Search implements pipeline.Searcher. Jina's description is the snippet and
// the page body the content. A leading site: operator becomes the site filter.
func (j *Jina) Search(ctx context.Context, query string) ([]model.Source, error) {
	var opts []jina.SearchOption
	if domain, rest, ok := siteTarget(query); ok {
		query = rest
		opts = append(opts, jina.WithSiteFilter(domain))
	}
	if j.MaxResults > 0 {
		opts = append(opts, jina.WithCount(j.MaxResults))
	}
	resp, err := j.Client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrap(classify(err), "search: jina")
	}

	out := make([]model.Source, 0, len(resp.Data))
	for _, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		out = append(out, model.Source{
			URL:           r.URL,
			Title:         r.Title,
			Snippet:       r.Description,
			Content:       r.Content,
			PublishedDate: parseDate(r.Date),
			Provider:      model.ProviderJina,
		})
	}
	return out, nil
}

const perplexitySystemPrompt = "You are a research assistant. Find sources that bear on the query and answer briefly, citing them."

// Perplexity uses Sonar answers as a search provider: the pages the answer was
// grounded on become the sources.
type Perplexity struct {
	Client     perplexity.Client
	MaxResults int
}

// Search implements pipeline.Searcher. Citations without a matching search
// result are kept as URL-only sources. A leading site: operator becomes the
// search domain filter.
func (p *Perplexity) Search(ctx context.Context, query string) ([]model.Source, error) {
	req := perplexity.ChatCompletionRequest{}
	if domain, rest, ok := siteTarget(query); ok {
		query = rest
		req.SearchDomainFilter = []string{domain}
	}
	req.Messages = []perplexity.Message{
		{Role: "system", Content: perplexitySystemPrompt},
		{Role: "user", Content: query},
	}
	resp, err := p.Client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, eris.Wrap(classify(err), "search: perplexity")
	}

	out := make([]model.Source, 0, len(resp.SearchResults)+len(resp.Citations))
	seen := make(map[string]struct{}, cap(out))
	for _, r := range resp.SearchResults {
		if _, dup := seen[r.URL]; dup || r.URL == "" {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, model.Source{
			URL:           r.URL,
			Title:         r.Title,
			Snippet:       r.Snippet,
			PublishedDate: parseDate(r.Date),
			Provider:      model.ProviderPerplexity,
		})
	}
	for _, u := range resp.Citations {
		if _, dup := seen[u]; dup || u == "" {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, model.Source{URL: u, Provider: model.ProviderPerplexity})
	}

	if p.MaxResults > 0 && len(out) > p.MaxResults {
		out = out[:p.MaxResults]
	}
	return out, nil
}
