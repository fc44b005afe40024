package pipeline

import (
	"net/url"
	"strings"

	"github.com/sells-group/decision-research/internal/model"
)

// DedupeByURL keeps the first source seen for each exact URL, preserving order.
// Later duplicates are dropped without merging any of their fields.
func DedupeByURL(sources []model.Source) []model.Source {
	seen := make(map[string]struct{}, len(sources))
	out := make([]model.Source, 0, len(sources))
	for _, s := range sources {
		if _, ok := seen[s.URL]; ok {
			continue
		}
		seen[s.URL] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Domain returns the lowercase hostname of rawURL without a leading "www.".
// It reports false for URLs that do not parse or carry no host.
func Domain(rawURL string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", false
	}
	return host, true
}

// UniqueDomainCount counts distinct domains across urls. Every gate input goes
// through this function so thresholds stay comparable.
func UniqueDomainCount(urls []string) int {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if d, ok := Domain(u); ok {
			set[d] = struct{}{}
		}
	}
	return len(set)
}

// DomainsInOrder returns distinct domains in order of first appearance,
// capped at limit (no cap when limit <= 0).
func DomainsInOrder(sources []model.Source, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sources {
		d, ok := Domain(s.URL)
		if !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
