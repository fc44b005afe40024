package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/decision-research/internal/model"
)

const (
	expandSourceLimit    = 6
	expandKeywordLimit   = 10
	authorityDomainLimit = 8
	authoritySiteQueries = 3
)

// AuthorityDomains is the priority list targeted with site: queries in the
// authority pass.
var AuthorityDomains = []string{
	"wikipedia.org",
	"who.int",
	"nih.gov",
	"europa.eu",
	"oecd.org",
	"worldbank.org",
	"nature.com",
	"sciencedirect.com",
	"gov.uk",
	"rijksoverheid.nl",
}

// expandSlices are the disjoint keyword windows and suffixes of the expand pass.
var expandSlices = []struct {
	from, to int
	suffix   string
}{
	{0, 3, "comparative analysis"},
	{3, 6, "latest evidence"},
	{6, 10, "failure modes"},
}

// SeedQueries frames the decision three ways: in context of the goal, by
// criteria and by risk.
func SeedQueries(in model.PipelineInput) []string {
	return nonEmpty(
		fmt.Sprintf("%s %s", in.Goal, in.Decision),
		fmt.Sprintf("%s benchmarks and decision criteria", in.Decision),
		fmt.Sprintf("%s risks edge cases trade-offs", in.Decision),
	)
}

// ExpandQueries combines the decision with keywords mined from the titles and
// snippets of the first seed sources.
func ExpandQueries(in model.PipelineInput, seed []model.Source) []string {
	if len(seed) > expandSourceLimit {
		seed = seed[:expandSourceLimit]
	}
	parts := make([]string, 0, len(seed))
	for _, s := range seed {
		parts = append(parts, s.Title+" "+s.Snippet)
	}
	keywords := ExtractKeywords(strings.Join(parts, " "), expandKeywordLimit)

	queries := make([]string, 0, len(expandSlices))
	for _, sl := range expandSlices {
		queries = append(queries, fmt.Sprintf("%s %s %s", in.Decision, strings.Join(window(keywords, sl.from, sl.to), " "), sl.suffix))
	}
	return nonEmpty(queries...)
}

// AuthorityQueries hints at the domains already seen and targets the first
// entries of AuthorityDomains directly.
func AuthorityQueries(in model.PipelineInput, seen []model.Source) []string {
	base := fmt.Sprintf("%s authoritative guidance", in.Decision)
	if domains := DomainsInOrder(seen, authorityDomainLimit); len(domains) > 0 {
		base += fmt.Sprintf(" (sources like: %s)", strings.Join(domains, ", "))
	}

	queries := []string{base}
	for _, d := range AuthorityDomains[:min(authoritySiteQueries, len(AuthorityDomains))] {
		queries = append(queries, fmt.Sprintf("site:%s %s", d, in.Decision))
	}
	return nonEmpty(queries...)
}

func window(s []string, from, to int) []string {
	if from >= len(s) {
		return nil
	}
	return s[from:min(to, len(s))]
}

func nonEmpty(queries ...string) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		if n := NormalizeQuery(q); n != "" {
			out = append(out, n)
		}
	}
	return out
}
