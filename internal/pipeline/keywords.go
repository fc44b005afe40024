package pipeline

import (
	"sort"
	"strings"
	"unicode"
)

const minKeywordLength = 4

// stopWords only lists words of minKeywordLength or more; shorter tokens are
// discarded before the lookup.
var stopWords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "against": {}, "also": {},
	"among": {}, "been": {}, "before": {}, "being": {}, "below": {}, "between": {},
	"both": {}, "could": {}, "does": {}, "doing": {}, "down": {}, "during": {},
	"each": {}, "even": {}, "every": {}, "from": {}, "further": {}, "have": {},
	"having": {}, "here": {}, "into": {}, "just": {}, "like": {}, "make": {},
	"many": {}, "more": {}, "most": {}, "much": {}, "must": {}, "only": {},
	"other": {}, "over": {}, "same": {}, "should": {}, "some": {}, "such": {},
	"than": {}, "that": {}, "their": {}, "them": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "those": {}, "through": {}, "under": {},
	"until": {}, "very": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "will": {}, "with": {}, "within": {}, "without": {},
	"would": {}, "your": {}, "yours": {}, "because": {}, "across": {}, "another": {},
	"https": {}, "http": {}, "www": {},
}

// ExtractKeywords returns up to max terms from text ordered by descending
// frequency, ties broken lexicographically.
func ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, tok := range strings.Fields(keywordClean(text)) {
		if len(tok) < minKeywordLength {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		counts[tok]++
	}
	if len(counts) == 0 {
		return []string{}
	}

	terms := make([]string, 0, len(counts))
	for tok := range counts {
		terms = append(terms, tok)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > max {
		terms = terms[:max]
	}
	return terms
}

// keywordClean lowercases text and keeps only [a-z0-9], hyphens and whitespace.
func keywordClean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return b.String()
}
