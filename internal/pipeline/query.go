package pipeline

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/sells-group/decision-research/internal/model"
)

// DefaultMaxQueryLength is the hard query ceiling of the search provider.
const DefaultMaxQueryLength = 400

const (
	elisionMarker = "..."
	headShare     = 0.72
	hashPrefix    = "fnv1a32:"
)

// NormalizeQuery strips NUL characters, collapses whitespace runs to a single
// space and trims both ends.
func NormalizeQuery(raw string) string {
	raw = strings.ReplaceAll(raw, "\x00", "")
	return strings.Join(strings.Fields(raw), " ")
}

// HashQuery returns the FNV-1a 32-bit hash of the normalized query.
func HashQuery(q string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(NormalizeQuery(q)))
	return fmt.Sprintf("%s%08x", hashPrefix, h.Sum32())
}

// TruncateQuery normalizes q and, when it exceeds maxLen runes, elides the
// middle: 72% of the remaining budget goes to the head and the rest to the
// tail. The hash always covers the untruncated normalized query. A maxLen of
// zero or less selects DefaultMaxQueryLength.
func TruncateQuery(q string, maxLen int) model.QueryTrace {
	if maxLen <= 0 {
		maxLen = DefaultMaxQueryLength
	}
	normalized := NormalizeQuery(q)
	runes := []rune(normalized)
	trace := model.QueryTrace{
		Query:          normalized,
		OriginalLength: len(runes),
		UsedLength:     len(runes),
		Hash:           HashQuery(normalized),
	}
	if len(runes) <= maxLen {
		return trace
	}

	marker := []rune(elisionMarker)
	var out []rune
	if maxLen <= len(marker) {
		out = runes[:maxLen]
	} else {
		budget := maxLen - len(marker)
		headLen := int(float64(budget) * headShare)
		tailLen := budget - headLen

		head := strings.TrimRightFunc(string(runes[:headLen]), unicode.IsSpace)
		tail := strings.TrimLeftFunc(string(runes[len(runes)-tailLen:]), unicode.IsSpace)

		out = []rune(head + elisionMarker + tail)
		if len(out) > maxLen {
			out = out[:maxLen]
		}
	}

	trace.Query = string(out)
	trace.UsedLength = len(out)
	trace.Truncated = true
	return trace
}
