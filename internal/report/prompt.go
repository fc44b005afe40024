package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/decision-research/internal/model"
)

const systemPrompt = `You write short decision reports from web research.
Reply with one JSON object and nothing else, using exactly these keys:
  "summary": string, two to four sentences
  "recommendation": string
  "risks": array of strings
  "next_steps": array of strings
  "citations": array of source numbers taken from the numbered source list
Only cite numbers that appear in the list. If the evidence status is
INSUFFICIENT_EVIDENCE, do not commit to a choice: recommend how to gather
better evidence instead.`

const snippetLimit = 300

var languageNames = map[model.Language]string{
	model.LanguageEnglish: "English",
	model.LanguageDutch:   "Dutch",
}

func buildPrompt(in model.PipelineInput, out *model.PipelineOutput, lang model.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", in.Goal)
	fmt.Fprintf(&b, "Decision: %s\n", in.Decision)
	if c := strings.TrimSpace(in.Constraints); c != "" {
		fmt.Fprintf(&b, "Constraints: %s\n", c)
	}
	if f := strings.TrimSpace(in.OutputFormat); f != "" {
		fmt.Fprintf(&b, "Output format: %s\n", f)
	}
	fmt.Fprintf(&b, "Write all prose in %s.\n\n", languageNames[lang])

	fmt.Fprintf(&b, "Evidence status: %s (confidence %.2f)\n", out.DecisionStatus, out.Confidence.Overall)
	fmt.Fprintf(&b, "Pipeline recommendation:\n%s\n\n", out.Recommendation)

	b.WriteString("Sources:\n")
	if len(out.Sources) == 0 {
		b.WriteString("(none)\n")
	}
	for i, s := range out.Sources {
		title := s.Title
		if title == "" {
			title = s.URL
		}
		fmt.Fprintf(&b, "[%d] %s <%s>\n", i+1, title, s.URL)
		if snip := clip(strings.TrimSpace(s.Snippet), snippetLimit); snip != "" {
			fmt.Fprintf(&b, "    %s\n", snip)
		}
	}
	return b.String()
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
