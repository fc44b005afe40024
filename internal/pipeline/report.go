package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/decision-research/internal/model"
)

const recommendationSourceLimit = 5

type templates struct {
	recommendHeader string
	recommendBody   string
	untitled        string
	safeHeader      string
	safeSteps       []string
}

// Fixed bilingual texts. Prose is selected, never machine translated.
var phrasebook = map[model.Language]templates{
	model.LanguageEnglish: {
		recommendHeader: "Evidence-based recommendation for %q",
		recommendBody:   "Weigh the decision against the goal (%s) using the strongest sources found:",
		untitled:        "Untitled source",
		safeHeader:      "Not enough evidence to recommend on %q yet. Safe default:",
		safeSteps: []string{
			"Make the decision criteria explicit (cost, risk, timeline, reversibility) before choosing.",
			"Collect 3-5 more independent sources from distinct domains.",
			"Narrow the scope of the question to one concrete, testable option.",
		},
	},
	model.LanguageDutch: {
		recommendHeader: "Onderbouwd advies voor %q",
		recommendBody:   "Weeg de beslissing af tegen het doel (%s) op basis van de sterkste gevonden bronnen:",
		untitled:        "Bron zonder titel",
		safeHeader:      "Nog onvoldoende bewijs voor een advies over %q. Veilige standaard:",
		safeSteps: []string{
			"Maak de beslissingscriteria expliciet (kosten, risico, planning, omkeerbaarheid) voordat u kiest.",
			"Verzamel 3-5 extra onafhankelijke bronnen van verschillende domeinen.",
			"Versmal de vraag tot een concrete, toetsbare optie.",
		},
	},
}

func phrases(lang model.Language) templates {
	if t, ok := phrasebook[lang]; ok {
		return t
	}
	return phrasebook[model.LanguageEnglish]
}

// FormatRecommendation renders the evidence-backed recommendation from the
// first five merged sources.
func FormatRecommendation(in model.PipelineInput, sources []model.Source) string {
	t := phrases(in.OutputLanguage)
	var b strings.Builder

	fmt.Fprintf(&b, t.recommendHeader, NormalizeQuery(in.Decision))
	b.WriteString("\n")
	fmt.Fprintf(&b, t.recommendBody, NormalizeQuery(in.Goal))
	b.WriteString("\n")

	for i, s := range sources[:min(recommendationSourceLimit, len(sources))] {
		title := NormalizeQuery(s.Title)
		if title == "" {
			title = t.untitled
		}
		if d, ok := Domain(s.URL); ok {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, title, d)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSafeDefault renders the conservative response used when evidence is
// insufficient.
func FormatSafeDefault(in model.PipelineInput) string {
	t := phrases(in.OutputLanguage)
	var b strings.Builder

	fmt.Fprintf(&b, t.safeHeader, NormalizeQuery(in.Decision))
	for i, step := range t.safeSteps {
		fmt.Fprintf(&b, "\n%d. %s", i+1, step)
	}
	return b.String()
}
