// Package report drafts the narrative report layered on top of a pipeline
// result. The model's reply must be a JSON object whose citations point into
// the numbered source list the pipeline handed over.
package report

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-research/internal/config"
	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/resilience"
	"github.com/sells-group/decision-research/pkg/anthropic"
)

// ErrInvalidReport is returned when the model reply does not match the report
// contract.
var ErrInvalidReport = eris.New("invalid report")

// Citation is a resolved reference to one numbered source.
type Citation struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
}

// Report is the validated narrative.
type Report struct {
	Summary        string               `json:"summary"`
	Recommendation string               `json:"recommendation"`
	Risks          []string             `json:"risks"`
	NextSteps      []string             `json:"next_steps"`
	Citations      []Citation           `json:"citations"`
	Language       model.Language       `json:"language"`
	Usage          anthropic.TokenUsage `json:"-"`
	Model          string               `json:"-"`
}

// Generator drafts reports through the Anthropic API.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	guard     *resilience.Guard
}

// Option configures a Generator.
type Option func(*Generator)

// WithGuard retries transient API failures through g.
func WithGuard(g *resilience.Guard) Option {
	return func(gen *Generator) { gen.guard = g }
}

// NewGenerator creates a Generator for the configured model.
func NewGenerator(client anthropic.Client, cfg config.AnthropicConfig, opts ...Option) *Generator {
	g := &Generator{
		client:    client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
	if g.maxTokens <= 0 {
		g.maxTokens = 2048
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Draft asks the model for a report on out and validates the reply.
func (g *Generator) Draft(ctx context.Context, in model.PipelineInput, out *model.PipelineOutput) (*Report, error) {
	if out == nil {
		return nil, eris.New("report: nil pipeline output")
	}
	lang := model.ResolveLanguage(string(in.OutputLanguage))

	req := anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(in, out, lang)},
		},
	}

	resp, err := resilience.Call(ctx, g.guard, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		resp, err := g.client.CreateMessage(ctx, req)
		if err != nil {
			return nil, resilience.ClassifyHTTP(err, anthropic.StatusCode(err))
		}
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "report: draft")
	}

	rep, err := parse(resp.Text(), out.Sources)
	if err != nil {
		zap.L().Warn("report: rejected model reply",
			zap.String("stop_reason", resp.StopReason),
			zap.Error(err),
		)
		return nil, err
	}
	rep.Language = lang
	rep.Usage = resp.Usage
	rep.Model = g.model
	return rep, nil
}

type rawReport struct {
	Summary        string   `json:"summary"`
	Recommendation string   `json:"recommendation"`
	Risks          []string `json:"risks"`
	NextSteps      []string `json:"next_steps"`
	Citations      []int    `json:"citations"`
}

var requiredKeys = []string{"summary", "recommendation", "risks", "next_steps", "citations"}

// parse extracts the JSON object from text and checks it against sources.
func parse(text string, sources []model.Source) (*Report, error) {
	cleaned := cleanJSON(text)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &keys); err != nil {
		return nil, eris.Wrap(ErrInvalidReport, "report: reply is not a JSON object")
	}
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(ErrInvalidReport, "report: missing %s", strings.Join(missing, ", "))
	}

	var raw rawReport
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrapf(ErrInvalidReport, "report: decode reply: %v", err)
	}
	if strings.TrimSpace(raw.Summary) == "" || strings.TrimSpace(raw.Recommendation) == "" {
		return nil, eris.Wrap(ErrInvalidReport, "report: empty summary or recommendation")
	}

	rep := &Report{
		Summary:        strings.TrimSpace(raw.Summary),
		Recommendation: strings.TrimSpace(raw.Recommendation),
		Risks:          nonNil(raw.Risks),
		NextSteps:      nonNil(raw.NextSteps),
		Citations:      make([]Citation, 0, len(raw.Citations)),
	}
	seen := make(map[int]bool, len(raw.Citations))
	for _, n := range raw.Citations {
		if n < 1 || n > len(sources) {
			return nil, eris.Wrapf(ErrInvalidReport, "report: citation %d outside 1..%d", n, len(sources))
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		src := sources[n-1]
		rep.Citations = append(rep.Citations, Citation{Number: n, URL: src.URL, Title: src.Title})
	}
	return rep, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// cleanJSON strips markdown fences and any prose around the outermost object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
