package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/decision-research/internal/model"
)

// version is set by the linker at build time.
var version = "dev"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose research as an MCP tool over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(cfg, "mcp", false)
		if err != nil {
			return err
		}

		zap.L().Info("mcp: serving on stdio")
		if err := newMCPServer(env.Pipeline, cfg.Pipeline.IncludeDebug).Run(ctx, &mcp.StdioTransport{}); err != nil {
			return eris.Wrap(err, "mcp: run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// ResearchInput is the research_decision tool input.
type ResearchInput struct {
	Goal           string `json:"goal" jsonschema:"what the decision should achieve"`
	Decision       string `json:"decision" jsonschema:"the decision under consideration"`
	OutputLanguage string `json:"outputLanguage,omitempty" jsonschema:"language tag for the recommendation text: en or nl (default en)"`
	Constraints    string `json:"constraints,omitempty" jsonschema:"optional constraints on the decision"`
	Debug          bool   `json:"debug,omitempty" jsonschema:"include per-pass query traces"`
}

// ResearchSource is one merged source in the tool output.
type ResearchSource struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Snippet       string  `json:"snippet,omitempty"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"publishedDate,omitempty"`
}

// ResearchPass is the trace of one search pass, present only in debug mode.
type ResearchPass struct {
	Pass          string   `json:"pass"`
	Queries       []string `json:"queries"`
	SourceCount   int      `json:"sourceCount"`
	UniqueDomains int      `json:"uniqueDomains"`
}

// ResearchOutput is the research_decision tool output.
type ResearchOutput struct {
	DecisionStatus string           `json:"decisionStatus"`
	Recommendation string           `json:"recommendation"`
	Confidence     float64          `json:"confidence"`
	Rationale      string           `json:"rationale"`
	Sources        []ResearchSource `json:"sources"`
	Passes         []ResearchPass   `json:"passes,omitempty"`
}

func newMCPServer(r researcher, includeDebug bool) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "decision-research",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "research_decision",
		Description: "Run a three-pass web search campaign for a decision and return either a recommendation backed by the top sources or a safe default when evidence is insufficient.",
	}, researchTool(r, includeDebug))

	return server
}

func researchTool(r researcher, includeDebug bool) func(context.Context, *mcp.CallToolRequest, ResearchInput) (*mcp.CallToolResult, ResearchOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResearchInput) (*mcp.CallToolResult, ResearchOutput, error) {
		in := model.PipelineInput{
			Goal:           input.Goal,
			Decision:       input.Decision,
			OutputLanguage: model.ResolveLanguage(input.OutputLanguage),
			Constraints:    input.Constraints,
		}
		if err := in.Validate(); err != nil {
			return nil, ResearchOutput{}, err
		}

		out, err := r.Run(ctx, in, input.Debug || includeDebug)
		if err != nil {
			return nil, ResearchOutput{}, eris.Wrap(err, "research_decision")
		}
		return nil, toResearchOutput(out), nil
	}
}

func toResearchOutput(out *model.PipelineOutput) ResearchOutput {
	res := ResearchOutput{
		DecisionStatus: string(out.DecisionStatus),
		Recommendation: out.Recommendation,
		Confidence:     out.Confidence.Overall,
		Rationale:      out.Confidence.Rationale,
		Sources:        make([]ResearchSource, 0, len(out.Sources)),
	}
	for _, s := range out.Sources {
		rs := ResearchSource{URL: s.URL, Title: s.Title, Snippet: s.Snippet}
		if s.Score != nil {
			rs.Score = *s.Score
		}
		if s.PublishedDate != nil {
			rs.PublishedDate = s.PublishedDate.Format("2006-01-02")
		}
		res.Sources = append(res.Sources, rs)
	}
	if out.Debug != nil {
		for _, p := range out.Debug.Passes {
			rp := ResearchPass{
				Pass:          string(p.Pass),
				Queries:       make([]string, 0, len(p.Queries)),
				SourceCount:   p.SourceCount,
				UniqueDomains: p.UniqueDomains,
			}
			for _, q := range p.Queries {
				rp.Queries = append(rp.Queries, q.Query)
			}
			res.Passes = append(res.Passes, rp)
		}
	}
	return res
}
