package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/report"
)

var (
	runInput  model.PipelineInput
	runLang   string
	runDebug  bool
	runReport bool
)

// runResult is what run prints and serve returns.
type runResult struct {
	*model.PipelineOutput
	Report *report.Report `json:"report,omitempty"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Research a single decision and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(cfg, "run", runReport)
		if err != nil {
			return err
		}

		in := runInput
		in.OutputLanguage = model.ResolveLanguage(runLang)
		if err := in.Validate(); err != nil {
			return err
		}

		res, err := research(ctx, env.Pipeline, env.Report, in, runDebug || cfg.Pipeline.IncludeDebug)
		if err != nil {
			return err
		}

		est := env.estimate(res.Report)
		zap.L().Info("run: complete",
			zap.String("status", string(res.DecisionStatus)),
			zap.Int("sources", len(res.Sources)),
			zap.String("provider", est.Provider),
			zap.Int("search_calls", est.SearchQueries),
			zap.Float64("cost_usd", est.TotalUSD),
		)

		return writeJSON(os.Stdout, res)
	},
}

// research runs the pipeline and, when gen is set, drafts a report. A report
// failure is logged and leaves the pipeline result intact.
func research(ctx context.Context, r researcher, gen *report.Generator, in model.PipelineInput, debug bool) (*runResult, error) {
	out, err := r.Run(ctx, in, debug)
	if err != nil {
		return nil, eris.Wrap(err, "research")
	}
	res := &runResult{PipelineOutput: out}
	if gen == nil {
		return res, nil
	}

	rep, err := gen.Draft(ctx, in, out)
	if err != nil {
		zap.L().Warn("run: report drafting failed", zap.Error(err))
		return res, nil
	}
	res.Report = rep
	return res, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	runCmd.Flags().StringVar(&runInput.Goal, "goal", "", "what the decision should achieve (required)")
	runCmd.Flags().StringVar(&runInput.Decision, "decision", "", "the decision under consideration (required)")
	runCmd.Flags().StringVar(&runInput.OutputFormat, "format", "", "requested output format, passed through to the report")
	runCmd.Flags().StringVar(&runLang, "language", "en", "output language tag (en or nl)")
	runCmd.Flags().StringVar(&runInput.Constraints, "constraints", "", "optional constraints")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "include per-pass query traces")
	runCmd.Flags().BoolVar(&runReport, "report", false, "draft an LLM report on top of the result")
	_ = runCmd.MarkFlagRequired("goal")
	_ = runCmd.MarkFlagRequired("decision")
	rootCmd.AddCommand(runCmd)
}
