package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/report"
)

var (
	batchFile        string
	batchConcurrency int
	batchDebug       bool
	batchReport      bool
)

// batchInput is one entry of the batch YAML file.
type batchInput struct {
	ID             string `yaml:"id"`
	Goal           string `yaml:"goal"`
	Decision       string `yaml:"decision"`
	OutputFormat   string `yaml:"output_format"`
	OutputLanguage string `yaml:"output_language"`
	Constraints    string `yaml:"constraints"`
}

type batchDoc struct {
	Inputs []batchInput `yaml:"inputs"`
}

// batchItem is the per-input outcome, printed in file order.
type batchItem struct {
	ID     string     `json:"id"`
	Result *runResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Research every decision listed in a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}
		env, err := initEnv(cfg, "batch", batchReport)
		if err != nil {
			return err
		}

		inputs, err := loadBatch(batchFile)
		if err != nil {
			return err
		}

		items, err := processBatch(ctx, inputs, cfg.Batch.Concurrency, env.Pipeline, env.Report, batchDebug || cfg.Pipeline.IncludeDebug)
		if err != nil {
			return err
		}

		est := env.estimate(nil)
		zap.L().Info("batch: search cost",
			zap.String("provider", est.Provider),
			zap.Int("search_calls", est.SearchQueries),
			zap.Float64("search_usd", est.SearchUSD),
		)
		return writeJSON(os.Stdout, items)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "YAML file with an inputs list (required)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent runs (default from config)")
	batchCmd.Flags().BoolVar(&batchDebug, "debug", false, "include per-pass query traces")
	batchCmd.Flags().BoolVar(&batchReport, "report", false, "draft an LLM report for each result")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

func loadBatch(path string) ([]batchInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read %s", path)
	}
	var doc batchDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "batch: parse %s", path)
	}
	return doc.Inputs, nil
}

func (b batchInput) toInput() model.PipelineInput {
	return model.PipelineInput{
		Goal:           b.Goal,
		Decision:       b.Decision,
		OutputFormat:   b.OutputFormat,
		OutputLanguage: model.ResolveLanguage(b.OutputLanguage),
		Constraints:    b.Constraints,
	}
}

// processBatch runs every input with at most concurrency runs in flight. A
// failed input is recorded in its item and does not stop the others. Each run
// gets its own pipeline state.
func processBatch(ctx context.Context, inputs []batchInput, concurrency int, r researcher, gen *report.Generator, debug bool) ([]batchItem, error) {
	items := make([]batchItem, len(inputs))
	if len(inputs) == 0 {
		zap.L().Info("batch: no inputs")
		return items, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("batch: processing",
		zap.Int("inputs", len(inputs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64
	for i, bi := range inputs {
		id := bi.ID
		if id == "" {
			id = bi.Decision
		}
		items[i].ID = id

		g.Go(func() error {
			log := zap.L().With(zap.String("id", id))

			in := bi.toInput()
			if err := in.Validate(); err != nil {
				failed.Add(1)
				items[i].Error = err.Error()
				log.Warn("batch: invalid input", zap.Error(err))
				return nil
			}

			res, err := research(gctx, r, gen, in, debug)
			if err != nil {
				failed.Add(1)
				items[i].Error = err.Error()
				log.Error("batch: research failed", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			items[i].Result = res
			log.Info("batch: research complete",
				zap.String("status", string(res.DecisionStatus)),
				zap.Int("sources", len(res.Sources)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch: complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return items, nil
}
