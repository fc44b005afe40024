package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/report"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve research runs over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initEnv(cfg, "serve", cfg.Anthropic.Key != "")
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(env.Pipeline, env.Report, env.Metrics.Handler(), cfg.Server.CORSOrigins, cfg.Pipeline.IncludeDebug),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("serve: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("serve: listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// researchRequest is the POST /v1/research body.
type researchRequest struct {
	Goal           string `json:"goal"`
	Decision       string `json:"decision"`
	OutputFormat   string `json:"output_format"`
	OutputLanguage string `json:"output_language"`
	Constraints    string `json:"constraints"`
	Debug          bool   `json:"debug"`
	Report         bool   `json:"report"`
}

// newRouter builds the HTTP API. gen may be nil, in which case report
// requests are answered without a report. includeDebug forces debug traces
// on every response.
func newRouter(r researcher, gen *report.Generator, metricsHandler http.Handler, origins []string, includeDebug bool) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if metricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	router.Post("/v1/research", func(w http.ResponseWriter, req *http.Request) {
		var body researchRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		in := model.PipelineInput{
			Goal:           body.Goal,
			Decision:       body.Decision,
			OutputFormat:   body.OutputFormat,
			OutputLanguage: model.ResolveLanguage(body.OutputLanguage),
			Constraints:    body.Constraints,
		}
		if err := in.Validate(); err != nil {
			writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		var g *report.Generator
		if body.Report {
			g = gen
		}
		res, err := research(req.Context(), r, g, in, body.Debug || includeDebug)
		if err != nil {
			zap.L().Error("serve: research failed",
				zap.String("request_id", middleware.GetReqID(req.Context())),
				zap.Error(err),
			)
			writeJSONStatus(w, http.StatusBadGateway, map[string]string{"error": "research failed"})
			return
		}
		writeJSONStatus(w, http.StatusOK, res)
	})

	return router
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
