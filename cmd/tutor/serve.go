package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lexiqai/live-tutor/internal/config"
	"github.com/lexiqai/live-tutor/internal/observability"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the health and metrics server only",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			logger := observability.GetLogger()
			server := startHealthServer(opts.cfg, readinessChecks(opts.cfg))
			<-ctx.Done()

			logger.Info().Msg("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logger.Info().Msg("Server exited gracefully")
			return nil
		},
	}
}

// startHealthServer serves /health, /ready and /metrics on PORT in the
// background.
func startHealthServer(cfg *config.Config, checks map[string]observability.HealthCheckFunc) *http.Server {
	logger := observability.GetLogger()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Health server failed")
		}
	}()
	return server
}

// readinessChecks validates provider credentials without calling the paid
// APIs.
func readinessChecks(cfg *config.Config) map[string]observability.HealthCheckFunc {
	checks := map[string]observability.HealthCheckFunc{
		"gemini": func(ctx context.Context) (bool, error) {
			if cfg.GeminiAPIKey == "" {
				return false, fmt.Errorf("GEMINI_API_KEY not set")
			}
			return true, nil
		},
	}

	if cfg.TTSProvider == "cartesia" {
		checks["cartesia"] = func(ctx context.Context) (bool, error) {
			if cfg.CartesiaAPIKey == "" {
				return false, fmt.Errorf("CARTESIA_API_KEY not set")
			}
			return true, nil
		}
	}

	if cfg.LLMProvider == "ollama" {
		checks["ollama"] = func(ctx context.Context) (bool, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.OllamaURL+"/api/tags", nil)
			if err != nil {
				return false, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return false, err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return false, fmt.Errorf("ollama returned status %d", resp.StatusCode)
			}
			return true, nil
		}
	}

	if cfg.ListenProvider == "deepgram" {
		checks["deepgram"] = func(ctx context.Context) (bool, error) {
			if cfg.DeepgramAPIKey == "" {
				return false, fmt.Errorf("DEEPGRAM_API_KEY not set")
			}
			return true, nil
		}
	}
	return checks
}
