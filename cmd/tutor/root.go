package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexiqai/live-tutor/internal/config"
	"github.com/lexiqai/live-tutor/internal/observability"
)

type rootOptions struct {
	profilePath string
	logLevel    string
	cfg         *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "tutor",
		Short:         "Voice language tutor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.profilePath != "" {
				cfg.ProfilePath = opts.profilePath
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			opts.cfg = cfg

			observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
			observability.GetLogger().Debug().
				Str("command", cmd.Name()).
				Str("tts_provider", cfg.TTSProvider).
				Str("llm_provider", cfg.LLMProvider).
				Str("listen_provider", cfg.ListenProvider).
				Msg("Configuration loaded")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.profilePath, "profile", "", "learner profile YAML (overrides PROFILE_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newLiveCmd(opts),
		newChatCmd(opts),
		newSpeakCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func requireArgs(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("text is required")
	}
	return nil
}
