package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexiqai/live-tutor/internal/tutor"
)

func newLiveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Talk to the tutor in real time (Ctrl-C to stop)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, opts.cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.controller.StartLive(ctx); err != nil {
				return err
			}
			a.printer.Notice("Live session open. Start speaking.")

			select {
			case <-ctx.Done():
				a.printer.Notice("Ending session.")
			case <-a.liveClosed:
				a.printer.Notice("The tutor ended the session.")
			}
			return nil
		},
	}
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var listen bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Turn-based conversation with spoken replies",
		Long: `Turn-based conversation. Each line typed on stdin is sent to the
tutor and the reply is spoken sentence by sentence.

Lines starting with /read are read aloud verbatim. /quit exits.

With --listen the microphone is transcribed instead (LISTEN_PROVIDER=deepgram).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, opts.cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			// The tutor opens the conversation.
			if err := a.turn(ctx, ""); err != nil {
				return err
			}

			if listen {
				if err := a.controller.StartListening(ctx); err != nil {
					return err
				}
				a.printer.Notice("Listening. Ctrl-C to stop.")
				<-ctx.Done()
				return nil
			}
			return a.chatLoop(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().BoolVar(&listen, "listen", false, "transcribe the microphone instead of reading stdin")
	return cmd
}

func newSpeakCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "speak <text>",
		Short: "Read text aloud",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireArgs(args); err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, opts.cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.controller.ReadAloud(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			if err := a.controller.WaitSpoken(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

// turn runs one tutor reply and waits for it to be spoken. Rate limits are
// reported and do not end the conversation.
func (a *app) turn(ctx context.Context, text string) error {
	_, err := a.controller.Say(ctx, text)
	a.printer.EndTurn()
	if err != nil {
		if errors.Is(err, tutor.ErrRateLimited) {
			a.printer.Error(err)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := a.controller.WaitSpoken(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (a *app) chatLoop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == "/quit":
				return nil
			case strings.HasPrefix(line, "/read "):
				if err := a.controller.ReadAloud(ctx, strings.TrimPrefix(line, "/read ")); err != nil && ctx.Err() == nil {
					a.printer.Error(err)
				}
			default:
				if err := a.turn(ctx, line); err != nil {
					a.printer.Error(err)
				}
			}
		}
	}
}
