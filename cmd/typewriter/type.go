package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/librescoot/typewriter"
	"github.com/librescoot/typewriter/term"
	"github.com/spf13/cobra"
)

var typeCmd = &cobra.Command{
	Use:   "type [text...]",
	Short: "Type text into the terminal",
	Long: `Types the arguments, joined by spaces, onto the current terminal line.
Text given with --prefill is shown first and erased before typing starts.`,
	RunE: runType,
}

func init() {
	rootCmd.AddCommand(typeCmd)

	typeCmd.Flags().String("prefill", "", "Text shown before typing starts (erased first)")
	typeCmd.Flags().String("event", "", "Completion event to register and fire")
	typeCmd.Flags().Duration("hold", 0, "Keep the caret blinking this long after typing completes")
}

func runType(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	prefill, _ := cmd.Flags().GetString("prefill")
	event, _ := cmd.Flags().GetString("event")
	hold, _ := cmd.Flags().GetDuration("hold")

	reg := typewriter.NewRegistry[string]()
	if event != "" {
		reg.On(event, func() {
			logger.Info("completion event fired", "event", event)
		})
	}

	line := term.New(cmd.OutOrStdout())
	line.HideCursor()
	defer line.Finish()

	a, err := typewriter.New(
		typewriter.WithConfig(cfg),
		typewriter.WithRegistry(reg),
		typewriter.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if prefill != "" {
		if err := line.SetText(prefill); err != nil {
			return err
		}
	}

	var opts []typewriter.TypeOption
	opts = append(opts, typewriter.Into(line))
	if event != "" {
		opts = append(opts, typewriter.OnComplete(event))
	}

	s, err := a.Type(ctx, strings.Join(args, " "), opts...)
	if err != nil {
		return err
	}
	if err := s.Wait(ctx); err != nil {
		if errors.Is(err, typewriter.ErrCancelled) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if hold > 0 {
		select {
		case <-time.After(hold):
		case <-ctx.Done():
		}
	}
	a.Stop(line)

	if n := a.ErrorLog().Len(); n > 0 {
		logger.Warn("animation finished with container errors", "count", n, "error", a.ErrorLog().Err())
	}
	return nil
}
