package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/librescoot/typewriter"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "typewriter",
	Short: "Typewriter plays text into the terminal one character at a time",
	Long: `Typewriter erases what is on the line, blinks a caret, then reveals
the given text character by character.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML or JSON file with cadences and caret settings")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
}

// loadConfig returns the config named by --config, or the defaults.
func loadConfig(cmd *cobra.Command) (typewriter.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return typewriter.DefaultConfig(), nil
	}
	return typewriter.LoadConfig(path)
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", raw, err)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}
