package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Join huddle meetings from the terminal",
	Long:  "huddle connects to a session gateway, negotiates media paths to every other participant and relays room chat.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level := slog.LevelWarn
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	))
}
