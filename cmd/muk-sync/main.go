// Package main is the entry point for the muk-sync batch job.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/hpcugent/muk-sync/cmd/muk-sync/app"
	"github.com/hpcugent/muk-sync/pkg/config"
)

// getLogLevel parses the MUK_SYNC_LOG_LEVEL environment variable and
// returns the corresponding slog.Level. Defaults to slog.LevelInfo if unset
// or invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

func main() {
	// Structured JSON logging on stderr: stdout is reserved for the
	// nagios plugin line emitted by --nagios.
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: getLogLevel()})
	slog.SetDefault(slog.New(handler))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
