// Package app provides the muk-sync command line interface.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hpcugent/muk-sync/pkg/versions"
)

// Default locations of the persisted state. All of them can be overridden
// by flag.
const (
	nagiosHeader = "muk_sync"

	defaultNagiosCheckFilename     = "/var/cache/muk_sync.nagios.json.gz"
	defaultNagiosCheckIntervalSecs = 24 * 60 * 60
	defaultSyncTimestampFilename   = "/var/run/muk_sync.timestamp"
	defaultLockFilename            = "/gpfs/scratch/muk_sync.lock"
)

var rootCmd = &cobra.Command{
	Use:               "muk-sync",
	DisableAutoGenTag: true,
	Short:             "Synchronise Muk provisioning state with the directory service",
	Long: `muk-sync provisions scratch filesets, quota and home directories for the
users and projects in the Muk autogroup that changed in the directory
service since the last successful run.

It is meant to run from cron on the active node of an HA pair; overlapping
runs are prevented by a lockfile and the outcome of every run is cached for
a nagios poller.`,
	Run: func(cmd *cobra.Command, _ []string) {
		os.Exit(runSync(cmd.Context()))
	},
}

// NewRootCmd creates the root command for muk-sync.
func NewRootCmd() *cobra.Command {
	flags := rootCmd.Flags()
	flags.Bool("dry-run", false, "Do not make any updates whatsoever")
	flags.BoolP("nagios", "n", false, "Print the cached nagios report and exit")
	flags.String("nagios-check-filename", defaultNagiosCheckFilename, "Path of the cached nagios report")
	flags.Int("nagios-check-interval-threshold", defaultNagiosCheckIntervalSecs,
		"Age in seconds above which the cached nagios report is considered stale")
	flags.String("ha", "", "Address of the HA service; only the node owning it will run")
	flags.String("config", "", "Path to a YAML config file overriding the built-in Muk settings")
	flags.String("timestamp-filename", defaultSyncTimestampFilename, "Path of the synchronisation watermark file")
	flags.String("lock-filename", defaultLockFilename, "Path of the lockfile")

	for _, name := range []string{
		"dry-run", "nagios", "nagios-check-filename", "nagios-check-interval-threshold",
		"ha", "config", "timestamp-filename", "lock-filename",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}

	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("Error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				slog.Error("Error formatting version info as JSON", "error", err)
				return
			}
			fmt.Println(string(output))
		} else {
			slog.Info("muk-sync version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
