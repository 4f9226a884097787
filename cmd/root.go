package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lockplane/schemaclone/internal/cloneerr"
)

// Exit codes
const (
	exitFailure       = 1
	exitConfiguration = 2
)

var (
	flagLogLevel    string
	flagConfigPath  string
	flagEnvironment string
	flagYes         bool
	flagReportPath  string
)

var rootCmd = &cobra.Command{
	Use:   "schemaclone",
	Short: "Clone database schemas through changelogs",
	Long: `schemaclone lifts a database schema into a changelog, optionally rewrites it,
and replays it onto a freshly provisioned target database.

Connection settings come from flags, from [environments.<name>] in
schemaclone.toml, or from .env.<name> files. Explicit flags win.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var version = getVersion()

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn or error (default from SCHEMACLONE_LOG_LEVEL or schemaclone.toml)")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to schemaclone.toml (default: search from the working directory)")
	rootCmd.PersistentFlags().StringVarP(&flagEnvironment, "environment", "e", "", "Named environment from schemaclone.toml / .env.<name>")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "Skip the confirmation prompt for destructive commands")
	rootCmd.PersistentFlags().StringVar(&flagReportPath, "report", "", "Write a JSON report of the provisioning run to this path")

	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return cloneerr.New(cloneerr.Configuration, "parse flags", c.CommandPath(), err)
	})
}

// Execute runs the command line and exits with 2 on configuration errors
// and 1 on any other failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "✗ %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

// errReported marks failures whose details were already printed.
var errReported = errors.New("failure already reported")

// reported wraps err so Execute keeps its exit code without printing it
// again.
func reported(err error) error {
	return fmt.Errorf("%w: %w", errReported, err)
}

func exitCode(err error) int {
	if cloneerr.Is(err, cloneerr.Configuration) {
		return exitConfiguration
	}
	return exitFailure
}
