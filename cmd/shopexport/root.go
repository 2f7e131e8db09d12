package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"shopexport/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	cacheDir   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shopexport",
	Short: "Export order records from a commerce store to CSV",
	Long: `shopexport downloads order records from a commerce REST API and
transforms them into CSV files, in two resumable stages:

  download   fetch orders page by page into a local cache, one file
             per order, enriched with transactions and shipments
  process    turn cached order files into CSV rows

Both stages checkpoint their progress, so an interrupted run can be
resumed with --resume without refetching or re-emitting anything.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.Quiet = true
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .shopexport.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "directory for cached order files and checkpoints")

	// Version template
	rootCmd.SetVersionTemplate(`shopexport {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// baseFlags builds the flag override map shared by all commands
func baseFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if cacheDir != "" {
		flags["cache-dir"] = cacheDir
	}
	return flags
}
