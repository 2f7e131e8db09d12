package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"shopexport/pkg/checkpoint"
	"shopexport/pkg/config"
	"shopexport/pkg/store"
	"shopexport/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress for both stages",
	Long: `Show the checkpointed progress of the download and process stages,
plus the number of order files still waiting in the cache.`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, baseFlags())
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintInfo("Cache", cfg.Cache.Directory)
	fmt.Println()

	for _, stage := range []checkpoint.Stage{checkpoint.StageDownload, checkpoint.StageProcess} {
		printStageStatus(cfg.Cache.Directory, stage)
	}

	if st, err := store.Open(cfg.Cache.Directory); err == nil {
		count, err := st.Count()
		if err == nil {
			ui.PrintInfo("Cached order files", strconv.Itoa(count))
		}
	}
}

func printStageStatus(cacheDir string, stage checkpoint.Stage) {
	mgr, err := checkpoint.NewManager(cacheDir, stage)
	if err != nil {
		ui.PrintError("Failed to read checkpoint", err.Error())
		os.Exit(1)
	}

	cp, err := mgr.Load()
	if err != nil {
		ui.PrintWarning(fmt.Sprintf("%s: checkpoint unreadable", stage), err.Error())
		return
	}
	if cp == nil {
		ui.PrintInfo(string(stage), "not started")
		return
	}

	state := "in progress"
	if cp.Completed {
		state = "completed"
	}
	ui.PrintInfo(string(stage), state)

	fmt.Printf("  processed: %d", cp.ProcessedCount)
	if cp.TotalExpected > 0 {
		fmt.Printf(" / %d", cp.TotalExpected)
	}
	fmt.Println()

	switch stage {
	case checkpoint.StageDownload:
		if cp.LastPage > 0 {
			fmt.Printf("  last page: %d\n", cp.LastPage)
		}
	case checkpoint.StageProcess:
		if cp.LastUnit != "" {
			fmt.Printf("  last file: %s\n", cp.LastUnit)
		}
		if cp.TotalLines > 0 {
			fmt.Printf("  CSV lines: %d\n", cp.TotalLines)
		}
	}

	if len(cp.Errors) > 0 {
		fmt.Printf("  errors:    %d\n", len(cp.Errors))
	}
	fmt.Printf("  updated:   %s\n\n", cp.UpdatedAt.Format("2006-01-02 15:04:05"))
}
