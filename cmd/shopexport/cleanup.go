package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"shopexport/pkg/checkpoint"
	"shopexport/pkg/config"
	"shopexport/pkg/store"
	"shopexport/pkg/ui"
)

var cleanupForce bool

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove cached order files and checkpoints",
	Long: `Remove all cached order files and both stage checkpoints from the
cache directory, so the next download starts from scratch.

CSV output files are never touched.`,
	Args: cobra.NoArgs,
	Run:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "skip the confirmation prompt")
}

func runCleanup(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, baseFlags())
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	st, err := store.Open(cfg.Cache.Directory)
	if err != nil {
		ui.PrintInfo("Nothing to clean", cfg.Cache.Directory)
		return
	}

	count, _ := st.Count()

	if !cleanupForce {
		fmt.Printf("Remove %d cached order file(s) and checkpoints from %s? (y/N): ", count, cfg.Cache.Directory)
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	names, err := st.List()
	if err != nil {
		ui.PrintError("Failed to list cached files", err.Error())
		os.Exit(1)
	}

	var removed int
	for _, name := range names {
		if err := st.Delete(name); err != nil {
			ui.PrintWarning("Failed to remove "+name, err.Error())
			continue
		}
		removed++
	}

	for _, stage := range []checkpoint.Stage{checkpoint.StageDownload, checkpoint.StageProcess} {
		mgr, err := checkpoint.NewManager(cfg.Cache.Directory, stage)
		if err != nil {
			continue
		}
		if mgr.Exists() {
			if err := mgr.Delete(); err != nil {
				ui.PrintWarning("Failed to remove "+mgr.Path(), err.Error())
			}
		}
	}

	ui.PrintSuccess(fmt.Sprintf("Removed %d order file(s)", removed))
}
