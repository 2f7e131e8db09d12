package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"shopexport/pkg/checkpoint"
	"shopexport/pkg/config"
	"shopexport/pkg/export"
	"shopexport/pkg/format"
	"shopexport/pkg/logger"
	"shopexport/pkg/store"
	"shopexport/pkg/ui"
)

var (
	// Process command flags
	outputPath      string
	keepFiles       bool
	checkpointEvery int
	resumeProcess   bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Transform cached order files into a CSV file",
	Long: `Transform the cached order files from a previous download into CSV
rows, one row per order line item.

Each order file is deleted after its rows are written, unless
--keep-files is set. Progress is checkpointed periodically, so an
interrupted run can be resumed with --resume and will continue after
the last order it finished, appending to the same CSV file.`,
	Example: `  # Write the CSV next to the cache
  shopexport process

  # Resume an interrupted run
  shopexport process --resume

  # Keep the cached files for a later re-run
  shopexport process --keep-files --output ./orders.csv`,
	Args: cobra.NoArgs,
	Run:  runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&outputPath, "output", "o", "", "CSV output path (default from config)")
	processCmd.Flags().BoolVar(&keepFiles, "keep-files", false, "keep cached order files after processing")
	processCmd.Flags().IntVar(&checkpointEvery, "checkpoint-every", 10, "save the checkpoint after this many orders")
	processCmd.Flags().BoolVar(&resumeProcess, "resume", false, "resume from the last checkpoint")
}

func runProcess(cmd *cobra.Command, args []string) {
	flags := baseFlags()
	if checkpointEvery != 10 {
		flags["checkpoint-every"] = checkpointEvery
	}
	if keepFiles {
		flags["keep-files"] = true
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()

	st, err := store.Open(cfg.Cache.Directory)
	if err != nil {
		ui.PrintError("Cache directory not found", err.Error())
		ui.PrintDim("Run 'shopexport download' first")
		os.Exit(1)
	}

	cpMgr, err := checkpoint.NewManager(cfg.Cache.Directory, checkpoint.StageProcess)
	if err != nil {
		ui.PrintError("Failed to prepare checkpoint", err.Error())
		os.Exit(1)
	}

	out := outputPath
	if out == "" {
		out = defaultOutputPath(cfg)
	}

	ui.PrintInfo("Cache", cfg.Cache.Directory)
	ui.PrintInfo("Output", out)

	formatter := format.NewOrderFormatter(log)
	stage := export.NewProcessStage(cfg, st, formatter, cpMgr, log)
	if err := stage.Run(resumeProcess, out, cfg.Export.KeepFiles); err != nil {
		log.WithError(err).Error("Processing failed")
		ui.PrintError("Processing failed", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("CSV written: " + out)
}

// defaultOutputPath builds the output path from the configured pattern
func defaultOutputPath(cfg *config.Config) string {
	name := strings.ReplaceAll(cfg.Output.FileNamePattern, "{date}", time.Now().Format("2006-01-02"))
	return filepath.Join(cfg.Output.Directory, name)
}
