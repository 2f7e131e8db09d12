package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"shopexport/pkg/auth"
	"shopexport/pkg/checkpoint"
	"shopexport/pkg/commerce"
	"shopexport/pkg/config"
	"shopexport/pkg/export"
	"shopexport/pkg/logger"
	"shopexport/pkg/ratelimit"
	"shopexport/pkg/store"
	"shopexport/pkg/ui"
)

var (
	// Download command flags
	baseURL       string
	apiToken      string
	profileName   string
	since         string
	pageSize      int
	rateLimit     int
	maxRetries    int
	resumeRun     bool
	forceRestart  bool
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download order records into the local cache",
	Long: `Download order records from the commerce API into the local cache,
one JSON file per order, newest first.

Each order is enriched with its payment transactions, and with its
shipments when the order has reached a fulfillment status. Orders
already present in the cache are skipped, so an interrupted download
can be resumed without refetching anything.

Credentials are resolved from, in order:
  - the --token flag
  - a stored profile (use 'shopexport auth login' to store one)
  - the SHOPEXPORT_API_TOKEN environment variable`,
	Example: `  # Download all orders
  shopexport download --base-url https://store.example.com

  # Only orders created after a date
  shopexport download --since 2024-01-01

  # Resume an interrupted download
  shopexport download --resume

  # Start over, discarding the previous checkpoint
  shopexport download --force-restart`,
	Args: cobra.NoArgs,
	Run:  runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVar(&baseURL, "base-url", "", "commerce API base URL")
	downloadCmd.Flags().StringVar(&apiToken, "token", "", "API bearer token")
	downloadCmd.Flags().StringVarP(&profileName, "profile", "p", "", "use a specific stored profile")
	downloadCmd.Flags().StringVar(&since, "since", "", "only orders created after this date (YYYY-MM-DD)")
	downloadCmd.Flags().IntVar(&pageSize, "page-size", 100, "orders per API page")
	downloadCmd.Flags().IntVar(&rateLimit, "rate-limit", 4, "API requests per second")
	downloadCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "retry attempts per page")
	downloadCmd.Flags().BoolVar(&resumeRun, "resume", false, "resume from the last checkpoint")
	downloadCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard any existing checkpoint and start fresh")
}

func runDownload(cmd *cobra.Command, args []string) {
	flags := baseFlags()
	if baseURL != "" {
		flags["base-url"] = baseURL
	}
	if apiToken != "" {
		flags["token"] = apiToken
	}
	if since != "" {
		flags["since"] = since
	}
	if pageSize != 100 {
		flags["page-size"] = pageSize
	}
	if rateLimit != 4 {
		flags["rate-limit"] = rateLimit
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if maxRetries != 3 {
		cfg.RateLimit.MaxRetries = maxRetries
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()

	// Resolve credentials from stored profiles when not given directly
	if cfg.API.Token == "" || profileName != "" {
		profile := resolveProfile(profileName)
		if profile != nil {
			cfg.API.Token = profile.Token
			if cfg.API.BaseURL == "" {
				cfg.API.BaseURL = profile.BaseURL
			}
			log.WithField("profile", profile.Name).Info("Using stored credentials")
		}
	}

	if cfg.API.BaseURL == "" {
		ui.PrintError("Missing API base URL", "provide --base-url, SHOPEXPORT_BASE_URL, or a config file")
		os.Exit(1)
	}
	if cfg.API.Token == "" {
		ui.PrintError("No API credentials found", "")
		fmt.Println("\nTo store credentials securely, run:")
		fmt.Println("  shopexport auth login")
		fmt.Println("\nYou can also set an environment variable:")
		fmt.Println("  export SHOPEXPORT_API_TOKEN=your_token")
		os.Exit(1)
	}

	st, err := store.New(cfg.Cache.Directory)
	if err != nil {
		ui.PrintError("Failed to open cache directory", err.Error())
		os.Exit(1)
	}

	cpMgr, err := checkpoint.NewManager(cfg.Cache.Directory, checkpoint.StageDownload)
	if err != nil {
		ui.PrintError("Failed to prepare checkpoint", err.Error())
		os.Exit(1)
	}

	limiter := ratelimit.NewPerSecond(cfg.RateLimit.RequestsPerSecond)
	client := commerce.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.HTTPTimeout, limiter, log)
	client.SetHeader("User-Agent", cfg.API.UserAgent)

	ui.PrintInfo("Store", client.BaseURL())
	ui.PrintInfo("Cache", cfg.Cache.Directory)

	stage := export.NewDownloadStage(cfg, client, st, cpMgr, log)
	if err := stage.Run(resumeRun, forceRestart); err != nil {
		log.WithError(err).Error("Download failed")
		ui.PrintError("Download failed", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Download completed")
	ui.PrintDim("Run 'shopexport process' to write the CSV")
}

// resolveProfile finds stored credentials, exiting when a named profile is missing
func resolveProfile(name string) *auth.Profile {
	manager, err := auth.NewManager()
	if err != nil {
		return nil
	}

	if name != "" {
		profile, err := manager.Retrieve(name)
		if err != nil {
			ui.PrintError("Profile not found", name)
			ui.PrintInfo("Available profiles", "Use 'shopexport auth list' to see stored profiles")
			os.Exit(1)
		}
		return profile
	}

	profile, err := manager.RetrieveDefault()
	if err != nil {
		return nil
	}
	return profile
}
