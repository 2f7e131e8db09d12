package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"shopexport/pkg/config"
	"shopexport/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage shopexport configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (SHOPEXPORT_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.shopexport.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration merged from all sources.

The API token is masked for security.`,
	Run: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

const exampleConfig = `# shopexport configuration file
#
# You can also use environment variables prefixed with SHOPEXPORT_
# For example: SHOPEXPORT_BASE_URL, SHOPEXPORT_API_TOKEN

# Commerce API connection
api:
  # Store base URL (required for download)
  base_url: "https://store.example.com"

  # Integration bearer token. Prefer 'shopexport auth login' or the
  # SHOPEXPORT_API_TOKEN environment variable over putting it here.
  token: ""

  # HTTP timeout for single requests
  http_timeout: 30s

# Rate limiting
rate_limit:
  # API requests per second, across all endpoints
  requests_per_second: 4

  # Retry attempts per page on transient failures
  max_retries: 3

# Export pipeline
export:
  # Orders per API page (max 500)
  page_size: 100

  # Only orders created after this date (YYYY-MM-DD, empty for all)
  created_after: ""

  # Save the process checkpoint after this many orders
  checkpoint_interval: 10

  # Keep cached order files after processing
  keep_files: false

# Cache directory for order files and checkpoints
cache:
  directory: "./order-cache"

# CSV output
output:
  directory: "."
  # {date} expands to the current date
  file_name_pattern: "orders-{date}.csv"

# Logging
logging:
  # debug, info, warn, error
  level: "info"
  # Log to a file instead of stderr (empty for stderr)
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".shopexport.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to write configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nEdit the file and set your store's base URL, then run:")
	fmt.Println("  shopexport auth login")
	fmt.Println("  shopexport download")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, baseFlags())
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Mask the token before printing
	if cfg.API.Token != "" {
		cfg.API.Token = maskToken(cfg.API.Token)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to render configuration", err.Error())
		os.Exit(1)
	}

	fmt.Print(string(data))
}
