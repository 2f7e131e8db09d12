package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"shopexport/pkg/auth"
	"shopexport/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored API credentials",
	Long: `Manage stored commerce API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store API credentials securely",
	Long: `Store commerce API credentials securely in the system keychain or an
encrypted file.

You will be prompted for:
  - Profile name (if not provided)
  - API base URL
  - API bearer token (hidden as you type)

Generate an integration token in the store admin under
System > Integrations, with read access to sales resources.`,
	Example: `  # Interactive login
  shopexport auth login

  # Login with a named profile
  shopexport auth login staging`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove stored credentials",
	Long: `Remove stored API credentials.

If no profile is provided, you will be shown a list of stored profiles
to choose from.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored profiles",
	Long:  `List all stored API profiles with their tokens masked.`,
	Run:   runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if name == "" {
		fmt.Print("Profile name (e.g. production): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read profile name", err.Error())
			os.Exit(1)
		}
		name = strings.TrimSpace(input)
	}
	if name == "" {
		ui.PrintError("Profile name is required", "")
		os.Exit(1)
	}

	// Check if the profile already exists
	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Profile '%s' already exists. Update credentials? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("API base URL (e.g. https://store.example.com): ")
	urlInput, err := reader.ReadString('\n')
	if err != nil {
		ui.PrintError("Failed to read base URL", err.Error())
		os.Exit(1)
	}
	storeURL := strings.TrimRight(strings.TrimSpace(urlInput), "/")
	if storeURL == "" {
		ui.PrintError("API base URL is required", "")
		os.Exit(1)
	}

	fmt.Print("API bearer token (hidden): ")
	token, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read token", err.Error())
		os.Exit(1)
	}
	if token == "" {
		ui.PrintError("API token is required", "")
		os.Exit(1)
	}

	profile := &auth.Profile{
		Name:    name,
		BaseURL: storeURL,
		Token:   token,
	}

	if err := manager.Store(profile); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Profile saved: " + name)
	fmt.Println("\nDownload orders with:")
	fmt.Printf("  shopexport download --profile %s\n", name)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			ui.PrintError("Failed to remove profile", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Profile removed: " + args[0])
		return
	}

	profiles, err := manager.List()
	if err != nil || len(profiles) == 0 {
		ui.PrintError("No stored profiles found", "")
		return
	}

	reader := bufio.NewReader(os.Stdin)

	if len(profiles) == 1 {
		profile := profiles[0]
		fmt.Printf("Remove profile '%s'? (y/N): ", profile.Name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
		if err := manager.Delete(profile.Name); err != nil {
			ui.PrintError("Failed to remove profile", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Profile removed: " + profile.Name)
		return
	}

	fmt.Println("Select profile to remove:")
	for i, profile := range profiles {
		fmt.Printf("  %d. %s\n", i+1, profile.Name)
	}
	fmt.Printf("  0. Cancel\n\n")

	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	if choice < 1 || choice > len(profiles) {
		return
	}

	profile := profiles[choice-1]
	if err := manager.Delete(profile.Name); err != nil {
		ui.PrintError("Failed to remove profile", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Profile removed: " + profile.Name)
}

func runAuthList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	profiles, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list profiles", err.Error())
		os.Exit(1)
	}

	if len(profiles) == 0 {
		ui.PrintInfo("No stored profiles", "Use 'shopexport auth login' to add one")
		return
	}

	for i, profile := range profiles {
		fmt.Printf("%d. Profile: %s\n", i+1, profile.Name)
		fmt.Printf("   Base URL: %s\n", profile.BaseURL)
		fmt.Printf("   Token: %s\n", maskToken(profile.Token))
		if !profile.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", profile.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}

// maskToken hides all but the first and last few characters of a token
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
