package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"instagram-mcp/internal/creds"
)

// Exit codes for CLI commands. Semantic codes let scripts distinguish
// "run auth login" from a plain failure.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates no valid credentials are available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow itself failed.
	ExitCodeAuthFailed = 3
)

// Persistent flags shared by all subcommands.
var (
	flagConfigDir string
	flagLogLevel  string
)

// rootCmd is the entry point when the binary is called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "instagram-mcp",
	Short: "Instagram Graph API integration for MCP clients",
	Long: `instagram-mcp exposes the Instagram Graph API as MCP tools over stdio:
publishing, profile and media reads, comments, insights, and direct
messages. Credentials are obtained once with 'auth login' and refreshed
automatically for as long as Facebook permits.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "",
		"Configuration directory (default ~/.config/instagram-mcp)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "",
		"Log level: debug, info, warn, error")
}

// SetVersion injects the build version from the main package.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the injected build version.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a semantic code on error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "instagram-mcp version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to exit codes.
func getExitCode(err error) int {
	if creds.RequiresAuthorization(err) {
		return ExitCodeAuthRequired
	}

	var authErr *creds.AuthError
	if errors.As(err, &authErr) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}
