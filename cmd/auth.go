package cmd

import (
	"github.com/spf13/cobra"
)

// authCmd groups the credential lifecycle subcommands.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram API credentials",
	Long: `Manage the stored Instagram Graph API credentials.

Subcommands:
  login   - authorize via the browser and store a long-lived token
  status  - show the stored token's lifecycle state
  logout  - delete the stored credentials`,
}

func init() {
	rootCmd.AddCommand(authCmd)
}
