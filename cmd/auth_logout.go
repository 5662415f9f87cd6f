package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored credentials",
	Long: `Delete the persisted token file.

Tokens are never deleted automatically, even after expiry; logout is
the only destructive credential operation.`,
	RunE: runAuthLogout,
}

func init() {
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	manager, _, err := newManager(cfg)
	if err != nil {
		return err
	}

	if err := manager.Logout(); err != nil {
		return err
	}

	fmt.Printf("%s Credentials removed.\n", text.FgGreen.Sprint("✓"))
	return nil
}
