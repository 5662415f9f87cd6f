package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"instagram-mcp/internal/creds"
)

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored token's lifecycle state",
	Long: `Show the lifecycle state of the stored credentials.

States:
  unauthenticated - no token stored, run 'auth login'
  valid           - token usable, no refresh pending
  near_expiry     - token usable, will be refreshed on next use
  expired         - token unusable, will be refreshed or re-auth required`,
	RunE: runAuthStatus,
}

func init() {
	authCmd.AddCommand(authStatusCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	manager, _, err := newManager(cfg)
	if err != nil {
		return err
	}

	state, record, err := manager.Status()
	if err != nil {
		return fmt.Errorf("reading credential store: %w", err)
	}

	fmt.Printf("  Status:  %s\n", colorState(state))
	if record == nil {
		fmt.Println("  Run 'instagram-mcp auth login' to authorize.")
		return nil
	}
	fmt.Println()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Instagram account", valueOrUnset(record.InstagramUserID)},
		{"Facebook Page", valueOrUnset(record.FacebookPageID)},
		{"Messaging token", messagingState(record)},
		{"Saved at", time.Unix(record.SavedAt, 0).Format(time.RFC1123)},
		{"Expires at", record.ExpiresAt().Format(time.RFC1123)},
		{"Token file", cfg.TokenPath},
	})
	t.Render()
	return nil
}

func colorState(state creds.State) string {
	switch state {
	case creds.StateValid:
		return text.FgGreen.Sprint(state.String())
	case creds.StateNearExpiry:
		return text.FgYellow.Sprint(state.String())
	default:
		return text.FgRed.Sprint(state.String())
	}
}

func messagingState(record *creds.Record) string {
	if record.PageAccessToken != "" {
		return text.FgGreen.Sprint("stored")
	}
	return text.FgYellow.Sprint("missing")
}
