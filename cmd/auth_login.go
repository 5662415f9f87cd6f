package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"instagram-mcp/internal/authflow"
	"instagram-mcp/internal/creds"
)

var loginNoBrowser bool

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize via the browser and store a long-lived token",
	Long: `Run the OAuth browser flow against Facebook.

The command starts a local callback listener, opens the consent page,
exchanges the returned code for a long-lived token, derives the linked
Facebook Page and Instagram Business Account, and stores everything in
the token file.

Examples:
  instagram-mcp auth login
  instagram-mcp auth login --no-browser   # print the URL instead of opening it`,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false,
		"Print the authorization URL instead of opening a browser")
	authCmd.AddCommand(authLoginCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	manager, exchanger, err := newManager(cfg)
	if err != nil {
		return err
	}

	opts := []authflow.FlowOption{}
	if loginNoBrowser {
		opts = append(opts, authflow.WithBrowserOpener(func(string) error { return nil }))
	}
	flow := authflow.NewFlow(exchanger, manager, cfg.CallbackPort, opts...)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for browser authorization..."

	record, err := flow.Run(cmd.Context(), func(url string) {
		fmt.Println("Open the following URL to authorize access:")
		fmt.Println()
		fmt.Println("  " + url)
		fmt.Println()
		s.Start()
	})
	s.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("%s Authorization complete.\n\n", text.FgGreen.Sprint("✓"))
	printRecordSummary(record)
	return nil
}

// printRecordSummary prints the stored credential details after login.
func printRecordSummary(record *creds.Record) {
	fmt.Printf("  Instagram account:  %s\n", valueOrUnset(record.InstagramUserID))
	fmt.Printf("  Facebook Page:      %s\n", valueOrUnset(record.FacebookPageID))
	if record.PageAccessToken != "" {
		fmt.Printf("  Messaging:          %s\n", text.FgGreen.Sprint("enabled (Page token stored)"))
	} else {
		fmt.Printf("  Messaging:          %s\n", text.FgYellow.Sprint("unavailable (no Page token)"))
	}
	fmt.Printf("  Token expires:      %s\n", record.ExpiresAt().Format(time.RFC1123))
}

func valueOrUnset(v string) string {
	if v == "" {
		return text.FgYellow.Sprint("not set")
	}
	return v
}
