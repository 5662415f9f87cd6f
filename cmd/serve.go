package cmd

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"instagram-mcp/internal/creds"
	"instagram-mcp/internal/graph"
	"instagram-mcp/internal/tools"
	"instagram-mcp/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Instagram tools over MCP stdio",
	Long: `Start the MCP server on stdin/stdout.

The server resolves credentials from the token store on demand and
refreshes them ahead of expiry. Tool calls fail in-band with an
authorization hint when no credentials are stored; run
'instagram-mcp auth login' first.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// stdout is the MCP transport, so all logging goes to stderr.
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	manager, _, err := newManager(cfg)
	if err != nil {
		return err
	}

	// Pick up token writes from auth login running in another process.
	watcher := creds.NewStoreWatcher(cfg.TokenPath, func() {
		logging.Info("Serve", "credential store changed on disk, reloading")
		manager.Invalidate()
	})
	if err := watcher.Start(); err != nil {
		logging.Warn("Serve", "credential store watch unavailable: %v", err)
	} else {
		defer watcher.Stop()
	}

	client := graph.NewClient(manager, cfg.GraphAPIVersion)
	toolServer := tools.NewServer(client, manager, cfg.InstagramUserID)
	mcpServer := toolServer.NewMCPServer("instagram-mcp", GetVersion())

	logging.Info("Serve", "serving MCP over stdio, Graph API %s", cfg.GraphAPIVersion)
	return server.ServeStdio(mcpServer)
}
