package cmd

import (
	"fmt"
	"io"
	"strings"

	"instagram-mcp/internal/config"
	"instagram-mcp/internal/creds"
	"instagram-mcp/pkg/logging"
)

// loadConfig resolves the effective configuration and initializes logging.
// Log output goes to the given writer; the serve command passes stderr
// because stdout carries the MCP stream.
func loadConfig(logOutput io.Writer) (config.Config, error) {
	cfg, err := config.Load(flagConfigDir)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading configuration: %w", err)
	}

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logging.Init(logging.ParseLevel(level), logOutput)

	return cfg, nil
}

// newManager wires the credential store, exchanger, and lifecycle manager
// from configuration.
func newManager(cfg config.Config) (*creds.Manager, *creds.Exchanger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	store := creds.NewFileStore(cfg.TokenPath)
	exchanger := creds.NewExchanger(creds.ExchangerConfig{
		ClientID:        cfg.ClientID,
		ClientSecret:    cfg.ClientSecret,
		RedirectURI:     cfg.RedirectURI,
		Scopes:          splitScopes(cfg.Scopes),
		GraphAPIVersion: cfg.GraphAPIVersion,
	})

	return creds.NewManager(store, exchanger), exchanger, nil
}

func splitScopes(scopes string) []string {
	parts := strings.Split(scopes, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
