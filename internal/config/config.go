package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"instagram-mcp/pkg/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/instagram-mcp"
	configFileName = "config.yaml"
	tokenFileName  = "tokens.json"

	// DefaultGraphAPIVersion is the Graph API version used when none is configured.
	DefaultGraphAPIVersion = "v21.0"

	// DefaultCallbackPort is the port for the local OAuth callback listener.
	DefaultCallbackPort = 8080

	// DefaultScopes are the permissions requested during authorization.
	DefaultScopes = "instagram_basic,instagram_content_publish,instagram_manage_comments," +
		"instagram_manage_insights,pages_show_list,pages_read_engagement," +
		"pages_messaging,instagram_manage_messages"
)

// Config holds all settings for the Instagram MCP server.
// Values are resolved in order: defaults, then the optional YAML config file,
// then environment variables. Environment variable names preserve the
// contract of the original deployment (.env files are honored).
type Config struct {
	// GraphAPIVersion is the Graph API version segment, e.g. "v21.0".
	GraphAPIVersion string `yaml:"graphAPIVersion,omitempty"`

	// ClientID and ClientSecret identify the Facebook app used for OAuth2.
	ClientID     string `yaml:"clientID,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`

	// RedirectURI is the OAuth2 redirect target. It must match one of the
	// app's registered redirect URIs and point at the local callback server.
	RedirectURI string `yaml:"redirectURI,omitempty"`

	// Scopes is the comma-separated permission list for the authorization URL.
	Scopes string `yaml:"scopes,omitempty"`

	// CallbackPort is the local port the login flow listens on.
	CallbackPort int `yaml:"callbackPort,omitempty"`

	// TokenPath is where the credential record is persisted.
	TokenPath string `yaml:"tokenPath,omitempty"`

	// InstagramUserID optionally pins the IG Business Account ID, bypassing
	// the derived identifier.
	InstagramUserID string `yaml:"instagramUserID,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel,omitempty"`
}

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Default returns the built-in defaults. TokenPath and RedirectURI are left
// empty here and filled in by Load: TokenPath needs the config directory, and
// RedirectURI is derived from the effective callback port so overriding the
// port alone keeps the listener and the consent redirect in agreement.
func Default() Config {
	return Config{
		GraphAPIVersion: DefaultGraphAPIVersion,
		Scopes:          DefaultScopes,
		CallbackPort:    DefaultCallbackPort,
		LogLevel:        "info",
	}
}

// Load resolves the effective configuration: defaults, then config.yaml from
// configDir (if present), then environment variables. A .env file in the
// working directory is loaded into the environment first, matching how the
// server has always been deployed.
func Load(configDir string) (Config, error) {
	// Best effort; a missing .env is the common case.
	if err := godotenv.Load(); err == nil {
		logging.Debug("Config", "Loaded environment from .env")
	}

	cfg := Default()

	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return Config{}, err
		}
		configDir = dir
	}

	configFilePath := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	case errors.Is(err, os.ErrNotExist):
		// No config file; defaults plus environment is fine.
	default:
		return Config{}, fmt.Errorf("error reading %s: %w", configFilePath, err)
	}

	applyEnv(&cfg)

	if cfg.TokenPath == "" {
		cfg.TokenPath = filepath.Join(configDir, tokenFileName)
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = fmt.Sprintf("http://localhost:%d/callback", cfg.CallbackPort)
	}

	return cfg, nil
}

// applyEnv overrides config fields from environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("INSTAGRAM_GRAPH_API_VERSION"); v != "" {
		cfg.GraphAPIVersion = v
	}
	if v := os.Getenv("OAUTH2_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("OAUTH2_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}
	if v := os.Getenv("OAUTH2_REDIRECT_URI"); v != "" {
		cfg.RedirectURI = v
	}
	if v := os.Getenv("OAUTH2_SCOPES"); v != "" {
		cfg.Scopes = v
	}
	if v := os.Getenv("OAUTH2_CALLBACK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.CallbackPort = port
		} else {
			logging.Warn("Config", "Ignoring invalid OAUTH2_CALLBACK_PORT=%q", v)
		}
	}
	if v := os.Getenv("INSTAGRAM_TOKEN_PATH"); v != "" {
		cfg.TokenPath = v
	}
	if v := os.Getenv("INSTAGRAM_USER_ID"); v != "" {
		cfg.InstagramUserID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
}

// OAuthConfigured reports whether the app credentials needed for the OAuth2
// flow (and for token refresh) are present.
func (c Config) OAuthConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Validate checks settings that every command depends on.
func (c Config) Validate() error {
	if c.GraphAPIVersion == "" {
		return errors.New("graph API version must not be empty")
	}
	if !strings.HasPrefix(c.GraphAPIVersion, "v") {
		return fmt.Errorf("graph API version %q must look like v21.0", c.GraphAPIVersion)
	}
	if c.TokenPath == "" {
		return errors.New("token path must not be empty")
	}
	if c.RedirectURI != "" {
		u, err := url.Parse(c.RedirectURI)
		if err != nil {
			return fmt.Errorf("invalid redirect URI %q: %w", c.RedirectURI, err)
		}
		// An explicit redirect URI must point at the port the login flow
		// listens on, or the browser lands on a dead socket.
		if p := u.Port(); p != "" && p != strconv.Itoa(c.CallbackPort) {
			return fmt.Errorf("redirect URI %q does not match callback port %d",
				c.RedirectURI, c.CallbackPort)
		}
	}
	return nil
}
