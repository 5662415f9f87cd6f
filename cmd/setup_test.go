package cmd

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instagram-mcp/internal/config"
)

func TestSplitScopes(t *testing.T) {
	assert.Equal(t, []string{"instagram_basic", "pages_show_list"},
		splitScopes("instagram_basic, pages_show_list"))
	assert.Equal(t, []string{"pages_messaging"}, splitScopes("pages_messaging,"))
	assert.Empty(t, splitScopes(""))
}

func TestNewManagerWiresScopes(t *testing.T) {
	cfg := config.Default()
	cfg.ClientID = "app-id"
	cfg.ClientSecret = "app-secret"
	cfg.Scopes = "instagram_basic,pages_show_list"
	cfg.RedirectURI = "http://localhost:8080/callback"
	cfg.TokenPath = filepath.Join(t.TempDir(), "tokens.json")

	manager, exchanger, err := newManager(cfg)
	require.NoError(t, err)
	require.NotNil(t, manager)

	u, err := url.Parse(exchanger.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "instagram_basic pages_show_list", u.Query().Get("scope"))
}
