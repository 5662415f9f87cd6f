// Package tools registers the Instagram Graph API tool surface on an MCP
// stdio server. Every handler validates its arguments, issues Graph calls
// through the dispatcher, and reports the outcome in-band through a uniform
// result envelope.
package tools

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/mark3labs/mcp-go/server"

	"instagram-mcp/internal/creds"
)

// GraphAPI is the dispatcher surface the handlers need. Satisfied by
// graph.Client.
type GraphAPI interface {
	Get(ctx context.Context, category creds.Category, path string, params url.Values) (json.RawMessage, error)
	Post(ctx context.Context, category creds.Category, path string, params url.Values) (json.RawMessage, error)
	Delete(ctx context.Context, category creds.Category, path string, params url.Values) (json.RawMessage, error)
}

// IdentitySource supplies account identifiers derived during authorization.
// Satisfied by creds.Manager.
type IdentitySource interface {
	InstagramUserID() string
	FacebookPageID() string
}

// Server owns the tool handlers and their shared dependencies.
type Server struct {
	graph GraphAPI
	ids   IdentitySource

	// configuredUserID is the operator-pinned Instagram account ID, if any.
	configuredUserID string
}

// NewServer creates the tool surface backed by the given dispatcher and
// identity source.
func NewServer(graph GraphAPI, ids IdentitySource, configuredUserID string) *Server {
	return &Server{
		graph:            graph,
		ids:              ids,
		configuredUserID: configuredUserID,
	}
}

// NewMCPServer builds the MCP server with every tool registered, ready for
// stdio serving.
func (s *Server) NewMCPServer(name, version string) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(false),
	)
	s.registerPublishingTools(mcpServer)
	s.registerUserTools(mcpServer)
	s.registerMediaTools(mcpServer)
	s.registerCommentTools(mcpServer)
	s.registerInsightsTools(mcpServer)
	s.registerMessagingTools(mcpServer)
	return mcpServer
}

// userID resolves the Instagram account ID for a call: explicit argument,
// then configuration, then the identifier derived at login.
func (s *Server) userID(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if s.configuredUserID != "" {
		return s.configuredUserID, true
	}
	if id := s.ids.InstagramUserID(); id != "" {
		return id, true
	}
	return "", false
}

const missingUserIDMessage = "no Instagram user ID available: pass ig_user_id, set INSTAGRAM_USER_ID, or run 'instagram-mcp auth login'"
