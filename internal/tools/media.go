package tools

import (
	"context"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"instagram-mcp/internal/creds"
)

func (s *Server) registerMediaTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_MEDIA",
		mcp.WithDescription("Get a published media object (photo, video, story, reel, or carousel). For unpublished containers use INSTAGRAM_GET_POST_STATUS."),
		mcp.WithString("ig_media_id", mcp.Required(), mcp.Description("Published media ID")),
		mcp.WithString("fields", mcp.Description("Comma-separated field list, default id")),
	), s.handleGetIGMedia)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_MEDIA_CHILDREN",
		mcp.WithDescription("List the child media objects of a carousel post. Carousel children do not support insights."),
		mcp.WithString("ig_media_id", mcp.Required(), mcp.Description("Carousel media ID")),
		mcp.WithString("fields", mcp.Description("Comma-separated field list")),
	), s.handleGetIGMediaChildren)
}

func (s *Server) handleGetIGMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mediaID, err := request.RequireString("ig_media_id")
	if err != nil {
		return failure("ig_media_id is required"), nil
	}

	fields := request.GetString("fields", "id")
	raw, err := s.graph.Get(ctx, creds.CategoryDefault, mediaID, url.Values{"fields": {fields}})
	if err != nil {
		return failure("failed to get IG media: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleGetIGMediaChildren(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mediaID, err := request.RequireString("ig_media_id")
	if err != nil {
		return failure("ig_media_id is required"), nil
	}

	fields := request.GetString("fields", "id,media_type,media_url,permalink,timestamp")
	raw, err := s.graph.Get(ctx, creds.CategoryDefault, mediaID+"/children", url.Values{"fields": {fields}})
	if err != nil {
		return failure("failed to get media children: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}
