package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"instagram-mcp/internal/creds"
)

const (
	defaultMediaFields   = "id,caption,media_type,media_url,permalink,thumbnail_url,timestamp,username"
	defaultStoryFields   = "id,media_type,media_url,permalink,timestamp"
	defaultTagFields     = "id,caption,media_type,media_url,permalink,timestamp,username"
	defaultProfileFields = "id,username,website,biography,profile_picture_url,followers_count,follows_count,media_count"
)

func (s *Server) registerUserTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_USER_INFO",
		mcp.WithDescription("Get the Instagram account profile: username, biography, follower counts, media count, website."),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleGetUserInfo)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_USER_MEDIA",
		mcp.WithDescription("List the account's media with default fields and cursor pagination."),
		mcp.WithNumber("limit", mcp.Description("Page size, default 25")),
		mcp.WithString("after", mcp.Description("Cursor for the next page")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleGetUserMedia)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_USER_MEDIA",
		mcp.WithDescription("List the account's media with custom fields and time filtering."),
		mcp.WithString("fields", mcp.Description("Comma-separated field list")),
		mcp.WithNumber("limit", mcp.Description("Page size, default 25")),
		mcp.WithString("after", mcp.Description("Cursor for the next page")),
		mcp.WithString("before", mcp.Description("Cursor for the previous page")),
		mcp.WithString("since", mcp.Description("Unix timestamp or strtotime value, inclusive lower bound")),
		mcp.WithString("until", mcp.Description("Unix timestamp or strtotime value, inclusive upper bound")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleGetIGUserMedia)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_USER_STORIES",
		mcp.WithDescription("List the account's active stories. Stories expire 24 hours after posting."),
		mcp.WithString("fields", mcp.Description("Comma-separated field list")),
		mcp.WithNumber("limit", mcp.Description("Page size")),
		mcp.WithString("after", mcp.Description("Cursor for the next page")),
		mcp.WithString("before", mcp.Description("Cursor for the previous page")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleGetIGUserStories)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_USER_TAGS",
		mcp.WithDescription("List media in which the account has been tagged by other users."),
		mcp.WithString("fields", mcp.Description("Comma-separated field list")),
		mcp.WithNumber("limit", mcp.Description("Page size, default 25")),
		mcp.WithString("after", mcp.Description("Cursor for the next page")),
		mcp.WithString("before", mcp.Description("Cursor for the previous page")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleGetIGUserTags)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_USER_CONTENT_PUBLISHING_LIMIT",
		mcp.WithDescription("Get the account's publishing quota usage. Publishing is limited to 25 posts per 24 hours."),
		mcp.WithString("fields", mcp.Description("Comma-separated field list, default quota_usage,config")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleGetContentPublishingLimit)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_USER_LIVE_MEDIA",
		mcp.WithDescription("List live media during an active broadcast."),
		mcp.WithString("fields", mcp.Description("Comma-separated field list")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleGetIGUserLiveMedia)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_USER_BY_USERNAME",
		mcp.WithDescription("Look up a Business or Creator account by username via business discovery."),
		mcp.WithString("username", mcp.Required(), mcp.Description("Username to look up, with or without a leading @")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleGetUserByUsername)
}

func (s *Server) handleGetUserInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, userID, url.Values{"fields": {defaultProfileFields}})
	if err != nil {
		return failure("failed to get user info: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleGetUserMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	params := url.Values{}
	setLimit(params, request)
	setIfPresent(params, "after", request.GetString("after", ""))

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, userID+"/media", params)
	if err != nil {
		return failure("failed to get user media: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleGetIGUserMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.listUserEdge(ctx, request, "media", defaultMediaFields, "failed to get user media")
}

func (s *Server) handleGetIGUserStories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.listUserEdge(ctx, request, "stories", defaultStoryFields, "failed to get user stories")
}

func (s *Server) handleGetIGUserTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.listUserEdge(ctx, request, "tags", defaultTagFields, "failed to get user tags")
}

// listUserEdge is the shared shape of the user media listing tools: resolve
// the account, forward fields and cursors, split off paging.
func (s *Server) listUserEdge(ctx context.Context, request mcp.CallToolRequest, edge, defaultFields, failurePrefix string) (*mcp.CallToolResult, error) {
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	params := url.Values{"fields": {request.GetString("fields", defaultFields)}}
	setLimit(params, request)
	setIfPresent(params, "after", request.GetString("after", ""))
	setIfPresent(params, "before", request.GetString("before", ""))
	setIfPresent(params, "since", request.GetString("since", ""))
	setIfPresent(params, "until", request.GetString("until", ""))

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, userID+"/"+edge, params)
	if err != nil {
		return failure("%s: %v", failurePrefix, err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleGetContentPublishingLimit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	fields := request.GetString("fields", "quota_usage,config")
	raw, err := s.graph.Get(ctx, creds.CategoryDefault, userID+"/content_publishing_limit",
		url.Values{"fields": {fields}})
	if err != nil {
		return failure("failed to get content publishing limit: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleGetIGUserLiveMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	fields := request.GetString("fields", "id,media_type,media_url,timestamp,permalink")
	raw, err := s.graph.Get(ctx, creds.CategoryDefault, userID+"/live_media", url.Values{"fields": {fields}})
	if err != nil {
		return failure("failed to get live media: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleGetUserByUsername(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username, err := request.RequireString("username")
	if err != nil {
		return failure("username is required"), nil
	}
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	clean := strings.TrimPrefix(username, "@")
	discovery := fmt.Sprintf(
		"business_discovery.username(%s){id,username,name,profile_picture_url,biography,followers_count,follows_count,media_count}",
		clean)

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, userID, url.Values{"fields": {discovery}})
	if err != nil {
		return failure("failed to get user by username: %v", err), nil
	}

	var parsed struct {
		BusinessDiscovery json.RawMessage `json:"business_discovery"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.BusinessDiscovery) == 0 {
		return failure("user not found or account is not a Business/Creator account"), nil
	}
	return success(parsed.BusinessDiscovery), nil
}

func setLimit(params url.Values, request mcp.CallToolRequest) {
	if limit := request.GetInt("limit", 25); limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
}
