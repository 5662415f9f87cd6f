package tools

import (
	"context"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"instagram-mcp/internal/creds"
)

func (s *Server) registerInsightsTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_USER_INSIGHTS",
		mcp.WithDescription("Get account-level insights. Valid metrics include reach, follower_count, profile_views, accounts_engaged, total_interactions, views."),
		mcp.WithString("metric", mcp.Required(), mcp.Description("Comma-separated metric list")),
		mcp.WithString("period", mcp.Description("Aggregation period, default day")),
		mcp.WithString("metric_type", mcp.Description("Set to total_value for metrics that require it")),
		mcp.WithString("breakdown", mcp.Description("Result breakdown dimension")),
		mcp.WithString("since", mcp.Description("Range start, Unix timestamp")),
		mcp.WithString("until", mcp.Description("Range end, Unix timestamp")),
		mcp.WithString("timeframe", mcp.Description("Timeframe for demographic metrics")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleGetUserInsights)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_POST_INSIGHTS",
		mcp.WithDescription("Get insights for a published post. Does not work on container IDs."),
		mcp.WithString("ig_post_id", mcp.Required(), mcp.Description("Published media ID")),
		mcp.WithString("metric", mcp.Description("Comma-separated metric list; a safe preset is used when omitted")),
		mcp.WithString("metric_preset", mcp.Description("Named metric preset, default auto_safe")),
	), s.handleGetPostInsights)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_MEDIA_INSIGHTS",
		mcp.WithDescription("Get insights for a media object. The impressions metric is replaced by reach on current API versions."),
		mcp.WithString("ig_media_id", mcp.Required(), mcp.Description("Published media ID")),
		mcp.WithString("metric", mcp.Required(), mcp.Description("Comma-separated metric list")),
		mcp.WithString("period", mcp.Description("Aggregation period, default lifetime")),
	), s.handleGetIGMediaInsights)
}

func (s *Server) handleGetUserInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metric, err := request.RequireString("metric")
	if err != nil {
		return failure("metric is required"), nil
	}
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	params := url.Values{
		"metric": {metric},
		"period": {request.GetString("period", "day")},
	}
	setIfPresent(params, "metric_type", request.GetString("metric_type", ""))
	setIfPresent(params, "breakdown", request.GetString("breakdown", ""))
	setIfPresent(params, "since", request.GetString("since", ""))
	setIfPresent(params, "until", request.GetString("until", ""))
	setIfPresent(params, "timeframe", request.GetString("timeframe", ""))

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, userID+"/insights", params)
	if err != nil {
		return failure("failed to get user insights: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleGetPostInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	postID, err := request.RequireString("ig_post_id")
	if err != nil {
		return failure("ig_post_id is required"), nil
	}

	params := url.Values{}
	if metric := request.GetString("metric", ""); metric != "" {
		params.Set("metric", metric)
	} else {
		params.Set("metric_preset", request.GetString("metric_preset", "auto_safe"))
	}

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, postID+"/insights", params)
	if err != nil {
		return failure("failed to get post insights: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleGetIGMediaInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mediaID, err := request.RequireString("ig_media_id")
	if err != nil {
		return failure("ig_media_id is required"), nil
	}
	metric, err := request.RequireString("metric")
	if err != nil {
		return failure("metric is required"), nil
	}

	params := url.Values{
		"metric": {replaceImpressions(metric)},
		"period": {request.GetString("period", "lifetime")},
	}

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, mediaID+"/insights", params)
	if err != nil {
		return failure("failed to get IG media insights: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

// replaceImpressions swaps the retired impressions metric for reach, keeping
// requests compatible with Graph API v22.0 and later.
func replaceImpressions(metric string) string {
	metrics := splitCSV(metric)
	cleaned := metrics[:0]
	dropped := false
	hasReach := false
	for _, m := range metrics {
		if strings.EqualFold(m, "impressions") {
			dropped = true
			continue
		}
		if strings.EqualFold(m, "reach") {
			hasReach = true
		}
		cleaned = append(cleaned, m)
	}
	if dropped && !hasReach {
		cleaned = append(cleaned, "reach")
	}
	return strings.Join(cleaned, ",")
}
