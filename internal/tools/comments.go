package tools

import (
	"context"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"instagram-mcp/internal/creds"
)

const (
	defaultCommentFields = "id,text,username,timestamp,like_count,from,hidden,media,parent_id"
	defaultReplyFields   = "id,text,username,timestamp,like_count,hidden,from,media,parent_id,legacy_instagram_comment_id"
)

func (s *Server) registerCommentTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_MEDIA_COMMENTS",
		mcp.WithDescription("List comments on a media object with rich default fields."),
		mcp.WithString("ig_media_id", mcp.Required(), mcp.Description("Media ID")),
		mcp.WithString("fields", mcp.Description("Comma-separated field list")),
		mcp.WithNumber("limit", mcp.Description("Page size, default 25")),
		mcp.WithString("after", mcp.Description("Cursor for the next page")),
		mcp.WithString("before", mcp.Description("Cursor for the previous page")),
	), s.handleGetIGMediaComments)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_POST_COMMENTS",
		mcp.WithDescription("List comments on a post. Returned comment IDs feed the reply and delete tools."),
		mcp.WithString("ig_post_id", mcp.Required(), mcp.Description("Post media ID")),
		mcp.WithNumber("limit", mcp.Description("Page size, default 25")),
		mcp.WithString("after", mcp.Description("Cursor for the next page")),
	), s.handleGetPostComments)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_POST_IG_MEDIA_COMMENTS",
		mcp.WithDescription("Comment on a media object. Max 300 characters, 4 hashtags, and 1 URL."),
		mcp.WithString("ig_media_id", mcp.Required(), mcp.Description("Media ID")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Comment text")),
	), s.handlePostIGMediaComments)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_POST_IG_COMMENT_REPLIES",
		mcp.WithDescription("Reply to a comment. Max 300 characters, 4 hashtags, and 1 URL."),
		mcp.WithString("ig_comment_id", mcp.Required(), mcp.Description("Comment ID")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Reply text")),
	), s.handleReplyToComment)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_REPLY_TO_COMMENT",
		mcp.WithDescription("Reply to a comment on a media object."),
		mcp.WithString("ig_comment_id", mcp.Required(), mcp.Description("Comment ID")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Reply text")),
	), s.handleReplyToComment)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_IG_COMMENT_REPLIES",
		mcp.WithDescription("List replies to a comment."),
		mcp.WithString("ig_comment_id", mcp.Required(), mcp.Description("Comment ID")),
		mcp.WithString("fields", mcp.Description("Comma-separated field list")),
		mcp.WithNumber("limit", mcp.Description("Page size, default 25")),
		mcp.WithString("after", mcp.Description("Cursor for the next page")),
		mcp.WithString("before", mcp.Description("Cursor for the previous page")),
	), s.handleGetIGCommentReplies)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_DELETE_COMMENT",
		mcp.WithDescription("Delete a comment created by the authorized account."),
		mcp.WithString("ig_comment_id", mcp.Required(), mcp.Description("Comment ID")),
	), s.handleDeleteComment)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_POST_IG_USER_MENTIONS",
		mcp.WithDescription("Reply to a mention of the account, on the mentioning media or a specific comment."),
		mcp.WithString("media_id", mcp.Required(), mcp.Description("Media containing the mention")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Reply text")),
		mcp.WithString("comment_id", mcp.Description("Reply to this comment instead of commenting on the media")),
	), s.handlePostIGUserMentions)
}

func (s *Server) handleGetIGMediaComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mediaID, err := request.RequireString("ig_media_id")
	if err != nil {
		return failure("ig_media_id is required"), nil
	}

	params := url.Values{"fields": {request.GetString("fields", defaultCommentFields)}}
	setLimit(params, request)
	setIfPresent(params, "after", request.GetString("after", ""))
	setIfPresent(params, "before", request.GetString("before", ""))

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, mediaID+"/comments", params)
	if err != nil {
		return failure("failed to get media comments: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleGetPostComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	postID, err := request.RequireString("ig_post_id")
	if err != nil {
		return failure("ig_post_id is required"), nil
	}

	params := url.Values{}
	setLimit(params, request)
	setIfPresent(params, "after", request.GetString("after", ""))

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, postID+"/comments", params)
	if err != nil {
		return failure("failed to get post comments: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handlePostIGMediaComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mediaID, err := request.RequireString("ig_media_id")
	if err != nil {
		return failure("ig_media_id is required"), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return failure("message is required"), nil
	}

	raw, err := s.graph.Post(ctx, creds.CategoryDefault, mediaID+"/comments", url.Values{"message": {message}})
	if err != nil {
		return failure("failed to post media comment: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleReplyToComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	commentID, err := request.RequireString("ig_comment_id")
	if err != nil {
		return failure("ig_comment_id is required"), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return failure("message is required"), nil
	}

	raw, err := s.graph.Post(ctx, creds.CategoryDefault, commentID+"/replies", url.Values{"message": {message}})
	if err != nil {
		return failure("failed to post comment reply: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleGetIGCommentReplies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	commentID, err := request.RequireString("ig_comment_id")
	if err != nil {
		return failure("ig_comment_id is required"), nil
	}

	params := url.Values{"fields": {request.GetString("fields", defaultReplyFields)}}
	setLimit(params, request)
	setIfPresent(params, "after", request.GetString("after", ""))
	setIfPresent(params, "before", request.GetString("before", ""))

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, commentID+"/replies", params)
	if err != nil {
		return failure("failed to get comment replies: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleDeleteComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	commentID, err := request.RequireString("ig_comment_id")
	if err != nil {
		return failure("ig_comment_id is required"), nil
	}

	raw, err := s.graph.Delete(ctx, creds.CategoryDefault, commentID, nil)
	if err != nil {
		return failure("failed to delete comment: %v", err), nil
	}
	if len(raw) == 0 {
		raw = []byte(`{"success": true}`)
	}
	return success(raw), nil
}

func (s *Server) handlePostIGUserMentions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mediaID, err := request.RequireString("media_id")
	if err != nil {
		return failure("media_id is required"), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return failure("message is required"), nil
	}

	endpoint := mediaID + "/comments"
	if commentID := request.GetString("comment_id", ""); commentID != "" {
		endpoint = commentID + "/replies"
	}

	raw, err := s.graph.Post(ctx, creds.CategoryDefault, endpoint, url.Values{"message": {message}})
	if err != nil {
		return failure("failed to reply to mention: %v", err), nil
	}
	return success(raw), nil
}
