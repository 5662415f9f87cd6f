package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"instagram-mcp/internal/creds"
	"instagram-mcp/pkg/logging"
)

// Container polling is a bounded wait: a fixed interval and a fixed attempt
// ceiling, checked against the call context.
const (
	containerPollInterval = 3 * time.Second
	containerPollAttempts = 20
)

func (s *Server) registerPublishingTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_CREATE_MEDIA_CONTAINER",
		mcp.WithDescription("Create a draft media container for a photo, video, or reel. Returns a creation_id for publishing."),
		mcp.WithString("image_url", mcp.Description("Public URL of the image to post")),
		mcp.WithString("video_url", mcp.Description("Public URL of the video to post")),
		mcp.WithString("caption", mcp.Description("Caption text")),
		mcp.WithString("media_type", mcp.Description("IMAGE or VIDEO; inferred from the URL arguments when omitted")),
		mcp.WithString("content_type", mcp.Description("Content type hint, e.g. REELS")),
		mcp.WithString("cover_url", mcp.Description("Cover image URL for videos")),
		mcp.WithBoolean("is_carousel_item", mcp.Description("Mark this container as a carousel child")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleCreateMediaContainer)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_POST_IG_USER_MEDIA",
		mcp.WithDescription("Create a media container for an image, video, reel, or carousel with full parameter support. Returns a creation_id."),
		mcp.WithString("image_url", mcp.Description("Public URL of the image")),
		mcp.WithString("video_url", mcp.Description("Public URL of the video")),
		mcp.WithString("caption", mcp.Description("Caption text")),
		mcp.WithString("media_type", mcp.Description("IMAGE, VIDEO, REELS, STORIES, or CAROUSEL")),
		mcp.WithString("cover_url", mcp.Description("Cover image URL for videos")),
		mcp.WithBoolean("is_carousel_item", mcp.Description("Mark this container as a carousel child")),
		mcp.WithString("children", mcp.Description("Comma-separated child container IDs for a carousel")),
		mcp.WithString("location_id", mcp.Description("Facebook Page ID of a location to tag")),
		mcp.WithString("user_tags", mcp.Description("JSON array of user tag objects")),
		mcp.WithNumber("thumb_offset", mcp.Description("Video thumbnail offset in milliseconds")),
		mcp.WithBoolean("share_to_feed", mcp.Description("Whether a reel also appears in the feed")),
		mcp.WithString("audio_name", mcp.Description("Audio track name for reels")),
		mcp.WithString("collaborators", mcp.Description("Comma-separated collaborator usernames")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handlePostIGUserMedia)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_CREATE_CAROUSEL_CONTAINER",
		mcp.WithDescription("Create a carousel container from existing child containers or from image/video URLs."),
		mcp.WithString("children", mcp.Description("Comma-separated child container IDs")),
		mcp.WithString("child_image_urls", mcp.Description("Comma-separated image URLs; child containers are created automatically")),
		mcp.WithString("child_video_urls", mcp.Description("Comma-separated video URLs; child containers are created automatically")),
		mcp.WithString("caption", mcp.Description("Caption text")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleCreateCarouselContainer)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_POST_STATUS",
		mcp.WithDescription("Check a media container's processing status (IN_PROGRESS, FINISHED, ERROR, EXPIRED, PUBLISHED)."),
		mcp.WithString("creation_id", mcp.Required(), mcp.Description("Container ID returned by a create tool")),
	), s.handleGetPostStatus)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_CREATE_POST",
		mcp.WithDescription("Publish a media container, waiting for it to finish processing first."),
		mcp.WithString("creation_id", mcp.Required(), mcp.Description("Container ID to publish")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleCreatePost)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_POST_IG_USER_MEDIA_PUBLISH",
		mcp.WithDescription("Publish a media container with status polling. Publishing is rate limited to 25 posts per 24 hours."),
		mcp.WithString("creation_id", mcp.Required(), mcp.Description("Container ID to publish")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handlePublishMedia)
}

func (s *Server) handleCreateMediaContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	imageURL := request.GetString("image_url", "")
	videoURL := request.GetString("video_url", "")
	if imageURL == "" && videoURL == "" {
		return failure("either image_url or video_url must be provided"), nil
	}

	mediaType := strings.ToUpper(request.GetString("media_type", ""))
	switch mediaType {
	case "":
		if videoURL != "" {
			mediaType = "VIDEO"
		} else {
			mediaType = "IMAGE"
		}
	case "IMAGE", "VIDEO":
	default:
		return failure("media_type must be IMAGE or VIDEO, not %q", mediaType), nil
	}

	params := url.Values{"media_type": {mediaType}}
	setIfPresent(params, "image_url", imageURL)
	setIfPresent(params, "video_url", videoURL)
	setIfPresent(params, "caption", request.GetString("caption", ""))
	setIfPresent(params, "content_type", request.GetString("content_type", ""))
	setIfPresent(params, "cover_url", request.GetString("cover_url", ""))
	if request.GetBool("is_carousel_item", false) {
		params.Set("is_carousel_item", "true")
	}

	raw, err := s.graph.Post(ctx, creds.CategoryDefault, userID+"/media", params)
	if err != nil {
		return failure("failed to create media container: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handlePostIGUserMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	imageURL := request.GetString("image_url", "")
	videoURL := request.GetString("video_url", "")
	children := request.GetString("children", "")
	if imageURL == "" && videoURL == "" && children == "" {
		return failure("either image_url, video_url, or children must be provided"), nil
	}

	mediaType := strings.ToUpper(request.GetString("media_type", ""))
	if mediaType == "" {
		switch {
		case videoURL != "":
			mediaType = "VIDEO"
		case imageURL != "":
			mediaType = "IMAGE"
		default:
			mediaType = "CAROUSEL"
		}
	}

	params := url.Values{"media_type": {mediaType}}
	setIfPresent(params, "image_url", imageURL)
	setIfPresent(params, "video_url", videoURL)
	setIfPresent(params, "caption", request.GetString("caption", ""))
	setIfPresent(params, "cover_url", request.GetString("cover_url", ""))
	setIfPresent(params, "children", children)
	setIfPresent(params, "location_id", request.GetString("location_id", ""))
	setIfPresent(params, "user_tags", request.GetString("user_tags", ""))
	setIfPresent(params, "audio_name", request.GetString("audio_name", ""))
	setIfPresent(params, "collaborators", request.GetString("collaborators", ""))
	if request.GetBool("is_carousel_item", false) {
		params.Set("is_carousel_item", "true")
	}
	if offset := request.GetInt("thumb_offset", -1); offset >= 0 {
		params.Set("thumb_offset", strconv.Itoa(offset))
	}
	if args := request.GetArguments(); args != nil {
		if _, present := args["share_to_feed"]; present {
			params.Set("share_to_feed", strconv.FormatBool(request.GetBool("share_to_feed", false)))
		}
	}

	raw, err := s.graph.Post(ctx, creds.CategoryDefault, userID+"/media", params)
	if err != nil {
		return failure("failed to create media container: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleCreateCarouselContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	children := splitCSV(request.GetString("children", ""))
	imageURLs := splitCSV(request.GetString("child_image_urls", ""))
	videoURLs := splitCSV(request.GetString("child_video_urls", ""))

	if len(children) > 0 && (len(imageURLs) > 0 || len(videoURLs) > 0) {
		return failure("provide either children or child URLs, not both"), nil
	}
	if len(children) == 0 && len(imageURLs) == 0 && len(videoURLs) == 0 {
		return failure("provide children or at least one child_image_urls/child_video_urls entry"), nil
	}

	if len(children) == 0 {
		for _, u := range imageURLs {
			id, err := s.createChildContainer(ctx, userID, "IMAGE", "image_url", u)
			if err != nil {
				return failure("failed to create child media container: %v", err), nil
			}
			children = append(children, id)
		}
		for _, u := range videoURLs {
			id, err := s.createChildContainer(ctx, userID, "VIDEO", "video_url", u)
			if err != nil {
				return failure("failed to create child media container: %v", err), nil
			}
			children = append(children, id)
		}
	}

	params := url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
	}
	setIfPresent(params, "caption", request.GetString("caption", ""))

	raw, err := s.graph.Post(ctx, creds.CategoryDefault, userID+"/media", params)
	if err != nil {
		return failure("failed to create carousel container: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) createChildContainer(ctx context.Context, userID, mediaType, urlParam, mediaURL string) (string, error) {
	params := url.Values{
		"media_type":       {mediaType},
		"is_carousel_item": {"true"},
		urlParam:           {mediaURL},
	}
	raw, err := s.graph.Post(ctx, creds.CategoryDefault, userID+"/media", params)
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("child container response carried no id")
	}
	return created.ID, nil
}

func (s *Server) handleGetPostStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creationID, err := request.RequireString("creation_id")
	if err != nil {
		return failure("creation_id is required"), nil
	}

	raw, err := s.graph.Get(ctx, creds.CategoryDefault, creationID, url.Values{"fields": {"status_code"}})
	if err != nil {
		return failure("failed to get post status: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleCreatePost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.publishContainer(ctx, request)
}

func (s *Server) handlePublishMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.publishContainer(ctx, request)
}

func (s *Server) publishContainer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creationID, err := request.RequireString("creation_id")
	if err != nil {
		return failure("creation_id is required"), nil
	}
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	status, raw, err := s.waitForContainer(ctx, creationID)
	if err != nil {
		return failure("failed while waiting for media container: %v", err), nil
	}
	switch status {
	case "FINISHED":
	case "PUBLISHED":
		return successPage(raw, nil), nil
	case "ERROR":
		return failure("media container processing failed"), nil
	case "EXPIRED":
		return failure("media container has expired; create a new one"), nil
	default:
		return failure("media container still %s after %d status checks; check again with INSTAGRAM_GET_POST_STATUS",
			status, containerPollAttempts), nil
	}

	published, err := s.graph.Post(ctx, creds.CategoryDefault, userID+"/media_publish",
		url.Values{"creation_id": {creationID}})
	if err != nil {
		return failure("failed to publish media: %v", err), nil
	}
	return success(published), nil
}

// waitForContainer polls the container status until it leaves IN_PROGRESS,
// the attempt ceiling is reached, or ctx is done. The final raw status
// response is returned alongside the status code.
func (s *Server) waitForContainer(ctx context.Context, creationID string) (string, json.RawMessage, error) {
	fields := url.Values{"fields": {"status_code"}}
	var status string
	var raw json.RawMessage

	for attempt := 0; attempt < containerPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", nil, ctx.Err()
			case <-time.After(containerPollInterval):
			}
		}

		var err error
		raw, err = s.graph.Get(ctx, creds.CategoryDefault, creationID, fields)
		if err != nil {
			return "", nil, err
		}

		var parsed struct {
			StatusCode string `json:"status_code"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", nil, fmt.Errorf("parsing container status: %w", err)
		}

		status = strings.ToUpper(parsed.StatusCode)
		if status != "IN_PROGRESS" {
			return status, raw, nil
		}
		logging.Debug("Tools", "container %s still processing (attempt %d)", creationID, attempt+1)
	}

	return status, raw, nil
}

func setIfPresent(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
