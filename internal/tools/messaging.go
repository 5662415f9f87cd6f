package tools

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"instagram-mcp/internal/creds"
)

const (
	conversationFields = "id,participants,updated_time"
	messageFields      = "id,message,from,created_time,attachments"

	missingPageIDMessage = "no Facebook Page ID available: connect the Instagram account to a Facebook Page and re-run 'instagram-mcp auth login'"
)

// Messaging endpoints authenticate with the Page token, so every handler in
// this file dispatches under the messaging category.
func (s *Server) registerMessagingTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_CONVERSATION",
		mcp.WithDescription("Get a DM conversation's participants and last update time."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
	), s.handleGetConversation)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_GET_CONVERSATIONS",
		mcp.WithDescription("List DM conversations for the connected Page."),
		mcp.WithString("page_id", mcp.Description("Facebook Page ID; defaults to the Page linked at login")),
		mcp.WithNumber("limit", mcp.Description("Page size")),
	), s.handleGetConversations)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_LIST_ALL_CONVERSATIONS",
		mcp.WithDescription("List all DM conversations with cursor pagination. Preferred over INSTAGRAM_GET_CONVERSATIONS."),
		mcp.WithNumber("limit", mcp.Description("Page size, default 25")),
		mcp.WithString("after", mcp.Description("Cursor for the next page")),
	), s.handleListAllConversations)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_LIST_ALL_MESSAGES",
		mcp.WithDescription("List the messages in a DM conversation."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
		mcp.WithNumber("limit", mcp.Description("Page size, default 25")),
		mcp.WithString("after", mcp.Description("Cursor for the next page")),
	), s.handleListAllMessages)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_SEND_TEXT_MESSAGE",
		mcp.WithDescription("Send a DM. The recipient must have messaged the account first or interacted with its content."),
		mcp.WithString("recipient_id", mcp.Required(), mcp.Description("Instagram-scoped user ID of the recipient")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
		mcp.WithString("reply_to_message_id", mcp.Description("Message ID this message replies to")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleSendTextMessage)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_SEND_IMAGE",
		mcp.WithDescription("Send an image attachment via DM."),
		mcp.WithString("recipient_id", mcp.Required(), mcp.Description("Instagram-scoped user ID of the recipient")),
		mcp.WithString("image_url", mcp.Required(), mcp.Description("Public URL of the image")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleSendImage)

	mcpServer.AddTool(mcp.NewTool("INSTAGRAM_MARK_SEEN",
		mcp.WithDescription("Mark the conversation with a user as seen."),
		mcp.WithString("recipient_id", mcp.Required(), mcp.Description("Instagram-scoped user ID of the sender")),
		mcp.WithString("ig_user_id", mcp.Description("Instagram account ID; defaults to the authorized account")),
	), s.handleMarkSeen)
}

func (s *Server) pageID(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if id := s.ids.FacebookPageID(); id != "" {
		return id, true
	}
	return "", false
}

func (s *Server) handleGetConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return failure("conversation_id is required"), nil
	}

	raw, err := s.graph.Get(ctx, creds.CategoryMessaging, conversationID,
		url.Values{"fields": {conversationFields}})
	if err != nil {
		return failure("failed to get conversation: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleGetConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, ok := s.pageID(request.GetString("page_id", ""))
	if !ok {
		return failure(missingPageIDMessage), nil
	}

	params := url.Values{
		"platform": {"instagram"},
		"fields":   {conversationFields},
	}
	setLimit(params, request)

	raw, err := s.graph.Get(ctx, creds.CategoryMessaging, pageID+"/conversations", params)
	if err != nil {
		return failure("failed to get conversations: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleListAllConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, ok := s.pageID("")
	if !ok {
		return failure(missingPageIDMessage), nil
	}

	params := url.Values{
		"platform": {"instagram"},
		"fields":   {conversationFields},
	}
	setLimit(params, request)
	setIfPresent(params, "after", request.GetString("after", ""))

	raw, err := s.graph.Get(ctx, creds.CategoryMessaging, pageID+"/conversations", params)
	if err != nil {
		return failure("failed to list conversations: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleListAllMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return failure("conversation_id is required"), nil
	}

	params := url.Values{"fields": {messageFields}}
	setLimit(params, request)
	setIfPresent(params, "after", request.GetString("after", ""))

	raw, err := s.graph.Get(ctx, creds.CategoryMessaging, conversationID+"/messages", params)
	if err != nil {
		return failure("failed to list messages: %v", err), nil
	}
	return successPage(splitPage(raw)), nil
}

func (s *Server) handleSendTextMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipientID, err := request.RequireString("recipient_id")
	if err != nil {
		return failure("recipient_id is required"), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return failure("text is required"), nil
	}
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	message := map[string]any{"text": text}
	if replyTo := request.GetString("reply_to_message_id", ""); replyTo != "" {
		message["reply_to"] = map[string]string{"message_id": replyTo}
	}

	params, err := messageParams(recipientID, message)
	if err != nil {
		return failure("failed to encode message: %v", err), nil
	}

	raw, err := s.graph.Post(ctx, creds.CategoryMessaging, userID+"/messages", params)
	if err != nil {
		return failure("failed to send text message: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleSendImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipientID, err := request.RequireString("recipient_id")
	if err != nil {
		return failure("recipient_id is required"), nil
	}
	imageURL, err := request.RequireString("image_url")
	if err != nil {
		return failure("image_url is required"), nil
	}
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	message := map[string]any{
		"attachment": map[string]any{
			"type":    "image",
			"payload": map[string]string{"url": imageURL},
		},
	}
	params, err := messageParams(recipientID, message)
	if err != nil {
		return failure("failed to encode message: %v", err), nil
	}

	raw, err := s.graph.Post(ctx, creds.CategoryMessaging, userID+"/messages", params)
	if err != nil {
		return failure("failed to send image: %v", err), nil
	}
	return success(raw), nil
}

func (s *Server) handleMarkSeen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipientID, err := request.RequireString("recipient_id")
	if err != nil {
		return failure("recipient_id is required"), nil
	}
	userID, ok := s.userID(request.GetString("ig_user_id", ""))
	if !ok {
		return failure(missingUserIDMessage), nil
	}

	recipient, err := json.Marshal(map[string]string{"id": recipientID})
	if err != nil {
		return failure("failed to encode recipient: %v", err), nil
	}
	params := url.Values{
		"recipient":     {string(recipient)},
		"sender_action": {"mark_seen"},
	}

	raw, err := s.graph.Post(ctx, creds.CategoryMessaging, userID+"/messages", params)
	if err != nil {
		return failure("failed to mark messages as seen: %v", err), nil
	}
	return success(raw), nil
}

// messageParams encodes the Send API's JSON-in-form-field parameter style.
func messageParams(recipientID string, message map[string]any) (url.Values, error) {
	recipient, err := json.Marshal(map[string]string{"id": recipientID})
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}
	return url.Values{
		"recipient": {string(recipient)},
		"message":   {string(encoded)},
	}, nil
}
