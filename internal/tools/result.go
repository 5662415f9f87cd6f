package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// envelope is the uniform tool result shape. Failures are reported in-band
// so MCP clients always receive a parseable payload.
type envelope struct {
	Successful bool            `json:"successful"`
	Data       json.RawMessage `json:"data"`
	Paging     json.RawMessage `json:"paging,omitempty"`
	Error      string          `json:"error"`
}

func (e envelope) toolResult() *mcp.CallToolResult {
	if len(e.Data) == 0 {
		e.Data = json.RawMessage(`{}`)
	}
	encoded, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding tool result: %v", err))
	}
	return mcp.NewToolResultText(string(encoded))
}

func success(data json.RawMessage) *mcp.CallToolResult {
	return envelope{Successful: true, Data: data}.toolResult()
}

func successPage(data, paging json.RawMessage) *mcp.CallToolResult {
	return envelope{Successful: true, Data: data, Paging: paging}.toolResult()
}

func failure(format string, args ...any) *mcp.CallToolResult {
	return envelope{Successful: false, Error: fmt.Sprintf(format, args...)}.toolResult()
}

// splitPage pulls the data and paging members out of a Graph list response.
// Responses without a data member come back whole.
func splitPage(raw json.RawMessage) (data, paging json.RawMessage) {
	var page struct {
		Data   json.RawMessage `json:"data"`
		Paging json.RawMessage `json:"paging"`
	}
	if err := json.Unmarshal(raw, &page); err != nil || len(page.Data) == 0 {
		return raw, nil
	}
	return page.Data, page.Paging
}
