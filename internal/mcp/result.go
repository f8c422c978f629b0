package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"tunescope/internal/model"
)

// jsonResult renders a success payload: the summary sentence plus the
// structured data, as one JSON object.
func jsonResult(summary string, payload interface{}) (*mcp.CallToolResult, error) {
	body := map[string]interface{}{"summary": summary}
	if payload != nil {
		body["data"] = payload
	}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(`{"code":"INTERNAL_ERROR","message":"failed to encode result: %s"}`, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult renders any failure as a structured tool error, never a
// protocol fault. The second return is always nil so transports keep running.
func (s *Server) errorResult(tool string, err error) (*mcp.CallToolResult, error) {
	code := model.ErrorCode(err)
	s.logger.Error("tool call failed", "tool", tool, "code", code, "error", err)

	body, marshalErr := json.Marshal(map[string]string{
		"code":    code,
		"message": err.Error(),
	})
	if marshalErr != nil {
		return mcp.NewToolResultError(code + ": " + err.Error()), nil
	}
	return mcp.NewToolResultError(string(body)), nil
}
