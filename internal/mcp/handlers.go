package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/recall/internal/errors"
	"github.com/hpungsan/recall/internal/logger"
	"github.com/hpungsan/recall/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers. Each call reloads
// from the database; nothing is kept between calls.
type Handlers struct {
	viewer *ops.Viewer
	log    logger.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(v *ops.Viewer, log logger.Logger) *Handlers {
	return &Handlers{viewer: v, log: log}
}

// ListRequest represents the arguments for capture_list.
type ListRequest struct {
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
	ShowTokens bool `json:"show_tokens,omitempty"`
}

// RangeArgs are the time range arguments shared by browse and range.
type RangeArgs struct {
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	StartMs *int64 `json:"start_ms,omitempty"`
	EndMs   *int64 `json:"end_ms,omitempty"`
}

func (r RangeArgs) input() ops.RangeInput {
	return ops.RangeInput{Start: r.Start, End: r.End, StartMs: r.StartMs, EndMs: r.EndMs}
}

// BrowseRequest represents the arguments for capture_browse.
type BrowseRequest struct {
	RangeArgs
	Position int `json:"position,omitempty"`
}

// RangeRequest represents the arguments for capture_range.
type RangeRequest struct {
	RangeArgs
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ReportRequest represents the arguments for capture_report.
type ReportRequest struct {
	Format string `json:"format,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Path   string `json:"path,omitempty"`
}

// HandleList handles the capture_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.viewer, ops.ListInput{
		Limit:      input.Limit,
		Offset:     input.Offset,
		ShowTokens: input.ShowTokens,
	})
	if err != nil {
		return h.fail(req, err), nil
	}
	return successResult(result)
}

// HandleBrowse handles the capture_browse tool call.
func (h *Handlers) HandleBrowse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BrowseRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Browse(ctx, h.viewer, ops.BrowseInput{
		Range:    input.input(),
		Position: input.Position,
	})
	if err != nil {
		return h.fail(req, err), nil
	}
	return successResult(result)
}

// HandleRange handles the capture_range tool call.
func (h *Handlers) HandleRange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RangeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.viewer, ops.SearchInput{
		Range:  input.input(),
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return h.fail(req, err), nil
	}
	return successResult(result)
}

// HandleStatus handles the capture_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(ctx, h.viewer)
	if err != nil {
		return h.fail(req, err), nil
	}
	return successResult(result)
}

// HandleReport handles the capture_report tool call.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Report(ctx, h.viewer, ops.ReportInput{
		Format: input.Format,
		Limit:  input.Limit,
		Path:   input.Path,
	})
	if err != nil {
		return h.fail(req, err), nil
	}
	if result.Path != "" {
		h.log.Info("report written", logger.String("path", result.Path), logger.String("id", result.ID))
	}
	return successResult(result)
}

func (h *Handlers) fail(req mcp.CallToolRequest, err error) *mcp.CallToolResult {
	if errors.As(err).Code == errors.ErrInternal {
		h.log.Error("tool call failed", logger.String("tool", req.Params.Name), logger.Error(err))
	}
	return errorResult(err)
}

// Result helpers

// errorResult creates an MCP error result from any error. INTERNAL errors
// carry neither details nor the driver message, which may hold paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	rErr := errors.As(err)

	errorObj := map[string]any{
		"code":    rErr.Code,
		"message": rErr.Message,
		"status":  rErr.Status,
	}
	if rErr.Code == errors.ErrInternal {
		errorObj["message"] = "an internal error occurred"
	} else if rErr.Details != nil {
		errorObj["details"] = rErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
