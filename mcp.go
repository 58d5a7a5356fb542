package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// newMCPServer exposes the preview operations as MCP tools. It shares the
// sandbox and readers of s, so the same confinement applies.
func newMCPServer(s *server) *mcpserver.MCPServer {
	m := mcpserver.NewMCPServer(
		"peekdir",
		version,
		mcpserver.WithToolCapabilities(false),
	)

	m.AddTool(mcp.NewTool(
		"get_chunk",
		mcp.WithDescription("Read a window of a text file below the served root. "+
			"Without offset and limit the whole file is returned if it fits the preview limit."),
		mcp.WithString("path",
			mcp.Description("Path relative to the root, e.g. /docs/readme.md"),
			mcp.Required(),
		),
		mcp.WithNumber("offset",
			mcp.Description("Byte offset to start at"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum bytes to return (0 = default chunk size)"),
		),
	), s.handleToolGetChunk)

	m.AddTool(mcp.NewTool(
		"classify",
		mcp.WithDescription("Classify a file name as image, markdown, code, text or binary."),
		mcp.WithString("name",
			mcp.Description("File name, e.g. main.go"),
			mcp.Required(),
		),
	), s.handleToolClassify)

	m.AddTool(mcp.NewTool(
		"render_markdown",
		mcp.WithDescription("Render markdown to sanitized HTML. Pass either markdown text or a path to a markdown file."),
		mcp.WithString("markdown",
			mcp.Description("Markdown source"),
		),
		mcp.WithString("path",
			mcp.Description("Path of a markdown file relative to the root"),
		),
	), s.handleToolRenderMarkdown)

	m.AddTool(mcp.NewTool(
		"resolve_highlight_language",
		mcp.WithDescription("Map a file extension to a syntax highlighting grammar name. "+
			"An empty result means the language should be auto-detected."),
		mcp.WithString("extension",
			mcp.Description("File extension without the dot"),
			mcp.Required(),
		),
		mcp.WithString("filename",
			mcp.Description("Optional file name, used for Dockerfile and Makefile"),
		),
	), s.handleToolResolveLanguage)

	m.AddTool(mcp.NewTool(
		"list_directory",
		mcp.WithDescription("List the entries of a directory below the served root."),
		mcp.WithString("path",
			mcp.Description("Directory path relative to the root, / for the root itself"),
			mcp.Required(),
		),
	), s.handleToolListDirectory)

	return m
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return toolText(string(data)), nil
}

// toolError reports a failed operation inside the tool result, using the
// same client-safe messages as the HTTP surface.
func toolError(err error) *mcp.CallToolResult {
	_, body := errorResponse(err)
	result := toolText(fmt.Sprintf("Error: %s (%s)", body.Error, body.Code))
	result.IsError = true
	return result
}

func (s *server) handleToolGetChunk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return nil, err
	}

	var offset, limit int64
	paged := false
	if v, err := request.RequireFloat("offset"); err == nil {
		offset, paged = int64(v), true
	}
	if v, err := request.RequireFloat("limit"); err == nil {
		limit, paged = int64(v), true
	}
	if offset < 0 || limit < 0 {
		return toolError(errInvalidRange), nil
	}

	chunk, err := s.getChunk(ctx, path, offset, limit, paged)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(chunk)
}

func (s *server) handleToolClassify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return nil, err
	}
	return toolJSON(classifyFile(name))
}

func (s *server) handleToolRenderMarkdown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if path, err := request.RequireString("path"); err == nil && path != "" {
		chunk, err := s.readFile(ctx, path, isMarkdown)
		if err != nil {
			return toolError(err), nil
		}
		return toolText(s.markdown.renderHTML(chunk.Content)), nil
	}
	source, err := request.RequireString("markdown")
	if err != nil {
		return toolError(badRequest("markdown or path is required")), nil
	}
	return toolText(s.markdown.renderHTML(source)), nil
}

func (s *server) handleToolResolveLanguage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ext, err := request.RequireString("extension")
	if err != nil {
		return nil, err
	}
	filename := ""
	if v, err := request.RequireString("filename"); err == nil {
		filename = v
	}
	return toolText(resolveLanguage(ext, filename)), nil
}

func (s *server) handleToolListDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return nil, err
	}
	entries, err := s.lister.listEntries(path)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(entries)
}
