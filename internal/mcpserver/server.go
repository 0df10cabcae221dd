// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vaultsnap tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultsnap/internal/apperr"
	"github.com/starford/vaultsnap/internal/directive"
	"github.com/starford/vaultsnap/internal/models"
	"github.com/starford/vaultsnap/internal/noteservice"
	"github.com/starford/vaultsnap/internal/refcode"
)

const directiveURI = "vaultsnap://directives"

// Handler processes an image that was saved into the images folder.
type Handler interface {
	Handle(ctx context.Context, path string) (*models.Processed, error)
}

// Server wraps the MCP server with vaultsnap tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *noteservice.Service
	images  string
	handler Handler
}

// New creates a new MCP server with all vaultsnap tools registered.
// imagesDir and h may be empty/nil, in which case import_image is not offered.
func New(svc *noteservice.Service, imagesDir string, h Handler) *Server {
	s := &Server{svc: svc, images: imagesDir, handler: h}

	s.mcp = server.NewMCPServer(
		"vaultsnap",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("parse_directives",
		mcp.WithDescription("Parse $key=value directives and [[File:...]] reference codes from note text. "+
			"Optionally returns the text with directives stripped."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown note content")),
		mcp.WithBoolean("strip", mcp.Description("Also return the content with directives removed")),
	), s.parseDirectives)

	s.mcp.AddTool(mcp.NewTool("preview_note",
		mcp.WithDescription("Show which note the next image goes to, the resolved prefix, "+
			"the next file name and the reference code. Has no side effects."),
		mcp.WithString("path", mcp.Description("Vault-relative note path; latest note when empty")),
		mcp.WithString("ext", mcp.Description("Image extension, default .png")),
	), s.previewNote)

	s.mcp.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List recently processed images, newest first."),
		mcp.WithNumber("limit", mcp.Description("Max entries (default 50)")),
	), s.listHistory)

	s.mcp.AddTool(mcp.NewTool("get_directive_reference",
		mcp.WithDescription("Returns the directive and reference code reference. "+
			"Call this before editing notes to steer image naming."),
	), s.getDirectiveReference)

	if imagesDir != "" && h != nil {
		s.mcp.AddTool(mcp.NewTool("import_image",
			mcp.WithDescription("Download an image (http/https URL or base64 data URI) into the images "+
				"folder and process it into the latest note. Returns the processing result."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
			mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
		), s.importImage)
	}

	s.mcp.AddResource(
		mcp.NewResource(directiveURI, "Directive Reference",
			mcp.WithResourceDescription("Note directives and reference code grammar."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDirectiveResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type parseResult struct {
	Directives directive.Set  `json:"directives"`
	Codes      []refcode.Code `json:"codes"`
	Stripped   *string        `json:"stripped,omitempty"`
}

func (s *Server) parseDirectives(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := parseResult{
		Directives: directive.Parse(content),
		Codes:      refcode.FindAll(content),
	}
	if out.Codes == nil {
		out.Codes = []refcode.Code{}
	}
	if req.GetBool("strip", false) {
		stripped := directive.Strip(content)
		out.Stripped = &stripped
	}
	return jsonResult(out)
}

func (s *Server) previewNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.svc.Preview(ctx, req.GetString("path", ""), req.GetString("ext", ""))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNoCandidate):
			return mcp.NewToolResultError("no note in vault"), nil
		case errors.Is(err, apperr.ErrNotFound):
			return mcp.NewToolResultError("note not found"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p)
}

func (s *Server) listHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.Recent(ctx, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no images processed yet"), nil
	}
	return jsonResult(entries)
}

func (s *Server) getDirectiveReference(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DirectiveReference), nil
}

func (s *Server) readDirectiveResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      directiveURI,
			MIMEType: "text/markdown",
			Text:     DirectiveReference,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
