// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the ter renderer to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ter/internal/apperr"
	"github.com/starford/ter/internal/links"
	"github.com/starford/ter/internal/models"
	"github.com/starford/ter/internal/render"
	"github.com/starford/ter/internal/site"
)

const formatURI = "ter://page-format"

// Pages renders source files of the configured site.
type Pages interface {
	RenderPage(source string, opts models.BuildOptions) ([]byte, error)
	BaseURL() *url.URL
}

// Server wraps the MCP server with ter tools.
type Server struct {
	mcp   *server.MCPServer
	pages Pages
}

// New creates a new MCP server with all tools registered.
func New(pages Pages, version string) *Server {
	s := &Server{pages: pages}

	s.mcp = server.NewMCPServer(
		"ter",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("render_markdown",
		mcp.WithDescription("Render a markdown fragment to HTML the way the site builder does. "+
			"Returns the HTML, the heading list and the absolute URLs of linked pages."),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Markdown source, without frontmatter")),
		mcp.WithString("path", mcp.Description("Site path of the document (e.g. blog/post); relative links resolve against it")),
		mcp.WithBoolean("is_index", mcp.Description("Whether the document is the index page of path")),
		mcp.WithString("base_url", mcp.Description("Base URL for link targets (defaults to the site base URL)")),
	), s.renderMarkdown)

	s.mcp.AddTool(mcp.NewTool("resolve_link",
		mcp.WithDescription("Resolve an href as it would appear in a page at path."),
		mcp.WithString("href", mcp.Required(), mcp.Description("Link reference as written in markdown")),
		mcp.WithString("path", mcp.Description("Site path of the linking document")),
		mcp.WithBoolean("is_index", mcp.Description("Whether the linking document is an index page")),
	), s.resolveLink)

	s.mcp.AddTool(mcp.NewTool("render_page",
		mcp.WithDescription("Render one source file of the site through the page view, without writing it. "+
			"Read the format first via the "+formatURI+" resource."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source path relative to the input directory (e.g. blog/post.md)")),
	), s.renderPage)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Page Format",
			mcp.WithResourceDescription("How markdown sources map to pages and how links resolve."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

type renderResult struct {
	HTML     string           `json:"html"`
	Headings []models.Heading `json:"headings"`
	Links    []string         `json:"links"`
}

type linkResult struct {
	External bool   `json:"external"`
	Href     string `json:"href"`
	Target   string `json:"target,omitempty"`
}

func (s *Server) renderMarkdown(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	md, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	base := s.pages.BaseURL()
	if raw := req.GetString("base_url", ""); raw != "" {
		base, err = url.Parse(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid base_url: %v", err)), nil
		}
	}

	res := render.Render([]byte(md), render.Options{Document: document(req), BaseURL: base})
	out := renderResult{HTML: res.HTML, Headings: res.Headings, Links: res.Links}
	if out.Headings == nil {
		out.Headings = []models.Heading{}
	}
	if out.Links == nil {
		out.Links = []string{}
	}
	return jsonResult(out)
}

func (s *Server) resolveLink(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	href, err := req.RequireString("href")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r := links.ResolveLink(href, document(req), s.pages.BaseURL())
	return jsonResult(linkResult{External: r.External, Href: r.Href, Target: r.Target})
}

func (s *Server) renderPage(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	html, err := s.pages.RenderPage(source, models.BuildOptions{Quiet: true})
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", source)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(html)), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}

// document reads the path and is_index arguments. A source file path
// ("blog/index.md") is accepted too and mapped like the builder does.
func document(req mcp.CallToolRequest) models.Document {
	p := req.GetString("path", "")
	if strings.HasSuffix(p, ".md") {
		return site.DocumentFor(p)
	}
	return models.Document{Path: strings.Trim(p, "/"), IsIndex: req.GetBool("is_index", false)}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
