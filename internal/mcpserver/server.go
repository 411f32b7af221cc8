// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes deck tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/deckservice"
)

// DefinitionFormatURI is the resource URI of the definition format document.
const DefinitionFormatURI = "deckhand://definition-format"

// Server wraps the MCP server with deck tools.
type Server struct {
	mcp *server.MCPServer
	svc *deckservice.Service
}

// New creates a new MCP server with all deck tools registered.
func New(svc *deckservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"deckhand",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_decks",
		mcp.WithDescription("List registered decks with revision, card count and last error."),
	), s.listDecks)

	s.mcp.AddTool(mcp.NewTool("get_deck",
		mcp.WithDescription("Return the resolved state of a deck: general options, hierarchy, "+
			"auxiliary files and cards. Read the definition format first via the "+
			DefinitionFormatURI+" resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Deck name as returned by list_decks")),
	), s.getDeck)

	s.mcp.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Return a single card of a resolved deck."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Deck name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Card id")),
	), s.getEntry)

	s.mcp.AddTool(mcp.NewTool("sync_deck",
		mcp.WithDescription("Run a sync pass on a deck and report the outcome."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Deck name")),
	), s.syncDeck)

	s.mcp.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("List recorded sync passes of a deck, newest first."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Deck name")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of passes (default 50)")),
	), s.getHistory)

	s.mcp.AddResource(
		mcp.NewResource(DefinitionFormatURI, "Deck Definition Format",
			mcp.WithResourceDescription("Structure and merge rules of deck definition documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDefinitionFormat,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func notFound(what string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", what))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listDecks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.List())
}

func (s *Server) getDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	det, err := s.svc.Describe(name)
	if err != nil {
		return notFound(name, err), nil
	}
	return jsonResult(det)
}

func (s *Server) getEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.svc.Entry(name, id)
	if err != nil {
		return notFound(name+"/"+id, err), nil
	}
	return jsonResult(e)
}

func (s *Server) syncDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome, err := s.svc.Sync(ctx, name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return notFound(name, err), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", outcome, err)), nil
	}
	return mcp.NewToolResultText(outcome.String()), nil
}

func (s *Server) getHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	passes, err := s.svc.History(name, req.GetInt("limit", 0))
	if err != nil {
		return notFound(name, err), nil
	}
	if len(passes) == 0 {
		return mcp.NewToolResultText("no passes recorded"), nil
	}
	return jsonResult(passes)
}

func (s *Server) readDefinitionFormat(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DefinitionFormatURI,
			MIMEType: "text/markdown",
			Text:     DefinitionFormat,
		},
	}, nil
}
