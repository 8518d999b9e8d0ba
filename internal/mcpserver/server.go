// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes offnote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/offnote/internal/apperr"
	"github.com/starford/offnote/internal/models"
	"github.com/starford/offnote/internal/syncengine"
)

const syncModelURI = "offnote://sync-model"

// Engine is the subset of *syncengine.Engine the tools need.
type Engine interface {
	Notes(ctx context.Context) ([]models.Note, error)
	Search(ctx context.Context, query string) ([]models.Note, error)
	CreateNote(ctx context.Context, title, content string) (models.Note, error)
	UpdateNote(ctx context.Context, id string, upd models.NoteUpdate) (models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	Status(ctx context.Context) (syncengine.Status, error)
	Pending(ctx context.Context) ([]models.PendingOp, error)
	SyncChanges(ctx context.Context) (syncengine.DrainResult, error)
}

// Server wraps the MCP server with offnote tools.
type Server struct {
	mcp *server.MCPServer
	eng Engine
}

// New creates a new MCP server with all offnote tools registered.
func New(eng Engine, version string) *Server {
	s := &Server{eng: eng}

	s.mcp = server.NewMCPServer(
		"offnote",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes ordered by updatedAt (oldest first). Works offline."),
		mcp.WithString("query", mcp.Description("Optional substring to match against title and content")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. It is saved locally at once and sent to the remote when online."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("Note body")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Update the title and/or content of a note. Omitted fields are unchanged."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New body")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note locally and, when possible, on the remote."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Report connectivity, queue depth and the pending remote operations."),
	), s.syncStatus)

	s.mcp.AddTool(mcp.NewTool("sync_now",
		mcp.WithDescription("Replay queued changes against the remote immediately."),
	), s.syncNow)

	s.mcp.AddResource(
		mcp.NewResource(syncModelURI, "Sync Model",
			mcp.WithResourceDescription("How notes move between the local and remote stores."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyncModel,
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

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		notes []models.Note
		err   error
	)
	if q := req.GetString("query", ""); q != "" {
		notes, err = s.eng.Search(ctx, q)
	} else {
		notes, err = s.eng.Notes(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if notes == nil {
		notes = []models.Note{}
	}
	return jsonResult(notes)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.eng.CreateNote(ctx, title, req.GetString("content", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var upd models.NoteUpdate
	args := req.GetArguments()
	if v, ok := args["title"].(string); ok {
		upd.Title = &v
	}
	if v, ok := args["content"].(string); ok {
		upd.Content = &v
	}
	if upd.Title == nil && upd.Content == nil {
		return mcp.NewToolResultError("nothing to update: pass title and/or content"), nil
	}

	note, err := s.eng.UpdateNote(ctx, id, upd)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.eng.DeleteNote(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

type statusReport struct {
	syncengine.Status
	Operations []models.PendingOp `json:"operations"`
}

func (s *Server) syncStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.eng.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ops, err := s.eng.Pending(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ops == nil {
		ops = []models.PendingOp{}
	}
	return jsonResult(statusReport{Status: st, Operations: ops})
}

func (s *Server) syncNow(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.eng.SyncChanges(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v (drained %d, remaining %d)", err, res.Drained, res.Remaining)), nil
	}
	return jsonResult(res)
}

func (s *Server) readSyncModel(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syncModelURI,
			MIMEType: "text/markdown",
			Text:     SyncModel,
		},
	}, nil
}
