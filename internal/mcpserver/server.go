// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Folio tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/noteservice"
)

const noteFormatURI = "folio://note-format"

// Server wraps the MCP server with Folio tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Folio tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through notes content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note by path or id."),
		mcp.WithString("path", mcp.Description("Relative path to the note (e.g. folder/note.md)")),
		mcp.WithString("id", mcp.Description("Note id from frontmatter; used when path is empty")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note at the specified path. "+
			"Content MUST follow the Folio note format (YAML frontmatter, Markdown body with "+
			"[[id|title]] links). Read the contract first via the get_note_contract tool or the "+
			noteFormatURI+" resource. An id is assigned when the frontmatter has none."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new note (.md is appended when missing)")),
		mcp.WithString("content", mcp.Description("Note content following the Folio note format contract; empty creates a blank note")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Folio note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, optionally restricted to a folder or tag."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
		mcp.WithString("sort", mcp.Description("Sort order"),
			mcp.Enum(string(index.SortTitleAsc), string(index.SortTitleDesc),
				string(index.SortUpdatedAsc), string(index.SortUpdatedDesc),
				string(index.SortCreatedAsc), string(index.SortCreatedDesc))),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the note with the given id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("format_note",
		mcp.WithDescription("Toggle a mark (bold, italic, underline, code) or a block type "+
			"(paragraph, heading-one, heading-two, bulleted-list, numbered-list, block-quote, "+
			"code-block) on part of a note and save it. Exactly one of mark or block is required."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("mark", mcp.Description("Mark to toggle")),
		mcp.WithString("block", mcp.Description("Block type to toggle")),
		mcp.WithString("match", mcp.Description("Text to select, matched within a single run of text; empty selects the whole note")),
	), s.formatNote)

	s.mcp.AddTool(mcp.NewTool("import_note",
		mcp.WithDescription("Import a Markdown or plain-text file as a new note. "+
			"Accepts an http(s) URL or a base64 data URI. The note gets a new id and a "+
			"path derived from its title."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:text/markdown;base64,... URI")),
		mcp.WithString("filename", mcp.Description("File name used for the title when the content has none (.md, .markdown or .txt)")),
	), s.importNote)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("Canonical note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError("note already exists")
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	id := req.GetString("id", "")

	var (
		note *noteservice.NoteDetail
		err  error
	)
	switch {
	case path != "":
		note, err = s.svc.GetNote(ctx, path)
	case id != "":
		note, err = s.svc.GetByID(ctx, id)
	default:
		return mcp.NewToolResultError("path or id is required"), nil
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s%s", path, id)), nil
		}
		return toolError(err), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := req.GetString("content", "")

	note, err := s.svc.CreateNote(ctx, path, []byte(content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("note already exists: %s", path)), nil
		}
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (id %s)", note.Path, note.ID)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sort, err := index.ParseSort(req.GetString("sort", string(index.SortTitleAsc)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, _, err := s.svc.ListNotes(ctx, index.ListQuery{
		Folder: req.GetString("folder", ""),
		Tag:    req.GetString("tag", ""),
		Sort:   sort,
		Limit:  500,
	})
	if err != nil {
		return toolError(err), nil
	}

	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.Path
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}
