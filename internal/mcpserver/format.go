package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/folio/internal/markdown"
	"github.com/starford/folio/internal/richtext"
)

// formatNote toggles one mark or block type over a text range and saves the
// note. The save is conditional on the version that was loaded.
func (s *Server) formatNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	markName := req.GetString("mark", "")
	blockName := req.GetString("block", "")
	if (markName == "") == (blockName == "") {
		return mcp.NewToolResultError("exactly one of mark or block is required"), nil
	}

	loaded, err := s.svc.LoadDocument(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	doc := loaded.Content

	sel := richtext.All(doc)
	if match := req.GetString("match", ""); match != "" {
		var ok bool
		if sel, ok = findText(doc, match); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("text not found in a single run: %q", match)), nil
		}
	}

	if markName != "" {
		m, err := richtext.ParseMark(markName)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if _, err := richtext.ToggleMark(doc, sel, m); err != nil {
			return toolError(err), nil
		}
	} else {
		t, err := richtext.ParseBlockType(blockName)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t == richtext.ListItem {
			return mcp.NewToolResultError("list-item is not a valid block; use bulleted-list or numbered-list"), nil
		}
		if _, err := richtext.ToggleBlock(doc, sel, t); err != nil {
			return toolError(err), nil
		}
	}

	saved, err := s.svc.SaveDocument(ctx, id, doc, loaded.Checksum)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(markdown.Serialize(saved.Content)), nil
}

// findText selects the first occurrence of match inside one text leaf.
func findText(d *richtext.Document, match string) (*richtext.Selection, bool) {
	for p, n := range d.Walk() {
		if n.Kind != richtext.KindText {
			continue
		}
		i := strings.Index(n.Text, match)
		if i < 0 {
			continue
		}
		start := utf8.RuneCountInString(n.Text[:i])
		end := start + utf8.RuneCountInString(match)
		return richtext.Range(
			richtext.Point{Path: p.Clone(), Offset: start},
			richtext.Point{Path: p.Clone(), Offset: end},
		), true
	}
	return nil, false
}
