package index

import (
	"fmt"
	"strings"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// Sort is a note list ordering.
type Sort string

// Note list orderings. The zero value sorts by last update, newest first.
const (
	SortTitleAsc    Sort = "title_asc"
	SortTitleDesc   Sort = "title_desc"
	SortUpdatedAsc  Sort = "updated_asc"
	SortUpdatedDesc Sort = "updated_desc"
	SortCreatedAsc  Sort = "created_asc"
	SortCreatedDesc Sort = "created_desc"
)

var sortClauses = map[Sort]string{
	SortTitleAsc:    "title COLLATE NOCASE ASC, path ASC",
	SortTitleDesc:   "title COLLATE NOCASE DESC, path ASC",
	SortUpdatedAsc:  "updated_at ASC, path ASC",
	SortUpdatedDesc: "updated_at DESC, path ASC",
	SortCreatedAsc:  "created_at ASC, path ASC",
	SortCreatedDesc: "created_at DESC, path ASC",
}

// ParseSort validates a sort name. The empty string selects SortUpdatedDesc.
func ParseSort(s string) (Sort, error) {
	if s == "" {
		return SortUpdatedDesc, nil
	}
	if _, ok := sortClauses[Sort(s)]; !ok {
		return "", fmt.Errorf("index: sort %q: %w", s, apperr.ErrInvalidFormat)
	}
	return Sort(s), nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListQuery selects a page of notes.
type ListQuery struct {
	Limit  int
	Offset int
	Tag    string
	Folder string
	Sort   Sort
}

// GraphNode is a note in the link graph.
type GraphNode struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

// GraphLink is an edge from one note id to another.
type GraphLink = models.Link

// ListNotes returns one page of notes and the total number of matches.
func (db *DB) ListNotes(q ListQuery) ([]NoteRow, int, error) {
	order, ok := sortClauses[q.Sort]
	if !ok {
		order = sortClauses[SortUpdatedDesc]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(q.Offset, 0)

	var where []string
	var args []any
	if q.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`)
		args = append(args, q.Tag)
	}
	if folder := strings.Trim(q.Folder, "/"); folder != "" {
		where = append(where, `path LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(folder)+"/%")
	}
	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT `+noteColumns+` FROM notes`+filter+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: list notes: %w", err)
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// Graph returns every note and every link between notes. Links whose
// target is not indexed are kept so the graph can show missing notes.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT id, path, title FROM notes ORDER BY path`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer rows.Close()

	nodes := []GraphNode{}
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.ID, &n.Path, &n.Title); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	lrows, err := db.conn.Query(`
		SELECT n.id, l.target
		FROM links l
		JOIN notes n ON n.path = l.source
		ORDER BY n.path, l.target
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer lrows.Close()

	links := []GraphLink{}
	for lrows.Next() {
		var l GraphLink
		if err := lrows.Scan(&l.Source, &l.Target); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, lrows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
