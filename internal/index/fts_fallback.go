//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the search reads the plain-text body kept on the notes table.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// Search returns notes whose title, body or tags contain every query term,
// ignoring case for ASCII letters.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	where := make([]string, len(terms))
	args := make([]any, 0, 3*len(terms)+1)
	for i, t := range terms {
		where[i] = `(title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`
		like := "%" + escapeLike(t) + "%"
		args = append(args, like, like, like)
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT path, id, title, body
		FROM notes
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY title COLLATE NOCASE, path
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var body string
		if err := rows.Scan(&r.Path, &r.ID, &r.Title, &body); err != nil {
			return nil, err
		}
		r.Snippet = snippet(body, terms[0])
		out = append(out, r)
	}
	return out, rows.Err()
}
