package noteservice

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/index"
	rt "github.com/starford/folio/internal/richtext"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/testutil"
)

func newService(t *testing.T) (*Service, storage.Provider) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	return NewService(store, db), store
}

func TestCreateNote_AssignsIDAndEmptyDocument(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, "inbox/first", nil)
	require.NoError(t, err)
	assert.Equal(t, "inbox/first.md", n.Path)
	assert.Len(t, n.ID, 36)

	doc, err := svc.LoadDocument(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, rt.Equal(rt.New(), doc.Content))

	_, err = svc.CreateNote(ctx, "inbox/first.md", []byte("again"))
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestCreateNote_KeepsGivenID(t *testing.T) {
	svc, _ := newService(t)
	n, err := svc.CreateNote(context.Background(), "a.md", []byte("---\nid: fixed\n---\n# A\n"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", n.ID)
	assert.Equal(t, "A", n.Title)
	assert.Contains(t, n.Frontmatter, "created")
}

func TestCreateNote_RejectsTraversal(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateNote(context.Background(), "../escape.md", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidFormat)
}

func TestUpdateNote_IfMatchAndIDPreserved(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	n, err := svc.CreateNote(ctx, "u.md", []byte("---\nid: u1\n---\nold\n"))
	require.NoError(t, err)

	_, err = svc.UpdateNote(ctx, "u.md", []byte("new"), "stale")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	up, err := svc.UpdateNote(ctx, "u.md", []byte("new body"), n.Checksum)
	require.NoError(t, err)
	assert.Equal(t, "u1", up.ID)
	assert.Contains(t, up.Content, "new body")

	_, err = svc.UpdateNote(ctx, "missing.md", []byte("x"), "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteNote(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_, err := svc.CreateNote(ctx, "d.md", []byte("bye"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNote(ctx, "d.md"))
	assert.False(t, store.Exists("d.md"))
	assert.ErrorIs(t, svc.DeleteNote(ctx, "d.md"), apperr.ErrNotFound)
}

func TestMoveNote_KeepsLinks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateNote(ctx, "target.md", []byte("---\nid: t1\n---\n# Target\n"))
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, "src.md", []byte("---\nid: s1\n---\nsee [[t1|Target]]\n"))
	require.NoError(t, err)

	moved, err := svc.MoveNote(ctx, "target.md", "archive/target")
	require.NoError(t, err)
	assert.Equal(t, "archive/target.md", moved.Path)
	assert.Equal(t, []string{"src.md"}, moved.Backlinks)

	got, err := svc.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "archive/target.md", got.Path)

	_, err = svc.MoveNote(ctx, "target.md", "x.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.MoveNote(ctx, "src.md", "archive/target.md")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	folders, err := svc.Folders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive"}, folders)
}

func TestIDLessNotes_KeepPathIDAfterWrites(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	for _, p := range []string{"loose/a.md", "loose/b.md", "loose/c.md"} {
		data := []byte("# " + p + "\n")
		require.NoError(t, store.Write(p, data))
		require.NoError(t, index.IndexFile(svc.db, p, data))
	}

	up, err := svc.UpdateNote(ctx, "loose/a.md", []byte("new body"), "")
	require.NoError(t, err)
	assert.Equal(t, "loose/a", up.ID)
	raw, err := store.Read("loose/a.md")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "id: loose/a")

	saved, err := svc.SaveDocument(ctx, "loose/b", rt.MustBuild(rt.P(rt.T("b"))), "")
	require.NoError(t, err)
	assert.Equal(t, "loose/b", saved.ID)
	moved, err := svc.MoveNote(ctx, "loose/b.md", "kept/b")
	require.NoError(t, err)
	assert.Equal(t, "loose/b", moved.ID)

	moved, err = svc.MoveNote(ctx, "loose/c.md", "moved/c")
	require.NoError(t, err)
	assert.Equal(t, "loose/c", moved.ID)
	got, err := svc.GetByID(ctx, "loose/c")
	require.NoError(t, err)
	assert.Equal(t, "moved/c.md", got.Path)
	assert.Contains(t, got.Content, "# loose/c.md")
}

func TestListNotes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, p := range []string{"b.md", "a.md", "c.md"} {
		_, err := svc.CreateNote(ctx, p, []byte("# "+strings.ToUpper(strings.TrimSuffix(p, ".md"))+"\n#tagged"))
		require.NoError(t, err)
	}

	items, total, err := svc.ListNotes(ctx, index.ListQuery{Sort: index.SortTitleAsc, Tag: "tagged"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, "A", items[0].Title)
	assert.Equal(t, []string{"tagged"}, items[0].Tags)
}

func TestSaveDocument_KeepsFrontmatter(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateNote(ctx, "doc.md", []byte("---\nid: d1\nextra: kept\n---\n# Old\n"))
	require.NoError(t, err)

	loaded, err := svc.LoadDocument(ctx, "d1")
	require.NoError(t, err)

	doc := rt.MustBuild(rt.H1(rt.T("New")), rt.P(rt.T("text", rt.Bold)))
	saved, err := svc.SaveDocument(ctx, "d1", doc, loaded.Checksum)
	require.NoError(t, err)
	assert.Equal(t, "New", saved.Title)
	assert.True(t, rt.Equal(doc, saved.Content))

	note, err := svc.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "kept", note.Frontmatter["extra"])

	_, err = svc.SaveDocument(ctx, "d1", doc, loaded.Checksum)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = svc.SaveDocument(ctx, "nope", doc, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPublishAndRender(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateNote(ctx, "other.md", []byte("---\nid: o1\ntitle: Renamed Other\n---\n"))
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, "pub.md", []byte("---\nid: p1\ntitle: Public\n---\nread [[o1|Old name]] **now**\n"))
	require.NoError(t, err)

	_, err = svc.RenderPublished(ctx, "p1")
	assert.ErrorIs(t, err, apperr.ErrNotPublished)

	n, err := svc.Publish(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, n.Published)

	page, err := svc.RenderPublished(ctx, "p1")
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "<title>Public</title>")
	assert.Contains(t, html, `<a class="wikilink" href="/p/o1">Renamed Other</a>`)
	assert.Contains(t, html, "<strong>now</strong>")

	n, err = svc.Unpublish(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, n.Published)
	_, err = svc.RenderPublished(ctx, "p1")
	assert.ErrorIs(t, err, apperr.ErrNotPublished)
}

func TestExport(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateNote(ctx, "e.md", []byte("---\nid: e1\ntitle: a/b\n---\nbody *it*\n"))
	require.NoError(t, err)

	name, data, err := svc.Export(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "a-b.md", name)
	assert.Equal(t, "body *it*\n", string(data))
}

func TestExportAll_DuplicateTitles(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, p := range []string{"one.md", "two.md"} {
		_, err := svc.CreateNote(ctx, p, []byte("# Same\n\n"+p))
		require.NoError(t, err)
	}
	_, err := svc.CreateNote(ctx, "blank.md", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportAll(ctx, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	contents := map[string]string{}
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(b)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"Same (2).md", "Same.md", "Untitled.md"}, names)
	assert.Contains(t, contents["Same.md"], "one.md")
	assert.Contains(t, contents["Same (2).md"], "two.md")
}

func TestImport(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	n, err := svc.Import(ctx, "Meeting Notes.md", []byte("- point one\n- point two\n"))
	require.NoError(t, err)
	assert.Equal(t, "Meeting Notes.md", n.Path)
	assert.Equal(t, "Meeting Notes", n.Title)
	assert.Len(t, n.ID, 36)

	again, err := svc.Import(ctx, "Meeting Notes.md", []byte("---\nid: dup\n---\nother"))
	require.NoError(t, err)
	assert.Equal(t, "Meeting Notes (2).md", again.Path)
	assert.NotEqual(t, "dup", again.ID)
	assert.True(t, store.Exists("Meeting Notes (2).md"))

	_, err = svc.Import(ctx, "photo.png", []byte{0x89})
	assert.ErrorIs(t, err, apperr.ErrInvalidFormat)
}

func TestSearchAndBacklinks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateNote(ctx, "x.md", []byte("---\nid: x\n---\nzebra crossing [[y]]"))
	require.NoError(t, err)

	res, err := svc.Search(ctx, "zebra", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "x", res[0].ID)

	bl, err := svc.Backlinks(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.md"}, bl)

	nodes, links, err := svc.Graph(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
	assert.Equal(t, []index.GraphLink{{Source: "x", Target: "y"}}, links)
}
