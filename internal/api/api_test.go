package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/richtext"
	"github.com/starford/folio/internal/session"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/testutil"
)

type env struct {
	svc      *noteservice.Service
	sessions *session.Manager
	store    storage.Provider
	router   http.Handler
	public   http.Handler
}

// testEnv sets up a temp vault, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	e := newEnv(t, RouterConfig{AuthEnabled: authToken != "", Token: authToken})
	return e.svc, e.router
}

func newEnv(t *testing.T, cfg RouterConfig) *env {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	svc := noteservice.NewService(store, db)
	sessions := session.NewManager(svc, session.WithDebounce(time.Hour), session.WithLogger(testutil.QuietLogger()))
	t.Cleanup(func() { _ = sessions.CloseAll(context.Background()) })
	return &env{
		svc:      svc,
		sessions: sessions,
		store:    store,
		router:   NewRouter(svc, sessions, cfg),
		public:   NewPublicRouter(svc),
	}
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func createNote(t *testing.T, router http.Handler, path, content string) NoteDetail {
	t.Helper()
	w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": path, "content": content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d, body = %s", path, w.Code, w.Body.String())
	}
	return decode[NoteDetail](t, w)
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	created := createNote(t, router, "hello.md", "# Hello\nWorld")
	if created.ID == "" {
		t.Error("created note has no id")
	}

	w := do(t, router, http.MethodGet, "/notes/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	note := decode[NoteDetail](t, w)
	if note.Path != "hello.md" {
		t.Errorf("path = %q", note.Path)
	}
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
	if got, want := w.Header().Get("ETag"), `"`+note.Checksum+`"`; got != want {
		t.Errorf("ETag = %q, want %q", got, want)
	}
}

func TestCreateEmptyNote(t *testing.T) {
	_, router := testEnv(t, "")

	created := createNote(t, router, "inbox/blank", "")
	if created.Path != "inbox/blank.md" {
		t.Errorf("path = %q", created.Path)
	}

	w := do(t, router, http.MethodGet, "/documents/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get document = %d, body = %s", w.Code, w.Body.String())
	}
	doc := decode[Document](t, w)
	if !richtext.Equal(doc.Content, richtext.New()) {
		t.Errorf("content = %v, want one empty paragraph", doc.Content.Spec())
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "dup.md", "a")
	w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": "dup.md", "content": "a"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateNote_Invalid(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", map[string]string{"content": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/notes", map[string]string{"path": "../up.md"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("traversal = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "lock.md", "v1")

	updateBody, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/lock.md", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", `"`+created.Checksum+`"`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decode[NoteDetail](t, w)
	if updated.ID != created.ID {
		t.Errorf("id changed: %q -> %q", created.ID, updated.ID)
	}

	// Stale checksum.
	req = httptest.NewRequest(http.MethodPut, "/notes/lock.md", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "nolock.md", "v1")

	w := do(t, router, http.MethodPut, "/notes/nolock.md", map[string]string{"content": "v2"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodPut, "/notes/nolock.md", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("update without content = %d, want 400", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "del.md", "bye")

	w := do(t, router, http.MethodDelete, "/notes/del.md", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/notes/del.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/notes/del.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")
	for _, name := range []string{"b", "a", "c"} {
		createNote(t, router, "work/"+name+".md", "# "+strings.ToUpper(name)+"\n#project")
	}
	createNote(t, router, "other.md", "# Other")

	w := do(t, router, http.MethodGet, "/notes?sort=title_asc&folder=work&tag=project&limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[NoteListResponse](t, w)
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if len(resp.Notes) != 2 || resp.Notes[0].Title != "A" || resp.Notes[1].Title != "B" {
		t.Errorf("notes = %+v", resp.Notes)
	}

	w = do(t, router, http.MethodGet, "/notes?sort=sideways", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}
}

func TestMoveNoteAndFolders(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "idea.md", "---\nid: idea\n---\n# Idea")
	createNote(t, router, "ref.md", "see [[idea|Idea]]")

	w := do(t, router, http.MethodPost, "/notes-move", map[string]string{"from": "idea.md", "to": "projects/idea.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	moved := decode[NoteDetail](t, w)
	if moved.Path != "projects/idea.md" || moved.ID != "idea" {
		t.Errorf("moved = %s %s", moved.Path, moved.ID)
	}
	if len(moved.Backlinks) != 1 || moved.Backlinks[0] != "ref.md" {
		t.Errorf("backlinks = %v", moved.Backlinks)
	}

	w = do(t, router, http.MethodPost, "/notes-move", map[string]string{"from": "idea.md", "to": "x.md"})
	if w.Code != http.StatusNotFound {
		t.Errorf("move missing = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodPost, "/notes-move", map[string]string{"from": "ref.md", "to": "projects/idea.md"})
	if w.Code != http.StatusConflict {
		t.Errorf("move onto existing = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodGet, "/folders", nil)
	folders := decode[FoldersResponse](t, w)
	if len(folders.Folders) != 1 || folders.Folders[0] != "projects" {
		t.Errorf("folders = %v", folders.Folders)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "s.md", "# Search\nunique-keyword-xyz")

	w := do(t, router, http.MethodGet, "/search?q=unique-keyword-xyz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	resp := decode[SearchResponse](t, w)
	if len(resp.Results) == 0 {
		t.Error("expected at least one search result")
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGraphAndBacklinks(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "a.md", "---\nid: a\n---\n# A\nlinks to [[b|B]]")
	createNote(t, router, "b.md", "---\nid: b\n---\n# B")

	w := do(t, router, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	resp := decode[GraphResponse](t, w)
	if len(resp.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(resp.Nodes))
	}
	if len(resp.Links) != 1 || resp.Links[0].Source != "a" || resp.Links[0].Target != "b" {
		t.Errorf("links = %+v", resp.Links)
	}

	w = do(t, router, http.MethodGet, "/backlinks/b", nil)
	bl := decode[BacklinksResponse](t, w)
	if len(bl.Backlinks) != 1 || bl.Backlinks[0] != "a.md" {
		t.Errorf("backlinks = %v", bl.Backlinks)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/notes/nonexistent.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get nonexistent = %d, want 404", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/notes/nonexistent.md", map[string]string{"content": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update nonexistent = %d, want 404", w.Code)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "doc.md", "---\nid: d1\nextra: kept\n---\n# Title\n")

	w := do(t, router, http.MethodGet, "/documents/d1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get document = %d", w.Code)
	}
	loaded := decode[Document](t, w)
	if loaded.Checksum != created.Checksum {
		t.Errorf("checksum = %q, want %q", loaded.Checksum, created.Checksum)
	}

	next := richtext.MustBuild(
		richtext.H1(richtext.T("Title")),
		richtext.Bulleted(richtext.Item(richtext.T("one", richtext.Bold))),
	)
	body, _ := json.Marshal(SaveDocumentRequest{Content: next})
	req := httptest.NewRequest(http.MethodPut, "/documents/d1", bytes.NewReader(body))
	req.Header.Set("If-Match", w.Header().Get("ETag"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("save document = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/notes/doc.md", nil)
	note := decode[NoteDetail](t, w)
	if !strings.Contains(note.Content, "- **one**") {
		t.Errorf("content = %q", note.Content)
	}
	if note.Frontmatter["extra"] != "kept" {
		t.Errorf("frontmatter = %v", note.Frontmatter)
	}

	// The earlier version is stale now.
	req = httptest.NewRequest(http.MethodPut, "/documents/d1", bytes.NewReader(body))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("stale save = %d, want 409", w.Code)
	}
}

func TestSaveDocument_InvalidContent(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "bad.md", "---\nid: bad\n---\n")

	cases := map[string]string{
		"empty":        `{"content":[]}`,
		"unknown type": `{"content":[{"type":"table","children":[{"text":"x"}]}]}`,
		"missing":      `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/documents/bad", strings.NewReader(body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body = %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestDocument_PathDerivedID(t *testing.T) {
	e := newEnv(t, RouterConfig{})
	data := []byte("# Topic\n")
	if err := e.store.Write("notes/topic.md", data); err != nil {
		t.Fatal(err)
	}
	if err := e.svc.IndexFile("notes/topic.md", data); err != nil {
		t.Fatal(err)
	}

	w := do(t, e.router, http.MethodGet, "/documents/notes%2Ftopic", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get document = %d, body = %s", w.Code, w.Body.String())
	}
	doc := decode[Document](t, w)
	if doc.ID != "notes/topic" || doc.Title != "Topic" {
		t.Errorf("doc = %s %s", doc.ID, doc.Title)
	}
}

func TestSessionFlow(t *testing.T) {
	e := newEnv(t, RouterConfig{})
	createNote(t, e.router, "s.md", "---\nid: s1\n---\nHello world\n")

	w := do(t, e.router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: "s1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("open = %d, body = %s", w.Code, w.Body.String())
	}
	st := decode[SessionState](t, w)
	base := "/sessions/" + st.SessionID

	sel := richtext.Range(richtext.Point{Path: richtext.Path{0, 0}}, richtext.Point{Path: richtext.Path{0, 0}, Offset: 5})
	w = do(t, e.router, http.MethodPost, base+"/select", SelectRequest{Selection: sel})
	if w.Code != http.StatusOK {
		t.Fatalf("select = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, e.router, http.MethodPost, base+"/marks", MarkRequest{Mark: "bold"})
	if w.Code != http.StatusOK {
		t.Fatalf("mark = %d, body = %s", w.Code, w.Body.String())
	}
	st = decode[SessionState](t, w)
	if len(st.Active.Marks) != 1 || st.Active.Marks[0] != richtext.Bold {
		t.Errorf("active marks = %v", st.Active.Marks)
	}
	if st.Version != 1 {
		t.Errorf("version = %d, want 1", st.Version)
	}

	w = do(t, e.router, http.MethodPost, base+"/blocks", BlockRequest{Block: "heading-two"})
	st = decode[SessionState](t, w)
	if st.Active.Block != richtext.HeadingTwo {
		t.Errorf("active block = %v", st.Active.Block)
	}

	w = do(t, e.router, http.MethodPost, base+"/undo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("undo = %d", w.Code)
	}
	st = decode[SessionState](t, w)
	if st.Active.Block != richtext.Paragraph {
		t.Errorf("block after undo = %v", st.Active.Block)
	}

	w = do(t, e.router, http.MethodGet, base, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get session = %d", w.Code)
	}

	w = do(t, e.router, http.MethodDelete, base, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("close = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, e.router, http.MethodGet, base, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get closed session = %d, want 404", w.Code)
	}

	w = do(t, e.router, http.MethodGet, "/notes/s.md", nil)
	note := decode[NoteDetail](t, w)
	if !strings.Contains(note.Content, "**Hello** world") {
		t.Errorf("saved content = %q", note.Content)
	}
}

func TestSession_BadRequests(t *testing.T) {
	e := newEnv(t, RouterConfig{})
	createNote(t, e.router, "s.md", "---\nid: s1\n---\ntext\n")

	w := do(t, e.router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: "missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("open missing note = %d, want 404", w.Code)
	}

	w = do(t, e.router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: "s1"})
	st := decode[SessionState](t, w)
	base := "/sessions/" + st.SessionID

	checks := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown mark", "/marks", MarkRequest{Mark: "strike"}, http.StatusBadRequest},
		{"unknown block", "/blocks", BlockRequest{Block: "table"}, http.StatusBadRequest},
		{"list item", "/blocks", BlockRequest{Block: "list-item"}, http.StatusBadRequest},
		{"bad selection", "/select", SelectRequest{Selection: richtext.Caret(richtext.Point{Path: richtext.Path{3}})}, http.StatusBadRequest},
		{"nothing to undo", "/undo", nil, http.StatusConflict},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			w := do(t, e.router, http.MethodPost, base+c.path, c.body)
			if w.Code != c.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, c.want, w.Body.String())
			}
		})
	}

	w = do(t, e.router, http.MethodPost, "/sessions/unknown/marks", MarkRequest{Mark: "bold"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown session = %d, want 404", w.Code)
	}
}

func TestExport(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "e.md", "---\nid: e1\ntitle: \"Trip: Day 1\"\n---\nbody *it*\n")

	w := do(t, router, http.MethodGet, "/export/e1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="Trip- Day 1.md"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if w.Body.String() != "body *it*\n" {
		t.Errorf("body = %q", w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/export/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("export missing = %d, want 404", w.Code)
	}
}

func TestExportAll(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "one.md", "# First")
	createNote(t, router, "two.md", "# Second")

	w := do(t, router, http.MethodGet, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export all = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, noteservice.ExportArchiveName) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 {
		t.Errorf("archive has %d files, want 2", len(zr.File))
	}
}

func importFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImport(t *testing.T) {
	_, router := testEnv(t, "")

	w := importFile(t, router, "Reading List.txt", []byte("- Dune\n- Solaris\n"))
	if w.Code != http.StatusCreated {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	note := decode[NoteDetail](t, w)
	if note.Path != "Reading List.md" || note.Title != "Reading List" {
		t.Errorf("imported = %s %q", note.Path, note.Title)
	}

	w = importFile(t, router, "image.png", []byte{0x89, 0x50})
	if w.Code != http.StatusBadRequest {
		t.Errorf("import png = %d, want 400", w.Code)
	}
}

func TestImport_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file field = %d, want 400", w.Code)
	}
}

func TestPublishFlow(t *testing.T) {
	e := newEnv(t, RouterConfig{})
	createNote(t, e.router, "p.md", "---\nid: p1\ntitle: Public Page\n---\nhello <world>\n")

	w := do(t, e.public, http.MethodGet, "/p1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unpublished page = %d, want 404", w.Code)
	}

	w = do(t, e.router, http.MethodPost, "/publish/p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("publish = %d, body = %s", w.Code, w.Body.String())
	}
	if !decode[NoteDetail](t, w).Published {
		t.Error("note not marked published")
	}

	w = do(t, e.public, http.MethodGet, "/p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("published page = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<title>Public Page</title>") {
		t.Errorf("page = %s", w.Body.String())
	}

	w = do(t, e.router, http.MethodDelete, "/publish/p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unpublish = %d", w.Code)
	}
	w = do(t, e.public, http.MethodGet, "/p1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("page after unpublish = %d, want 404", w.Code)
	}

	w = do(t, e.router, http.MethodPost, "/publish/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("publish missing = %d, want 404", w.Code)
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret-token")
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret-token")
	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestAuthMiddleware_SchemeCaseInsensitive(t *testing.T) {
	_, router := testEnv(t, "secret-token")
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "bearer secret-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("lower-case scheme = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "secret-token")

	w := do(t, router, http.MethodGet, "/notes?access_token=secret-token", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodPost, "/notes?access_token=secret-token", CreateNoteRequest{Path: "x.md"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/notes?access_token=secret-token", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("foreign scheme header = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret-token")
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_ProtectsSessions(t *testing.T) {
	_, router := testEnv(t, "secret-token")
	w := do(t, router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: "x"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("sessions without token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := newEnv(t, RouterConfig{AuthEnabled: true, Token: "secret", Events: sseStub})
	w := do(t, e.router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	e := newEnv(t, RouterConfig{Events: sseStub})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := newEnv(t, RouterConfig{AuthEnabled: true, Token: "tok", Events: sseStub})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
