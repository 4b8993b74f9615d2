package api

import (
	"log/slog"
	"net/http"

	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/richtext"
	"github.com/starford/folio/internal/session"
)

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Get a note body as a document tree
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	Document
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	doc, err := h.svc.LoadDocument(r.Context(), id)
	if err != nil {
		writeError(w, "load document", err, slog.String("id", id))
		return
	}
	setETag(w, doc.Checksum)
	writeJSON(w, http.StatusOK, doc)
}

// SaveDocument handles PUT /api/documents/{id}.
//
//	@Summary		Replace a note body with a document tree
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			id			path	string				true	"Note id"
//	@Param			If-Match	header	string				false	"Checksum (ETag) the save is based on"
//	@Param			body		body	SaveDocumentRequest	true	"Document"
//	@Success		200	{object}	Document
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [put]
func (h *Handler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	var req SaveDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Content == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	ifMatch := checksum.ParseETag(r.Header.Get("If-Match"))
	doc, err := h.svc.SaveDocument(r.Context(), id, req.Content, ifMatch)
	if err != nil {
		writeError(w, "save document", err, slog.String("id", id))
		return
	}
	setETag(w, doc.Checksum)
	writeJSON(w, http.StatusOK, doc)
}

// OpenSession handles POST /api/sessions.
//
//	@Summary		Open an editing session on a note
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Note to edit"
//	@Success		201		{object}	SessionState
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NoteID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note_id is required"))
		return
	}
	s, err := h.sessions.Open(r.Context(), req.NoteID)
	if err != nil {
		writeError(w, "open session", err, slog.String("note_id", req.NoteID))
		return
	}
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

// GetSession handles GET /api/sessions/{sid}.
//
//	@Summary		Get the state of an editing session
//	@Tags			sessions
//	@Produce		json
//	@Param			sid	path		string	true	"Session id"
//	@Success		200	{object}	SessionState
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// CloseSession handles DELETE /api/sessions/{sid}.
//
//	@Summary		Close an editing session, saving pending changes
//	@Tags			sessions
//	@Param			sid	path	string	true	"Session id"
//	@Success		204	"Session closed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid} [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sid := urlParam(r, "sid")
	if err := h.sessions.Close(r.Context(), sid); err != nil {
		writeError(w, "close session", err, slog.String("session_id", sid))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Select handles POST /api/sessions/{sid}/select.
//
//	@Summary		Set the selection of an editing session
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			body	body		SelectRequest	true	"Selection"
//	@Success		200		{object}	SessionState
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/select [post]
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.writeState(w, "select", s, func() (session.State, error) { return s.Select(req.Selection) })
}

// ToggleMark handles POST /api/sessions/{sid}/marks.
//
//	@Summary		Toggle a mark over the selection
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string		true	"Session id"
//	@Param			body	body		MarkRequest	true	"Mark"
//	@Success		200		{object}	SessionState
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/marks [post]
func (h *Handler) ToggleMark(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req MarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := richtext.ParseMark(req.Mark)
	if err != nil {
		writeError(w, "toggle mark", err)
		return
	}
	h.writeState(w, "toggle mark", s, func() (session.State, error) { return s.ToggleMark(m) })
}

// ToggleBlock handles POST /api/sessions/{sid}/blocks.
//
//	@Summary		Toggle a block type over the selection
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			body	body		BlockRequest	true	"Block type"
//	@Success		200		{object}	SessionState
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/blocks [post]
func (h *Handler) ToggleBlock(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req BlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := richtext.ParseBlockType(req.Block)
	if err != nil {
		writeError(w, "toggle block", err)
		return
	}
	h.writeState(w, "toggle block", s, func() (session.State, error) { return s.ToggleBlock(t) })
}

// Undo handles POST /api/sessions/{sid}/undo.
//
//	@Summary		Undo the last change of a session
//	@Tags			sessions
//	@Produce		json
//	@Param			sid	path		string	true	"Session id"
//	@Success		200	{object}	SessionState
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeState(w, "undo", s, s.Undo)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sid := urlParam(r, "sid")
	s, err := h.sessions.Get(sid)
	if err != nil {
		writeError(w, "get session", err, slog.String("session_id", sid))
		return nil, false
	}
	return s, true
}

func (h *Handler) writeState(w http.ResponseWriter, op string, s *session.Session, fn func() (session.State, error)) {
	st, err := fn()
	if err != nil {
		writeError(w, op, err, slog.String("session_id", s.ID()))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
