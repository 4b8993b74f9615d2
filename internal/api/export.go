package api

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/starford/folio/internal/noteservice"
)

const maxImportBytes = 10 << 20 // 10 MB

func attachment(w http.ResponseWriter, name, contentType string, size int) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(size))
}

// Export handles GET /api/export/{id}.
//
//	@Summary		Download one note as Markdown
//	@Tags			export
//	@Produce		text/markdown
//	@Param			id	path	string	true	"Note id"
//	@Success		200	"Markdown file named after the note title"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export/{id} [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	name, data, err := h.svc.Export(r.Context(), id)
	if err != nil {
		writeError(w, "export", err, slog.String("id", id))
		return
	}
	attachment(w, name, "text/markdown; charset=utf-8", len(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExportAll handles GET /api/export.
//
//	@Summary		Download every note as a zip archive
//	@Tags			export
//	@Produce		application/zip
//	@Success		200	"Zip archive of Markdown files"
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) ExportAll(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportAll(r.Context(), &buf); err != nil {
		writeError(w, "export all", err)
		return
	}
	attachment(w, noteservice.ExportArchiveName, "application/zip", buf.Len())
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Import handles POST /api/import (multipart/form-data, field "file").
//
//	@Summary		Import a Markdown or text file as a new note
//	@Tags			export
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Markdown or text file"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	name := filepath.Base(header.Filename)
	note, err := h.svc.Import(r.Context(), name, data)
	if err != nil {
		writeError(w, "import", err, slog.String("filename", name))
		return
	}
	setETag(w, note.Checksum)
	writeJSON(w, http.StatusCreated, note)
}

// Publish handles POST /api/publish/{id}.
//
//	@Summary		Publish a note at its public URL
//	@Tags			publish
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/publish/{id} [post]
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	note, err := h.svc.Publish(r.Context(), id)
	if err != nil {
		writeError(w, "publish", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Unpublish handles DELETE /api/publish/{id}.
//
//	@Summary		Withdraw a published note
//	@Tags			publish
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/publish/{id} [delete]
func (h *Handler) Unpublish(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	note, err := h.svc.Unpublish(r.Context(), id)
	if err != nil {
		writeError(w, "unpublish", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// PublishedPage serves GET /p/{id}, the HTML page of a published note.
// Unpublished and unknown notes are both plain 404s.
func (h *Handler) PublishedPage(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	page, err := h.svc.RenderPublished(r.Context(), id)
	if err != nil {
		status, _ := statusOf(err)
		if status == http.StatusInternalServerError {
			slog.Error("render published failed", slog.String("id", id), slog.String("error", err.Error()))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
