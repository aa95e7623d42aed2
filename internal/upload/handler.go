package upload

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/filedrop/service/internal/middleware"
	"github.com/filedrop/service/internal/response"
)

// maxUploadMemory bounds how much of a multipart body is held in memory;
// larger files spill to temp files.
const maxUploadMemory = 32 << 20

// Handler holds HTTP handlers for upload endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new upload Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type updateLabelRequest struct {
	Label string `json:"label" example:"tax-report-2026"`
}

// Create godoc
//
//	@Summary		Upload a file
//	@Description	Stores the file under the account's namespace and records its metadata. The label must be unique.
//	@Tags			uploads
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"File content"
//	@Param			label	formData	string	true	"Unique label"
//	@Success		201		{object}	response.Envelope{data=Upload}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/uploads [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		response.BadRequest(w, "invalid multipart body")
		return
	}

	label := r.FormValue("label")
	if label == "" {
		response.BadRequest(w, "label is required")
		return
	}

	var file *File
	if f, header, err := r.FormFile("file"); err == nil {
		defer f.Close()
		file = &File{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Content:     f,
		}
	}

	u, err := h.svc.Upload(r.Context(), file, label, accountID, originFrom(r))
	if errors.Is(err, ErrNoFile) {
		response.BadRequest(w, `"file" field is required`)
		return
	}
	if errors.Is(err, ErrLabelTaken) {
		response.Conflict(w, "label already in use")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, u)
}

// List godoc
//
//	@Summary		List uploads
//	@Description	Returns the account's uploads ordered by label, with the total match count.
//	@Tags			uploads
//	@Produce		json
//	@Security		BearerAuth
//	@Param			skip	query		int		false	"Rows to skip"
//	@Param			take	query		int		false	"Page size (default 50)"
//	@Param			search	query		string	false	"Label substring filter"
//	@Success		200		{object}	response.Envelope{data=RecordsList}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/uploads [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())

	filter, err := filterFromQuery(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	list, err := h.svc.GetUploads(r.Context(), filter, accountID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, list)
}

// GetFile godoc
//
//	@Summary		Download a file
//	@Description	Streams the binary content of a file in the account's namespace.
//	@Tags			uploads
//	@Produce		octet-stream
//	@Security		BearerAuth
//	@Param			file	path	string	true	"Generated file name"
//	@Success		200
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/uploads/file/{file} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	fileName := chi.URLParam(r, "file")

	stream, err := h.svc.GetFile(r.Context(), fileName, accountID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "file not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, stream); err != nil {
		// Headers are already sent; all we can do is log the broken stream.
		log.Printf("upload: stream %q: %v", fileName, err)
	}
}

// Get godoc
//
//	@Summary		Get upload metadata
//	@Tags			uploads
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Upload ID"
//	@Success		200	{object}	response.Envelope{data=Upload}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/uploads/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	id, ok := uuidParam(w, r)
	if !ok {
		return
	}

	u, err := h.svc.GetUpload(r.Context(), id, accountID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "upload not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, u)
}

// UpdateLabel godoc
//
//	@Summary		Relabel an upload
//	@Tags			uploads
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"Upload ID"
//	@Param			request	body		updateLabelRequest	true	"New label"
//	@Success		200		{object}	response.Envelope{data=Upload}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/uploads/{id} [patch]
func (h *Handler) UpdateLabel(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	id, ok := uuidParam(w, r)
	if !ok {
		return
	}

	var req updateLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Label == "" {
		response.BadRequest(w, "label is required")
		return
	}

	u, err := h.svc.UpdateLabel(r.Context(), id, req.Label, accountID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "upload not found")
		return
	}
	if errors.Is(err, ErrLabelTaken) {
		response.Conflict(w, "label already in use")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, u)
}

// Delete godoc
//
//	@Summary		Delete an upload
//	@Description	Removes the stored object and its metadata row.
//	@Tags			uploads
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Upload ID"
//	@Success		204
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/uploads/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	id, ok := uuidParam(w, r)
	if !ok {
		return
	}

	err := h.svc.Delete(r.Context(), id, accountID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "upload not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// originFrom derives the request's public protocol and host, honoring a
// reverse proxy's X-Forwarded-Proto.
func originFrom(r *http.Request) Origin {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	return Origin{Protocol: proto, Host: r.Host}
}

// filterFromQuery parses and validates skip/take/search query parameters.
func filterFromQuery(r *http.Request) (Filter, error) {
	var filter Filter
	q := r.URL.Query()

	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("skip must be a non-negative integer")
		}
		filter.Skip = n
	}
	if v := q.Get("take"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, errors.New("take must be a positive integer")
		}
		filter.Take = n
	}
	filter.Search = q.Get("search")

	return filter, nil
}

// uuidParam parses the {id} path parameter, writing a 400 response when it
// is not a valid UUID.
func uuidParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(w, "id must be a valid UUID")
		return "", false
	}
	return id, true
}
