package upload

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrop/service/internal/db"
	"github.com/filedrop/service/internal/middleware"
)

func newTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	// Stand-in for RequireAuth: every request runs as acc-1.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), middleware.AccountIDKey, "acc-1")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/uploads", h.Create)
	r.Get("/uploads", h.List)
	r.Get("/uploads/file/{file}", h.GetFile)
	r.Get("/uploads/{id}", h.Get)
	return r
}

func multipartBody(t *testing.T, label string, fileName string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("label", label))
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateHandler(t *testing.T) {
	repo := &fakeMetadataStore{createStatus: db.SavedSuccess}
	router := newTestRouter(NewHandler(NewService(repo, &fakeObjectStore{})))

	body, contentType := multipartBody(t, "doc1", "a.png", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "doc1", repo.createdLabel)
}

func TestCreateHandlerMissingFile(t *testing.T) {
	router := newTestRouter(NewHandler(NewService(&fakeMetadataStore{}, &fakeObjectStore{})))

	body, contentType := multipartBody(t, "doc1", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateHandlerMissingLabel(t *testing.T) {
	router := newTestRouter(NewHandler(NewService(&fakeMetadataStore{}, &fakeObjectStore{})))

	body, contentType := multipartBody(t, "", "a.png", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListHandlerRejectsBadPagination(t *testing.T) {
	router := newTestRouter(NewHandler(NewService(&fakeMetadataStore{}, &fakeObjectStore{})))

	for _, target := range []string{
		"/uploads?skip=-1",
		"/uploads?skip=abc",
		"/uploads?take=0",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetHandlerRejectsBadUUID(t *testing.T) {
	router := newTestRouter(NewHandler(NewService(&fakeMetadataStore{}, &fakeObjectStore{})))

	req := httptest.NewRequest(http.MethodGet, "/uploads/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFileHandlerStreamsContent(t *testing.T) {
	store := &fakeObjectStore{getBody: []byte("file bytes")}
	router := newTestRouter(NewHandler(NewService(&fakeMetadataStore{}, store)))

	req := httptest.NewRequest(http.MethodGet, "/uploads/file/f.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "file bytes", rec.Body.String())
	assert.Equal(t, "acc-1/f.png", store.getKey)
}
