package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrop/service/internal/db"
	"github.com/filedrop/service/internal/storage"
)

type fakeMetadataStore struct {
	createStatus db.SavedStatus
	createdKey   string
	createdURL   string
	createdLabel string

	saveStatus db.SavedStatus
	saved      *Upload

	found   *Upload
	findErr error

	list    *RecordsList
	listErr error
	filter  Filter

	removed []string
	callLog *[]string
}

func (f *fakeMetadataStore) log(call string) {
	if f.callLog != nil {
		*f.callLog = append(*f.callLog, call)
	}
}

func (f *fakeMetadataStore) Create(_ context.Context, key, url, label, accountID string) (db.SavedStatus, *Upload) {
	f.createdKey, f.createdURL, f.createdLabel = key, url, label
	if f.createStatus != db.SavedSuccess {
		return f.createStatus, nil
	}
	return db.SavedSuccess, &Upload{ID: "up-1", Key: key, URL: url, Label: label, AccountID: accountID}
}

func (f *fakeMetadataStore) Save(_ context.Context, u *Upload) (db.SavedStatus, *Upload) {
	if f.saveStatus != db.SavedSuccess {
		return f.saveStatus, nil
	}
	f.saved = u
	return db.SavedSuccess, u
}

func (f *fakeMetadataStore) Find(_ context.Context, id, accountID string) (*Upload, error) {
	f.log("find")
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.found == nil || f.found.ID != id || f.found.AccountID != accountID {
		return nil, ErrNotFound
	}
	found := *f.found
	return &found, nil
}

func (f *fakeMetadataStore) List(_ context.Context, filter Filter, _ string) (*RecordsList, error) {
	f.filter = filter
	return f.list, f.listErr
}

func (f *fakeMetadataStore) Remove(_ context.Context, u *Upload) error {
	f.log("removeRow")
	f.removed = append(f.removed, u.ID)
	return nil
}

type fakeObjectStore struct {
	uploadedKey  string
	uploadedBody []byte
	uploadErr    error

	getKey  string
	getBody []byte
	getErr  error

	deleteErr   error
	deletedKeys []string

	callLog *[]string
}

func (f *fakeObjectStore) log(call string) {
	if f.callLog != nil {
		*f.callLog = append(*f.callLog, call)
	}
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	f.log("putObject")
	if f.uploadErr != nil {
		return f.uploadErr
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.uploadedKey, f.uploadedBody = key, body
	return nil
}

func (f *fakeObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.getKey = key
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(bytes.NewReader(f.getBody)), nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.log("deleteObject")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedKeys = append(f.deletedKeys, key)
	return nil
}

func testFile(name string) *File {
	return &File{
		Name:        name,
		Size:        4,
		ContentType: "application/octet-stream",
		Content:     bytes.NewReader([]byte("data")),
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	repo := &fakeMetadataStore{createStatus: db.SavedSuccess}
	store := &fakeObjectStore{}
	svc := NewService(repo, store)

	_, err := svc.Upload(context.Background(), nil, "doc1", "acc-1", Origin{Protocol: "http", Host: "x"})

	assert.ErrorIs(t, err, ErrNoFile)
	assert.Empty(t, store.uploadedKey)
	assert.Empty(t, repo.createdKey)
}

func TestUploadKeyAndURLDerivation(t *testing.T) {
	repo := &fakeMetadataStore{createStatus: db.SavedSuccess}
	store := &fakeObjectStore{}
	svc := NewService(repo, store)

	u, err := svc.Upload(context.Background(), testFile("report.final.pdf"), "doc1", "acc-1",
		Origin{Protocol: "https", Host: "files.example.com"})

	require.NoError(t, err)
	// Key: <accountID>/<uuid>.<everything after the first dot>
	assert.Regexp(t, regexp.MustCompile(`^acc-1/[0-9a-f-]{36}\.final\.pdf$`), u.Key)
	fileName := strings.TrimPrefix(u.Key, "acc-1/")
	assert.Equal(t, "https://files.example.com/uploads/file/"+fileName, u.URL)
	assert.Equal(t, "doc1", u.Label)

	assert.Equal(t, u.Key, store.uploadedKey)
	assert.Equal(t, []byte("data"), store.uploadedBody)
	assert.Equal(t, u.Key, repo.createdKey)
	assert.Equal(t, u.URL, repo.createdURL)
}

func TestUploadWithoutExtension(t *testing.T) {
	repo := &fakeMetadataStore{createStatus: db.SavedSuccess}
	svc := NewService(repo, &fakeObjectStore{})

	u, err := svc.Upload(context.Background(), testFile("README"), "doc1", "acc-1",
		Origin{Protocol: "http", Host: "x"})

	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^acc-1/[0-9a-f-]{36}\.$`), u.Key)
}

func TestUploadLabelConflictLeavesObjectBehind(t *testing.T) {
	repo := &fakeMetadataStore{createStatus: db.SavedConflict}
	store := &fakeObjectStore{}
	svc := NewService(repo, store)

	_, err := svc.Upload(context.Background(), testFile("a.png"), "dupe", "acc-1",
		Origin{Protocol: "http", Host: "x"})

	assert.ErrorIs(t, err, ErrLabelTaken)
	// The object write is not compensated; reconciliation is out of band.
	assert.NotEmpty(t, store.uploadedKey)
}

func TestUploadObjectStoreFailureSkipsMetadata(t *testing.T) {
	repo := &fakeMetadataStore{createStatus: db.SavedSuccess}
	store := &fakeObjectStore{uploadErr: errors.New("connection reset")}
	svc := NewService(repo, store)

	_, err := svc.Upload(context.Background(), testFile("a.png"), "doc1", "acc-1",
		Origin{Protocol: "http", Host: "x"})

	require.Error(t, err)
	assert.Empty(t, repo.createdKey)
}

func TestGetFileScopesKeyToAccount(t *testing.T) {
	store := &fakeObjectStore{getBody: []byte("bytes")}
	svc := NewService(&fakeMetadataStore{}, store)

	stream, err := svc.GetFile(context.Background(), "f.png", "acc-1")

	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, "acc-1/f.png", store.getKey)
}

func TestGetFileMissingObject(t *testing.T) {
	store := &fakeObjectStore{getErr: storage.ErrObjectNotFound}
	svc := NewService(&fakeMetadataStore{}, store)

	_, err := svc.GetFile(context.Background(), "f.png", "acc-1")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUploadOtherAccountIsNotFound(t *testing.T) {
	repo := &fakeMetadataStore{found: &Upload{ID: "up-1", AccountID: "acc-2"}}
	svc := NewService(repo, &fakeObjectStore{})

	_, err := svc.GetUpload(context.Background(), "up-1", "acc-1")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateLabel(t *testing.T) {
	repo := &fakeMetadataStore{
		found:      &Upload{ID: "up-1", AccountID: "acc-1", Label: "old"},
		saveStatus: db.SavedSuccess,
	}
	svc := NewService(repo, &fakeObjectStore{})

	u, err := svc.UpdateLabel(context.Background(), "up-1", "new", "acc-1")

	require.NoError(t, err)
	assert.Equal(t, "new", u.Label)
	assert.Equal(t, "new", repo.saved.Label)
}

func TestUpdateLabelSameLabelIsIdempotent(t *testing.T) {
	repo := &fakeMetadataStore{
		found:      &Upload{ID: "up-1", AccountID: "acc-1", Label: "same"},
		saveStatus: db.SavedSuccess,
	}
	svc := NewService(repo, &fakeObjectStore{})

	u, err := svc.UpdateLabel(context.Background(), "up-1", "same", "acc-1")

	require.NoError(t, err)
	assert.Equal(t, "same", u.Label)
}

func TestUpdateLabelConflict(t *testing.T) {
	repo := &fakeMetadataStore{
		found:      &Upload{ID: "up-1", AccountID: "acc-1", Label: "old"},
		saveStatus: db.SavedConflict,
	}
	svc := NewService(repo, &fakeObjectStore{})

	_, err := svc.UpdateLabel(context.Background(), "up-1", "taken", "acc-1")

	assert.ErrorIs(t, err, ErrLabelTaken)
}

func TestUpdateLabelMissingUpload(t *testing.T) {
	svc := NewService(&fakeMetadataStore{}, &fakeObjectStore{})

	_, err := svc.UpdateLabel(context.Background(), "up-404", "new", "acc-1")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesObjectBeforeRow(t *testing.T) {
	var calls []string
	repo := &fakeMetadataStore{
		found:   &Upload{ID: "up-1", AccountID: "acc-1", Key: "acc-1/f.png"},
		callLog: &calls,
	}
	store := &fakeObjectStore{callLog: &calls}
	svc := NewService(repo, store)

	err := svc.Delete(context.Background(), "up-1", "acc-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"find", "deleteObject", "removeRow"}, calls)
	assert.Equal(t, []string{"acc-1/f.png"}, store.deletedKeys)
	assert.Equal(t, []string{"up-1"}, repo.removed)
}

func TestDeleteKeepsRowWhenObjectDeleteFails(t *testing.T) {
	repo := &fakeMetadataStore{found: &Upload{ID: "up-1", AccountID: "acc-1", Key: "acc-1/f.png"}}
	store := &fakeObjectStore{deleteErr: errors.New("storage unavailable")}
	svc := NewService(repo, store)

	err := svc.Delete(context.Background(), "up-1", "acc-1")

	require.Error(t, err)
	assert.Empty(t, repo.removed)
}

func TestDeleteMissingUpload(t *testing.T) {
	svc := NewService(&fakeMetadataStore{}, &fakeObjectStore{})

	err := svc.Delete(context.Background(), "up-404", "acc-1")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUploadsPassesFilterThrough(t *testing.T) {
	repo := &fakeMetadataStore{list: &RecordsList{Total: 2, Data: []Upload{{ID: "a"}, {ID: "b"}}}}
	svc := NewService(repo, &fakeObjectStore{})

	list, err := svc.GetUploads(context.Background(), Filter{Skip: 10, Take: 5, Search: "doc"}, "acc-1")

	require.NoError(t, err)
	assert.Equal(t, Filter{Skip: 10, Take: 5, Search: "doc"}, repo.filter)
	assert.EqualValues(t, 2, list.Total)
	assert.Len(t, list.Data, 2)
}
