package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/filedrop/service/internal/db"
	"github.com/filedrop/service/internal/storage"
)

// ErrNoFile is returned when an upload request carries no file content.
var ErrNoFile = errors.New("file is required")

// ErrLabelTaken is returned when the metadata write hits a unique
// constraint (label, key, or url already in use).
var ErrLabelTaken = errors.New("label already in use")

// File is the uploaded content handed over by the HTTP layer.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}

// Origin carries the request's protocol and host, used to derive the
// public-facing URL of an upload.
type Origin struct {
	Protocol string
	Host     string
}

// MetadataStore is the upload persistence the service depends on.
type MetadataStore interface {
	Create(ctx context.Context, key, url, label, accountID string) (db.SavedStatus, *Upload)
	Save(ctx context.Context, u *Upload) (db.SavedStatus, *Upload)
	Find(ctx context.Context, id, accountID string) (*Upload, error)
	List(ctx context.Context, filter Filter, accountID string) (*RecordsList, error)
	Remove(ctx context.Context, u *Upload) error
}

// ObjectStore is the slice of object storage the service depends on.
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Service orchestrates the upload lifecycle across the object store and the
// metadata store.
type Service struct {
	repo    MetadataStore
	storage ObjectStore
}

// NewService creates a new upload Service.
func NewService(repo MetadataStore, storage ObjectStore) *Service {
	return &Service{repo: repo, storage: storage}
}

// Upload validates the file, writes its bytes to the object store under
// <accountID>/<uuid>.<ext>, then persists the metadata row. If the metadata
// write fails after the object write succeeded, the orphaned object is left
// for a separate reconciliation process rather than compensated inline.
func (s *Service) Upload(ctx context.Context, file *File, label, accountID string, origin Origin) (*Upload, error) {
	if file == nil || file.Content == nil {
		return nil, ErrNoFile
	}

	fileName := uuid.NewString() + "." + extension(file.Name)
	key := accountID + "/" + fileName

	if err := s.storage.Upload(ctx, key, file.Content, file.Size, file.ContentType); err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}

	url := fmt.Sprintf("%s://%s/uploads/file/%s", origin.Protocol, origin.Host, fileName)

	status, u := s.repo.Create(ctx, key, url, label, accountID)
	switch status {
	case db.SavedConflict:
		return nil, ErrLabelTaken
	case db.SavedError:
		return nil, errors.New("persist upload metadata failed")
	}
	return u, nil
}

// GetFile opens a read stream for the named file. The key is reconstructed
// from the caller's own account id, so a caller can never address another
// account's objects.
func (s *Service) GetFile(ctx context.Context, fileName, accountID string) (io.ReadCloser, error) {
	stream, err := s.storage.Get(ctx, accountID+"/"+fileName)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return stream, nil
}

// GetUploads lists the account's uploads per the filter.
func (s *Service) GetUploads(ctx context.Context, filter Filter, accountID string) (*RecordsList, error) {
	return s.repo.List(ctx, filter, accountID)
}

// GetUpload fetches a single upload scoped to the account.
func (s *Service) GetUpload(ctx context.Context, id, accountID string) (*Upload, error) {
	return s.repo.Find(ctx, id, accountID)
}

// UpdateLabel relabels an upload. Relabeling to the current label is
// idempotent; colliding with another row's label yields ErrLabelTaken.
func (s *Service) UpdateLabel(ctx context.Context, id, label, accountID string) (*Upload, error) {
	u, err := s.repo.Find(ctx, id, accountID)
	if err != nil {
		return nil, err
	}

	u.Label = label
	status, saved := s.repo.Save(ctx, u)
	switch status {
	case db.SavedConflict:
		return nil, ErrLabelTaken
	case db.SavedError:
		return nil, errors.New("persist upload metadata failed")
	}
	return saved, nil
}

// Delete removes an upload: the stored object first, then the metadata row.
// The object delete is idempotent, so the whole operation tolerates a retry
// if the row removal fails.
func (s *Service) Delete(ctx context.Context, id, accountID string) error {
	u, err := s.repo.Find(ctx, id, accountID)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, u.Key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return s.repo.Remove(ctx, u)
}

// extension returns the substring after the first '.' of the original
// filename, or "" when the name carries no extension.
func extension(name string) string {
	if _, ext, found := strings.Cut(name, "."); found {
		return ext
	}
	return ""
}
