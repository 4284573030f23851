package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
)

var (
	errNilClient      = errors.New("storage: client is required")
	errInvalidBucket  = errors.New("storage: bucket name is required")
	errInvalidObject  = errors.New("storage: object name is required")
	errEmptyContent   = errors.New("storage: content is empty")
	errMissingBaseURL = errors.New("storage: public base URL is required")
)

// ObjectStore wraps the bucket operations the image pipeline depends on.
type ObjectStore struct {
	client  *gcs.Client
	baseURL string
}

// ObjectStoreOption customises ObjectStore behaviour.
type ObjectStoreOption func(*ObjectStore)

// WithPublicBaseURL overrides the host used when composing public object URLs.
func WithPublicBaseURL(base string) ObjectStoreOption {
	return func(s *ObjectStore) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

// NewObjectStore constructs an ObjectStore backed by the provided Cloud Storage client.
func NewObjectStore(client *gcs.Client, opts ...ObjectStoreOption) (*ObjectStore, error) {
	if client == nil {
		return nil, errNilClient
	}
	store := &ObjectStore{
		client:  client,
		baseURL: "https://storage.googleapis.com",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Download reads the full contents of the object.
func (s *ObjectStore) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, errNilClient
	}
	bucket, object, err := validateLocation(bucket, object)
	if err != nil {
		return nil, err
	}

	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// UploadPublic writes the object with the given content type, grants public
// read access, and returns the public URL.
func (s *ObjectStore) UploadPublic(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	if s == nil || s.client == nil {
		return "", errNilClient
	}
	bucket, object, err := validateLocation(bucket, object)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errEmptyContent
	}

	handle := s.client.Bucket(bucket).Object(object)
	writer := handle.NewWriter(ctx)
	writer.ContentType = strings.TrimSpace(contentType)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("storage: write %s/%s: %w", bucket, object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("storage: finalize %s/%s: %w", bucket, object, err)
	}

	if err := handle.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
		return "", fmt.Errorf("storage: publish %s/%s: %w", bucket, object, err)
	}

	return s.PublicURL(bucket, object)
}

// Delete removes the object. Missing objects are not treated as an error.
func (s *ObjectStore) Delete(ctx context.Context, bucket, object string) error {
	if s == nil || s.client == nil {
		return errNilClient
	}
	bucket, object, err := validateLocation(bucket, object)
	if err != nil {
		return err
	}

	err = s.client.Bucket(bucket).Object(object).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", bucket, object, err)
	}
	return nil
}

// PublicURL composes the public URL for an object without touching the bucket.
func (s *ObjectStore) PublicURL(bucket, object string) (string, error) {
	if s == nil || strings.TrimSpace(s.baseURL) == "" {
		return "", errMissingBaseURL
	}
	bucket, object, err := validateLocation(bucket, object)
	if err != nil {
		return "", err
	}
	escaped := make([]string, 0, 4)
	for _, segment := range strings.Split(object, "/") {
		escaped = append(escaped, url.PathEscape(segment))
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, bucket, strings.Join(escaped, "/")), nil
}

// ObjectFromPublicURL reverses PublicURL, extracting the object name for the
// given bucket. Returns false when the URL does not belong to the bucket.
func (s *ObjectStore) ObjectFromPublicURL(raw, bucket string) (string, bool) {
	if s == nil {
		return "", false
	}
	prefix := fmt.Sprintf("%s/%s/", s.baseURL, strings.TrimSpace(bucket))
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	escaped := strings.TrimPrefix(raw, prefix)
	if escaped == "" {
		return "", false
	}
	segments := strings.Split(escaped, "/")
	decoded := make([]string, 0, len(segments))
	for _, segment := range segments {
		value, err := url.PathUnescape(segment)
		if err != nil {
			return "", false
		}
		decoded = append(decoded, value)
	}
	return strings.Join(decoded, "/"), true
}

func validateLocation(bucket, object string) (string, string, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return "", "", errInvalidBucket
	}
	object = strings.Trim(strings.TrimSpace(object), "/")
	if object == "" {
		return "", "", errInvalidObject
	}
	return bucket, object, nil
}
