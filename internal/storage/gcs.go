package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const gcsOperationTimeout = 5 * time.Minute

// GCSStorage implements the Storage interface for Google Cloud Storage.
// Output paths are object names under the configured prefix; sources may be
// local files, which are uploaded, or objects in the same bucket, which are
// copied server side.
type GCSStorage struct {
	client       *storage.Client
	bucket       string
	objectPrefix string
	ctx          context.Context
	logger       *slog.Logger
}

// NewGCSStorage creates a new GCSStorage instance
func NewGCSStorage(ctx context.Context, bucketName, objectPrefix, credentialsFile string, logger *slog.Logger) (*GCSStorage, error) {
	if bucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var client *storage.Client
	var err error

	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		// Use application default credentials
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client:       client,
		bucket:       bucketName,
		objectPrefix: strings.Trim(objectPrefix, "/"),
		ctx:          ctx,
		logger:       logger.With("component", "storage", "bucket", bucketName),
	}, nil
}

func (s *GCSStorage) objectName(p string) string {
	name := strings.TrimPrefix(filepath.ToSlash(p), "/")
	if s.objectPrefix != "" && !strings.HasPrefix(name, s.objectPrefix+"/") {
		name = s.objectPrefix + "/" + name
	}
	return name
}

func (s *GCSStorage) object(p string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.objectName(p))
}

// ListSlotFiles lists the slot objects for base under dir
func (s *GCSStorage) ListSlotFiles(dir, base string) ([]SlotFile, error) {
	prefix := s.objectName(path.Join(filepath.ToSlash(dir), base+"-"))

	it := s.client.Bucket(s.bucket).Objects(s.ctx, &storage.Query{Prefix: prefix})

	var results []SlotFile
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %w", err)
		}

		// Skip directories (objects ending with /)
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		f, ok := ParseSlotFile(base, path.Base(attrs.Name))
		if !ok {
			continue
		}
		f.Path = attrs.Name
		results = append(results, f)
	}
	return results, nil
}

// LinkOrCopy uploads a local src, or copies a bucket object, to dst
func (s *GCSStorage) LinkOrCopy(src, dst string) error {
	if src == "" {
		return ErrInvalidSource
	}

	ctx, cancel := context.WithTimeout(s.ctx, gcsOperationTimeout)
	defer cancel()

	if _, err := os.Stat(src); err == nil {
		return s.upload(ctx, src, dst)
	}

	srcObj := s.object(src)
	if _, err := srcObj.Attrs(ctx); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, src)
	}
	if _, err := s.object(dst).CopierFrom(srcObj).Run(ctx); err != nil {
		return fmt.Errorf("failed to copy object %s: %w", src, err)
	}
	return nil
}

func (s *GCSStorage) upload(ctx context.Context, localPath, dst string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer f.Close()

	// Cancelling the writer's context abandons the upload, leaving any
	// existing object in place.
	writeCtx, abort := context.WithCancel(ctx)
	defer abort()

	wc := s.object(dst).NewWriter(writeCtx)
	if _, err = io.Copy(wc, f); err != nil {
		abort()
		_ = wc.Close()
		return fmt.Errorf("failed to copy file to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	s.logger.Debug("Uploaded file", "src", localPath, "object", s.objectName(dst))
	return nil
}

// CreateDir is a no-op; GCS has no directories
func (s *GCSStorage) CreateDir(string) error {
	return nil
}

// Remove deletes one object; a missing object is not an error
func (s *GCSStorage) Remove(p string) error {
	err := s.object(p).Delete(s.ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// WriteFile writes data to an object
func (s *GCSStorage) WriteFile(p string, data []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, gcsOperationTimeout)
	defer cancel()

	wc := s.object(p).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	return wc.Close()
}

// ReadFile reads a whole object
func (s *GCSStorage) ReadFile(p string) ([]byte, error) {
	r, err := s.GetReader(p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// GetReader returns a reader for an object
func (s *GCSStorage) GetReader(p string) (io.ReadCloser, error) {
	r, err := s.object(p).NewReader(s.ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return r, err
}

// FileExists checks if an object exists
func (s *GCSStorage) FileExists(p string) bool {
	_, err := s.object(p).Attrs(s.ctx)
	return err == nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
