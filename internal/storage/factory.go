package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaki95/pack-shuffler/config"
)

const (
	TypeLocal = "local"
	TypeGCS   = "gcs"
)

// New returns the storage backend selected in the configuration
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Type {
	case "", TypeLocal:
		return NewLocalFileStorage(logger), nil
	case TypeGCS:
		return NewGCSStorage(ctx, cfg.GCS.Bucket, cfg.GCS.ObjectPrefix, cfg.GCS.CredentialsFile, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Type)
	}
}
