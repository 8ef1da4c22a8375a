package storage

import (
	"context"
	"fmt"

	"github.com/texforge/texforge/internal/config"
	"github.com/texforge/texforge/internal/storage/local"
	"github.com/texforge/texforge/internal/storage/remote"
	s3source "github.com/texforge/texforge/internal/storage/s3"
	"github.com/texforge/texforge/pkg/client"
)

var (
	_ Source = (*local.Source)(nil)
	_ Source = (*s3source.Source)(nil)
	_ Source = (*remote.Source)(nil)
)

// New creates the Source selected by cfg.StorageBackend. The remote backend
// lists directories through c.
func New(ctx context.Context, cfg *config.Config, c *client.Client) (Source, error) {
	switch cfg.StorageBackend {
	case config.BackendLocal:
		src, err := local.New(local.Config{
			RootPath: cfg.ProjectPath,
			Prefix:   cfg.PathPrefix,
			BaseURL:  cfg.ResourceBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.BackendS3:
		src, err := s3source.New(ctx, s3source.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			KeyPrefix: cfg.S3Prefix,
			Prefix:    cfg.PathPrefix,
			URLExpiry: cfg.S3URLExpiry,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.BackendRemote:
		if c == nil {
			return nil, fmt.Errorf("remote backend requires a client")
		}
		return remote.New(c, cfg.PathPrefix), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.StorageBackend)
	}
}
