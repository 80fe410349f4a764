package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/lanternfly/gallery/internal/config"
	"github.com/lanternfly/gallery/internal/storage"
)

// newStorage builds the backend selected by STORAGE_BACKEND. The returned
// handler is non-nil only for backends that serve their own objects and must
// be mounted at /objects/.
func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, http.Handler, error) {
	switch cfg.StorageBackend {
	case config.BackendAzure:
		publicBase := cfg.StoragePublicBase
		if publicBase == "" && cfg.StorageAccountURL != "" {
			publicBase = cfg.StorageAccountURL
		}
		s, err := storage.NewAzureStorage(cfg.AzureConnectionString, cfg.Container, publicBase)
		return s, nil, err

	case config.BackendMinio:
		s, err := storage.NewMinioStorage(storage.MinioOptions{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.Container,
			Region:     cfg.StorageRegion,
			UseSSL:     cfg.StorageUseSSL,
			PublicBase: cfg.StoragePublicBase,
		})
		return s, nil, err

	case config.BackendS3:
		s, err := storage.NewS3Storage(storage.S3Options{
			Region:     cfg.StorageRegion,
			Bucket:     cfg.Container,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			PublicBase: cfg.StoragePublicBase,
		})
		return s, nil, err

	case config.BackendGCS:
		s, err := storage.NewGCSStorage(ctx, storage.GCSOptions{
			ProjectID:       cfg.GCSProjectID,
			Bucket:          cfg.Container,
			CredentialsFile: cfg.GCSCredentialsFile,
			PublicBase:      cfg.StoragePublicBase,
		})
		return s, nil, err

	case config.BackendMemory:
		publicBase := cfg.StoragePublicBase
		if publicBase == "" {
			publicBase = "http://localhost:" + cfg.Port + "/objects"
		}
		s := storage.NewMemoryStorage(publicBase)
		return s, s, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// closeStorage releases backend clients that hold connections, such as GCS.
func closeStorage(s storage.Storage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
