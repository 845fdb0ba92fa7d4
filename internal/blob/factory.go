package blob

import (
	"context"
	"fmt"

	"pidcheck/internal/config"
	"pidcheck/internal/infra/blob/fs"
	"pidcheck/internal/infra/blob/memory"
	"pidcheck/internal/infra/blob/s3"
)

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memory.New() }

// NewMockS3ForTests returns an S3 store backed by an in-process fake.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
