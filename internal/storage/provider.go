package storage

import (
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"querysource/internal/config"
)

// Provider stores exported results.
type Provider interface {
	// Create starts writing the object at key. Data becomes visible only
	// after the returned Object is closed successfully.
	Create(ctx context.Context, key string) (Object, error)

	// Location returns a URL that identifies the stored object.
	Location(key string) string
}

// Object is an in-progress write.
type Object interface {
	io.Writer
	// Close commits the object and returns once it is stored.
	Close() error
	// Abort discards the object. Close must not be called afterwards.
	Abort(cause error)
}

// New builds the provider selected by cfg.StorageType.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.StorageType {
	case "", "local":
		return NewLocalProvider(cfg.LocalStoragePath)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
		client, err := NewS3Client(ctx, cfg.AWSRegion, cfg.S3Endpoint, cfg.S3PathStyle)
		if err != nil {
			return nil, err
		}
		return NewS3Provider(client, cfg.S3Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}

// NewS3Client loads the default AWS credential chain. endpoint overrides the
// service endpoint for S3-compatible stores.
func NewS3Client(ctx context.Context, region, endpoint string, pathStyle bool) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = pathStyle
	}), nil
}
