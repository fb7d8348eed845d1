package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Resolver turns a manifest filename into a local path the PDF extractor
// can open. Local backends return the path in place; remote backends
// download to a temp file. The cleanup func removes any temp copy and is
// safe to call unconditionally.
type Resolver interface {
	Resolve(ctx context.Context, filename string) (localPath string, cleanup func(), err error)
}

// ResolverType represents the source backend type.
type ResolverType string

const (
	ResolverTypeLocal ResolverType = "local"
	ResolverTypeS3    ResolverType = "s3"
)

// Config holds configuration for a source resolver.
type Config struct {
	Type         ResolverType
	BasePath     string // local directory, or S3 key prefix
	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// NewResolver creates a resolver based on configuration.
func NewResolver(cfg Config) (Resolver, error) {
	switch cfg.Type {
	case ResolverTypeLocal:
		return NewLocalResolver(cfg.BasePath), nil
	case ResolverTypeS3:
		return NewS3Resolver(cfg)
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}

// NewResolverFromEnv creates a resolver from environment variables.
// SOURCE_TYPE selects the backend; basePath overrides the env base path
// when non-empty (it comes from the CLI flag).
func NewResolverFromEnv(basePath string) (Resolver, error) {
	sourceType := os.Getenv("SOURCE_TYPE")
	if sourceType == "" {
		sourceType = "local"
	}

	cfg := Config{
		Type:     ResolverType(sourceType),
		BasePath: basePath,
	}
	if cfg.BasePath == "" {
		cfg.BasePath = os.Getenv("SOURCE_BASE_PATH")
	}

	switch cfg.Type {
	case ResolverTypeLocal:
		if cfg.BasePath == "" {
			cfg.BasePath = "data/LEYES_FEDERALES"
		}
		return NewLocalResolver(cfg.BasePath), nil

	case ResolverTypeS3:
		cfg.S3Bucket = os.Getenv("AWS_S3_BUCKET")
		cfg.S3Region = os.Getenv("AWS_REGION")
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1"
		}
		cfg.AWSAccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET environment variable is required for S3 sources")
		}
		return NewS3Resolver(cfg)

	default:
		return nil, fmt.Errorf("unknown source type: %s", sourceType)
	}
}
