package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Resolver downloads source PDFs from an S3 bucket to temp files.
type S3Resolver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Resolver creates an S3-backed resolver.
func NewS3Resolver(cfg Config) (*S3Resolver, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error

	if cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.S3Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKey,
				cfg.AWSSecretKey,
				"",
			)),
		)
	} else {
		// Default chain: environment, IAM role, shared config.
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Resolver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		prefix: cfg.BasePath,
	}, nil
}

// Resolve fetches the object to a temp file and returns its path. The
// cleanup func deletes the temp copy.
func (r *S3Resolver) Resolve(ctx context.Context, filename string) (string, func(), error) {
	key := filename
	if r.prefix != "" {
		key = path.Join(r.prefix, filename)
	}

	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", r.bucket, key, err)
	}
	defer result.Body.Close()

	tmp, err := os.CreateTemp("", "source-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, result.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	tmpPath := tmp.Name()
	return tmpPath, func() { os.Remove(tmpPath) }, nil
}
