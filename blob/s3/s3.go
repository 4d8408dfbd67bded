// Package s3 provides a blob.Store backed by an S3 compatible object
// store, MinIO included.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-identity/blob"
)

// Config carries the connection settings for the bucket.
type Config struct {
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	// PublicBaseURL is the prefix stored objects are served from. Defaults
	// to BaseEndpoint/Bucket.
	PublicBaseURL string
}

// Store implements blob.Store on an S3 bucket.
type Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

var _ blob.Store = (*Store)(nil)

func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load S3 config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = strings.TrimSuffix(cfg.BaseEndpoint, "/") + "/" + cfg.Bucket
	}

	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
	}, nil
}

func (s *Store) Upload(ctx context.Context, key, contentType string, body io.Reader) (*blob.Object, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, fmt.Sprintf("failed to upload %s", key))
	}

	return &blob.Object{
		Key: key,
		URL: s.baseURL + "/" + key,
	}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, fmt.Sprintf("failed to delete %s", key))
	}
	return nil
}
