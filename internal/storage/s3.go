package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotFound is returned when the addressed object does not exist.
var ErrNotFound = errors.New("artifact not found")

// S3Backend provides S3-backed artifact storage.
type S3Backend struct {
	client *s3.Client
}

// NewS3Backend creates an S3 backend using the default credential chain,
// optionally scoped to a shared-config profile.
func NewS3Backend(ctx context.Context, region, profile string) (*S3Backend, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Backend{client: s3.NewFromConfig(cfg)}, nil
}

// Put writes an object.
func (b *S3Backend) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3 bucket %s: %w", bucket, err)
	}
	return nil
}

// Get opens an object for reading.
func (b *S3Backend) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting object from S3 bucket %s: %w", bucket, err)
	}
	return result.Body, nil
}

// Delete removes an object. S3 deletes are idempotent.
func (b *S3Backend) Delete(ctx context.Context, bucket, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object from S3 bucket %s: %w", bucket, err)
	}
	return nil
}

// DeletePrefix removes every object under the given key prefix.
func (b *S3Backend) DeletePrefix(ctx context.Context, bucket, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing objects under %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(bucket),
				Key:    obj.Key,
			}); err != nil {
				return fmt.Errorf("deleting object %s from bucket %s: %w", aws.ToString(obj.Key), bucket, err)
			}
		}
	}
	return nil
}
