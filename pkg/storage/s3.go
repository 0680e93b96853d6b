// Package storage wraps the object store behind the warehouse: data file
// uploads for the write path and presigned URLs for direct client transfers.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kasuganosora/lakebase/pkg/config"
)

// DefaultURLExpiry is used when a presign request does not set a lifetime.
const DefaultURLExpiry = 15 * time.Minute

// Store is an S3-backed object store scoped to one bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New builds a store for the configured bucket. Express directory buckets
// get their zonal endpoint derived from the bucket name.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot load aws config: %w", err)
	}

	endpoint := cfg.S3EndpointFor(cfg.S3.BucketName)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.S3.PathStyleAccess
	})

	log.Printf("[Storage] bucket=%s endpoint=%s", cfg.S3.BucketName, endpoint)
	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3.BucketName,
	}, nil
}

// Upload writes an object.
func (s *Store) Upload(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("cannot upload s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Delete removes an object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("cannot delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// PresignUpload returns a presigned PUT URL for a tenant-scoped key.
func (s *Store) PresignUpload(ctx context.Context, tenantID, key, contentType string, expiry time.Duration) (string, string, error) {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	scoped := TenantKey(tenantID, key)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(scoped),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", "", fmt.Errorf("cannot presign upload for %s: %w", scoped, err)
	}
	return req.URL, scoped, nil
}

// PresignDownload returns a presigned GET URL for a tenant-scoped key.
func (s *Store) PresignDownload(ctx context.Context, tenantID, key string, expiry time.Duration) (string, string, error) {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	scoped := TenantKey(tenantID, key)

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(scoped),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", "", fmt.Errorf("cannot presign download for %s: %w", scoped, err)
	}
	return req.URL, scoped, nil
}

// TenantKey prefixes a key with the tenant so tenants can never presign
// each other's objects.
func TenantKey(tenantID, key string) string {
	prefix := tenantID + "/"
	if strings.HasPrefix(key, prefix) {
		return key
	}
	return prefix + strings.TrimPrefix(key, "/")
}
