// Package assets stores payment proof images on an S3-compatible host.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	appconfig "ms-registration/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type Metadata struct {
	Filename    string
	ContentType string
	EventTitle  string
}

// Asset points at an uploaded object. AssetID is the object key and is what
// Delete expects.
type Asset struct {
	URL     string `json:"url"`
	AssetID string `json:"assetId"`
}

type S3Store struct {
	client    *s3.Client
	bucket    string
	folder    string
	publicURL string
}

func NewS3Store(ctx context.Context, cfg appconfig.AssetConfig) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load asset store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" && cfg.Endpoint != "" {
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		folder:    strings.Trim(cfg.Folder, "/"),
		publicURL: publicURL,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, data []byte, meta Metadata) (Asset, error) {
	key := s.objectKey(meta)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(meta.ContentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"event":    meta.EventTitle,
			"filename": filepath.Base(meta.Filename),
		},
	})
	if err != nil {
		return Asset{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return Asset{URL: s.publicURL + "/" + key, AssetID: key}, nil
}

// Delete removes an object. Deleting a missing key succeeds.
func (s *S3Store) Delete(ctx context.Context, assetID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(assetID),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", assetID, err)
	}
	return nil
}

func (s *S3Store) objectKey(meta Metadata) string {
	ext := strings.ToLower(filepath.Ext(meta.Filename))
	event := strings.ToLower(strings.Join(strings.Fields(meta.EventTitle), "-"))
	if event == "" {
		event = "misc"
	}
	parts := []string{event, uuid.NewString() + ext}
	if s.folder != "" {
		parts = append([]string{s.folder}, parts...)
	}
	return strings.Join(parts, "/")
}
