package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	appconfig "rentwatch/config"
)

// S3Uploader uploads files to S3-compatible storage
type S3Uploader struct {
	client *s3.Client
	bucket string
}

func NewS3Uploader(ctx context.Context, cfg appconfig.S3Config) (*S3Uploader, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		// MinIO, R2 and similar need path-style addressing
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Uploader{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Uploader is satisfied by S3Uploader and by test fakes.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// PageArchive keeps raw result pages that no parser recognized, so markup
// changes can be inspected after the fact.
type PageArchive struct {
	uploader Uploader
	now      func() time.Time
}

func NewPageArchive(uploader Uploader) *PageArchive {
	return &PageArchive{uploader: uploader, now: time.Now}
}

// ArchivePage stores body under pages/{source}/{yyyy-mm-dd}/{uuid}.html and
// returns the key.
func (a *PageArchive) ArchivePage(ctx context.Context, sourceID string, body []byte) (string, error) {
	key := fmt.Sprintf("pages/%s/%s/%s.html", sourceID, a.now().UTC().Format("2006-01-02"), uuid.New())
	if err := a.uploader.Upload(ctx, key, bytes.NewReader(body), "text/html; charset=utf-8"); err != nil {
		return "", err
	}
	return key, nil
}
