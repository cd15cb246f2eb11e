package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"syncx/contract"
	"syncx/domain/chat"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
)

// S3Config describes the bucket. Endpoint is set for S3-compatible servers
// such as MinIO, which also need path-style addressing.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string
	PublicURL string
	PathStyle bool
}

// S3API is the part of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type S3Store struct {
	log    *slog.Logger
	client S3API
	cfg    S3Config
}

func NewS3Store(ctx context.Context, log *slog.Logger, cfg S3Config) (*S3Store, error) {
	awsConfig, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewS3StoreWithClient(log, client, cfg), nil
}

func NewS3StoreWithClient(log *slog.Logger, client S3API, cfg S3Config) *S3Store {
	return &S3Store{log: log, client: client, cfg: cfg}
}

func (s *S3Store) Upload(ctx context.Context, file contract.File) (chat.Attachment, error) {
	publicID := NewPublicID(file.Data)
	contentType := file.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(file.Data).String()
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(publicID),
		Body:        bytes.NewReader(file.Data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("put object %s: %w", publicID, err)
	}
	return chat.Attachment{PublicID: publicID, URL: s.url(publicID)}, nil
}

func (s *S3Store) url(key string) string {
	escaped := url.PathEscape(key)
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
}

// Delete removes objects in batches of 1000, the S3 limit per call.
func (s *S3Store) Delete(ctx context.Context, publicIDs ...string) error {
	for start := 0; start < len(publicIDs); start += 1000 {
		end := min(start+1000, len(publicIDs))
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, id := range publicIDs[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(id)})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.cfg.Bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects: %w", err)
		}
		for _, e := range out.Errors {
			s.log.Warn("Blob not deleted", "key", aws.ToString(e.Key), "error", aws.ToString(e.Message))
		}
	}
	return nil
}
