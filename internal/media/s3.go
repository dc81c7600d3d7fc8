// Package media stores uploaded files in an S3-compatible object store.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"campusconnect/internal/domain"
)

type Config struct {
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	PublicBase string
	PathStyle  bool
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Store struct {
	client     putter
	publicBase string
}

func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	base := cfg.PublicBase
	if base == "" {
		base = cfg.Endpoint
	}
	return &S3Store{client: client, publicBase: strings.TrimRight(base, "/")}, nil
}

// Upload writes file under bucket/key and returns its public URL. Without
// overwrite an existing object is left alone and the upload fails.
func (s *S3Store) Upload(ctx context.Context, bucket, key string, file domain.Upload, overwrite bool) (string, error) {
	if bucket == "" || key == "" {
		return "", domain.NewValidationError(map[string]string{"key": "bucket and key are required"})
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(file.Data),
		ContentLength: aws.Int64(int64(len(file.Data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("max-age=3600"),
	}
	if !overwrite {
		in.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return "", fmt.Errorf("put %s/%s: %w", bucket, key, domain.ErrObjectExists)
		}
		return "", fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return s.PublicURL(bucket, key), nil
}

func (s *S3Store) PublicURL(bucket, key string) string {
	return s.publicBase + "/" + bucket + "/" + strings.TrimLeft(key, "/")
}
