package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/maneesh/filesmanager/internal/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3Client stores content in an S3-compatible bucket
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client builds a client with static credentials. A non-empty
// baseEndpoint switches to path-style addressing for S3-compatible servers.
func NewS3Client(ctx context.Context, region, accessKey, secretKey, bucket, baseEndpoint string) (*S3Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if baseEndpoint != "" {
			o.BaseEndpoint = aws.String(baseEndpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Client{client: client, bucket: bucket}, nil
}

// Put uploads an object
func (sc *S3Client) Put(ctx context.Context, key string, data []byte) error {
	ctx, span := tracer.Start(ctx, "s3.put_object",
		trace.WithAttributes(
			attribute.String("object_key", key),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	_, err := sc.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(sc.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		span.RecordError(err)
		return unavailable("put object", err)
	}
	return nil
}

// Get downloads an object; common.ErrNotFound when the key is absent
func (sc *S3Client) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "s3.get_object",
		trace.WithAttributes(attribute.String("object_key", key)),
	)
	defer span.End()

	out, err := sc.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(sc.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s3Error(span, "get object", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		span.RecordError(err)
		return nil, unavailable("read object", err)
	}

	span.SetAttributes(attribute.Int("size_bytes", len(data)))
	return data, nil
}

// Exists reports whether an object is stored under key
func (sc *S3Client) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "s3.head_object",
		trace.WithAttributes(attribute.String("object_key", key)),
	)
	defer span.End()

	_, err := sc.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(sc.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		mapped := s3Error(span, "head object", err)
		if errors.Is(mapped, common.ErrNotFound) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

func s3Error(span trace.Span, op string, err error) error {
	var (
		noSuchKey *types.NoSuchKey
		notFound  *types.NotFound
	)
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		span.SetAttributes(attribute.Bool("found", false))
		return common.ErrNotFound
	}
	span.RecordError(err)
	return unavailable(op, err)
}
