package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MinioClient wraps MinIO operations with tracing
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinioClient initializes a new MinIO client
func NewMinioClient(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, log logrus.FieldLogger) (*MinioClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	mc := &MinioClient{
		client:     client,
		bucketName: bucketName,
	}

	// Ensure bucket exists
	var exists bool
	err = pingWithRetry(ctx, func(ctx context.Context) error {
		var err error
		exists, err = client.BucketExists(ctx, bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		log.WithField("bucket", bucketName).Info("Creating bucket")
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return mc, nil
}

// Put uploads an object with tracing
func (mc *MinioClient) Put(ctx context.Context, key string, data []byte) error {
	ctx, span := tracer.Start(ctx, "minio.put_object",
		trace.WithAttributes(
			attribute.String("object_key", key),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	_, err := mc.client.PutObject(ctx, mc.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		span.RecordError(err)
		return unavailable("put object", err)
	}

	span.SetAttributes(attribute.Bool("upload_success", true))
	return nil
}

// Get downloads an object; common.ErrNotFound when the key is absent
func (mc *MinioClient) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "minio.get_object",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	object, err := mc.client.GetObject(ctx, mc.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mc.mapError(span, "get object", err)
	}
	defer object.Close()

	// GetObject is lazy; a missing key surfaces on the first read
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, mc.mapError(span, "read object", err)
	}

	span.SetAttributes(
		attribute.Int("size_bytes", len(data)),
		attribute.Bool("download_success", true),
	)
	return data, nil
}

// Exists reports whether an object is stored under key
func (mc *MinioClient) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "minio.stat_object",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	_, err := mc.client.StatObject(ctx, mc.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		mapped := mc.mapError(span, "stat object", err)
		if mapped == common.ErrNotFound {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

func (mc *MinioClient) mapError(span trace.Span, op string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		span.SetAttributes(attribute.Bool("found", false))
		return common.ErrNotFound
	}
	span.RecordError(err)
	return unavailable(op, err)
}
