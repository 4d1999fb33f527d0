package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maneesh/filesmanager/internal/models"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CacheTTL is the time-to-live for cached file metadata (5 minutes)
	CacheTTL = 5 * time.Minute
)

// RedisClient wraps Redis operations with tracing
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient initializes a new Redis client
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := pingWithRetry(ctx, ping); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// NewRedisClientFromClient wraps an existing go-redis client
func NewRedisClientFromClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Client exposes the underlying client for the job queue
func (rc *RedisClient) Client() *redis.Client {
	return rc.client
}

// Ping checks the connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	if err := rc.client.Ping(ctx).Err(); err != nil {
		return unavailable("redis ping", err)
	}
	return nil
}

// Get returns the value at key; ok is false when the key is absent
func (rc *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "redis.get")
	defer span.End()

	val, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("found", false))
		return "", false, nil
	} else if err != nil {
		span.RecordError(err)
		return "", false, unavailable("redis get", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return val, true, nil
}

// Set stores value at key with a ttl
func (rc *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.set",
		trace.WithAttributes(attribute.Int64("ttl_seconds", int64(ttl.Seconds()))),
	)
	defer span.End()

	if err := rc.client.Set(ctx, key, value, ttl).Err(); err != nil {
		span.RecordError(err)
		return unavailable("redis set", err)
	}
	return nil
}

// Del removes key; removing an absent key is not an error
func (rc *RedisClient) Del(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "redis.del")
	defer span.End()

	if err := rc.client.Del(ctx, key).Err(); err != nil {
		span.RecordError(err)
		return unavailable("redis del", err)
	}
	return nil
}

// cachedFile carries every FileNode field, including the ones hidden from API payloads
type cachedFile struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"owner_id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	ParentID   int64     `json:"parent_id"`
	IsPublic   bool      `json:"is_public"`
	StorageRef string    `json:"storage_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func fileCacheKey(id models.FileID) string {
	return fmt.Sprintf("file:%d", id)
}

// GetFileMetadata retrieves file metadata from cache with tracing
func (rc *RedisClient) GetFileMetadata(ctx context.Context, fileID models.FileID) (*models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "redis.get_file_metadata",
		trace.WithAttributes(
			attribute.Int64("file_id", int64(fileID)),
		),
	)
	defer span.End()

	data, err := rc.client.Get(ctx, fileCacheKey(fileID)).Result()

	if errors.Is(err, redis.Nil) {
		span.SetAttributes(
			attribute.Bool("cache_hit", false),
			attribute.String("cache_status", "miss"),
		)
		return nil, nil // Cache miss, not an error
	} else if err != nil {
		span.RecordError(err)
		return nil, unavailable("get from cache", err)
	}

	var c cachedFile
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_hit", true),
		attribute.String("cache_status", "hit"),
	)
	return &models.FileNode{
		ID:         models.FileID(c.ID),
		OwnerID:    models.UserID(c.OwnerID),
		Name:       c.Name,
		Kind:       models.Kind(c.Kind),
		Parent:     models.ParentFromStorage(c.ParentID),
		IsPublic:   c.IsPublic,
		StorageRef: c.StorageRef,
		CreatedAt:  c.CreatedAt,
	}, nil
}

// SetFileMetadata stores file metadata in cache with tracing
func (rc *RedisClient) SetFileMetadata(ctx context.Context, file *models.FileNode) error {
	ctx, span := tracer.Start(ctx, "redis.set_file_metadata",
		trace.WithAttributes(
			attribute.Int64("file_id", int64(file.ID)),
			attribute.String("file_name", file.Name),
		),
	)
	defer span.End()

	data, err := json.Marshal(cachedFile{
		ID:         int64(file.ID),
		OwnerID:    int64(file.OwnerID),
		Name:       file.Name,
		Kind:       string(file.Kind),
		ParentID:   file.Parent.Storage(),
		IsPublic:   file.IsPublic,
		StorageRef: file.StorageRef,
		CreatedAt:  file.CreatedAt,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal file: %w", err)
	}

	if err := rc.client.Set(ctx, fileCacheKey(file.ID), data, CacheTTL).Err(); err != nil {
		span.RecordError(err)
		return unavailable("set cache", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_set_success", true),
		attribute.Int64("ttl_seconds", int64(CacheTTL.Seconds())),
	)
	return nil
}

// InvalidateFileMetadata removes file metadata from cache with tracing
func (rc *RedisClient) InvalidateFileMetadata(ctx context.Context, fileID models.FileID) error {
	ctx, span := tracer.Start(ctx, "redis.invalidate_file_metadata",
		trace.WithAttributes(
			attribute.Int64("file_id", int64(fileID)),
		),
	)
	defer span.End()

	if err := rc.client.Del(ctx, fileCacheKey(fileID)).Err(); err != nil {
		span.RecordError(err)
		return unavailable("invalidate cache", err)
	}

	span.SetAttributes(attribute.Bool("cache_invalidate_success", true))
	return nil
}
