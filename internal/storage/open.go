package storage

import (
	"context"
	"fmt"

	"github.com/maneesh/filesmanager/internal/config"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
)

// MetadataStore is implemented by TiDBClient and MongoClient
type MetadataStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	CreateFile(ctx context.Context, file *models.FileNode) error
	GetFile(ctx context.Context, id models.FileID) (*models.FileNode, error)
	ListFiles(ctx context.Context, owner models.UserID, parent models.ParentRef, offset, limit int) ([]*models.FileNode, error)
	SetFilePublic(ctx context.Context, id models.FileID, public bool) error
	CountFiles(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ContentStore is implemented by MinioClient, S3Client and LocalStore
type ContentStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

var (
	_ MetadataStore = (*TiDBClient)(nil)
	_ MetadataStore = (*MongoClient)(nil)
	_ ContentStore  = (*MinioClient)(nil)
	_ ContentStore  = (*S3Client)(nil)
	_ ContentStore  = (*LocalStore)(nil)
)

// OpenMetadataStore connects to the configured metadata driver. The mysql
// driver also applies pending migrations.
func OpenMetadataStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (MetadataStore, error) {
	switch cfg.MetadataDriver {
	case "mysql":
		log.WithField("host", cfg.TiDBHost).Info("Connecting to TiDB...")
		tc, err := NewTiDBClient(ctx, cfg.GetDSN())
		if err != nil {
			return nil, err
		}
		if err := tc.RunMigrations(ctx); err != nil {
			tc.Close()
			return nil, err
		}
		return tc, nil
	case "mongo":
		log.WithField("host", cfg.MongoHost).Info("Connecting to MongoDB...")
		return NewMongoClient(ctx, cfg.GetMongoURI(), cfg.MongoDatabase)
	}
	return nil, fmt.Errorf("unsupported metadata driver: %q", cfg.MetadataDriver)
}

// OpenContentStore builds the configured content backend
func OpenContentStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (ContentStore, error) {
	switch cfg.StorageType {
	case "minio":
		log.WithField("endpoint", cfg.MinIOEndpoint).Info("Connecting to MinIO...")
		return NewMinioClient(ctx, cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey,
			cfg.MinIOBucketName, cfg.MinIOUseSSL, log)
	case "s3":
		log.WithField("bucket", cfg.S3Bucket).Info("Using S3 content store")
		return NewS3Client(ctx, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3BaseEndpoint)
	case "fs":
		log.WithField("folder", cfg.FolderPath).Info("Using local content store")
		return NewLocalStore(cfg.FolderPath)
	}
	return nil, fmt.Errorf("unsupported storage type: %q", cfg.StorageType)
}
