package files

import (
	"context"

	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
)

// MetadataCache is a short-lived cache of file records
type MetadataCache interface {
	GetFileMetadata(ctx context.Context, fileID models.FileID) (*models.FileNode, error)
	SetFileMetadata(ctx context.Context, file *models.FileNode) error
	InvalidateFileMetadata(ctx context.Context, fileID models.FileID) error
}

// CachedRepository serves GetFile from the cache when it can. Cache read
// and fill failures fall through to the repository; invalidation failures
// are returned so a stale visibility flag is never silently kept.
type CachedRepository struct {
	Repository
	cache MetadataCache
	log   logrus.FieldLogger
}

// NewCachedRepository wraps repo with cache
func NewCachedRepository(repo Repository, cache MetadataCache, log logrus.FieldLogger) *CachedRepository {
	return &CachedRepository{Repository: repo, cache: cache, log: log}
}

// GetFile is read-through
func (cr *CachedRepository) GetFile(ctx context.Context, id models.FileID) (*models.FileNode, error) {
	cached, err := cr.cache.GetFileMetadata(ctx, id)
	if err != nil {
		cr.log.WithError(err).WithField("file_id", id).Warn("Cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	file, err := cr.Repository.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := cr.cache.SetFileMetadata(ctx, file); err != nil {
		cr.log.WithError(err).WithField("file_id", id).Warn("Cache fill failed")
	}
	return file, nil
}

// SetFilePublic writes through and drops the cached record
func (cr *CachedRepository) SetFilePublic(ctx context.Context, id models.FileID, public bool) error {
	if err := cr.Repository.SetFilePublic(ctx, id, public); err != nil {
		return err
	}
	return cr.cache.InvalidateFileMetadata(ctx, id)
}
