// Package files manages the folder/file tree: metadata records in the
// metadata store, bytes in the content store, and thumbnail jobs for
// uploaded images.
package files

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/maneesh/filesmanager/internal/access"
	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filesmanager-files")

// PageSize is the number of records returned by List
const PageSize = 20

// Repository persists file metadata
type Repository interface {
	CreateFile(ctx context.Context, file *models.FileNode) error
	GetFile(ctx context.Context, id models.FileID) (*models.FileNode, error)
	ListFiles(ctx context.Context, owner models.UserID, parent models.ParentRef, offset, limit int) ([]*models.FileNode, error)
	SetFilePublic(ctx context.Context, id models.FileID, public bool) error
}

// ContentStore holds file bytes by key
type ContentStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// JobQueue accepts thumbnail jobs
type JobQueue interface {
	Enqueue(ctx context.Context, payload any) error
}

// Authorizer checks file capabilities
type Authorizer interface {
	Authorize(ctx context.Context, token string, fileID models.FileID, need access.Capability) (models.UserID, *models.FileNode, error)
	AuthorizeUser(ctx context.Context, userID models.UserID, fileID models.FileID, need access.Capability) (*models.FileNode, error)
}

// Manager implements the file tree operations
type Manager struct {
	repo    Repository
	content ContentStore
	jobs    JobQueue
	authz   Authorizer
	log     logrus.FieldLogger
	newRef  func() string
}

// NewManager creates a Manager
func NewManager(repo Repository, content ContentStore, jobs JobQueue, authz Authorizer, log logrus.FieldLogger) *Manager {
	return &Manager{
		repo:    repo,
		content: content,
		jobs:    jobs,
		authz:   authz,
		log:     log,
		newRef:  func() string { return uuid.New().String() },
	}
}

// UploadRequest is the raw input of an upload; Type and Data are
// validated by Upload
type UploadRequest struct {
	Name     string
	Type     string
	Parent   models.ParentRef
	IsPublic bool
	Data     []byte
}

// Upload validates req and creates a folder or a file
func (m *Manager) Upload(ctx context.Context, userID models.UserID, req UploadRequest) (*models.FileNode, error) {
	if req.Name == "" {
		return nil, common.NewValidationError("Missing name")
	}
	kind, ok := models.ParseKind(req.Type)
	if !ok {
		return nil, common.NewValidationError("Missing type")
	}
	if kind == models.KindFolder {
		return m.CreateFolder(ctx, userID, req.Name, req.Parent, req.IsPublic)
	}
	return m.CreateFile(ctx, userID, req.Name, kind, req.Parent, req.Data, req.IsPublic)
}

// CreateFolder persists a folder under parent
func (m *Manager) CreateFolder(ctx context.Context, userID models.UserID, name string, parent models.ParentRef, isPublic bool) (*models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "files.create_folder",
		trace.WithAttributes(
			attribute.Int64("user_id", int64(userID)),
			attribute.Int64("parent_id", parent.Storage()),
		),
	)
	defer span.End()

	if name == "" {
		return nil, common.NewValidationError("Missing name")
	}
	if err := m.checkParent(ctx, parent); err != nil {
		return nil, err
	}

	folder := &models.FileNode{
		OwnerID:  userID,
		Name:     name,
		Kind:     models.KindFolder,
		Parent:   parent,
		IsPublic: isPublic,
	}
	if err := m.repo.CreateFile(ctx, folder); err != nil {
		span.RecordError(err)
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"file_id": folder.ID,
		"user_id": userID,
	}).Debug("Folder created")
	return folder, nil
}

// CreateFile stores data under a fresh key, persists the record and, for
// images, enqueues a thumbnail job once the record is written. Enqueue
// failures are logged and do not fail the upload.
func (m *Manager) CreateFile(ctx context.Context, userID models.UserID, name string, kind models.Kind, parent models.ParentRef, data []byte, isPublic bool) (*models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "files.create_file",
		trace.WithAttributes(
			attribute.Int64("user_id", int64(userID)),
			attribute.String("file_type", string(kind)),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	if name == "" {
		return nil, common.NewValidationError("Missing name")
	}
	if !kind.HasContent() {
		return nil, common.NewValidationError("Missing type")
	}
	if len(data) == 0 {
		return nil, common.NewValidationError("Missing data")
	}
	if err := m.checkParent(ctx, parent); err != nil {
		return nil, err
	}

	ref := m.newRef()
	if err := m.content.Put(ctx, ref, data); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to store content: %w", err)
	}

	file := &models.FileNode{
		OwnerID:    userID,
		Name:       name,
		Kind:       kind,
		Parent:     parent,
		IsPublic:   isPublic,
		StorageRef: ref,
	}
	if err := m.repo.CreateFile(ctx, file); err != nil {
		span.RecordError(err)
		m.log.WithError(err).WithField("storage_ref", ref).Warn("Metadata write failed, content left orphaned")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("file_id", int64(file.ID)))

	if kind == models.KindImage {
		m.enqueueThumbnails(ctx, file)
	}
	return file, nil
}

func (m *Manager) enqueueThumbnails(ctx context.Context, file *models.FileNode) {
	job := models.ThumbnailJob{FileID: file.ID, OwnerID: file.OwnerID}
	fields := logrus.Fields{"file_id": file.ID, "user_id": file.OwnerID}

	if err := m.jobs.Enqueue(ctx, job); err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "thumbnail enqueue failed")
		m.log.WithError(err).WithFields(fields).Error("Failed to enqueue thumbnail job")
		return
	}
	m.log.WithFields(fields).Debug("Thumbnail job enqueued")
}

// checkParent accepts the root or an existing folder. Ownership of the
// parent is not checked.
func (m *Manager) checkParent(ctx context.Context, parent models.ParentRef) error {
	id, ok := parent.Node()
	if !ok {
		return nil
	}

	node, err := m.repo.GetFile(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return common.NewValidationError("Parent not found")
	} else if err != nil {
		return err
	}
	if node.Kind != models.KindFolder {
		return common.NewValidationError("Parent is not a folder")
	}
	return nil
}

// Get returns a file the user may read
func (m *Manager) Get(ctx context.Context, userID models.UserID, fileID models.FileID) (*models.FileNode, error) {
	return m.authz.AuthorizeUser(ctx, userID, fileID, access.Read)
}

// List returns page (zero-indexed) of the user's nodes under parent
func (m *Manager) List(ctx context.Context, userID models.UserID, parent models.ParentRef, page int) ([]*models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "files.list",
		trace.WithAttributes(
			attribute.Int64("user_id", int64(userID)),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	if page < 0 {
		page = 0
	}
	return m.repo.ListFiles(ctx, userID, parent, page*PageSize, PageSize)
}

// Publish makes a file public
func (m *Manager) Publish(ctx context.Context, userID models.UserID, fileID models.FileID) (*models.FileNode, error) {
	return m.setPublic(ctx, userID, fileID, true)
}

// Unpublish makes a file private
func (m *Manager) Unpublish(ctx context.Context, userID models.UserID, fileID models.FileID) (*models.FileNode, error) {
	return m.setPublic(ctx, userID, fileID, false)
}

func (m *Manager) setPublic(ctx context.Context, userID models.UserID, fileID models.FileID, public bool) (*models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "files.set_public",
		trace.WithAttributes(
			attribute.Int64("file_id", int64(fileID)),
			attribute.Bool("is_public", public),
		),
	)
	defer span.End()

	file, err := m.authz.AuthorizeUser(ctx, userID, fileID, access.Write)
	if err != nil {
		return nil, err
	}
	if err := m.repo.SetFilePublic(ctx, fileID, public); err != nil {
		span.RecordError(err)
		return nil, err
	}

	updated := *file
	updated.IsPublic = public
	return &updated, nil
}

// ReadContent returns the bytes of variant. A thumbnail that has not been
// produced yet is reported as common.ErrNotFound.
func (m *Manager) ReadContent(ctx context.Context, token string, fileID models.FileID, variant models.Variant) ([]byte, *models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "files.read_content",
		trace.WithAttributes(attribute.Int64("file_id", int64(fileID))),
	)
	defer span.End()

	_, file, err := m.authz.Authorize(ctx, token, fileID, access.Read)
	if err != nil {
		return nil, nil, err
	}
	if file.Kind == models.KindFolder {
		return nil, nil, common.ErrNoContent
	}
	if file.StorageRef == "" {
		return nil, nil, common.ErrNotFound
	}

	key := variant.Key(file.StorageRef)
	if w, ok := variant.IsThumbnail(); ok {
		span.SetAttributes(attribute.Int("width", w))
	}

	data, err := m.content.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return data, file, nil
}
