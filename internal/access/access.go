// Package access authorizes file operations.
//
// Denials for files the caller may not see are reported as
// common.ErrNotFound, the same error as for files that do not exist.
package access

import (
	"context"
	"errors"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filesmanager-access")

// Capability is the access level an operation needs
type Capability int

const (
	Read Capability = iota
	Write
)

func (c Capability) String() string {
	switch c {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return "unknown"
}

// SessionResolver maps tokens to users
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (models.UserID, error)
}

// FileGetter loads file metadata
type FileGetter interface {
	GetFile(ctx context.Context, id models.FileID) (*models.FileNode, error)
}

// Authorizer checks capabilities against file records
type Authorizer struct {
	sessions SessionResolver
	files    FileGetter
	log      logrus.FieldLogger
}

// NewAuthorizer creates an Authorizer
func NewAuthorizer(sessions SessionResolver, files FileGetter, log logrus.FieldLogger) *Authorizer {
	return &Authorizer{sessions: sessions, files: files, log: log}
}

// Authenticate resolves token. A failing session store is reported as
// common.ErrUnauthenticated.
func (a *Authorizer) Authenticate(ctx context.Context, token string) (models.UserID, error) {
	userID, err := a.sessions.Resolve(ctx, token)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, common.ErrUnauthenticated) {
		a.log.WithError(err).Warn("Session lookup failed, denying request")
	}
	return 0, common.ErrUnauthenticated
}

// Authorize resolves token and checks need on the file
func (a *Authorizer) Authorize(ctx context.Context, token string, fileID models.FileID, need Capability) (models.UserID, *models.FileNode, error) {
	ctx, span := tracer.Start(ctx, "access.authorize",
		trace.WithAttributes(
			attribute.Int64("file_id", int64(fileID)),
			attribute.String("capability", need.String()),
		),
	)
	defer span.End()

	userID, err := a.Authenticate(ctx, token)
	if err != nil {
		span.SetAttributes(attribute.String("denied", "unauthenticated"))
		return 0, nil, err
	}

	file, err := a.AuthorizeUser(ctx, userID, fileID, need)
	if err != nil {
		return 0, nil, err
	}
	return userID, file, nil
}

// AuthorizeUser checks need for an already authenticated user
func (a *Authorizer) AuthorizeUser(ctx context.Context, userID models.UserID, fileID models.FileID, need Capability) (*models.FileNode, error) {
	span := trace.SpanFromContext(ctx)

	file, err := a.files.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			span.SetAttributes(attribute.String("denied", "not_found"))
		}
		return nil, err
	}

	if !Allowed(userID, file, need) {
		span.SetAttributes(attribute.String("denied", "not_found"))
		return nil, common.ErrNotFound
	}
	return file, nil
}

// Allowed is the capability rule: anyone may read public files, only the
// owner may read private files or write at all.
func Allowed(userID models.UserID, file *models.FileNode, need Capability) bool {
	owner := file.OwnerID == userID
	switch need {
	case Read:
		return owner || file.IsPublic
	case Write:
		return owner
	}
	return false
}
