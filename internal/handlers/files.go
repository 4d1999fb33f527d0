package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/files"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TokenHeader carries the session token
const TokenHeader = "X-Token"

// Authenticator resolves a session token to its user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.UserID, error)
}

// FileHandler serves file metadata: get, list, publish and unpublish
type FileHandler struct {
	auth    Authenticator
	manager *files.Manager
	log     logrus.FieldLogger
}

// NewFileHandler creates a new file metadata handler
func NewFileHandler(auth Authenticator, manager *files.Manager, log logrus.FieldLogger) *FileHandler {
	return &FileHandler{auth: auth, manager: manager, log: log}
}

// Get handles GET /files/{id}
func (fh *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "get_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	userID, err := fh.auth.Authenticate(ctx, r.Header.Get(TokenHeader))
	if err != nil {
		writeError(w, fh.log, err)
		return
	}

	fileID, err := models.ParseFileID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, fh.log, common.ErrNotFound)
		return
	}
	span.SetAttributes(attribute.Int64("file_id", int64(fileID)))

	file, err := fh.manager.Get(ctx, userID, fileID)
	if err != nil {
		writeError(w, fh.log, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// List handles GET /files?parentId=&page=
func (fh *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "list_files",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	userID, err := fh.auth.Authenticate(ctx, r.Header.Get(TokenHeader))
	if err != nil {
		writeError(w, fh.log, err)
		return
	}

	// An unparseable parent can hold no children
	parent, err := models.ParseParentRef(r.URL.Query().Get("parentId"))
	if err != nil {
		writeJSON(w, http.StatusOK, []*models.FileNode{})
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 0
	}
	span.SetAttributes(
		attribute.Int64("parent_id", parent.Storage()),
		attribute.Int("page", page),
	)

	list, err := fh.manager.List(ctx, userID, parent, page)
	if err != nil {
		writeError(w, fh.log, err)
		return
	}
	if list == nil {
		list = []*models.FileNode{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Publish handles PUT /files/{id}/publish
func (fh *FileHandler) Publish(w http.ResponseWriter, r *http.Request) {
	fh.setPublic(w, r, true)
}

// Unpublish handles PUT /files/{id}/unpublish
func (fh *FileHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	fh.setPublic(w, r, false)
}

func (fh *FileHandler) setPublic(w http.ResponseWriter, r *http.Request, public bool) {
	name := "unpublish_file"
	if public {
		name = "publish_file"
	}
	ctx, span := tracer.Start(r.Context(), name,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	userID, err := fh.auth.Authenticate(ctx, r.Header.Get(TokenHeader))
	if err != nil {
		writeError(w, fh.log, err)
		return
	}

	fileID, err := models.ParseFileID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, fh.log, common.ErrNotFound)
		return
	}
	span.SetAttributes(attribute.Int64("file_id", int64(fileID)))

	var file *models.FileNode
	if public {
		file, err = fh.manager.Publish(ctx, userID, fileID)
	} else {
		file, err = fh.manager.Unpublish(ctx, userID, fileID)
	}
	if err != nil {
		writeError(w, fh.log, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}
