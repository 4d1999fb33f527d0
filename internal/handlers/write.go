package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/files"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filesmanager-handlers")

// maxUploadBytes bounds the JSON body of an upload (base64 inflates by 4/3)
const maxUploadBytes = 64 << 20

// WriteHandler handles file and folder uploads
type WriteHandler struct {
	auth    Authenticator
	manager *files.Manager
	log     logrus.FieldLogger
}

// NewWriteHandler creates a new write handler
func NewWriteHandler(auth Authenticator, manager *files.Manager, log logrus.FieldLogger) *WriteHandler {
	return &WriteHandler{auth: auth, manager: manager, log: log}
}

// uploadRequest is the POST /files body; data is base64
type uploadRequest struct {
	Name     string           `json:"name"`
	Type     string           `json:"type"`
	ParentID models.ParentRef `json:"parentId"`
	IsPublic bool             `json:"isPublic"`
	Data     string           `json:"data"`
}

// uploadResponse exposes the content key only to the uploader
type uploadResponse struct {
	*models.FileNode
	StorageRef string `json:"storageRef,omitempty"`
}

// ServeHTTP handles POST /files
func (wh *WriteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "upload_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	userID, err := wh.auth.Authenticate(ctx, r.Header.Get(TokenHeader))
	if err != nil {
		writeError(w, wh.log, err)
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		var ve *common.ValidationError
		if errors.As(err, &ve) {
			writeError(w, wh.log, ve)
			return
		}
		writeError(w, wh.log, common.NewValidationError("Invalid request body"))
		return
	}

	var data []byte
	if req.Data != "" {
		data, err = base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			writeError(w, wh.log, common.NewValidationError("Invalid data"))
			return
		}
	}

	span.SetAttributes(
		attribute.String("file_name", req.Name),
		attribute.String("file_type", req.Type),
		attribute.Int("size_bytes", len(data)),
	)

	file, err := wh.manager.Upload(ctx, userID, files.UploadRequest{
		Name:     req.Name,
		Type:     req.Type,
		Parent:   req.ParentID,
		IsPublic: req.IsPublic,
		Data:     data,
	})
	if err != nil {
		span.RecordError(err)
		writeError(w, wh.log, err)
		return
	}

	wh.log.WithFields(logrus.Fields{
		"file_id": file.ID,
		"user_id": userID,
		"type":    file.Kind,
	}).Info("Upload completed")
	writeJSON(w, http.StatusCreated, uploadResponse{FileNode: file, StorageRef: file.StorageRef})
}
