package handlers

import (
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/files"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReadHandler handles file content requests
type ReadHandler struct {
	manager *files.Manager
	log     logrus.FieldLogger
}

// NewReadHandler creates a new read handler
func NewReadHandler(manager *files.Manager, log logrus.FieldLogger) *ReadHandler {
	return &ReadHandler{manager: manager, log: log}
}

// ServeHTTP handles GET /files/{id}/data?size=
func (rh *ReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "read_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	fileID, err := models.ParseFileID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, rh.log, common.ErrNotFound)
		return
	}
	span.SetAttributes(attribute.Int64("file_id", int64(fileID)))

	variant, ok := parseVariant(r.URL.Query().Get("size"))
	if !ok {
		writeError(w, rh.log, common.ErrNotFound)
		return
	}

	data, file, err := rh.manager.ReadContent(ctx, r.Header.Get(TokenHeader), fileID, variant)
	if err != nil {
		writeError(w, rh.log, err)
		return
	}

	span.SetAttributes(
		attribute.String("file_name", file.Name),
		attribute.Int("size_bytes", len(data)),
	)

	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// parseVariant maps the size parameter to a variant; an empty size is the
// original. Sizes that are not positive integers can never exist.
func parseVariant(size string) (models.Variant, bool) {
	if size == "" {
		return models.Original(), true
	}
	w, err := strconv.Atoi(size)
	if err != nil || w <= 0 {
		return models.Variant{}, false
	}
	return models.Thumbnail(w), true
}
