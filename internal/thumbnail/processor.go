// Package thumbnail derives resized renditions of uploaded images.
//
// The processor trusts its jobs: they are only enqueued by the file
// manager after the upload was authorized.
package thumbnail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

var tracer = otel.Tracer("filesmanager-thumbnail")

// Widths are the rendition widths produced for every image
var Widths = []int{500, 250, 100}

// FileGetter loads file metadata
type FileGetter interface {
	GetFile(ctx context.Context, id models.FileID) (*models.FileNode, error)
}

// ContentStore holds originals and renditions
type ContentStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Processor handles thumbnail jobs
type Processor struct {
	files   FileGetter
	content ContentStore
	widths  []int
	log     logrus.FieldLogger
}

// NewProcessor creates a Processor producing Widths
func NewProcessor(files FileGetter, content ContentStore, log logrus.FieldLogger) *Processor {
	return &Processor{files: files, content: content, widths: Widths, log: log}
}

type jobPayload struct {
	FileID *models.FileID `json:"fileId"`
	UserID *models.UserID `json:"userId"`
}

func permanent(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrPermanentJob, msg)
}

// Handle processes one job payload. Malformed and unresolvable jobs fail
// with common.ErrPermanentJob; store and rendering failures wrap
// common.ErrTransientJob.
func (p *Processor) Handle(ctx context.Context, payload json.RawMessage) error {
	var job jobPayload
	if err := json.Unmarshal(payload, &job); err != nil {
		return permanent("malformed job")
	}
	if job.FileID == nil || *job.FileID <= 0 {
		return permanent("Missing fileId")
	}
	if job.UserID == nil || *job.UserID <= 0 {
		return permanent("Missing userId")
	}

	return p.Process(ctx, models.ThumbnailJob{FileID: *job.FileID, OwnerID: *job.UserID})
}

// Process renders every width of the job's image
func (p *Processor) Process(ctx context.Context, job models.ThumbnailJob) error {
	ctx, span := tracer.Start(ctx, "thumbnail.process",
		trace.WithAttributes(
			attribute.Int64("file_id", int64(job.FileID)),
			attribute.Int64("user_id", int64(job.OwnerID)),
		),
	)
	defer span.End()

	log := p.log.WithFields(logrus.Fields{"file_id": job.FileID, "user_id": job.OwnerID})

	file, err := p.files.GetFile(ctx, job.FileID)
	if errors.Is(err, common.ErrNotFound) {
		return permanent("File not found")
	} else if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", common.ErrTransientJob, err)
	}
	if file.OwnerID != job.OwnerID || file.Kind != models.KindImage {
		return permanent("File not found")
	}

	original, err := p.content.Get(ctx, file.StorageRef)
	if errors.Is(err, common.ErrNotFound) {
		return permanent("original content missing")
	} else if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", common.ErrTransientJob, err)
	}

	img, format, err := decode(original)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", common.ErrTransientJob, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(p.widths))
	for i, width := range p.widths {
		wg.Add(1)
		go func(i, width int) {
			defer wg.Done()

			// renditions stored by an earlier attempt are kept
			key := file.ThumbnailRef(width)
			exists, err := p.content.Exists(ctx, key)
			if err == nil && exists {
				log.WithField("width", width).Debug("Thumbnail already stored")
				return
			}
			if err == nil {
				var out []byte
				if out, err = render(img, width, format); err == nil {
					err = p.content.Put(ctx, key, out)
				}
			}
			if err != nil {
				errs[i] = fmt.Errorf("width %d: %w", width, err)
				log.WithError(err).WithField("width", width).Warn("Thumbnail failed")
				return
			}
			log.WithField("width", width).Debug("Thumbnail stored")
		}(i, width)
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", common.ErrTransientJob, err)
	}

	log.Info("Thumbnails generated")
	return nil
}
