package thumbnail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFiles struct {
	files map[models.FileID]*models.FileNode
	err   error
}

func (f *fakeFiles) GetFile(_ context.Context, id models.FileID) (*models.FileNode, error) {
	if f.err != nil {
		return nil, f.err
	}
	file, ok := f.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return file, nil
}

type memContent struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failKeys map[string]bool
}

func (c *memContent) Put(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failKeys[key] {
		return fmt.Errorf("%w: put object", common.ErrStoreUnavailable)
	}
	c.objects[key] = data
	return nil
}

func (c *memContent) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.objects[key]
	return ok, nil
}

func (c *memContent) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return data, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newProcessor(t *testing.T) (*Processor, *fakeFiles, *memContent) {
	t.Helper()
	log, _ := test.NewNullLogger()
	files := &fakeFiles{files: map[models.FileID]*models.FileNode{
		1: {ID: 1, OwnerID: 7, Kind: models.KindImage, Name: "cat.png", StorageRef: "ref-cat"},
		2: {ID: 2, OwnerID: 7, Kind: models.KindFolder, Name: "photos"},
		3: {ID: 3, OwnerID: 7, Kind: models.KindFile, Name: "a.txt", StorageRef: "ref-txt"},
		4: {ID: 4, OwnerID: 7, Kind: models.KindImage, Name: "broken.jpg", StorageRef: "ref-broken"},
		5: {ID: 5, OwnerID: 7, Kind: models.KindImage, Name: "lost.png", StorageRef: "ref-lost"},
	}}
	content := &memContent{
		objects: map[string][]byte{
			"ref-cat":    pngBytes(t, 800, 600),
			"ref-txt":    []byte("hello"),
			"ref-broken": []byte("not an image"),
		},
		failKeys: map[string]bool{},
	}
	return NewProcessor(files, content, log), files, content
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandle_GeneratesAllWidths(t *testing.T) {
	p, _, content := newProcessor(t)

	err := p.Handle(context.Background(), payload(t, models.ThumbnailJob{FileID: 1, OwnerID: 7}))
	require.NoError(t, err)

	for _, w := range []int{500, 250, 100} {
		data, ok := content.objects[fmt.Sprintf("ref-cat_%d", w)]
		require.True(t, ok, "missing width %d", w)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, w, cfg.Width)
	}
}

func TestHandle_PermanentFailures(t *testing.T) {
	p, _, _ := newProcessor(t)

	tests := []struct {
		name    string
		payload json.RawMessage
	}{
		{"malformed", json.RawMessage(`{"fileId":`)},
		{"missing fileId", json.RawMessage(`{"userId":7}`)},
		{"missing userId", json.RawMessage(`{"fileId":1}`)},
		{"zero fileId", json.RawMessage(`{"fileId":0,"userId":7}`)},
		{"nonexistent file", payload(t, models.ThumbnailJob{FileID: 99, OwnerID: 7})},
		{"folder", payload(t, models.ThumbnailJob{FileID: 2, OwnerID: 7})},
		{"plain file", payload(t, models.ThumbnailJob{FileID: 3, OwnerID: 7})},
		{"owner mismatch", payload(t, models.ThumbnailJob{FileID: 1, OwnerID: 8})},
		{"original missing", payload(t, models.ThumbnailJob{FileID: 5, OwnerID: 7})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Handle(context.Background(), tt.payload)
			assert.ErrorIs(t, err, common.ErrPermanentJob)
			assert.NotErrorIs(t, err, common.ErrTransientJob)
		})
	}
}

func TestHandle_MetadataStoreDownIsTransient(t *testing.T) {
	p, files, _ := newProcessor(t)
	files.err = fmt.Errorf("%w: query file", common.ErrStoreUnavailable)

	err := p.Handle(context.Background(), payload(t, models.ThumbnailJob{FileID: 1, OwnerID: 7}))
	assert.ErrorIs(t, err, common.ErrTransientJob)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestHandle_UndecodableImageIsTransient(t *testing.T) {
	p, _, _ := newProcessor(t)

	err := p.Handle(context.Background(), payload(t, models.ThumbnailJob{FileID: 4, OwnerID: 7}))
	assert.ErrorIs(t, err, common.ErrTransientJob)
}

func TestHandle_PartialFailureDoesNotBlockOtherWidths(t *testing.T) {
	p, _, content := newProcessor(t)
	content.failKeys["ref-cat_250"] = true

	err := p.Handle(context.Background(), payload(t, models.ThumbnailJob{FileID: 1, OwnerID: 7}))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransientJob)
	assert.Contains(t, err.Error(), "width 250")

	assert.Contains(t, content.objects, "ref-cat_500")
	assert.Contains(t, content.objects, "ref-cat_100")
	assert.NotContains(t, content.objects, "ref-cat_250")
}

func TestHandle_RetryKeepsStoredRenditions(t *testing.T) {
	p, _, content := newProcessor(t)
	content.failKeys["ref-cat_250"] = true

	err := p.Handle(context.Background(), payload(t, models.ThumbnailJob{FileID: 1, OwnerID: 7}))
	require.ErrorIs(t, err, common.ErrTransientJob)

	// mark the first attempt's renditions so a rewrite would be visible
	content.objects["ref-cat_500"] = []byte("first attempt")
	content.objects["ref-cat_100"] = []byte("first attempt")
	// the 500 px key now fails: it must not be written again
	content.failKeys["ref-cat_500"] = true
	delete(content.failKeys, "ref-cat_250")

	err = p.Handle(context.Background(), payload(t, models.ThumbnailJob{FileID: 1, OwnerID: 7}))
	require.NoError(t, err)

	assert.Equal(t, []byte("first attempt"), content.objects["ref-cat_500"])
	assert.Equal(t, []byte("first attempt"), content.objects["ref-cat_100"])

	cfg, _, err := image.DecodeConfig(bytes.NewReader(content.objects["ref-cat_250"]))
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Width)
}
