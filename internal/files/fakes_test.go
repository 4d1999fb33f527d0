package files

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
)

type memRepo struct {
	mu      sync.Mutex
	nextID  models.FileID
	files   map[models.FileID]*models.FileNode
	gets    int
	down    bool
	setLog  []bool
	failNew bool
}

func newMemRepo() *memRepo {
	return &memRepo{files: map[models.FileID]*models.FileNode{}}
}

func (r *memRepo) CreateFile(_ context.Context, file *models.FileNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down || r.failNew {
		return fmt.Errorf("%w: insert file", common.ErrStoreUnavailable)
	}
	r.nextID++
	file.ID = r.nextID
	cp := *file
	r.files[file.ID] = &cp
	return nil
}

func (r *memRepo) GetFile(_ context.Context, id models.FileID) (*models.FileNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.down {
		return nil, fmt.Errorf("%w: query file", common.ErrStoreUnavailable)
	}
	f, ok := r.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memRepo) ListFiles(_ context.Context, owner models.UserID, parent models.ParentRef, offset, limit int) ([]*models.FileNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return nil, fmt.Errorf("%w: query files", common.ErrStoreUnavailable)
	}

	ids := make([]models.FileID, 0, len(r.files))
	for id, f := range r.files {
		if f.OwnerID == owner && f.Parent == parent {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []*models.FileNode{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		cp := *r.files[ids[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memRepo) SetFilePublic(_ context.Context, id models.FileID, public bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return fmt.Errorf("%w: update file", common.ErrStoreUnavailable)
	}
	if f, ok := r.files[id]; ok {
		f.IsPublic = public
	}
	r.setLog = append(r.setLog, public)
	return nil
}

func (r *memRepo) exists(id models.FileID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.files[id]
	return ok
}

type memContent struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemContent() *memContent {
	return &memContent{objects: map[string][]byte{}}
}

func (c *memContent) Put(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPut {
		return fmt.Errorf("%w: put object", common.ErrStoreUnavailable)
	}
	c.objects[key] = append([]byte(nil), data...)
	return nil
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

func (c *memContent) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}

// recordingQueue records jobs and whether their file existed at enqueue time
type recordingQueue struct {
	mu          sync.Mutex
	repo        *memRepo
	jobs        []models.ThumbnailJob
	existedThen []bool
	err         error
}

func (q *recordingQueue) Enqueue(_ context.Context, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	job := payload.(models.ThumbnailJob)
	q.jobs = append(q.jobs, job)
	q.existedThen = append(q.existedThen, q.repo.exists(job.FileID))
	return nil
}

type fakeSessions map[string]models.UserID

func (f fakeSessions) Resolve(_ context.Context, token string) (models.UserID, error) {
	uid, ok := f[token]
	if !ok {
		return 0, common.ErrUnauthenticated
	}
	return uid, nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[models.FileID]models.FileNode
	failGet bool
	failDel bool
}

func newMemCache() *memCache {
	return &memCache{entries: map[models.FileID]models.FileNode{}}
}

func (c *memCache) GetFileMetadata(_ context.Context, id models.FileID) (*models.FileNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, fmt.Errorf("%w: get from cache", common.ErrStoreUnavailable)
	}
	f, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (c *memCache) SetFileMetadata(_ context.Context, file *models.FileNode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[file.ID] = *file
	return nil
}

func (c *memCache) InvalidateFileMetadata(_ context.Context, id models.FileID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failDel {
		return fmt.Errorf("%w: invalidate cache", common.ErrStoreUnavailable)
	}
	delete(c.entries, id)
	return nil
}
