package repository

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"

	"github.com/totegamma/sketchroom/internal/domain"
)

// MemorySnapshotRepository keeps the snapshot in process memory.
type MemorySnapshotRepository struct {
	mu       sync.RWMutex
	snapshot *domain.Snapshot
}

func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{}
}

func (r *MemorySnapshotRepository) Save(ctx context.Context, snapshot domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = &snapshot
	return nil
}

func (r *MemorySnapshotRepository) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snapshot == nil {
		return domain.Snapshot{}, false, nil
	}
	return *r.snapshot, true, nil
}

func (r *MemorySnapshotRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = nil
	return nil
}

// MemcacheSnapshotRepository stores the snapshot in memcached so other
// processes (read replicas, thumbnailers) can fetch it without a websocket.
// Rasters larger than the server's item size limit fail to save.
type MemcacheSnapshotRepository struct {
	mc  *memcache.Client
	key string
}

func NewMemcacheSnapshotRepository(mc *memcache.Client, canvas string) *MemcacheSnapshotRepository {
	return &MemcacheSnapshotRepository{
		mc:  mc,
		key: "sketchroom:snapshot:" + canvas,
	}
}

func (r *MemcacheSnapshotRepository) Save(ctx context.Context, snapshot domain.Snapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "MemcacheSnapshotRepository.Save: marshal failed")
	}
	err = r.mc.Set(&memcache.Item{Key: r.key, Value: value})
	if err != nil {
		return errors.Wrap(err, "MemcacheSnapshotRepository.Save: set failed")
	}
	return nil
}

func (r *MemcacheSnapshotRepository) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	item, err := r.mc.Get(r.key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return domain.Snapshot{}, false, nil
		}
		return domain.Snapshot{}, false, errors.Wrap(err, "MemcacheSnapshotRepository.Load: get failed")
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(item.Value, &snapshot); err != nil {
		return domain.Snapshot{}, false, errors.Wrap(err, "MemcacheSnapshotRepository.Load: corrupt item")
	}
	return snapshot, true, nil
}

func (r *MemcacheSnapshotRepository) Clear(ctx context.Context) error {
	err := r.mc.Delete(r.key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return errors.Wrap(err, "MemcacheSnapshotRepository.Clear: delete failed")
	}
	return nil
}
