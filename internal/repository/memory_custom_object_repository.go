// internal/repository/memory_custom_object_repository.go
package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

type memoryEntry struct {
	obj model.CustomObject
	seq int64
}

// MemoryCustomObjectRepository keeps custom objects in process. Used by the
// memory backend and tests.
type MemoryCustomObjectRepository struct {
	mu      sync.Mutex
	objects map[string]map[string]*memoryEntry
	seq     int64
	Now     func() time.Time
}

var _ CustomObjectRepositoryInterface = (*MemoryCustomObjectRepository)(nil)

func NewMemoryCustomObjectRepository() *MemoryCustomObjectRepository {
	return &MemoryCustomObjectRepository{
		objects: make(map[string]map[string]*memoryEntry),
		Now:     time.Now,
	}
}

func (r *MemoryCustomObjectRepository) Get(ctx context.Context, container, key string) (*model.CustomObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.objects[container][key]
	if !ok {
		return nil, nil
	}
	obj := e.obj
	return &obj, nil
}

func (r *MemoryCustomObjectRepository) Put(ctx context.Context, container, key string, version int64, value any) (*model.CustomObject, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, appErrors.NewInternal("failed to encode custom object value", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Now()
	byKey := r.objects[container]
	if byKey == nil {
		byKey = make(map[string]*memoryEntry)
		r.objects[container] = byKey
	}

	e, exists := byKey[key]
	switch {
	case version == 0 && exists:
		return nil, appErrors.NewPersistenceConflict(container, key)
	case version == 0:
		r.seq++
		e = &memoryEntry{seq: r.seq, obj: model.CustomObject{
			Container: container, Key: key, Version: 1, CreatedAt: now,
		}}
		byKey[key] = e
	case !exists || e.obj.Version != version:
		return nil, appErrors.NewPersistenceConflict(container, key)
	default:
		e.obj.Version++
	}
	e.obj.Value = b
	e.obj.LastModifiedAt = now

	obj := e.obj
	return &obj, nil
}

func (r *MemoryCustomObjectRepository) Delete(ctx context.Context, container, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.objects[container], key)
	return nil
}

// List returns objects newest first.
func (r *MemoryCustomObjectRepository) List(ctx context.Context, container string, offset, limit int) (*model.CustomObjectPage, error) {
	r.mu.Lock()
	entries := make([]memoryEntry, 0, len(r.objects[container]))
	for _, e := range r.objects[container] {
		entries = append(entries, *e)
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].obj.CreatedAt.Equal(entries[j].obj.CreatedAt) {
			return entries[i].obj.CreatedAt.After(entries[j].obj.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	page := &model.CustomObjectPage{Results: []*model.CustomObject{}, Offset: offset, Total: len(entries)}
	if offset < 0 {
		offset = 0
	}
	for i := offset; i < len(entries) && (limit <= 0 || len(page.Results) < limit); i++ {
		obj := entries[i].obj
		page.Results = append(page.Results, &obj)
	}
	return page, nil
}
