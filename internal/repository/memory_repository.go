package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rpattn/entityhistory/internal/domain"

	"github.com/google/uuid"
)

type memoryVersionRepository struct {
	mu       sync.RWMutex
	versions map[uuid.UUID][]domain.VersionRecord
	now      func() time.Time
}

// NewMemoryVersionRepository returns a process local repository. Versions are
// lost on restart.
func NewMemoryVersionRepository() VersionRepository {
	return &memoryVersionRepository{
		versions: map[uuid.UUID][]domain.VersionRecord{},
		now:      time.Now,
	}
}

func (r *memoryVersionRepository) Create(_ context.Context, record domain.VersionRecord) (domain.VersionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.versions[record.EntityID]; len(existing) > 0 {
		if err := checkNewer(record, existing[0].Version); err != nil {
			return domain.VersionRecord{}, err
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = r.now().UTC()
	}
	record.Snapshot = cloneSnapshot(record.Snapshot)

	list := append(r.versions[record.EntityID], record)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Version.Compare(list[j].Version) > 0
	})
	r.versions[record.EntityID] = list

	return copyRecord(record), nil
}

func (r *memoryVersionRepository) Latest(_ context.Context, entityID uuid.UUID) (domain.VersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.versions[entityID]
	if len(list) == 0 {
		return domain.VersionRecord{}, ErrNotFound
	}
	return copyRecord(list[0]), nil
}

func (r *memoryVersionRepository) GetByVersion(_ context.Context, entityID uuid.UUID, version domain.EntityVersion) (domain.VersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.versions[entityID] {
		if record.Version.Compare(version) == 0 {
			return copyRecord(record), nil
		}
	}
	return domain.VersionRecord{}, ErrNotFound
}

func (r *memoryVersionRepository) List(_ context.Context, entityID uuid.UUID) ([]domain.VersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.versions[entityID]
	out := make([]domain.VersionRecord, len(list))
	for i, record := range list {
		out[i] = copyRecord(record)
	}
	return out, nil
}

func (r *memoryVersionRepository) LatestByEntityIDs(_ context.Context, ids []uuid.UUID) ([]domain.VersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.VersionRecord, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if list := r.versions[id]; len(list) > 0 {
			out = append(out, copyRecord(list[0]))
		}
	}
	return out, nil
}

func copyRecord(record domain.VersionRecord) domain.VersionRecord {
	record.Snapshot = cloneSnapshot(record.Snapshot)
	if record.ChangeDescription != nil {
		change := *record.ChangeDescription
		record.ChangeDescription = &change
	}
	return record
}

func cloneSnapshot(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
