package entityloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/entityhistory/internal/domain"
	"github.com/rpattn/entityhistory/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// LatestVersionLoader batches latest-version lookups issued within the same request.
type LatestVersionLoader struct {
	Loader *dataloader.Loader
}

func NewLatestVersionLoader(repo repository.VersionRepository) *LatestVersionLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		// Convert keys to []uuid.UUID
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return errorResults(len(keys), fmt.Errorf("invalid UUID: %w", err))
			}
			ids[i] = id
		}

		records, err := repo.LatestByEntityIDs(ctx, ids)
		if err != nil {
			return errorResults(len(keys), err)
		}

		// Map UUID -> record for ordering
		byEntity := make(map[uuid.UUID]domain.VersionRecord, len(records))
		for _, record := range records {
			byEntity[record.EntityID] = record
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if record, ok := byEntity[id]; ok {
				results[i] = &dataloader.Result{Data: record}
			} else {
				results[i] = &dataloader.Result{Error: fmt.Errorf("%w: %s", repository.ErrNotFound, id)}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &LatestVersionLoader{Loader: loader}
}

// Load returns the latest version of one entity.
func (l *LatestVersionLoader) Load(ctx context.Context, entityID uuid.UUID) (domain.VersionRecord, error) {
	value, err := l.Loader.Load(ctx, dataloader.StringKey(entityID.String()))()
	if err != nil {
		return domain.VersionRecord{}, err
	}
	record, ok := value.(domain.VersionRecord)
	if !ok {
		return domain.VersionRecord{}, fmt.Errorf("unexpected loader value %T", value)
	}
	return record, nil
}

// LoadMany resolves several entities at once. The returned slice is aligned with
// entityIDs; errs is nil when every lookup succeeded.
func (l *LatestVersionLoader) LoadMany(ctx context.Context, entityIDs []uuid.UUID) ([]domain.VersionRecord, []error) {
	keys := make(dataloader.Keys, len(entityIDs))
	for i, id := range entityIDs {
		keys[i] = dataloader.StringKey(id.String())
	}

	values, errs := l.Loader.LoadMany(ctx, keys)()
	records := make([]domain.VersionRecord, len(values))
	for i, value := range values {
		if record, ok := value.(domain.VersionRecord); ok {
			records[i] = record
		}
	}
	return records, errs
}

func errorResults(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}
