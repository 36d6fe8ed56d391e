package repository

import (
	"context"
	"errors"

	"github.com/rpattn/entityhistory/internal/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no version matches the lookup.
	ErrNotFound = errors.New("entity version not found")
	// ErrAlreadyExists is returned when the entity already has the version being stored.
	ErrAlreadyExists = errors.New("entity version already exists")
)

// VersionRepository defines the interface for entity version operations
type VersionRepository interface {
	// Create stores a new version. It must be newer than every stored version of
	// the entity, otherwise ErrAlreadyExists is returned.
	Create(ctx context.Context, record domain.VersionRecord) (domain.VersionRecord, error)
	Latest(ctx context.Context, entityID uuid.UUID) (domain.VersionRecord, error)
	GetByVersion(ctx context.Context, entityID uuid.UUID, version domain.EntityVersion) (domain.VersionRecord, error)
	// List returns every stored version of the entity, newest first.
	List(ctx context.Context, entityID uuid.UUID) ([]domain.VersionRecord, error)
	// LatestByEntityIDs returns the latest version of each known entity. Unknown
	// ids are skipped.
	LatestByEntityIDs(ctx context.Context, ids []uuid.UUID) ([]domain.VersionRecord, error)
}
