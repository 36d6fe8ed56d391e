package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/entityhistory/internal/domain"
	"github.com/rpattn/entityhistory/internal/repository"

	"github.com/google/uuid"
	"github.com/goto/salt/log"
)

var (
	// ErrEntityTypeMismatch is returned when a request names a different entity
	// type than the one the entity was created with.
	ErrEntityTypeMismatch = errors.New("entity type does not match stored versions")
	// ErrInvalidRequest wraps request level problems that are not schema violations.
	ErrInvalidRequest = errors.New("invalid request")
)

// Service records entity versions and answers version history queries.
type Service struct {
	repo     repository.VersionRepository
	classify domain.Classifier
	logger   log.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithClassifier replaces the rule deciding whether a deleted field is breaking.
func WithClassifier(classifier domain.Classifier) Option {
	return func(s *Service) {
		if classifier != nil {
			s.classify = classifier
		}
	}
}

// WithBreakingFields marks additional fields whose deletion forces a major version.
func WithBreakingFields(fields []string) Option {
	return func(s *Service) {
		if len(fields) == 0 {
			return
		}
		breaking := make(map[string]struct{}, len(fields))
		for _, field := range fields {
			if trimmed := strings.TrimSpace(field); trimmed != "" {
				breaking[trimmed] = struct{}{}
			}
		}
		base := s.classify
		s.classify = func(field string) bool {
			if _, ok := breaking[field]; ok {
				return true
			}
			return base(field)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new version service.
func NewService(repo repository.VersionRepository, logger log.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		classify: domain.IsBreakingDeletion,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest describes the first version of an entity.
type CreateRequest struct {
	EntityID   uuid.UUID
	EntityType string
	Snapshot   map[string]any
	UpdatedBy  string
}

// UpdateRequest describes a new state of an entity. When Change is nil the
// change description is derived by diffing Snapshot against the latest version.
// When Snapshot is nil the latest snapshot is carried forward, so Change is required.
type UpdateRequest struct {
	EntityID   uuid.UUID
	EntityType string
	Snapshot   map[string]any
	UpdatedBy  string
	Change     *domain.ChangeDescription
}

// UpdateResult reports the stored (or unchanged) version and how it moved.
type UpdateResult struct {
	Record     domain.VersionRecord `json:"record"`
	UpdateType domain.UpdateType    `json:"updateType"`
}

// Create stores version 0.1 of a new entity.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.VersionRecord, error) {
	if err := validateIdentity(req.EntityID, req.EntityType); err != nil {
		return domain.VersionRecord{}, err
	}

	_, err := s.repo.Latest(ctx, req.EntityID)
	switch {
	case err == nil:
		return domain.VersionRecord{}, fmt.Errorf("%w: entity %s", repository.ErrAlreadyExists, req.EntityID)
	case !errors.Is(err, repository.ErrNotFound):
		return domain.VersionRecord{}, fmt.Errorf("failed to check existing versions: %w", err)
	}

	return s.create(ctx, req)
}

func (s *Service) create(ctx context.Context, req CreateRequest) (domain.VersionRecord, error) {
	if req.Snapshot == nil {
		req.Snapshot = map[string]any{}
	}
	record, err := s.repo.Create(ctx, domain.VersionRecord{
		ID:         uuid.New(),
		EntityID:   req.EntityID,
		EntityType: req.EntityType,
		Version:    domain.InitialVersion,
		Snapshot:   req.Snapshot,
		UpdatedBy:  req.UpdatedBy,
		UpdatedAt:  s.now().UTC(),
	})
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("failed to store initial version: %w", err)
	}

	s.logger.Info("entity created", "entity_type", record.EntityType, "entity_id", record.EntityID.String(), "version", record.Version.String())
	return record, nil
}

// Update records a new version of an entity, creating it when it does not exist yet.
// Changes that add, update and delete nothing leave the version untouched.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	if err := validateIdentity(req.EntityID, req.EntityType); err != nil {
		return UpdateResult{}, err
	}
	if req.Snapshot == nil && req.Change == nil {
		return UpdateResult{}, fmt.Errorf("%w: snapshot or change description is required", ErrInvalidRequest)
	}

	latest, err := s.repo.Latest(ctx, req.EntityID)
	if errors.Is(err, repository.ErrNotFound) {
		record, err := s.create(ctx, CreateRequest{
			EntityID:   req.EntityID,
			EntityType: req.EntityType,
			Snapshot:   req.Snapshot,
			UpdatedBy:  req.UpdatedBy,
		})
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{Record: record, UpdateType: domain.UpdateCreated}, nil
	}
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to load latest version: %w", err)
	}
	if latest.EntityType != req.EntityType {
		return UpdateResult{}, fmt.Errorf("%w: %s is a %s", ErrEntityTypeMismatch, req.EntityID, latest.EntityType)
	}

	snapshot := req.Snapshot
	if snapshot == nil {
		snapshot = latest.Snapshot
	}

	var change domain.ChangeDescription
	if req.Change != nil {
		change = *req.Change
	} else {
		change = domain.DiffSnapshots(latest.Snapshot, snapshot)
	}

	updateType := domain.ClassifyChange(change, s.classify)
	if updateType == domain.UpdateNoChange {
		s.logger.Debug("entity unchanged", "entity_type", latest.EntityType, "entity_id", latest.EntityID.String(), "version", latest.Version.String())
		return UpdateResult{Record: latest, UpdateType: updateType}, nil
	}

	next := latest.Version.Next(updateType)
	if next.Compare(domain.MaxVersion) > 0 {
		return UpdateResult{}, &domain.ValidationError{
			Record:     "VersionRecord",
			Field:      "version",
			Constraint: domain.ConstraintMaximum,
			Message:    fmt.Sprintf("%s has no room for a %s", latest.Version, updateType),
		}
	}

	change = change.WithPreviousVersion(latest.Version)
	record, err := s.repo.Create(ctx, domain.VersionRecord{
		ID:                uuid.New(),
		EntityID:          req.EntityID,
		EntityType:        req.EntityType,
		Version:           next,
		ChangeDescription: &change,
		Snapshot:          snapshot,
		UpdatedBy:         req.UpdatedBy,
		UpdatedAt:         s.now().UTC(),
	})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to store version: %w", err)
	}

	s.logger.Info("entity updated",
		"entity_type", record.EntityType,
		"entity_id", record.EntityID.String(),
		"update_type", string(updateType),
		"previous_version", latest.Version.String(),
		"version", record.Version.String(),
	)
	return UpdateResult{Record: record, UpdateType: updateType}, nil
}

// History returns every version of the entity, newest first.
func (s *Service) History(ctx context.Context, entityType string, entityID uuid.UUID) (domain.EntityVersionHistory, error) {
	records, err := s.repo.List(ctx, entityID)
	if err != nil {
		return domain.EntityVersionHistory{}, fmt.Errorf("failed to list versions: %w", err)
	}
	if len(records) == 0 {
		return domain.EntityVersionHistory{}, fmt.Errorf("%w: entity %s", repository.ErrNotFound, entityID)
	}
	if err := checkEntityType(records[0], entityType); err != nil {
		return domain.EntityVersionHistory{}, err
	}

	return domain.NewHistoryFromRecords(entityType, records)
}

// Records returns the stored version records of the entity, newest first.
func (s *Service) Records(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.VersionRecord, error) {
	records, err := s.repo.List(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: entity %s", repository.ErrNotFound, entityID)
	}
	if err := checkEntityType(records[0], entityType); err != nil {
		return nil, err
	}
	return records, nil
}

// Version returns one specific version of the entity.
func (s *Service) Version(ctx context.Context, entityType string, entityID uuid.UUID, version domain.EntityVersion) (domain.VersionRecord, error) {
	record, err := s.repo.GetByVersion(ctx, entityID, version)
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("failed to get version %s: %w", version, err)
	}
	if err := checkEntityType(record, entityType); err != nil {
		return domain.VersionRecord{}, err
	}
	return record, nil
}

// Latest returns the current version of the entity.
func (s *Service) Latest(ctx context.Context, entityType string, entityID uuid.UUID) (domain.VersionRecord, error) {
	record, err := s.repo.Latest(ctx, entityID)
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("failed to get latest version: %w", err)
	}
	if err := checkEntityType(record, entityType); err != nil {
		return domain.VersionRecord{}, err
	}
	return record, nil
}

// Diff renders a unified diff between two stored versions of the entity.
func (s *Service) Diff(ctx context.Context, entityType string, entityID uuid.UUID, base, target domain.EntityVersion) (string, error) {
	baseRecord, err := s.Version(ctx, entityType, entityID, base)
	if err != nil {
		return "", err
	}
	targetRecord, err := s.Version(ctx, entityType, entityID, target)
	if err != nil {
		return "", err
	}

	baseSnapshot := domain.NewEntitySnapshotFromRecord(baseRecord)
	targetSnapshot := domain.NewEntitySnapshotFromRecord(targetRecord)
	return domain.DiffEntitySnapshots(base.String(), &baseSnapshot, target.String(), &targetSnapshot)
}

func validateIdentity(entityID uuid.UUID, entityType string) error {
	if entityID == uuid.Nil {
		return fmt.Errorf("%w: entity id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(entityType) == "" {
		return &domain.ValidationError{
			Record:     "VersionRecord",
			Field:      "entityType",
			Constraint: domain.ConstraintNonEmpty,
			Message:    "entity type is required",
		}
	}
	return nil
}

func checkEntityType(record domain.VersionRecord, entityType string) error {
	if record.EntityType != entityType {
		return fmt.Errorf("%w: %s is a %s", ErrEntityTypeMismatch, record.EntityID, record.EntityType)
	}
	return nil
}
