package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/entityhistory/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const versionColumns = `id, entity_id, entity_type, version::float8, change_description, snapshot, updated_by, updated_at`

// TxRunner runs fn inside a single database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

type versionRepository struct {
	pool *pgxpool.Pool
	tx   TxRunner
}

// NewVersionRepository wires a repository backed by pgxpool. Writes go through tx.
func NewVersionRepository(pool *pgxpool.Pool, tx TxRunner) VersionRepository {
	return &versionRepository{pool: pool, tx: tx}
}

func (r *versionRepository) Create(ctx context.Context, record domain.VersionRecord) (domain.VersionRecord, error) {
	if r.pool == nil || r.tx == nil {
		return domain.VersionRecord{}, fmt.Errorf("version repository not initialized")
	}

	snapshotJSON, err := record.GetSnapshotAsJSONB()
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	changeJSON, err := record.GetChangeAsJSONB()
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("failed to marshal change description: %w", err)
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	var change any
	if changeJSON != nil {
		change = changeJSON
	}

	var created domain.VersionRecord
	err = r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		// Writers of the same entity queue here until the transaction ends.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, record.EntityID.String()); err != nil {
			return fmt.Errorf("failed to lock entity %s: %w", record.EntityID, err)
		}

		var latest pgtype.Float8
		if err := tx.QueryRow(ctx, `SELECT max(version)::float8 FROM entity_versions WHERE entity_id = $1`, record.EntityID).Scan(&latest); err != nil {
			return fmt.Errorf("failed to read latest version: %w", err)
		}
		if latest.Valid {
			current, err := domain.NewEntityVersion(latest.Float64)
			if err != nil {
				return fmt.Errorf("invalid stored version %v: %w", latest.Float64, err)
			}
			if err := checkNewer(record, current); err != nil {
				return err
			}
		}

		row := tx.QueryRow(
			ctx,
			`INSERT INTO entity_versions (id, entity_id, entity_type, version, change_description, snapshot, updated_by, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+versionColumns,
			record.ID,
			record.EntityID,
			record.EntityType,
			record.Version.Float64(),
			change,
			snapshotJSON,
			record.UpdatedBy,
			record.UpdatedAt,
		)
		created, err = scanVersion(row)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.VersionRecord{}, fmt.Errorf("%w: %s %s", ErrAlreadyExists, record.EntityID, record.Version)
		}
		if errors.Is(err, ErrAlreadyExists) {
			return domain.VersionRecord{}, err
		}
		return domain.VersionRecord{}, fmt.Errorf("failed to create entity version: %w", err)
	}

	return created, nil
}

// checkNewer rejects a record that does not move the entity past latest.
func checkNewer(record domain.VersionRecord, latest domain.EntityVersion) error {
	if record.Version.Compare(latest) <= 0 {
		return fmt.Errorf("%w: %s already at %s, cannot store %s", ErrAlreadyExists, record.EntityID, latest, record.Version)
	}
	return nil
}

func (r *versionRepository) Latest(ctx context.Context, entityID uuid.UUID) (domain.VersionRecord, error) {
	if r.pool == nil {
		return domain.VersionRecord{}, fmt.Errorf("version repository not initialized")
	}

	row := r.pool.QueryRow(
		ctx,
		`SELECT `+versionColumns+`
		 FROM entity_versions
		 WHERE entity_id = $1
		 ORDER BY version DESC
		 LIMIT 1`,
		entityID,
	)

	record, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VersionRecord{}, ErrNotFound
		}
		return domain.VersionRecord{}, fmt.Errorf("failed to get latest entity version: %w", err)
	}
	return record, nil
}

func (r *versionRepository) GetByVersion(ctx context.Context, entityID uuid.UUID, version domain.EntityVersion) (domain.VersionRecord, error) {
	if r.pool == nil {
		return domain.VersionRecord{}, fmt.Errorf("version repository not initialized")
	}

	row := r.pool.QueryRow(
		ctx,
		`SELECT `+versionColumns+`
		 FROM entity_versions
		 WHERE entity_id = $1 AND version = $2`,
		entityID,
		version.Float64(),
	)

	record, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VersionRecord{}, ErrNotFound
		}
		return domain.VersionRecord{}, fmt.Errorf("failed to get entity version: %w", err)
	}
	return record, nil
}

func (r *versionRepository) List(ctx context.Context, entityID uuid.UUID) ([]domain.VersionRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("version repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+versionColumns+`
		 FROM entity_versions
		 WHERE entity_id = $1
		 ORDER BY version DESC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity versions: %w", err)
	}
	defer rows.Close()

	return collectVersions(rows)
}

func (r *versionRepository) LatestByEntityIDs(ctx context.Context, ids []uuid.UUID) ([]domain.VersionRecord, error) {
	if len(ids) == 0 {
		return []domain.VersionRecord{}, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("version repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT DISTINCT ON (entity_id) `+versionColumns+`
		 FROM entity_versions
		 WHERE entity_id = ANY($1)
		 ORDER BY entity_id, version DESC`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest entity versions: %w", err)
	}
	defer rows.Close()

	return collectVersions(rows)
}

func collectVersions(rows pgx.Rows) ([]domain.VersionRecord, error) {
	records := []domain.VersionRecord{}
	for rows.Next() {
		record, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity version: %w", err)
		}
		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate entity versions: %w", rowsErr)
	}
	return records, nil
}

func scanVersion(row pgx.Row) (domain.VersionRecord, error) {
	var (
		record     domain.VersionRecord
		version    float64
		changeJSON []byte
		snapshot   []byte
		updatedAt  pgtype.Timestamptz
	)

	if err := row.Scan(
		&record.ID,
		&record.EntityID,
		&record.EntityType,
		&version,
		&changeJSON,
		&snapshot,
		&record.UpdatedBy,
		&updatedAt,
	); err != nil {
		return domain.VersionRecord{}, err
	}

	return buildVersionRecord(record, version, changeJSON, snapshot, updatedAt)
}

func buildVersionRecord(record domain.VersionRecord, version float64, changeJSON, snapshot []byte, updatedAt pgtype.Timestamptz) (domain.VersionRecord, error) {
	v, err := domain.NewEntityVersion(version)
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("stored version %v is invalid: %w", version, err)
	}
	record.Version = v

	if len(changeJSON) > 0 {
		var change domain.ChangeDescription
		if err := json.Unmarshal(changeJSON, &change); err != nil {
			return domain.VersionRecord{}, fmt.Errorf("failed to unmarshal change description: %w", err)
		}
		record.ChangeDescription = &change
	}

	record.Snapshot = map[string]any{}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &record.Snapshot); err != nil {
			return domain.VersionRecord{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}

	if updatedAt.Valid {
		record.UpdatedAt = updatedAt.Time
	}
	return record, nil
}
