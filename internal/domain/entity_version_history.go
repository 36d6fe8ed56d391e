package domain

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rpattn/entityhistory/internal/schema/validator"
)

// EntityVersionHistory lists the versions of one entity, such as a database,
// table or dashboard.
type EntityVersionHistory struct {
	entityType string
	versions   []EntityVersion
}

// NewEntityVersionHistory validates its inputs. A nil versions slice is stored
// as an empty history.
func NewEntityVersionHistory(entityType string, versions []EntityVersion) (EntityVersionHistory, error) {
	if strings.TrimSpace(entityType) == "" {
		return EntityVersionHistory{}, &ValidationError{
			Record:     "EntityVersionHistory",
			Field:      "entityType",
			Constraint: ConstraintNonEmpty,
			Message:    "entity type is required",
		}
	}

	out := make([]EntityVersion, len(versions))
	for i, v := range versions {
		if v.IsZero() {
			return EntityVersionHistory{}, &ValidationError{
				Record:     "EntityVersionHistory",
				Field:      "versions",
				Constraint: ConstraintMinimum,
				Message:    "version is unset",
			}
		}
		out[i] = v
	}

	return EntityVersionHistory{entityType: entityType, versions: out}, nil
}

// NewHistoryFromRecords builds the history of the given records, newest first.
func NewHistoryFromRecords(entityType string, records []VersionRecord) (EntityVersionHistory, error) {
	versions := make([]EntityVersion, len(records))
	for i, record := range records {
		versions[i] = record.Version
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].Compare(versions[j]) > 0
	})
	return NewEntityVersionHistory(entityType, versions)
}

func (h EntityVersionHistory) EntityType() string { return h.entityType }

func (h EntityVersionHistory) Versions() []EntityVersion {
	out := make([]EntityVersion, len(h.versions))
	copy(out, h.versions)
	return out
}

type entityVersionHistoryJSON struct {
	EntityType string          `json:"entityType"`
	Versions   []EntityVersion `json:"versions"`
}

func (h EntityVersionHistory) MarshalJSON() ([]byte, error) {
	versions := h.versions
	if versions == nil {
		versions = []EntityVersion{}
	}
	return json.Marshal(entityVersionHistoryJSON{EntityType: h.entityType, Versions: versions})
}

func (h *EntityVersionHistory) UnmarshalJSON(data []byte) error {
	if err := validateDocument(validator.KindEntityVersionHistory, "EntityVersionHistory", data); err != nil {
		return err
	}

	var raw struct {
		EntityType string    `json:"entityType"`
		Versions   []float64 `json:"versions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	versions := make([]EntityVersion, len(raw.Versions))
	for i, value := range raw.Versions {
		v, err := NewEntityVersion(value)
		if err != nil {
			return err
		}
		versions[i] = v
	}

	decoded, err := NewEntityVersionHistory(raw.EntityType, versions)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}
