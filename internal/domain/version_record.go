package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// VersionRecord captures a stored snapshot of one entity version.
type VersionRecord struct {
	ID                uuid.UUID          `json:"id"`
	EntityID          uuid.UUID          `json:"entityId"`
	EntityType        string             `json:"entityType"`
	Version           EntityVersion      `json:"version"`
	ChangeDescription *ChangeDescription `json:"changeDescription,omitempty"`
	Snapshot          map[string]any     `json:"snapshot"`
	UpdatedBy         string             `json:"updatedBy,omitempty"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// GetSnapshotAsJSONB returns the snapshot encoded for database storage.
func (r VersionRecord) GetSnapshotAsJSONB() (json.RawMessage, error) {
	if r.Snapshot == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(r.Snapshot)
}

// GetChangeAsJSONB returns the change description encoded for storage, or nil.
func (r VersionRecord) GetChangeAsJSONB() (json.RawMessage, error) {
	if r.ChangeDescription == nil {
		return nil, nil
	}
	return json.Marshal(r.ChangeDescription)
}
