package domain

import (
	"encoding/json"

	"github.com/rpattn/entityhistory/internal/schema/validator"
)

// ChangeDescription records which fields changed between two versions of an entity.
// Field lists are nil when absent, which is distinct from present but empty.
type ChangeDescription struct {
	fieldsAdded     []string
	fieldsUpdated   []string
	fieldsDeleted   []string
	previousVersion *EntityVersion
}

// NewChangeDescription builds a change description. previous may be nil.
func NewChangeDescription(added, updated, deleted []string, previous *EntityVersion) (ChangeDescription, error) {
	if previous != nil && previous.IsZero() {
		return ChangeDescription{}, &ValidationError{
			Record:     "ChangeDescription",
			Field:      "previousVersion",
			Constraint: ConstraintMinimum,
			Message:    "previous version is unset",
		}
	}

	return ChangeDescription{
		fieldsAdded:     copyStrings(added),
		fieldsUpdated:   copyStrings(updated),
		fieldsDeleted:   copyStrings(deleted),
		previousVersion: copyVersion(previous),
	}, nil
}

func (c ChangeDescription) FieldsAdded() []string { return copyStrings(c.fieldsAdded) }

func (c ChangeDescription) FieldsUpdated() []string { return copyStrings(c.fieldsUpdated) }

func (c ChangeDescription) FieldsDeleted() []string { return copyStrings(c.fieldsDeleted) }

// PreviousVersion returns the version the change was applied to, if recorded.
func (c ChangeDescription) PreviousVersion() (EntityVersion, bool) {
	if c.previousVersion == nil {
		return EntityVersion{}, false
	}
	return *c.previousVersion, true
}

// IsEmpty reports whether no field was added, updated or deleted.
func (c ChangeDescription) IsEmpty() bool {
	return len(c.fieldsAdded) == 0 && len(c.fieldsUpdated) == 0 && len(c.fieldsDeleted) == 0
}

// WithFieldsAdded returns a copy with the added field list replaced.
func (c ChangeDescription) WithFieldsAdded(fields []string) ChangeDescription {
	c.fieldsAdded = copyStrings(fields)
	return c
}

// WithFieldsUpdated returns a copy with the updated field list replaced.
func (c ChangeDescription) WithFieldsUpdated(fields []string) ChangeDescription {
	c.fieldsUpdated = copyStrings(fields)
	return c
}

// WithFieldsDeleted returns a copy with the deleted field list replaced.
func (c ChangeDescription) WithFieldsDeleted(fields []string) ChangeDescription {
	c.fieldsDeleted = copyStrings(fields)
	return c
}

// WithPreviousVersion returns a copy pointing at previous.
func (c ChangeDescription) WithPreviousVersion(previous EntityVersion) ChangeDescription {
	c.previousVersion = copyVersion(&previous)
	return c
}

type changeDescriptionJSON struct {
	FieldsAdded     *[]string      `json:"fieldsAdded,omitempty"`
	FieldsUpdated   *[]string      `json:"fieldsUpdated,omitempty"`
	FieldsDeleted   *[]string      `json:"fieldsDeleted,omitempty"`
	PreviousVersion *EntityVersion `json:"previousVersion,omitempty"`
}

func (c ChangeDescription) MarshalJSON() ([]byte, error) {
	return json.Marshal(changeDescriptionJSON{
		FieldsAdded:     presentStrings(c.fieldsAdded),
		FieldsUpdated:   presentStrings(c.fieldsUpdated),
		FieldsDeleted:   presentStrings(c.fieldsDeleted),
		PreviousVersion: c.previousVersion,
	})
}

func (c *ChangeDescription) UnmarshalJSON(data []byte) error {
	if err := validateDocument(validator.KindChangeDescription, "ChangeDescription", data); err != nil {
		return err
	}

	var raw changeDescriptionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded, err := NewChangeDescription(
		derefStrings(raw.FieldsAdded),
		derefStrings(raw.FieldsUpdated),
		derefStrings(raw.FieldsDeleted),
		raw.PreviousVersion,
	)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// copyStrings keeps nil distinct from empty.
func copyStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func copyVersion(v *EntityVersion) *EntityVersion {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

func presentStrings(values []string) *[]string {
	if values == nil {
		return nil
	}
	return &values
}

func derefStrings(values *[]string) []string {
	if values == nil {
		return nil
	}
	if *values == nil {
		return []string{}
	}
	return *values
}
