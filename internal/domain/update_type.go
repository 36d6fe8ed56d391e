package domain

import "strings"

// UpdateType classifies the effect a change has on an entity's version.
type UpdateType string

const (
	UpdateCreated  UpdateType = "CREATED"
	UpdateNoChange UpdateType = "NO_CHANGE"
	UpdateMinor    UpdateType = "MINOR_UPDATE"
	UpdateMajor    UpdateType = "MAJOR_UPDATE"
)

// Classifier reports whether deleting the named field breaks consumers of the entity.
type Classifier func(deletedField string) bool

const columnFieldPrefix = "column:"

// columnAttributes are column properties whose removal leaves the column itself in place.
var columnAttributes = map[string]struct{}{
	"tags":            {},
	"description":     {},
	"constraint":      {},
	"dataLength":      {},
	"dataTypeDisplay": {},
	"ordinalPosition": {},
	"displayName":     {},
	"jsonSchema":      {},
}

// IsBreakingDeletion is the default Classifier. Removing a column, including a
// nested child column, is breaking. Removing a column attribute or any other
// entity field is not.
func IsBreakingDeletion(field string) bool {
	path, ok := strings.CutPrefix(field, columnFieldPrefix)
	if !ok || path == "" {
		return false
	}

	segments := strings.Split(path, ".")
	last := segments[len(segments)-1]
	if len(segments) > 1 {
		if _, isAttribute := columnAttributes[last]; isAttribute {
			return false
		}
	}
	return true
}

// ClassifyChange decides how the version moves for change. A nil classifier
// falls back to IsBreakingDeletion.
func ClassifyChange(change ChangeDescription, breaking Classifier) UpdateType {
	if change.IsEmpty() {
		return UpdateNoChange
	}
	if breaking == nil {
		breaking = IsBreakingDeletion
	}
	for _, field := range change.fieldsDeleted {
		if breaking(field) {
			return UpdateMajor
		}
	}
	return UpdateMinor
}
