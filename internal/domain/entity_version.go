package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rpattn/entityhistory/internal/schema/validator"
)

const (
	versionScale     = 10
	versionTolerance = 1e-9
	// maxVersionTenths matches the NUMERIC(10, 1) storage column.
	maxVersionTenths = 9_999_999_999
)

// EntityVersion is the Major.Minor metadata version of an entity. The first
// version of every entity is 0.1. Backward compatible changes bump the minor
// part (1.0 -> 1.1), incompatible ones bump the major part (1.1 -> 2.0).
//
// The value is held in tenths so arithmetic stays exact.
type EntityVersion struct {
	tenths int64
}

// InitialVersion is assigned to an entity when it is created.
var InitialVersion = EntityVersion{tenths: 1}

// MaxVersion is the highest version that can be stored.
var MaxVersion = EntityVersion{tenths: maxVersionTenths}

// NewEntityVersion validates value and returns it as an EntityVersion.
func NewEntityVersion(value float64) (EntityVersion, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return EntityVersion{}, &ValidationError{
			Record:     "EntityVersion",
			Constraint: ConstraintType,
			Message:    fmt.Sprintf("%v is not a finite number", value),
		}
	}

	scaled := value * versionScale
	if scaled < 1-versionTolerance {
		return EntityVersion{}, &ValidationError{
			Record:     "EntityVersion",
			Constraint: ConstraintMinimum,
			Message:    fmt.Sprintf("%v is less than 0.1", value),
		}
	}

	rounded := math.Round(scaled)
	if rounded > maxVersionTenths {
		return EntityVersion{}, &ValidationError{
			Record:     "EntityVersion",
			Constraint: ConstraintMaximum,
			Message:    fmt.Sprintf("%v is greater than %s", value, MaxVersion),
		}
	}
	if math.Abs(scaled-rounded) > versionTolerance*math.Max(1, math.Abs(scaled)) {
		return EntityVersion{}, &ValidationError{
			Record:     "EntityVersion",
			Constraint: ConstraintMultipleOf,
			Message:    fmt.Sprintf("%v is not a multiple of 0.1", value),
		}
	}

	return EntityVersion{tenths: int64(rounded)}, nil
}

// ParseEntityVersion parses the textual form, e.g. "1.2".
func ParseEntityVersion(value string) (EntityVersion, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return EntityVersion{}, &ValidationError{
			Record:     "EntityVersion",
			Constraint: ConstraintType,
			Message:    fmt.Sprintf("%q is not a number", value),
		}
	}
	return NewEntityVersion(f)
}

// MustEntityVersion is NewEntityVersion for constants known to be valid.
func MustEntityVersion(value float64) EntityVersion {
	v, err := NewEntityVersion(value)
	if err != nil {
		panic(err)
	}
	return v
}

func (v EntityVersion) Major() int64 { return v.tenths / versionScale }

func (v EntityVersion) Minor() int64 { return v.tenths % versionScale }

func (v EntityVersion) Float64() float64 { return float64(v.tenths) / versionScale }

// IsZero reports whether v is the unset zero value rather than a real version.
func (v EntityVersion) IsZero() bool { return v.tenths == 0 }

// NextMinor returns the version following a backward compatible change.
func (v EntityVersion) NextMinor() EntityVersion {
	return EntityVersion{tenths: v.tenths + 1}
}

// NextMajor returns the version following a backward incompatible change.
func (v EntityVersion) NextMajor() EntityVersion {
	return EntityVersion{tenths: (v.Major() + 1) * versionScale}
}

// Next returns the version that results from applying an update of the given type.
func (v EntityVersion) Next(update UpdateType) EntityVersion {
	switch update {
	case UpdateCreated:
		return InitialVersion
	case UpdateMinor:
		return v.NextMinor()
	case UpdateMajor:
		return v.NextMajor()
	default:
		return v
	}
}

// Compare returns -1, 0 or 1 depending on whether v is older, equal or newer than other.
func (v EntityVersion) Compare(other EntityVersion) int {
	switch {
	case v.tenths < other.tenths:
		return -1
	case v.tenths > other.tenths:
		return 1
	default:
		return 0
	}
}

func (v EntityVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

func (v EntityVersion) MarshalJSON() ([]byte, error) {
	if v.IsZero() {
		return nil, &ValidationError{Record: "EntityVersion", Constraint: ConstraintMinimum, Message: "version is unset"}
	}
	return []byte(v.String()), nil
}

func (v *EntityVersion) UnmarshalJSON(data []byte) error {
	if err := validateDocument(validator.KindEntityVersion, "EntityVersion", data); err != nil {
		return err
	}

	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	parsed, err := NewEntityVersion(value)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
