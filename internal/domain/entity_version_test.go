package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntityVersionAcceptsTenths(t *testing.T) {
	for _, value := range []float64{0.1, 0.3, 1.0, 1.1, 2.0, 10.9} {
		v, err := NewEntityVersion(value)
		require.NoError(t, err, value)
		assert.InDelta(t, value, v.Float64(), 1e-12)
	}
}

func TestNewEntityVersionRejects(t *testing.T) {
	cases := map[float64]Constraint{
		0.05:         ConstraintMinimum,
		0:            ConstraintMinimum,
		-1.0:         ConstraintMinimum,
		0.15:         ConstraintMultipleOf,
		1.25:         ConstraintMultipleOf,
		1e10:         ConstraintMaximum,
		1e19:         ConstraintMaximum,
		1e300:        ConstraintMaximum,
		math.NaN():   ConstraintType,
		math.Inf(1):  ConstraintType,
		math.Inf(-1): ConstraintType,
	}

	for value, constraint := range cases {
		_, err := NewEntityVersion(value)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), "value %v", value)
		assert.Equal(t, constraint, validationErr.Constraint, "value %v", value)
	}
}

func TestEntityVersionParts(t *testing.T) {
	v := MustEntityVersion(2.3)
	assert.Equal(t, int64(2), v.Major())
	assert.Equal(t, int64(3), v.Minor())
	assert.Equal(t, "2.3", v.String())
	assert.Equal(t, "1.0", MustEntityVersion(1).String())
}

func TestEntityVersionIncrements(t *testing.T) {
	assert.Equal(t, "0.1", InitialVersion.String())
	assert.Equal(t, "1.1", MustEntityVersion(1.0).NextMinor().String())
	assert.Equal(t, "2.0", MustEntityVersion(1.1).NextMajor().String())
	assert.Equal(t, "1.0", MustEntityVersion(0.4).NextMajor().String())

	v := MustEntityVersion(0.2)
	assert.Equal(t, v, v.Next(UpdateNoChange))
	assert.Equal(t, "0.3", v.Next(UpdateMinor).String())
	assert.Equal(t, "1.0", v.Next(UpdateMajor).String())
	assert.Equal(t, InitialVersion, v.Next(UpdateCreated))
}

func TestEntityVersionCompare(t *testing.T) {
	assert.Equal(t, -1, MustEntityVersion(0.9).Compare(MustEntityVersion(1.0)))
	assert.Equal(t, 0, MustEntityVersion(1.0).Compare(MustEntityVersion(1)))
	assert.Equal(t, 1, MustEntityVersion(2.0).Compare(MustEntityVersion(1.9)))
}

func TestParseEntityVersion(t *testing.T) {
	v, err := ParseEntityVersion(" 1.4 ")
	require.NoError(t, err)
	assert.Equal(t, "1.4", v.String())

	_, err = ParseEntityVersion("latest")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, ConstraintType, validationErr.Constraint)
}

func TestEntityVersionJSON(t *testing.T) {
	data, err := json.Marshal(MustEntityVersion(1.0))
	require.NoError(t, err)
	assert.Equal(t, "1.0", string(data))

	var decoded EntityVersion
	require.NoError(t, json.Unmarshal([]byte("1.1"), &decoded))
	assert.Equal(t, MustEntityVersion(1.1), decoded)

	for _, raw := range []string{"0.05", "0.15", "-1.0", `"1.0"`, "null"} {
		var v EntityVersion
		err := json.Unmarshal([]byte(raw), &v)
		var validationErr *ValidationError
		assert.True(t, errors.As(err, &validationErr), raw)
	}

	_, err = json.Marshal(EntityVersion{})
	assert.Error(t, err)
}

func TestEntityVersionUpperBound(t *testing.T) {
	v, err := NewEntityVersion(999999999.9)
	require.NoError(t, err)
	assert.Equal(t, MaxVersion, v)
	assert.Equal(t, "999999999.9", v.String())

	for _, raw := range []string{"1e19", "1000000000.0", "1e300"} {
		var decoded EntityVersion
		err := json.Unmarshal([]byte(raw), &decoded)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr, raw)
		assert.Equal(t, ConstraintMaximum, validationErr.Constraint, raw)
		assert.True(t, decoded.IsZero(), raw)
	}
}
