package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeDescriptionDecode(t *testing.T) {
	var change ChangeDescription
	require.NoError(t, json.Unmarshal([]byte(`{"fieldsAdded":["owner"],"previousVersion":1.0}`), &change))

	assert.Equal(t, []string{"owner"}, change.FieldsAdded())
	assert.Nil(t, change.FieldsUpdated())
	assert.Nil(t, change.FieldsDeleted())

	previous, ok := change.PreviousVersion()
	require.True(t, ok)
	assert.Equal(t, "1.0", previous.String())
}

func TestChangeDescriptionDecodesNullAsAbsent(t *testing.T) {
	var change ChangeDescription
	require.NoError(t, json.Unmarshal([]byte(`{"previousVersion":null}`), &change))
	_, ok := change.PreviousVersion()
	assert.False(t, ok)
	assert.True(t, change.IsEmpty())

	change = ChangeDescription{}
	require.NoError(t, json.Unmarshal([]byte(`{"fieldsAdded":null,"fieldsUpdated":["owner"],"fieldsDeleted":null}`), &change))
	assert.Nil(t, change.FieldsAdded())
	assert.Equal(t, []string{"owner"}, change.FieldsUpdated())
	assert.Nil(t, change.FieldsDeleted())

	data, err := json.Marshal(change)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fieldsUpdated":["owner"]}`, string(data))
}

func TestChangeDescriptionRejectsOversizedPreviousVersion(t *testing.T) {
	var change ChangeDescription
	err := json.Unmarshal([]byte(`{"previousVersion":1e19}`), &change)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "previousVersion", validationErr.Field)
	assert.Equal(t, ConstraintMaximum, validationErr.Constraint)
}

func TestChangeDescriptionRejectsUnknownField(t *testing.T) {
	var change ChangeDescription
	err := json.Unmarshal([]byte(`{"fieldsAdded":["owner"],"unknownField":true}`), &change)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "unknownField", validationErr.Field)
	assert.Equal(t, ConstraintUnknownField, validationErr.Constraint)
	assert.True(t, change.IsEmpty(), "failed decode must not partially populate")
}

func TestChangeDescriptionRejectsInvalidPreviousVersion(t *testing.T) {
	var change ChangeDescription
	err := json.Unmarshal([]byte(`{"previousVersion":0.15}`), &change)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "previousVersion", validationErr.Field)
	assert.Equal(t, ConstraintMultipleOf, validationErr.Constraint)
}

func TestChangeDescriptionRoundTrip(t *testing.T) {
	previous := MustEntityVersion(0.3)
	cases := []ChangeDescription{
		{},
		mustChange(t, []string{"owner"}, nil, nil, &previous),
		mustChange(t, []string{}, []string{"description"}, []string{"column:c1"}, nil),
	}

	for _, original := range cases {
		data, err := json.Marshal(original)
		require.NoError(t, err)

		var decoded ChangeDescription
		require.NoError(t, json.Unmarshal(data, &decoded), string(data))
		assert.Equal(t, original, decoded, string(data))
	}
}

func TestChangeDescriptionOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(mustChange(t, nil, []string{}, nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"fieldsUpdated":[]}`, string(data))
}

func TestChangeDescriptionIsImmutable(t *testing.T) {
	added := []string{"owner"}
	change := mustChange(t, added, nil, nil, nil)
	added[0] = "tags"

	got := change.FieldsAdded()
	assert.Equal(t, []string{"owner"}, got)
	got[0] = "tags"
	assert.Equal(t, []string{"owner"}, change.FieldsAdded())

	updated := change.WithFieldsUpdated([]string{"description"}).WithPreviousVersion(InitialVersion)
	assert.Nil(t, change.FieldsUpdated())
	assert.Equal(t, []string{"description"}, updated.FieldsUpdated())
	_, ok := change.PreviousVersion()
	assert.False(t, ok)
}

func TestNewChangeDescriptionRejectsUnsetPreviousVersion(t *testing.T) {
	_, err := NewChangeDescription(nil, nil, nil, &EntityVersion{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "previousVersion", validationErr.Field)
}

func mustChange(t *testing.T, added, updated, deleted []string, previous *EntityVersion) ChangeDescription {
	t.Helper()
	change, err := NewChangeDescription(added, updated, deleted, previous)
	require.NoError(t, err)
	return change
}
