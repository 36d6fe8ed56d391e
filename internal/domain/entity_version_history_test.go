package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityVersionHistoryEmptyVersions(t *testing.T) {
	history, err := NewEntityVersionHistory("table", []EntityVersion{})
	require.NoError(t, err)
	assert.Equal(t, "table", history.EntityType())
	assert.Empty(t, history.Versions())

	data, err := json.Marshal(history)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entityType":"table","versions":[]}`, string(data))
}

func TestEntityVersionHistoryNilVersionsSerializeAsEmpty(t *testing.T) {
	history, err := NewEntityVersionHistory("dashboard", nil)
	require.NoError(t, err)

	data, err := json.Marshal(history)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entityType":"dashboard","versions":[]}`, string(data))
}

func TestEntityVersionHistoryRequiresEntityType(t *testing.T) {
	for _, entityType := range []string{"", "   "} {
		_, err := NewEntityVersionHistory(entityType, nil)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "entityType", validationErr.Field)
	}
}

func TestEntityVersionHistoryRejectsUnsetVersion(t *testing.T) {
	_, err := NewEntityVersionHistory("table", []EntityVersion{InitialVersion, {}})
	assert.Error(t, err)
}

func TestEntityVersionHistoryRoundTrip(t *testing.T) {
	original, err := NewEntityVersionHistory("database", []EntityVersion{
		MustEntityVersion(2.0), MustEntityVersion(1.1), MustEntityVersion(0.1),
	})
	require.NoError(t, err)

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entityType":"database","versions":[2.0,1.1,0.1]}`, string(data))

	var decoded EntityVersionHistory
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestEntityVersionHistoryStrictDecode(t *testing.T) {
	cases := map[string]struct {
		field      string
		constraint Constraint
	}{
		`{"versions":[]}`:                                   {"entityType", ConstraintRequired},
		`{"entityType":"table"}`:                            {"versions", ConstraintRequired},
		`{"entityType":"table","versions":[],"extra":1}`:    {"extra", ConstraintUnknownField},
		`{"entityType":"","versions":[]}`:                   {"entityType", ConstraintNonEmpty},
		`{"entityType":"table","versions":[0.1,0.05]}`:      {"versions.1", ConstraintMinimum},
		`{"entityType":"table","versions":"0.1"}`:           {"versions", ConstraintType},
		`{"entityType":"   ","versions":[]}`:                {"entityType", ConstraintNonEmpty},
		`{"entityType":"table","versions":[0.1,0.2,-1.0]}`:  {"versions.2", ConstraintMinimum},
	}

	for raw, want := range cases {
		var history EntityVersionHistory
		err := json.Unmarshal([]byte(raw), &history)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr, raw)
		assert.Equal(t, want.field, validationErr.Field, raw)
		assert.Equal(t, want.constraint, validationErr.Constraint, raw)
		assert.Equal(t, EntityVersionHistory{}, history, raw)
	}
}

func TestEntityVersionHistoryMalformedJSON(t *testing.T) {
	var history EntityVersionHistory
	err := history.UnmarshalJSON([]byte(`{"entityType":`))

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, ConstraintSyntax, validationErr.Constraint)
}

func TestNewHistoryFromRecordsOrdersNewestFirst(t *testing.T) {
	entityID := uuid.New()
	records := []VersionRecord{
		{EntityID: entityID, EntityType: "table", Version: MustEntityVersion(0.1)},
		{EntityID: entityID, EntityType: "table", Version: MustEntityVersion(1.0)},
		{EntityID: entityID, EntityType: "table", Version: MustEntityVersion(0.2)},
	}

	history, err := NewHistoryFromRecords("table", records)
	require.NoError(t, err)
	assert.Equal(t, []EntityVersion{MustEntityVersion(1.0), MustEntityVersion(0.2), MustEntityVersion(0.1)}, history.Versions())
}
