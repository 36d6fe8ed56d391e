package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEntityVersionHistory(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)

	t.Run("accepts empty versions", func(t *testing.T) {
		violations, err := v.Validate(KindEntityVersionHistory, []byte(`{"entityType":"table","versions":[]}`))
		require.NoError(t, err)
		assert.Empty(t, violations)
	})

	t.Run("reports missing entityType", func(t *testing.T) {
		violations, err := v.Validate(KindEntityVersionHistory, []byte(`{"versions":[0.1]}`))
		require.NoError(t, err)
		require.Len(t, violations, 1)
		assert.Equal(t, "entityType", violations[0].Field)
		assert.Equal(t, "required", violations[0].Keyword)
	})

	t.Run("reports every missing field", func(t *testing.T) {
		violations, err := v.Validate(KindEntityVersionHistory, []byte(`{}`))
		require.NoError(t, err)
		require.Len(t, violations, 2)
		assert.Equal(t, "entityType", violations[0].Field)
		assert.Equal(t, "versions", violations[1].Field)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		violations, err := v.Validate(KindEntityVersionHistory, []byte(`{"entityType":"table","versions":[],"owner":"x"}`))
		require.NoError(t, err)
		require.Len(t, violations, 1)
		assert.Equal(t, "owner", violations[0].Field)
		assert.Equal(t, "additionalProperties", violations[0].Keyword)
	})

	t.Run("rejects empty entityType", func(t *testing.T) {
		violations, err := v.Validate(KindEntityVersionHistory, []byte(`{"entityType":"","versions":[]}`))
		require.NoError(t, err)
		require.Len(t, violations, 1)
		assert.Equal(t, "minLength", violations[0].Keyword)
	})

	t.Run("validates version items", func(t *testing.T) {
		violations, err := v.Validate(KindEntityVersionHistory, []byte(`{"entityType":"table","versions":[0.1,0.15]}`))
		require.NoError(t, err)
		require.Len(t, violations, 1)
		assert.Equal(t, "versions.1", violations[0].Field)
		assert.Equal(t, "multipleOf", violations[0].Keyword)
	})
}

func TestValidateEntityVersion(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)

	for _, raw := range []string{"0.1", "1.0", "1.1", "2.0", "12.3"} {
		violations, err := v.Validate(KindEntityVersion, []byte(raw))
		require.NoError(t, err)
		assert.Empty(t, violations, raw)
	}

	cases := map[string]string{
		"0.05": "minimum",
		"-1.0": "minimum",
		"0.15": "multipleOf",
		`"1"`:  "type",
		"1e19": "maximum",
		"null": "type",
	}
	for raw, keyword := range cases {
		violations, err := v.Validate(KindEntityVersion, []byte(raw))
		require.NoError(t, err)
		require.NotEmpty(t, violations, raw)
		assert.Equal(t, keyword, violations[0].Keyword, raw)
	}
}

func TestValidateChangeDescription(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)

	violations, err := v.Validate(KindChangeDescription, []byte(`{"fieldsAdded":["owner"],"previousVersion":1.0}`))
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = v.Validate(KindChangeDescription, []byte(`{"fieldsAdded":null,"fieldsUpdated":null,"fieldsDeleted":null,"previousVersion":null}`))
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = v.Validate(KindChangeDescription, []byte(`{"previousVersion":1e19}`))
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "maximum", violations[0].Keyword)

	violations, err = v.Validate(KindChangeDescription, []byte(`{"fieldsAdded":["owner"],"unknownField":true}`))
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "unknownField", violations[0].Field)

	violations, err = v.Validate(KindChangeDescription, []byte(`{"fieldsDeleted":[1]}`))
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "fieldsDeleted.0", violations[0].Field)
	assert.Equal(t, "type", violations[0].Keyword)
}

func TestValidateMalformedJSON(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)

	_, err = v.Validate(KindChangeDescription, []byte(`{"fieldsAdded":`))
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" History ")
	require.NoError(t, err)
	assert.Equal(t, KindEntityVersionHistory, k)

	_, err = ParseKind("table")
	assert.Error(t, err)
}
