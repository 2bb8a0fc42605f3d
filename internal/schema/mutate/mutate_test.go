package mutate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/schema/models"
)

func spec(t models.FieldType) *models.FieldSpec {
	return &models.FieldSpec{Type: t, Description: "test field"}
}

func TestValidateAcceptsWellFormedRequests(t *testing.T) {
	mods := models.ModificationRequest{
		"name":   spec(models.FieldTypeString),
		"age":    spec(models.FieldTypeInteger),
		"weight": spec(models.FieldTypeNumber),
		"active": spec(models.FieldTypeBoolean),
		"fax":    nil, // removal
	}
	assert.NoError(t, Validate(mods))
}

func TestValidateRejections(t *testing.T) {
	t.Run("empty field name", func(t *testing.T) {
		err := Validate(models.ModificationRequest{"  ": spec(models.FieldTypeString)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-empty")
	})

	t.Run("unknown type", func(t *testing.T) {
		err := Validate(models.ModificationRequest{"dob": spec("date")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid type")
	})

	t.Run("missing type", func(t *testing.T) {
		err := Validate(models.ModificationRequest{"dob": {}})
		require.Error(t, err)
	})

	t.Run("pattern on non-string type", func(t *testing.T) {
		s := spec(models.FieldTypeInteger)
		s.Pattern = `^\d+$`
		err := Validate(models.ModificationRequest{"age": s})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pattern is only allowed on string fields")
	})

	t.Run("pattern on string type is fine", func(t *testing.T) {
		s := spec(models.FieldTypeString)
		s.Pattern = `^\d{4}-\d{2}-\d{2}$`
		assert.NoError(t, Validate(models.ModificationRequest{"dob": s}))
	})
}

// One bad entry rejects the whole batch.
func TestValidateFailsClosed(t *testing.T) {
	mods := models.ModificationRequest{
		"good": spec(models.FieldTypeString),
		"bad":  spec("float"),
	}
	assert.Error(t, Validate(mods))
}

func TestValidateDefinition(t *testing.T) {
	assert.NoError(t, ValidateDefinition(models.Definition{
		"name": {Type: models.FieldTypeString},
	}))
	assert.Error(t, ValidateDefinition(models.Definition{
		"name": {Type: "text"},
	}))
}

func TestApply(t *testing.T) {
	original := models.Definition{
		"name": {Type: models.FieldTypeString, Required: true},
		"fax":  {Type: models.FieldTypeString},
	}

	mods := models.ModificationRequest{
		"fax": nil,
		"dob": spec(models.FieldTypeString),
		"name": {
			Type:     models.FieldTypeString,
			Required: false,
		},
	}
	out := Apply(original, mods)

	assert.NotContains(t, out, "fax")
	assert.Contains(t, out, "dob")
	assert.False(t, out["name"].Required)

	// The original stays untouched.
	assert.Contains(t, original, "fax")
	assert.True(t, original["name"].Required)
}

// Removing a field that does not exist is a no-op, not an error.
func TestApplyRemovalOfUnknownField(t *testing.T) {
	original := models.Definition{"name": {Type: models.FieldTypeString}}
	out := Apply(original, models.ModificationRequest{"ghost": nil})
	assert.Equal(t, original, out)
}
