package docai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDocumentType(t *testing.T) {
	cases := map[string]string{
		"Driver License":     "driver_license",
		"  PASSPORT  ":       "passport",
		"bank-statement":     "bank_statement",
		"utility  bill":      "utility_bill",
		"_invoice_":          "invoice",
		"already_snake_case": "already_snake_case",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDocumentType(in), "input %q", in)
	}
}

func TestBestMatch(t *testing.T) {
	existing := []string{"drivers_license", "passport", "utility_bill"}

	t.Run("exact match after normalization", func(t *testing.T) {
		got, ok := BestMatch("Drivers License", existing, 0.7)
		assert.True(t, ok)
		assert.Equal(t, "drivers_license", got)
	})

	t.Run("near-miss spelling snaps to existing type", func(t *testing.T) {
		got, ok := BestMatch("drivers_licence", existing, 0.7)
		assert.True(t, ok)
		assert.Equal(t, "drivers_license", got)
	})

	t.Run("containment counts as a strong match", func(t *testing.T) {
		got, ok := BestMatch("license", []string{"drivers_license"}, 0.8)
		assert.True(t, ok)
		assert.Equal(t, "drivers_license", got)
	})

	t.Run("unrelated type does not match", func(t *testing.T) {
		_, ok := BestMatch("birth_certificate", existing, 0.7)
		assert.False(t, ok)
	})

	t.Run("empty candidate list", func(t *testing.T) {
		_, ok := BestMatch("passport", nil, 0.7)
		assert.False(t, ok)
	})
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("passport", "passport"))
	assert.Equal(t, 0.0, similarity("passport", ""))
	assert.InDelta(t, 1-1.0/15, similarity("drivers_license", "drivers_licence"), 1e-9)
	assert.Less(t, similarity("passport", "utility_bill"), 0.5)
}
