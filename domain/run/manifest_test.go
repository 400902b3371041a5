package run

import (
	"testing"

	"gammastack/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Deterministic(t *testing.T) {
	input := core.ComputeArrayHash([]float64{1, 1, 1, 0})
	models := core.Hash("test-models")

	fp1 := NewFingerprint(input, models, 42, "1.0.0")
	fp2 := NewFingerprint(input, models, 42, "1.0.0")

	assert.Equal(t, fp1.Fingerprint, fp2.Fingerprint)
	assert.Equal(t, input, fp1.InputHash)
	assert.Equal(t, uint64(42), fp1.Seed)
}

func TestFingerprint_Unique(t *testing.T) {
	input := core.ComputeArrayHash([]float64{1, 1, 1, 0})
	base := NewFingerprint(input, "m", 42, "1.0.0")

	testCases := []struct {
		name string
		fp   Fingerprint
	}{
		{"different input", NewFingerprint(core.ComputeArrayHash([]float64{1, 1, 0, 1}), "m", 42, "1.0.0")},
		{"different models", NewFingerprint(input, "n", 42, "1.0.0")},
		{"different seed", NewFingerprint(input, "m", 43, "1.0.0")},
		{"different code", NewFingerprint(input, "m", 42, "1.0.1")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEqual(t, base.Fingerprint, tc.fp.Fingerprint)
		})
	}
}

func TestManifest_Complete(t *testing.T) {
	m := NewManifest(KindStack, []string{"obs-1", "obs-2"}, [][]float64{{1, 2}, {3, 4}}, "", 7, "1.0.0")

	assert.False(t, m.RunID.IsEmpty())
	assert.NotEmpty(t, m.Fingerprint.Fingerprint)
	assert.Equal(t, []string{"obs-1", "obs-2"}, m.Datasets)
	require.NoError(t, m.Validate())

	m.Kind = "replay"
	assert.True(t, core.IsValidationError(m.Validate()))

	m.Kind = KindFit
	m.Datasets = nil
	assert.True(t, core.IsValidationError(m.Validate()))
}
