package testkit

import (
	"testing"

	"gammastack/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservationGenerator_Basic(t *testing.T) {
	config := DefaultObservationConfig()
	config.Observations = 2

	observations, err := NewObservationGenerator(config).Generate()
	require.NoError(t, err)
	require.Len(t, observations, 2)

	for _, obs := range observations {
		assert.Equal(t, config.NBinReco, obs.Counts.NBin())
		assert.Greater(t, obs.Counts.Sum(), 0.0)
		require.NotNil(t, obs.CountsOff)
		assert.InDelta(t, config.Alpha, obs.Alpha().Data[0], 1e-12)
	}
	assert.Greater(t, observations[1].MaskSafe.Count(), 0)
	assert.LessOrEqual(t, observations[1].MaskSafe.Count(), observations[0].MaskSafe.Count())
	assert.Equal(t, "obs-1", observations[0].Name())
}

func TestObservationGenerator_Deterministic(t *testing.T) {
	config := DefaultObservationConfig()

	a, err := NewObservationGenerator(config).Generate()
	require.NoError(t, err)
	b, err := NewObservationGenerator(config).Generate()
	require.NoError(t, err)

	for i := range a {
		assert.Equal(t, a[i].Counts.Data, b[i].Counts.Data)
		assert.Equal(t, a[i].CountsOff.Data, b[i].CountsOff.Data)
	}

	config.Seed++
	c, err := NewObservationGenerator(config).Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a[0].Counts.Data, c[0].Counts.Data)
}

func TestObservationGenerator_Validates(t *testing.T) {
	config := DefaultObservationConfig()
	config.Alpha = 0

	_, err := NewObservationGenerator(config).Generate()
	assert.True(t, core.IsValidationError(err))
}

func TestFixtures(t *testing.T) {
	onoff := OnOffDataset()
	assert.Equal(t, 3.0, onoff.Counts.Sum())
	assert.Equal(t, 40.0, onoff.CountsOff.Sum())

	obs := ObservationList()
	require.Len(t, obs, 2)
	assert.Equal(t, 4, obs[0].GTI.Len())

	cash := CashDataset()
	assert.Equal(t, 30, cash.Counts.NBin())
	assert.InDelta(t, 3000, cash.Background.Sum(), 1e-9)
}
