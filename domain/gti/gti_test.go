package gti

import (
	"testing"

	"gammastack/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidates(t *testing.T) {
	_, err := New([]float64{1, 2}, []float64{3}, 0)
	assert.True(t, core.IsValidationError(err))

	_, err = New([]float64{3}, []float64{3}, 0)
	assert.True(t, core.IsValidationError(err))
}

func TestTimeSumAndBounds(t *testing.T) {
	g, err := New([]float64{0, 100}, []float64{50, 200}, 55197)
	require.NoError(t, err)

	assert.Equal(t, 150.0, g.TimeSum())
	assert.Equal(t, core.MJD(55197), g.TimeStart())
	assert.InDelta(t, 55197+200.0/86400, float64(g.TimeStop()), 1e-12)
}

func TestStackAndUnion(t *testing.T) {
	a, err := New([]float64{5, 6, 1, 2}, []float64{8, 7, 3, 4}, 0)
	require.NoError(t, err)
	b, err := New([]float64{14}, []float64{15}, 0)
	require.NoError(t, err)

	a.Stack(b)
	assert.Equal(t, 5, a.Len())
	assert.Equal(t, 1, b.Len())

	u := a.Union()
	assert.Equal(t, []float64{1, 5, 14}, u.Start)
	assert.Equal(t, []float64{4, 8, 15}, u.Stop)
}

func TestUnionCollapsesDuplicates(t *testing.T) {
	g, err := New([]float64{1, 1, 3}, []float64{2, 2, 4}, 0)
	require.NoError(t, err)

	u := g.Union()
	assert.Equal(t, []float64{1, 3}, u.Start)
	assert.Equal(t, []float64{2, 4}, u.Stop)
}

func TestUnionMergesAdjacent(t *testing.T) {
	g, err := New([]float64{2, 0}, []float64{3, 2}, 0)
	require.NoError(t, err)

	u := g.Union()
	assert.Equal(t, []float64{0}, u.Start)
	assert.Equal(t, []float64{3}, u.Stop)
}

func TestStackConvertsReference(t *testing.T) {
	a, _ := New([]float64{0}, []float64{10}, 100)
	b, _ := New([]float64{0}, []float64{10}, 101)

	a.Stack(b)
	assert.InDelta(t, 86400, a.Start[1], 1e-6)

	empty := Empty(0)
	empty.Stack(b)
	assert.Equal(t, core.MJD(101), empty.Reference)
	assert.Equal(t, []float64{0}, empty.Start)
}

func TestSelectClips(t *testing.T) {
	g, _ := New([]float64{0, 20, 40}, []float64{10, 30, 50}, 0)

	s := g.Select(5, 25)
	assert.Equal(t, []float64{5, 20}, s.Start)
	assert.Equal(t, []float64{10, 25}, s.Stop)
}
