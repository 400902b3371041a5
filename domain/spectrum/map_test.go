package spectrum

import (
	"testing"

	"gammastack/domain/axis"
	"gammastack/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recoAxis() *axis.EnergyAxis {
	return axis.MustNew([]float64{0.1, 0.316227766, 1, 3.16227766, 10}, axis.Reco)
}

func TestNewMapShape(t *testing.T) {
	_, err := NewMap(recoAxis(), []float64{1, 2})
	require.Error(t, err)
	assert.True(t, core.IsShapeError(err))
}

func TestCopyDoesNotAlias(t *testing.T) {
	m, err := NewMap(recoAxis(), []float64{1, 2, 3, 4})
	require.NoError(t, err)
	m.SetMeta(MetaLivetime, 10)

	cp := m.Copy()
	cp.Data[0] = 100
	cp.Meta[MetaLivetime] = 20

	assert.Equal(t, 1.0, m.Data[0])
	assert.Equal(t, 10.0, m.Meta[MetaLivetime])
}

func TestStackWithWeights(t *testing.T) {
	ax := recoAxis()
	a := Full(ax, 1)
	b := Full(ax, 2)
	w, err := NewMask(ax, []bool{false, true, true, false})
	require.NoError(t, err)

	require.NoError(t, a.Stack(b, w))
	assert.Equal(t, []float64{1, 3, 3, 1}, a.Data)
	assert.Equal(t, []float64{2, 2, 2, 2}, b.Data)
}

func TestResample(t *testing.T) {
	ax := recoAxis()
	m, err := NewMap(ax, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	coarse := axis.MustNew([]float64{0.1, 1, 10}, axis.Reco)

	out, err := m.Resample(coarse, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7}, out.Data)

	w, _ := NewMask(ax, []bool{true, false, true, true})
	out, err = m.Resample(coarse, w)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 7}, out.Data)

	mask, err := w.Resample(coarse)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, mask.Data)
}

func TestResampleIncompatible(t *testing.T) {
	m := Full(recoAxis(), 1)
	_, err := m.Resample(axis.MustNew([]float64{0.1, 2, 10}, axis.Reco), nil)
	assert.ErrorIs(t, err, core.ErrIncompatibleAxis)
}

func TestRatioFill(t *testing.T) {
	ax := recoAxis()
	num, _ := NewMap(ax, []float64{1, 2, 3, 4})
	den, _ := NewMap(ax, []float64{2, 0, 3, 8})

	r, err := Ratio(num, den, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 1, 0.5}, r.Data)
}

func TestMaskOps(t *testing.T) {
	ax := recoAxis()
	a, _ := NewMask(ax, []bool{true, false, false, true})
	b, _ := NewMask(ax, []bool{false, false, true, true})

	assert.Equal(t, []bool{false, false, false, true}, And(a, b).Data)
	require.NoError(t, a.Or(b))
	assert.Equal(t, []bool{true, false, true, true}, a.Data)
	assert.Equal(t, 3, a.Count())
	assert.False(t, AllFalse(ax).Any())
	assert.Equal(t, []float64{1, 0, 1, 1}, a.Float())
}

func TestAcceptanceBroadcast(t *testing.T) {
	ax := recoAxis()

	m, err := Scalar(2).Broadcast(ax)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2, 2}, m.Data)

	grid, _ := NewMap(ax, []float64{1, 2, 3, 4})
	m, err = Grid(grid).Broadcast(ax)
	require.NoError(t, err)
	assert.Equal(t, grid.Data, m.Data)
	m.Data[0] = 9
	assert.Equal(t, 1.0, grid.Data[0])
}
