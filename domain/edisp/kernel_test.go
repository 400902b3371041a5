package edisp

import (
	"math"
	"testing"

	"gammastack/domain/axis"
	"gammastack/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logAxis(t *testing.T, n int, kind axis.Kind) *axis.EnergyAxis {
	t.Helper()
	ax, err := axis.FromEnergyBounds(0.1, 10, n, kind)
	require.NoError(t, err)
	return ax
}

func TestDiagonalIdentity(t *testing.T) {
	reco := logAxis(t, 4, axis.Reco)
	k := Diagonal(reco, reco.WithKind(axis.True))

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, k.PDF.At(i, j), 1e-12)
		}
	}

	out, err := k.Apply([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2, 3, 4}, out, 1e-12)
}

func TestDiagonalSplitsOverlap(t *testing.T) {
	reco := axis.MustNew([]float64{1, 2, 4}, axis.Reco)
	tru := axis.MustNew([]float64{1, 3, 4}, axis.True)
	k := Diagonal(reco, tru)

	assert.InDeltaSlice(t, []float64{0.5, 0.5}, k.Row(0), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 1}, k.Row(1), 1e-12)
}

func TestNewKernelValidates(t *testing.T) {
	reco := axis.MustNew([]float64{1, 2, 4}, axis.Reco)
	tru := axis.MustNew([]float64{1, 4}, axis.True)

	_, err := NewKernel(tru, reco, [][]float64{{0.7, 0.7}})
	assert.True(t, core.IsValidationError(err))

	_, err = NewKernel(tru, reco, [][]float64{{0.7}})
	assert.True(t, core.IsShapeError(err))

	k, err := NewKernel(tru, reco, [][]float64{{0.3, 0.6}})
	require.NoError(t, err)
	assert.Equal(t, axis.True, k.TrueAxis.Kind)
}

func TestGaussianBiasAndResolution(t *testing.T) {
	reco := logAxis(t, 200, axis.Reco)
	k, err := Gaussian(reco, reco.WithKind(axis.True), 0.1, 0)
	require.NoError(t, err)

	assert.InDelta(t, 0, k.Bias(1), 5e-3)
	assert.InDelta(t, 0.1, k.Resolution(1), 1e-2)
	assert.True(t, math.IsNaN(k.Bias(100)))

	_, err = Gaussian(reco, reco, 0, 0)
	assert.True(t, core.IsValidationError(err))
}

func TestResampleReco(t *testing.T) {
	reco := logAxis(t, 4, axis.Reco)
	k := Diagonal(reco, reco.WithKind(axis.True))
	coarse := axis.MustNew([]float64{reco.Edges[0], reco.Edges[2], reco.Edges[4]}, axis.Reco)

	r, err := k.ResampleReco(coarse, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, r.Row(1), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 1}, r.Row(2), 1e-12)

	same, err := k.ResampleReco(reco, nil)
	require.NoError(t, err)
	assert.Equal(t, k.Rows(), same.Rows())
}

func TestStackPartialMaskHalvesRow(t *testing.T) {
	reco := logAxis(t, 3, axis.Reco)
	k := Diagonal(reco, reco.WithKind(axis.True))

	a, err := NewKernelMapWithExposure(k, []float64{10, 10, 10})
	require.NoError(t, err)
	b, err := NewKernelMapWithExposure(k.Copy(), []float64{10, 10, 10})
	require.NoError(t, err)

	require.NoError(t, a.Stack(b, nil, []bool{false, true, true}))

	assert.InDelta(t, 0.5, a.Kernel.PDF.At(0, 0), 1e-12)
	assert.InDelta(t, 1, a.Kernel.PDF.At(1, 1), 1e-12)
	assert.Equal(t, []float64{20, 20, 20}, a.Exposure)
	assert.Equal(t, []float64{10, 10, 10}, b.Exposure)
	assert.InDelta(t, 1, b.Kernel.PDF.At(0, 0), 1e-12)
}

func TestStackExposureWeighting(t *testing.T) {
	reco := axis.MustNew([]float64{1, 2, 4}, axis.Reco)
	tru := axis.MustNew([]float64{1, 4}, axis.True)
	ka, _ := NewKernel(tru, reco, [][]float64{{1, 0}})
	kb, _ := NewKernel(tru, reco, [][]float64{{0, 1}})

	a, _ := NewKernelMapWithExposure(ka, []float64{3})
	b, _ := NewKernelMapWithExposure(kb, []float64{1})
	require.NoError(t, a.Stack(b, nil, nil))
	assert.InDeltaSlice(t, []float64{0.75, 0.25}, a.Kernel.Row(0), 1e-12)

	za, _ := NewKernelMapWithExposure(ka.Copy(), []float64{0})
	zb, _ := NewKernelMapWithExposure(kb.Copy(), []float64{0})
	require.NoError(t, za.Stack(zb, nil, nil))
	assert.Equal(t, []float64{0, 0}, za.Kernel.Row(0))
}

func TestStackIncompatibleAxes(t *testing.T) {
	a := NewKernelMap(Diagonal(logAxis(t, 3, axis.Reco), logAxis(t, 3, axis.True)))
	b := NewKernelMap(Diagonal(logAxis(t, 4, axis.Reco), logAxis(t, 3, axis.True)))

	err := a.Stack(b, nil, nil)
	assert.ErrorIs(t, err, core.ErrIncompatibleAxis)
}
