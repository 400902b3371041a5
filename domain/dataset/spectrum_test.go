package dataset_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"gammastack/domain/axis"
	"gammastack/domain/core"
	"gammastack/domain/dataset"
	"gammastack/domain/model"
	"gammastack/domain/spectrum"
	"gammastack/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSpectrumDataset(t *testing.T) {
	reco := testkit.LogAxis(0.1, 10, 5, axis.Reco)
	etrue := testkit.LogAxis(0.05, 20, 8, axis.True)

	d := dataset.CreateSpectrumDataset(reco, etrue, "template")

	assert.Equal(t, "template", d.Name())
	assert.Equal(t, dataset.TypeSpectrum, d.Type())
	assert.Equal(t, "cash", d.StatType())
	assert.Equal(t, 0.0, d.Counts.Sum())
	assert.Equal(t, 0.0, d.Exposure.Sum())
	assert.Equal(t, 0, d.MaskSafe.Count())
	assert.Equal(t, axis.True, d.Exposure.Axis.Kind)

	livetime, ok := d.Livetime()
	assert.True(t, ok)
	assert.Equal(t, 0.0, livetime)
	assert.Equal(t, 0.0, d.Ontime())

	_, _, ok = d.EnergyRange()
	assert.False(t, ok)
}

func TestCreateSpectrumDatasetGeneratesName(t *testing.T) {
	reco := testkit.LogAxis(0.1, 10, 5, axis.Reco)
	a := dataset.CreateSpectrumDataset(reco, nil, "")
	b := dataset.CreateSpectrumDataset(reco, nil, "")

	assert.NotEmpty(t, a.Name())
	assert.NotEqual(t, a.Name(), b.Name())
	assert.True(t, a.Exposure.Axis.Compatible(reco.WithKind(axis.True)))
}

func TestNewSpectrumDatasetValidation(t *testing.T) {
	reco := testkit.LogAxis(0.1, 10, 4, axis.Reco)
	other := testkit.LogAxis(0.1, 10, 3, axis.Reco)

	t.Run("counts required", func(t *testing.T) {
		_, err := dataset.NewSpectrumDataset(dataset.Options{Name: "x"})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("mask fit shape", func(t *testing.T) {
		_, err := dataset.NewSpectrumDataset(dataset.Options{
			Counts:  spectrum.Zeros(reco),
			MaskFit: spectrum.AllTrue(other),
		})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("mask safe shape", func(t *testing.T) {
		_, err := dataset.NewSpectrumDataset(dataset.Options{
			Counts:   spectrum.Zeros(reco),
			MaskSafe: spectrum.AllTrue(other),
		})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("background shape", func(t *testing.T) {
		_, err := dataset.NewSpectrumDataset(dataset.Options{
			Counts:     spectrum.Zeros(reco),
			Background: spectrum.Zeros(other),
		})
		assert.True(t, core.IsShapeError(err))
	})
}

func TestNewSpectrumDatasetCopiesInputs(t *testing.T) {
	reco := testkit.LogAxis(0.1, 10, 4, axis.Reco)
	counts := spectrum.Full(reco, 3)

	d, err := dataset.NewSpectrumDataset(dataset.Options{Counts: counts})
	require.NoError(t, err)

	counts.Data[0] = 100
	assert.Equal(t, 3.0, d.Counts.Data[0])
	assert.Equal(t, 4, d.MaskSafe.Count())
}

func TestNPredModels(t *testing.T) {
	reco := testkit.LogAxis(1, 10, 3, axis.Reco)
	d := dataset.CreateSpectrumDataset(reco, nil, "npred")
	// 1e10 cm² h
	for i := range d.Exposure.Data {
		d.Exposure.Data[i] = 3.6e13
	}

	first := model.NewSkyModel("pwl-1", model.DefaultPowerLaw(), nil)
	second := model.NewSkyModel("pwl-2", model.DefaultPowerLaw(), nil)
	models, err := model.NewModels(first, second)
	require.NoError(t, err)
	d.SetModels(models)

	npred, err := d.NPred()
	require.NoError(t, err)
	assert.InDelta(t, 64.8, npred.Sum(), 1e-6)

	signal, err := d.NPredSignal("")
	require.NoError(t, err)
	assert.InDelta(t, 64.8, signal.Sum(), 1e-6)

	one, err := d.NPredSignal("pwl-1")
	require.NoError(t, err)
	assert.InDelta(t, 32.4, one.Sum(), 1e-6)

	_, err = d.NPredSignal("missing")
	assert.ErrorIs(t, err, core.ErrModelNotFound)
}

func TestNPredDatasetNames(t *testing.T) {
	reco := testkit.LogAxis(1, 10, 3, axis.Reco)
	d := dataset.CreateSpectrumDataset(reco, nil, "npred")
	d.Exposure.Scale(0).Data[0] = 1e12

	elsewhere := model.NewSkyModel("elsewhere", model.DefaultPowerLaw(), nil)
	elsewhere.DatasetNames = []string{"other"}
	models, err := model.NewModels(elsewhere)
	require.NoError(t, err)
	d.SetModels(models)

	npred, err := d.NPredSignal("")
	require.NoError(t, err)
	assert.Equal(t, 0.0, npred.Sum())
}

func TestNPredWithoutEdisp(t *testing.T) {
	reco := testkit.LogAxis(0.1, 10, 5, axis.Reco)
	models, err := model.NewModels(model.NewSkyModel("const", model.NewConstantSpectral(1), nil))
	require.NoError(t, err)

	d, err := dataset.NewSpectrumDataset(dataset.Options{
		Counts:   spectrum.Zeros(reco),
		Exposure: spectrum.Full(reco, 1),
		Models:   models,
	})
	require.NoError(t, err)

	npred, err := d.NPredSignal("")
	require.NoError(t, err)
	assert.InDelta(t, 9.9, npred.Sum(), 1e-9)

	mismatched, err := dataset.NewSpectrumDataset(dataset.Options{
		Counts:   spectrum.Zeros(reco),
		Exposure: spectrum.Full(testkit.LogAxis(0.1, 10, 7, axis.True), 1),
		Models:   models,
	})
	require.NoError(t, err)
	_, err = mismatched.NPredSignal("")
	assert.ErrorIs(t, err, core.ErrIncompatibleAxis)
}

func TestCashNPred(t *testing.T) {
	reco := testkit.LogAxis(0.1, 10, 30, axis.Reco)
	models, err := model.NewModels(model.NewSkyModel("source", model.NewPowerLaw(2, 1e5, 0.1), nil))
	require.NoError(t, err)

	// 1 cm² for 1 s
	d, err := dataset.NewSpectrumDataset(dataset.Options{
		Counts:   spectrum.Zeros(reco),
		Exposure: spectrum.Full(reco, 1),
		Models:   models,
	})
	require.NoError(t, err)

	npred, err := d.NPred()
	require.NoError(t, err)
	assert.InEpsilon(t, 660.5171, npred.Data[5], 1e-5)
}

func TestCashDatasetFake(t *testing.T) {
	d := testkit.CashDataset()

	require.NoError(t, d.Fake(rand.NewPCG(23, 0)))

	assert.InDelta(t, 906353, d.Counts.Sum(), 5000)
	npred, err := d.NPred()
	require.NoError(t, err)
	assert.InEpsilon(t, 906353, npred.Sum(), 1e-3)

	info := d.Info()
	assert.Equal(t, "test", info.Name)
	assert.InDelta(t, 3000, info.Background, 1e-9)
	assert.InDelta(t, 216000, info.Ontime, 1e-6)
	assert.InDelta(t, 100, info.Livetime, 1e-12)
	assert.Equal(t, d.Counts.Sum(), info.Counts)
	assert.InDelta(t, info.Counts-3000, info.Excess, 1e-6)
	assert.Greater(t, info.SqrtTS, 0.0)
	assert.InDelta(t, info.Counts/100, info.CountsRate, 1e-9)
	assert.Equal(t, 30, info.NBins)
	assert.Equal(t, 30, info.NFitBins)
	assert.Equal(t, 100.0, info.ExposureMin)
	assert.Equal(t, 100.0, info.ExposureMax)

	emin, emax, ok := d.EnergyRange()
	require.True(t, ok)
	assert.InDelta(t, 0.1, emin, 1e-12)
	assert.InDelta(t, 10, emax, 1e-9)
}

func TestFakeIsDeterministic(t *testing.T) {
	a := testkit.CashDataset()
	b := testkit.CashDataset()

	require.NoError(t, a.Fake(rand.NewPCG(7, 1)))
	require.NoError(t, b.Fake(rand.NewPCG(7, 1)))
	assert.Equal(t, a.Counts.Data, b.Counts.Data)
}

func TestStatSumUsesMaskFit(t *testing.T) {
	d := testkit.CashDataset()
	require.NoError(t, d.Fake(rand.NewPCG(1, 2)))

	full, err := d.StatSum()
	require.NoError(t, err)

	arr, err := d.StatArray()
	require.NoError(t, err)

	d.MaskFit = spectrum.AllTrue(d.Counts.Axis)
	d.MaskFit.Data[0] = false
	partial, err := d.StatSum()
	require.NoError(t, err)

	assert.InDelta(t, full-arr[0], partial, 1e-6)
	assert.Equal(t, 29, d.Info().NFitBins)
}

func TestSpectrumDatasetCopy(t *testing.T) {
	d := testkit.CashDataset()
	cp := d.Copy("copy")

	cp.Counts.Data[0] = 42
	cp.MaskSafe.Data[0] = false
	cp.Models().All()[0].Spectral.Parameters().All()[0].Value = 5

	assert.Equal(t, "copy", cp.Name())
	assert.Equal(t, 0.0, d.Counts.Data[0])
	assert.True(t, d.MaskSafe.Data[0])
	assert.NotEqual(t, 5.0, d.Models().All()[0].Spectral.Parameters().All()[0].Value)
}

func TestSpectrumDatasetString(t *testing.T) {
	s := testkit.CashDataset().String()
	assert.True(t, strings.HasPrefix(s, dataset.TypeSpectrum+" test"))
}
