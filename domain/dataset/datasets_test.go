package dataset_test

import (
	"testing"

	"gammastack/domain/core"
	"gammastack/domain/dataset"
	"gammastack/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observations(t *testing.T) *dataset.Datasets {
	t.Helper()
	obs := testkit.ObservationList()
	ds, err := dataset.NewDatasets(obs[0], obs[1])
	require.NoError(t, err)
	return ds
}

func TestDatasetsDuplicateName(t *testing.T) {
	d := testkit.OnOffDataset()
	_, err := dataset.NewDatasets(d, d.Copy(d.Name()))
	assert.ErrorIs(t, err, core.ErrDuplicateName)
}

func TestDatasetsLookup(t *testing.T) {
	ds := observations(t)

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"obs-1", "obs-2"}, ds.Names())
	assert.Equal(t, 1, ds.Index("obs-2"))
	assert.Equal(t, -1, ds.Index("obs-3"))

	d, err := ds.Get("obs-1")
	require.NoError(t, err)
	assert.Same(t, ds.At(0), d)

	_, err = ds.Get("obs-3")
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)
	assert.True(t, core.IsNotFoundError(err))
}

func TestDatasetsStatSum(t *testing.T) {
	ds := observations(t)

	total, err := ds.StatSum()
	require.NoError(t, err)

	var expected float64
	for _, d := range ds.All() {
		s, err := d.StatSum()
		require.NoError(t, err)
		expected += s
	}
	assert.InDelta(t, expected, total, 1e-12)
}

func TestDatasetsStatSumReportsDataset(t *testing.T) {
	obs := testkit.ObservationList()
	obs[1].CountsOff = nil
	ds, err := dataset.NewDatasets(obs[0], obs[1])
	require.NoError(t, err)

	_, err = ds.StatSum()
	assert.ErrorIs(t, err, core.ErrMissingCountsOff)
	assert.Contains(t, err.Error(), "obs-2")
}

func TestDatasetsStackReduce(t *testing.T) {
	ds := observations(t)

	stacked, err := ds.StackReduce("stacked")
	require.NoError(t, err)

	assert.Equal(t, "stacked", stacked.Name())
	onoff := stacked.(*dataset.SpectrumDatasetOnOff)
	assert.Equal(t, []float64{0, 2, 4}, onoff.Counts.Data)
	assert.Equal(t, []float64{4, 0, 4}, onoff.CountsOff.Data)

	// inputs are untouched
	first := ds.At(0).(*dataset.SpectrumDatasetOnOff)
	assert.Equal(t, []float64{0, 1, 2}, first.Counts.Data)
}

func TestDatasetsStackReduceErrors(t *testing.T) {
	empty, err := dataset.NewDatasets()
	require.NoError(t, err)
	_, err = empty.StackReduce("stacked")
	assert.True(t, core.IsValidationError(err))

	onoff := testkit.OnOffDataset()
	mixed, err := dataset.NewDatasets(onoff, onoff.ToSpectrumDataset("cash"))
	require.NoError(t, err)
	assert.False(t, mixed.IsAllSameType())
	_, err = mixed.StackReduce("stacked")
	assert.ErrorIs(t, err, core.ErrIncompatibleType)
}

func TestDatasetsInfoTable(t *testing.T) {
	ds := observations(t)

	rows, err := ds.InfoTable(false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "obs-1", rows[0].Name)
	assert.Equal(t, "obs-2", rows[1].Name)
	assert.Equal(t, 3.0, rows[1].Counts)
	assert.Equal(t, 6.0, rows[1].CountsOff)

	cumulative, err := ds.InfoTable(true)
	require.NoError(t, err)
	require.Len(t, cumulative, 2)
	assert.Equal(t, "stacked", cumulative[1].Name)
	assert.Equal(t, 3.0, cumulative[0].Counts)
	assert.Equal(t, 6.0, cumulative[1].Counts)
	assert.Equal(t, 8.0, cumulative[1].CountsOff)
	assert.InDelta(t, 14400, cumulative[1].Livetime, 1e-9)
	assert.InDelta(t, 7, cumulative[1].Ontime, 1e-12)
}

func TestDatasetsModelsAreShared(t *testing.T) {
	ds := observations(t)
	models := powerLawModels(t)
	ds.SetModels(models)

	assert.Equal(t, 1, ds.Models().Len())
	assert.Equal(t, models.Parameters().Len(), ds.Parameters().Len())

	cp := ds.Copy()
	assert.Equal(t, ds.Names(), cp.Names())

	a := cp.At(0).Models().All()[0]
	b := cp.At(1).Models().All()[0]
	assert.Same(t, a, b)
	assert.NotSame(t, models.All()[0], a)

	a.Spectral.Parameters().All()[0].Value = 3
	assert.Equal(t, 3.0, b.Spectral.Parameters().All()[0].Value)
	assert.Equal(t, 2.0, models.All()[0].Spectral.Parameters().All()[0].Value)
}
