package fit

import (
	"bytes"
	"context"
	"math/rand/v2"
	"testing"

	"gammastack/domain/dataset"
	"gammastack/domain/model"
	"gammastack/domain/run"
	"gammastack/internal"
	"gammastack/internal/config"
	"gammastack/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cashDatasets(t *testing.T) (*dataset.Datasets, *model.PowerLaw) {
	t.Helper()
	d := testkit.CashDataset()
	require.NoError(t, d.Fake(rand.NewPCG(23, 0)))

	source := d.Models().All()[0]
	for _, p := range source.Temporal.Parameters().All() {
		p.Frozen = true
	}
	ds, err := dataset.NewDatasets(d)
	require.NoError(t, err)
	return ds, source.Spectral.(*model.PowerLaw)
}

func quiet() *internal.Logger {
	return internal.NewLoggerTo(internal.LogLevelError, &bytes.Buffer{})
}

func TestFitRecoversPowerLaw(t *testing.T) {
	ds, pl := cashDatasets(t)
	pl.Index.Value = 2.4
	pl.Amplitude.Value = 1.3e5

	res, err := New(ds, config.Default().Fit).WithLogger(quiet()).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success, res.Message)
	assert.InDelta(t, 2.1, pl.Index.Value, 0.01)
	assert.InEpsilon(t, 1e5, pl.Amplitude.Value, 0.02)
	assert.Greater(t, res.NFev, 0)

	require.NotNil(t, res.Covariance)
	index, err := res.Parameters.Get("index")
	require.NoError(t, err)
	assert.Greater(t, index.Error, 0.0)
	assert.Less(t, index.Error, 0.01)

	stat, err := ds.StatSum()
	require.NoError(t, err)
	assert.InDelta(t, stat, res.TotalStat, 1e-9)
}

func TestFitStackedOnOff(t *testing.T) {
	cfg := testkit.DefaultObservationConfig()
	cfg.Livetime = 36000
	obs, err := testkit.NewObservationGenerator(cfg).Generate()
	require.NoError(t, err)

	ds, err := dataset.NewDatasets(obs[0], obs[1], obs[2])
	require.NoError(t, err)
	stacked, err := ds.StackReduce("stacked")
	require.NoError(t, err)

	models, err := model.NewModels(model.NewSkyModel("source", model.NewPowerLaw(2, 1e-11, 1), nil))
	require.NoError(t, err)
	stacked.SetModels(models)
	joint, err := dataset.NewDatasets(stacked)
	require.NoError(t, err)

	res, err := New(joint, config.Default().Fit).WithLogger(quiet()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)

	index, err := models.Parameters().Get("index")
	require.NoError(t, err)
	assert.InDelta(t, cfg.Index, index.Value, 0.3)
}

func TestFitBFGS(t *testing.T) {
	ds, pl := cashDatasets(t)
	pl.Index.Value = 2.2

	cfg := config.Default().Fit
	cfg.Method = config.MethodBFGS
	cfg.Errors = false
	res, err := New(ds, cfg).WithLogger(quiet()).Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, res.Covariance)
	assert.InDelta(t, 2.1, pl.Index.Value, 0.02)
}

func TestFitCancelled(t *testing.T) {
	ds, pl := cashDatasets(t)
	pl.Index.Value = 2.4

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ds, config.Default().Fit).WithLogger(quiet()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2.4, pl.Index.Value)
}

func TestFitWithoutFreeParameters(t *testing.T) {
	ds, _ := cashDatasets(t)
	for _, p := range ds.Parameters().All() {
		p.Frozen = true
	}

	res, err := New(ds, config.Default().Fit).WithLogger(quiet()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Parameters.Len())
}

func TestStatProfile(t *testing.T) {
	ds, pl := cashDatasets(t)
	f := New(ds, config.Default().Fit).WithLogger(quiet())

	profile, err := f.StatProfile(context.Background(), "index", []float64{1.9, 2.1, 2.3}, false)
	require.NoError(t, err)

	require.Len(t, profile.StatScan, 3)
	best, _ := profile.Min()
	assert.Equal(t, 2.1, best)
	assert.Less(t, profile.StatScan[1], profile.StatScan[0])
	assert.Less(t, profile.StatScan[1], profile.StatScan[2])

	// restored
	assert.Equal(t, 2.1, pl.Index.Value)
	assert.False(t, pl.Index.Frozen)

	_, err = f.StatProfile(context.Background(), "missing", []float64{1}, false)
	assert.Error(t, err)
}

func TestStatProfileReoptimize(t *testing.T) {
	ds, _ := cashDatasets(t)
	f := New(ds, config.Default().Fit).WithLogger(quiet())

	profile, err := f.StatProfile(context.Background(), "index", []float64{2.0, 2.1}, true)
	require.NoError(t, err)
	require.Len(t, profile.FitSuccess, 2)
	assert.Less(t, profile.StatScan[1], profile.StatScan[0])
}

func TestResultRecord(t *testing.T) {
	res := &Result{
		Parameters: model.NewPowerLaw(2.3, 1e-12, 1).Parameters(),
		TotalStat:  12.5,
		Success:    true,
		Message:    "FunctionConvergence",
		NFev:       80,
	}
	rec := res.Record(run.ID("run-1"), []string{"obs-1", "obs-2"}, "wstat")

	assert.Equal(t, "obs-1,obs-2", rec.DatasetList())
	require.Len(t, rec.Parameters, 3)
	assert.Equal(t, "index", rec.Parameters[0].Name)
	assert.True(t, rec.Parameters[2].Frozen)
}
