package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gammastack/adapters/excel"
	"gammastack/domain/dataset"
	"gammastack/domain/run"
	"gammastack/internal/errors"
	"gammastack/internal/fit"
	"gammastack/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*app, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LEDGER_DRIVER", "sqlite")
	t.Setenv("LEDGER_DSN", filepath.Join(dir, "ledger.db"))
	t.Setenv("OUTPUT_DIR", dir)
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("SIM_OBSERVATIONS", "2")
	t.Setenv("SIM_LIVETIME", "3600")

	a, err := newApp(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, dir
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	t.Setenv("FIT_METHOD", "newton")
	_, err := newApp(context.Background())
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestFormatError(t *testing.T) {
	err := errors.Wrap(errors.InvalidInput("--profile needs --values"), "fit")
	assert.Equal(t, "[INVALID_INPUT] fit: --profile needs --values", formatError(err))
	assert.Equal(t, "unknown command", formatError(stderrors.New("unknown command")))
}

func TestOutDir(t *testing.T) {
	a, dir := newTestApp(t)
	assert.Equal(t, dir, a.outDir(""))
	assert.Equal(t, "elsewhere", a.outDir("elsewhere"))
}

func TestSimulateStackInfoFit(t *testing.T) {
	ctx := context.Background()
	a, dir := newTestApp(t)

	require.NoError(t, a.runSimulate(ctx, dir))
	datasetsFile := filepath.Join(dir, "datasets.yaml")
	assert.FileExists(t, datasetsFile)
	assert.FileExists(t, filepath.Join(dir, "models.yaml"))
	assert.FileExists(t, filepath.Join(dir, "pha_obsobs-1.fits"))

	stackDir := filepath.Join(dir, "stacked")
	require.NoError(t, a.runStack(ctx, datasetsFile, stackDir, "crab", false))
	assert.FileExists(t, filepath.Join(stackDir, "stacked.yaml"))
	assert.FileExists(t, filepath.Join(stackDir, "pha_obscrab.fits"))

	err := a.runStack(ctx, datasetsFile, stackDir, "crab", false)
	assert.ErrorIs(t, err, os.ErrExist)
	require.NoError(t, a.runStack(ctx, datasetsFile, stackDir, "crab", true))

	workbook := filepath.Join(dir, "info.xlsx")
	require.NoError(t, a.runInfo(ctx, datasetsFile, true, workbook))
	cumulative, err := excel.NewDataReader(workbook).ReadInfo("cumulative")
	require.NoError(t, err)
	require.Len(t, cumulative, 2)
	assert.Equal(t, "stacked", cumulative[1].Name)

	stackedRead, err := a.serializer.ReadDatasets(ctx, filepath.Join(stackDir, "stacked.yaml"), "")
	require.NoError(t, err)
	assert.InDelta(t, cumulative[1].Counts, stackedRead.At(0).Info().Counts, 1e-9)

	fittedModels := filepath.Join(dir, "fitted.yaml")
	opts := fitOptions{stack: true, writeModels: fittedModels, profile: "index", values: []float64{2.3, 2.5, 2.7}}
	require.NoError(t, a.runFit(ctx, datasetsFile, filepath.Join(dir, "models.yaml"), opts))
	assert.FileExists(t, fittedModels)

	fits, err := a.ledger.ListFits(ctx, ports.FitFilters{})
	require.NoError(t, err)
	require.Len(t, fits, 1)
	assert.Equal(t, []string{"stacked"}, fits[0].Datasets)
	assert.Equal(t, "wstat", fits[0].StatType)
	assert.False(t, math.IsNaN(fits[0].TotalStat))

	require.NoError(t, a.runHistory(ctx, string(fits[0].RunID), "", 0))
	require.NoError(t, a.runHistory(ctx, "", "obs-1", 5))
}

func TestRunFitValidation(t *testing.T) {
	ctx := context.Background()
	a, dir := newTestApp(t)
	require.NoError(t, a.runSimulate(ctx, dir))
	datasetsFile := filepath.Join(dir, "datasets.yaml")
	modelsFile := filepath.Join(dir, "models.yaml")

	err := a.runFit(ctx, datasetsFile, modelsFile, fitOptions{profile: "index"})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	a.cfg.Fit.Method = "newton"
	err = a.runFit(ctx, datasetsFile, modelsFile, fitOptions{})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestPrintInfoTable(t *testing.T) {
	var buf bytes.Buffer
	rows := []dataset.Info{
		{Name: "obs-1", Counts: 12, CountsOff: 40, Alpha: 0.2, Excess: 4, SqrtTS: 1.5, Livetime: 1800, NFitBins: 10, StatSum: 3.25},
		{Name: "obs-2", StatSum: math.NaN()},
	}
	printInfoTable(&buf, rows)
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "counts_off")
	assert.Contains(t, lines[1], "3.250")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "-"))

	buf.Reset()
	printInfoSummary(&buf, rows)
	assert.Contains(t, buf.String(), "total excess 4.0")
}

func TestPrintFitRecordsAndProfile(t *testing.T) {
	var buf bytes.Buffer
	printFitRecords(&buf, nil)
	assert.Contains(t, buf.String(), "No fits recorded")

	buf.Reset()
	printFitRecords(&buf, []run.FitRecord{{RunID: "r1", Datasets: []string{"a", "b"}, StatType: "cash", TotalStat: 1.5, Success: true, NFev: 30}})
	assert.Contains(t, buf.String(), "a,b")

	buf.Reset()
	printProfile(&buf, &fit.Profile{Parameter: "index", Values: []float64{2, 3}, StatScan: []float64{5, 4}})
	assert.Contains(t, buf.String(), "minimum 4.0000 at 3")
}
