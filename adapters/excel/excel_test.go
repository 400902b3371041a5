package excel

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gammastack/domain/dataset"
	"gammastack/internal"
	"gammastack/internal/errors"
	"gammastack/internal/testkit"
	"gammastack/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExporter() *InfoExporter {
	return NewInfoExporter().WithLogger(internal.NewLoggerTo(internal.LogLevelError, &bytes.Buffer{}))
}

func infoSheets(t *testing.T) []ports.InfoSheet {
	t.Helper()
	obs := testkit.ObservationList()
	ds, err := dataset.NewDatasets(obs[0], obs[1])
	require.NoError(t, err)

	perDataset, err := ds.InfoTable(false)
	require.NoError(t, err)
	cumulative, err := ds.InfoTable(true)
	require.NoError(t, err)
	return []ports.InfoSheet{{Name: "datasets", Rows: perDataset}, {Name: "cumulative", Rows: cumulative}}
}

func TestExportInfoRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.xlsx")
	sheets := infoSheets(t)
	require.NoError(t, newTestExporter().ExportInfo(context.Background(), path, sheets))

	reader := NewDataReader(path)
	names, err := reader.Sheets()
	require.NoError(t, err)
	assert.Equal(t, []string{"datasets", "cumulative"}, names)

	for _, sheet := range sheets {
		rows, err := reader.ReadInfo(sheet.Name)
		require.NoError(t, err)
		require.Len(t, rows, len(sheet.Rows))
		for i := range rows {
			assert.Equal(t, sheet.Rows[i].Name, rows[i].Name)
			assert.Equal(t, sheet.Rows[i].Counts, rows[i].Counts)
			assert.Equal(t, sheet.Rows[i].CountsOff, rows[i].CountsOff)
			assert.Equal(t, sheet.Rows[i].NBins, rows[i].NBins)
			assert.Equal(t, sheet.Rows[i].StatType, rows[i].StatType)
			assert.Equal(t, sheet.Rows[i].Alpha, rows[i].Alpha)
			assert.Equal(t, sheet.Rows[i].Livetime, rows[i].Livetime)
		}
	}
}

func TestExportInfoUndefinedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.xlsx")
	d := testkit.OnOffDataset()
	d.CountsOff = nil
	info := d.Info()
	require.True(t, math.IsNaN(info.StatSum))

	require.NoError(t, newTestExporter().ExportInfo(context.Background(), path,
		[]ports.InfoSheet{{Name: "info", Rows: []dataset.Info{info}}}))

	rows, err := NewDataReader(path).ReadInfo("info")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, math.IsNaN(rows[0].StatSum))
	assert.Equal(t, info.Counts, rows[0].Counts)
}

func TestExportInfoValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.xlsx")
	e := newTestExporter()
	ctx := context.Background()

	err := e.ExportInfo(ctx, path, nil)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))

	err = e.ExportInfo(ctx, path, []ports.InfoSheet{{Name: "a"}, {Name: "a"}})
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))

	err = e.ExportInfo(ctx, path, []ports.InfoSheet{{Name: "a-name-that-is-far-too-long-for-excel"}})
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
	assert.NoFileExists(t, path)
}

func TestReadInfoCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.csv")
	csv := "name,counts,n_bins,stat_sum\nobs-1,12,3,\nobs-2,4.5,3,1.25\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	rows, err := NewDataReader(path).ReadInfo("")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "obs-1", rows[0].Name)
	assert.Equal(t, 12.0, rows[0].Counts)
	assert.True(t, math.IsNaN(rows[0].StatSum))
	assert.Equal(t, 1.25, rows[1].StatSum)
	assert.Equal(t, 0.0, rows[1].Alpha)
}

func TestReadInfoErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewDataReader(filepath.Join(dir, "missing.xlsx")).ReadInfo("Sheet1")
	assert.Equal(t, errors.CodeIOError, errors.GetCode(err))

	noName := filepath.Join(dir, "noname.csv")
	require.NoError(t, os.WriteFile(noName, []byte("counts\n1\n"), 0o644))
	_, err = NewDataReader(noName).ReadInfo("")
	assert.Equal(t, errors.CodeFormatError, errors.GetCode(err))

	badNumber := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(badNumber, []byte("name,counts\nobs,many\n"), 0o644))
	_, err = NewDataReader(badNumber).ReadInfo("")
	assert.Equal(t, errors.CodeFormatError, errors.GetCode(err))
}
