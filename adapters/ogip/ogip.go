// Package ogip reads and writes on/off spectrum datasets as OGIP FITS files:
// a PHA spectrum with its BKG, ARF and RMF companions.
package ogip

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gammastack/domain/axis"
	"gammastack/domain/core"
	"gammastack/domain/dataset"
	"gammastack/domain/edisp"
	"gammastack/domain/gti"
	"gammastack/domain/spectrum"
	"gammastack/internal"
	"gammastack/internal/errors"
	"gammastack/ports"

	"github.com/astrogo/fitsio"
)

// none marks a companion file that was not written
const none = "none"

// Filenames returns the PHA, BKG, ARF and RMF file names of a dataset
func Filenames(name string) (pha, bkg, arf, rmf string) {
	return "pha_obs" + name + ".fits", "bkg_obs" + name + ".fits",
		"arf_obs" + name + ".fits", "rmf_obs" + name + ".fits"
}

// Repository implements ports.DatasetRepository over OGIP files
type Repository struct {
	logger *internal.Logger // Logger for controlled verbosity
}

var _ ports.DatasetRepository = (*Repository)(nil)

// NewRepository creates an OGIP repository
func NewRepository() *Repository {
	return &Repository{logger: internal.DefaultLogger.With("ogip")}
}

// WithLogger replaces the repository logger
func (r *Repository) WithLogger(logger *internal.Logger) *Repository {
	r.logger = logger
	return r
}

type spectrumRow struct {
	Channel  int32   `fits:"CHANNEL"`
	Counts   float64 `fits:"COUNTS"`
	Quality  int16   `fits:"QUALITY"`
	Backscal float64 `fits:"BACKSCAL"`
}

type eboundsRow struct {
	Channel int32   `fits:"CHANNEL"`
	EMin    float64 `fits:"E_MIN"`
	EMax    float64 `fits:"E_MAX"`
}

type gtiRow struct {
	Start float64 `fits:"START"`
	Stop  float64 `fits:"STOP"`
}

type specrespRow struct {
	EnergLo  float64 `fits:"ENERG_LO"`
	EnergHi  float64 `fits:"ENERG_HI"`
	SpecResp float64 `fits:"SPECRESP"`
}

type energiesRow struct {
	EnergLo float64 `fits:"ENERG_LO"`
	EnergHi float64 `fits:"ENERG_HI"`
}

type exposureRow struct {
	Exposure float64 `fits:"EXPOSURE"`
}

var (
	spectrumColumns = []fitsio.Column{
		{Name: "CHANNEL", Format: "J"},
		{Name: "COUNTS", Format: "D", Unit: "count"},
		{Name: "QUALITY", Format: "I"},
		{Name: "BACKSCAL", Format: "D"},
	}
	eboundsColumns = []fitsio.Column{
		{Name: "CHANNEL", Format: "J"},
		{Name: "E_MIN", Format: "D", Unit: "TeV"},
		{Name: "E_MAX", Format: "D", Unit: "TeV"},
	}
	gtiColumns = []fitsio.Column{
		{Name: "START", Format: "D", Unit: "s"},
		{Name: "STOP", Format: "D", Unit: "s"},
	}
	specrespColumns = []fitsio.Column{
		{Name: "ENERG_LO", Format: "D", Unit: "TeV"},
		{Name: "ENERG_HI", Format: "D", Unit: "TeV"},
		{Name: "SPECRESP", Format: "D", Unit: "cm2"},
	}
	energiesColumns = []fitsio.Column{
		{Name: "ENERG_LO", Format: "D", Unit: "TeV"},
		{Name: "ENERG_HI", Format: "D", Unit: "TeV"},
	}
	exposureColumns = []fitsio.Column{
		{Name: "EXPOSURE", Format: "D", Unit: "cm2 s"},
	}
)

// WriteOnOff writes the dataset into dir. Companion files are only written
// for the components the dataset has. Without overwrite an existing file
// aborts the write before anything is touched.
func (r *Repository) WriteOnOff(ctx context.Context, dir string, d *dataset.SpectrumDatasetOnOff, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	phaName, bkgName, arfName, rmfName := outputNames(d)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IOError(dir, err)
	}
	if !overwrite {
		if err := r.CheckWritable(dir, d); err != nil {
			return err
		}
	}

	r.logger.Debug("Writing %s to %s", d.Name(), dir)
	if err := writePHA(filepath.Join(dir, phaName), d, bkgName, arfName, rmfName); err != nil {
		return err
	}
	if bkgName != none {
		if err := writeBKG(filepath.Join(dir, bkgName), d); err != nil {
			return err
		}
	}
	if arfName != none {
		if err := writeARF(filepath.Join(dir, arfName), d.Exposure); err != nil {
			return err
		}
	}
	if rmfName != none {
		if err := writeRMF(filepath.Join(dir, rmfName), d.Edisp); err != nil {
			return err
		}
	}
	return nil
}

func writePHA(path string, d *dataset.SpectrumDatasetOnOff, bkg, arf, rmf string) error {
	rows := make([]spectrumRow, d.Counts.NBin())
	for i := range rows {
		rows[i] = spectrumRow{Channel: int32(i), Counts: d.Counts.Data[i], Quality: quality(d.MaskSafe, i), Backscal: d.Acceptance.Data[i]}
	}
	cards := []fitsio.Card{
		{Name: "HDUCLASS", Value: "OGIP"},
		{Name: "HDUCLAS1", Value: "SPECTRUM"},
		{Name: "DATASET", Value: d.Name()},
		{Name: "BACKFILE", Value: bkg},
		{Name: "ANCRFILE", Value: arf},
		{Name: "RESPFILE", Value: rmf},
	}
	if livetime, ok := d.Livetime(); ok {
		cards = append(cards, fitsio.Card{Name: "EXPOSURE", Value: livetime, Comment: "livetime [s]"})
	}
	spec, err := newTable("SPECTRUM", spectrumColumns, rows, cards...)
	if err != nil {
		return errors.IOError(path, err)
	}
	ebounds, err := eboundsTable(d.Counts.Axis)
	if err != nil {
		return errors.IOError(path, err)
	}
	hdus := []fitsio.HDU{spec, ebounds}

	if d.GTI != nil {
		gtiRows := make([]gtiRow, d.GTI.Len())
		for i, iv := range d.GTI.Intervals() {
			gtiRows[i] = gtiRow{Start: iv.Start, Stop: iv.Stop}
		}
		refInt, refFrac := math.Modf(float64(d.GTI.Reference))
		table, err := newTable("GTI", gtiColumns, gtiRows,
			fitsio.Card{Name: "MJDREFI", Value: int(refInt)},
			fitsio.Card{Name: "MJDREFF", Value: refFrac},
		)
		if err != nil {
			return errors.IOError(path, err)
		}
		hdus = append(hdus, table)
	}
	return writeFITS(path, hdus...)
}

func writeBKG(path string, d *dataset.SpectrumDatasetOnOff) error {
	rows := make([]spectrumRow, d.CountsOff.NBin())
	for i := range rows {
		rows[i] = spectrumRow{Channel: int32(i), Counts: d.CountsOff.Data[i], Quality: quality(d.MaskSafe, i), Backscal: d.AcceptanceOff.Data[i]}
	}
	spec, err := newTable("SPECTRUM", spectrumColumns, rows,
		fitsio.Card{Name: "HDUCLASS", Value: "OGIP"},
		fitsio.Card{Name: "HDUCLAS1", Value: "SPECTRUM"},
		fitsio.Card{Name: "HDUCLAS2", Value: "BKG"},
	)
	if err != nil {
		return errors.IOError(path, err)
	}
	ebounds, err := eboundsTable(d.CountsOff.Axis)
	if err != nil {
		return errors.IOError(path, err)
	}
	return writeFITS(path, spec, ebounds)
}

// writeARF stores the exposure as an effective area; the livetime header
// restores it on read
func writeARF(path string, exposure *spectrum.Map) error {
	livetime, tracked := exposure.MetaValue(spectrum.MetaLivetime)
	scale := 1.0
	if tracked && livetime > 0 {
		scale = livetime
	}
	ax := exposure.Axis
	rows := make([]specrespRow, ax.NBin())
	for i := range rows {
		rows[i] = specrespRow{EnergLo: ax.Lo(i), EnergHi: ax.Hi(i), SpecResp: exposure.Data[i] / scale}
	}
	cards := []fitsio.Card{
		{Name: "HDUCLASS", Value: "OGIP"},
		{Name: "HDUCLAS1", Value: "RESPONSE"},
		{Name: "HDUCLAS2", Value: "SPECRESP"},
	}
	if tracked {
		cards = append(cards, fitsio.Card{Name: "LIVETIME", Value: livetime, Comment: "[s]"})
	}
	table, err := newTable("SPECRESP", specrespColumns, rows, cards...)
	if err != nil {
		return errors.IOError(path, err)
	}
	return writeFITS(path, table)
}

func writeRMF(path string, km *edisp.KernelMap) error {
	hdus, err := rmfHDUs(km)
	if err != nil {
		return errors.IOError(path, err)
	}
	return writeFITS(path, hdus...)
}

// rmfHDUs returns the MATRIX, EBOUNDS, ENERGIES and EXPOSURE extensions
func rmfHDUs(km *edisp.KernelMap) ([]fitsio.HDU, error) {
	k := km.Kernel
	nTrue, nReco := k.TrueAxis.NBin(), k.RecoAxis.NBin()

	ebounds, err := eboundsTable(k.RecoAxis)
	if err != nil {
		return nil, err
	}
	energies := make([]energiesRow, nTrue)
	exposure := make([]exposureRow, nTrue)
	for i := range energies {
		energies[i] = energiesRow{EnergLo: k.TrueAxis.Lo(i), EnergHi: k.TrueAxis.Hi(i)}
		exposure[i] = exposureRow{Exposure: km.Exposure[i]}
	}
	energiesHDU, err := newTable("ENERGIES", energiesColumns, energies)
	if err != nil {
		return nil, err
	}
	exposureHDU, err := newTable("EXPOSURE", exposureColumns, exposure)
	if err != nil {
		return nil, err
	}

	data := make([]float64, 0, nTrue*nReco)
	for _, row := range k.Rows() {
		data = append(data, row...)
	}
	// NAXIS1 runs over reco energy
	matrix := fitsio.NewImage(-64, []int{nReco, nTrue})
	if err := matrix.Header().Append(
		fitsio.Card{Name: "EXTNAME", Value: "MATRIX"},
		fitsio.Card{Name: "HDUCLAS1", Value: "RESPONSE"},
		fitsio.Card{Name: "HDUCLAS2", Value: "RSP_MATRIX"},
	); err != nil {
		return nil, err
	}
	if err := matrix.Write(data); err != nil {
		return nil, err
	}
	return []fitsio.HDU{matrix, ebounds, energiesHDU, exposureHDU}, nil
}

func quality(mask *spectrum.Mask, i int) int16 {
	if mask != nil && mask.Data[i] {
		return 0
	}
	return 1
}

func eboundsTable(ax *axis.EnergyAxis) (*fitsio.Table, error) {
	rows := make([]eboundsRow, ax.NBin())
	for i := range rows {
		rows[i] = eboundsRow{Channel: int32(i), EMin: ax.Lo(i), EMax: ax.Hi(i)}
	}
	return newTable("EBOUNDS", eboundsColumns, rows)
}

func newTable[T any](name string, cols []fitsio.Column, rows []T, cards ...fitsio.Card) (*fitsio.Table, error) {
	table, err := fitsio.NewTable(name, cols, fitsio.BINARY_TBL)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", name, err)
	}
	if len(cards) > 0 {
		if err := table.Header().Append(cards...); err != nil {
			return nil, fmt.Errorf("failed to write %s header: %w", name, err)
		}
	}
	for i := range rows {
		if err := table.Write(&rows[i]); err != nil {
			return nil, fmt.Errorf("failed to write %s row %d: %w", name, i, err)
		}
	}
	return table, nil
}

// writeFITS writes an empty primary HDU followed by hdus
func writeFITS(path string, hdus ...fitsio.HDU) (err error) {
	w, err := os.Create(path)
	if err != nil {
		return errors.IOError(path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = errors.IOError(path, cerr)
		}
	}()

	f, err := fitsio.Create(w)
	if err != nil {
		return errors.IOError(path, err)
	}
	primary, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return errors.IOError(path, err)
	}
	if err := f.Write(primary); err != nil {
		return errors.IOError(path, err)
	}
	for _, hdu := range hdus {
		if err := f.Write(hdu); err != nil {
			return errors.IOError(path, err)
		}
	}
	if err := f.Close(); err != nil {
		return errors.IOError(path, err)
	}
	return nil
}

// CheckWritable fails with os.ErrExist when any file WriteOnOff would
// create for d is already in dir
func (r *Repository) CheckWritable(dir string, d *dataset.SpectrumDatasetOnOff) error {
	phaName, bkgName, arfName, rmfName := outputNames(d)
	for _, name := range []string{phaName, bkgName, arfName, rmfName} {
		if name == none {
			continue
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return errors.IOError(path, os.ErrExist)
		}
	}
	return nil
}

// outputNames returns the files of d, none for missing components
func outputNames(d *dataset.SpectrumDatasetOnOff) (pha, bkg, arf, rmf string) {
	pha, bkg, arf, rmf = Filenames(d.Name())
	if d.CountsOff == nil {
		bkg = none
	}
	if d.Exposure == nil {
		arf = none
	}
	if d.Edisp == nil {
		rmf = none
	}
	return pha, bkg, arf, rmf
}

// ReadOnOff reads a PHA file and the companions it references. Companions
// that are not on disk read back as nil components.
func (r *Repository) ReadOnOff(ctx context.Context, path string) (*dataset.SpectrumDatasetOnOff, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("Reading %s", path)
	dir := filepath.Dir(path)

	var (
		opts    dataset.OnOffOptions
		bkgFile string
		arfFile string
		rmfFile string
	)
	err := withFITS(path, func(f *fitsio.File) error {
		rows, hdr, err := readTable[spectrumRow](f, path, "SPECTRUM")
		if err != nil {
			return err
		}
		reco, err := readEbounds(f, path)
		if err != nil {
			return err
		}
		if reco.NBin() != len(rows) {
			return errors.FormatError(path, fmt.Sprintf("SPECTRUM has %d rows but EBOUNDS %d", len(rows), reco.NBin()))
		}

		counts := make([]float64, len(rows))
		backscal := make([]float64, len(rows))
		safe := make([]bool, len(rows))
		for i, row := range rows {
			counts[i], backscal[i], safe[i] = row.Counts, row.Backscal, row.Quality == 0
		}
		opts.Counts, _ = spectrum.NewMap(reco, counts)
		acceptance, _ := spectrum.NewMap(reco, backscal)
		opts.Acceptance = spectrum.Grid(acceptance)
		opts.MaskSafe, _ = spectrum.NewMask(reco, safe)

		opts.Name = cardString(hdr, "DATASET")
		if opts.Name == "" {
			opts.Name = strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "pha_obs"), ".fits")
		}
		bkgFile, arfFile, rmfFile = cardString(hdr, "BACKFILE"), cardString(hdr, "ANCRFILE"), cardString(hdr, "RESPFILE")

		if f.Has("GTI") {
			opts.GTI, err = readGTI(f, path)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if p, ok := companion(dir, bkgFile); ok {
		if opts.CountsOff, opts.AcceptanceOff, err = readBKG(p); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p, ok := companion(dir, arfFile); ok {
		if opts.Exposure, err = readARF(p); err != nil {
			return nil, err
		}
	}
	if p, ok := companion(dir, rmfFile); ok {
		if opts.Edisp, err = readRMF(p, opts.Exposure); err != nil {
			return nil, err
		}
	}

	d, err := dataset.NewSpectrumDatasetOnOff(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid dataset in %s", path)
	}
	return d, nil
}

func companion(dir, name string) (string, bool) {
	if name == "" || name == none {
		return "", false
	}
	p := filepath.Join(dir, name)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

func readBKG(path string) (*spectrum.Map, spectrum.Acceptance, error) {
	var (
		off *spectrum.Map
		acc spectrum.Acceptance
	)
	err := withFITS(path, func(f *fitsio.File) error {
		rows, _, err := readTable[spectrumRow](f, path, "SPECTRUM")
		if err != nil {
			return err
		}
		reco, err := readEbounds(f, path)
		if err != nil {
			return err
		}
		if reco.NBin() != len(rows) {
			return errors.FormatError(path, fmt.Sprintf("SPECTRUM has %d rows but EBOUNDS %d", len(rows), reco.NBin()))
		}
		counts := make([]float64, len(rows))
		backscal := make([]float64, len(rows))
		for i, row := range rows {
			counts[i], backscal[i] = row.Counts, row.Backscal
		}
		off, _ = spectrum.NewMap(reco, counts)
		m, _ := spectrum.NewMap(reco, backscal)
		acc = spectrum.Grid(m)
		return nil
	})
	return off, acc, err
}

func readARF(path string) (*spectrum.Map, error) {
	var exposure *spectrum.Map
	err := withFITS(path, func(f *fitsio.File) error {
		rows, hdr, err := readTable[specrespRow](f, path, "SPECRESP")
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.FormatError(path, "SPECRESP is empty")
		}
		edges := make([]float64, 0, len(rows)+1)
		values := make([]float64, len(rows))
		for i, row := range rows {
			edges = append(edges, row.EnergLo)
			values[i] = row.SpecResp
		}
		edges = append(edges, rows[len(rows)-1].EnergHi)
		etrue, err := axis.New(edges, axis.True)
		if err != nil {
			return errors.FormatError(path, err.Error())
		}

		livetime, tracked := cardFloat(hdr, "LIVETIME")
		if tracked && livetime > 0 {
			for i := range values {
				values[i] *= livetime
			}
		}
		exposure, _ = spectrum.NewMap(etrue, values)
		if tracked {
			exposure.SetMeta(spectrum.MetaLivetime, livetime)
		}
		return nil
	})
	return exposure, err
}

// readRMF reads the kernel. Files without an EXPOSURE table weight it with
// arf when the true binning matches.
func readRMF(path string, arf *spectrum.Map) (*edisp.KernelMap, error) {
	var km *edisp.KernelMap
	err := withFITS(path, func(f *fitsio.File) error {
		reco, err := readEbounds(f, path)
		if err != nil {
			return err
		}
		energies, _, err := readTable[energiesRow](f, path, "ENERGIES")
		if err != nil {
			return err
		}
		if len(energies) == 0 {
			return errors.FormatError(path, "ENERGIES is empty")
		}
		edges := make([]float64, 0, len(energies)+1)
		for _, row := range energies {
			edges = append(edges, row.EnergLo)
		}
		edges = append(edges, energies[len(energies)-1].EnergHi)
		etrue, err := axis.New(edges, axis.True)
		if err != nil {
			return errors.FormatError(path, err.Error())
		}

		if !f.Has("MATRIX") {
			return errors.FormatError(path, "missing MATRIX image")
		}
		img, ok := f.Get("MATRIX").(fitsio.Image)
		if !ok {
			return errors.FormatError(path, "MATRIX is not an image")
		}
		var data []float64
		if err := img.Read(&data); err != nil {
			return errors.IOError(path, err)
		}
		nTrue, nReco := etrue.NBin(), reco.NBin()
		if len(data) != nTrue*nReco {
			return errors.FormatError(path, fmt.Sprintf("MATRIX has %d values, want %d", len(data), nTrue*nReco))
		}
		rows := make([][]float64, nTrue)
		for i := range rows {
			rows[i] = data[i*nReco : (i+1)*nReco]
		}
		k, err := edisp.NewKernel(etrue, reco, rows)
		if err != nil {
			return errors.Wrapf(err, "invalid MATRIX in %s", path)
		}

		if !f.Has("EXPOSURE") {
			if arf != nil && len(arf.Data) == nTrue {
				km, err = edisp.NewKernelMapWithExposure(k, arf.Data)
				return err
			}
			km = edisp.NewKernelMap(k)
			return nil
		}
		exposure, _, err := readTable[exposureRow](f, path, "EXPOSURE")
		if err != nil {
			return err
		}
		values := make([]float64, len(exposure))
		for i, row := range exposure {
			values[i] = row.Exposure
		}
		km, err = edisp.NewKernelMapWithExposure(k, values)
		if err != nil {
			return errors.Wrapf(err, "invalid EXPOSURE in %s", path)
		}
		return nil
	})
	return km, err
}

func readEbounds(f *fitsio.File, path string) (*axis.EnergyAxis, error) {
	rows, _, err := readTable[eboundsRow](f, path, "EBOUNDS")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.FormatError(path, "EBOUNDS is empty")
	}
	edges := make([]float64, 0, len(rows)+1)
	for _, row := range rows {
		edges = append(edges, row.EMin)
	}
	edges = append(edges, rows[len(rows)-1].EMax)
	ax, err := axis.New(edges, axis.Reco)
	if err != nil {
		return nil, errors.FormatError(path, err.Error())
	}
	return ax, nil
}

func readGTI(f *fitsio.File, path string) (*gti.GTI, error) {
	rows, hdr, err := readTable[gtiRow](f, path, "GTI")
	if err != nil {
		return nil, err
	}
	refInt, _ := cardFloat(hdr, "MJDREFI")
	refFrac, _ := cardFloat(hdr, "MJDREFF")
	start := make([]float64, len(rows))
	stop := make([]float64, len(rows))
	for i, row := range rows {
		start[i], stop[i] = row.Start, row.Stop
	}
	g, err := gti.New(start, stop, core.MJD(refInt+refFrac))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid GTI in %s", path)
	}
	return g, nil
}

func withFITS(path string, fn func(f *fitsio.File) error) error {
	r, err := os.Open(path)
	if err != nil {
		return errors.IOError(path, err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return errors.FormatError(path, err.Error())
	}
	defer f.Close()
	return fn(f)
}

func readTable[T any](f *fitsio.File, path, name string) ([]T, *fitsio.Header, error) {
	if !f.Has(name) {
		return nil, nil, errors.FormatError(path, "missing "+name+" table")
	}
	table, ok := f.Get(name).(*fitsio.Table)
	if !ok {
		return nil, nil, errors.FormatError(path, name+" is not a table")
	}
	rows, err := table.Read(0, table.NumRows())
	if err != nil {
		return nil, nil, errors.IOError(path, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var row T
		if err := rows.Scan(&row); err != nil {
			return nil, nil, errors.FormatError(path, fmt.Sprintf("%s: %v", name, err))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.IOError(path, err)
	}
	return out, table.Header(), nil
}

func cardString(hdr *fitsio.Header, key string) string {
	card := hdr.Get(key)
	if card == nil {
		return ""
	}
	s, _ := card.Value.(string)
	return strings.TrimSpace(s)
}

// cardFloat reads a numeric header value; whole numbers may come back as
// integers
func cardFloat(hdr *fitsio.Header, key string) (float64, bool) {
	card := hdr.Get(key)
	if card == nil {
		return 0, false
	}
	switch v := card.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	}
	return 0, false
}
