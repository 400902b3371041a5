package dataset

import (
	"fmt"
	"math/rand/v2"

	"gammastack/domain/axis"
	"gammastack/domain/core"
	"gammastack/domain/edisp"
	"gammastack/domain/gti"
	"gammastack/domain/model"
	"gammastack/domain/spectrum"
	"gammastack/domain/stats"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// SpectrumDataset holds the counts of one on region together with the
// instrument response needed to predict them. It is fitted with CASH.
type SpectrumDataset struct {
	Counts *spectrum.Map
	// Exposure is defined over true energy; Meta["livetime"] tracks the
	// accumulated livetime in seconds
	Exposure   *spectrum.Map
	Edisp      *edisp.KernelMap
	Background *spectrum.Map
	MaskSafe   *spectrum.Mask
	MaskFit    *spectrum.Mask
	GTI        *gti.GTI
	MetaTable  []MetaRow

	name   string
	models *model.Models
}

// Options carries the components of a new dataset. Every grid is copied.
type Options struct {
	Name       string
	Counts     *spectrum.Map
	Exposure   *spectrum.Map
	Edisp      *edisp.KernelMap
	Background *spectrum.Map
	MaskSafe   *spectrum.Mask
	MaskFit    *spectrum.Mask
	GTI        *gti.GTI
	MetaTable  []MetaRow
	Models     *model.Models
}

// NewSpectrumDataset validates opts and builds a dataset owning copies of
// every grid. An absent safe mask includes every bin.
func NewSpectrumDataset(opts Options) (*SpectrumDataset, error) {
	if opts.Counts == nil {
		return nil, core.NewValidationError("counts", "counts are required")
	}
	reco := opts.Counts.Axis
	d := &SpectrumDataset{
		Counts:    opts.Counts.Copy(),
		GTI:       opts.GTI.Copy(),
		MetaTable: copyMeta(opts.MetaTable),
		name:      core.NameOrNew(opts.Name),
		models:    opts.Models,
	}

	switch {
	case opts.MaskSafe == nil:
		d.MaskSafe = spectrum.AllTrue(reco)
	case len(opts.MaskSafe.Data) != reco.NBin():
		return nil, core.NewValidationError("mask_safe",
			fmt.Sprintf("has %d bins, counts have %d", len(opts.MaskSafe.Data), reco.NBin()))
	default:
		d.MaskSafe = opts.MaskSafe.Copy()
	}
	if opts.MaskFit != nil {
		if len(opts.MaskFit.Data) != reco.NBin() {
			return nil, core.NewValidationError("mask_fit",
				fmt.Sprintf("has %d bins, counts have %d", len(opts.MaskFit.Data), reco.NBin()))
		}
		d.MaskFit = opts.MaskFit.Copy()
	}

	if opts.Background != nil {
		if opts.Background.NBin() != reco.NBin() {
			return nil, core.NewShapeError("background", reco.NBin(), opts.Background.NBin())
		}
		d.Background = opts.Background.Copy()
	}

	if opts.Exposure != nil {
		d.Exposure = opts.Exposure.Copy()
		d.Exposure.Axis = d.Exposure.Axis.WithKind(axis.True)
	}

	if opts.Edisp != nil {
		k := opts.Edisp.Kernel
		if !k.RecoAxis.Compatible(reco.WithKind(k.RecoAxis.Kind)) {
			return nil, core.NewAxisError("edisp reco axis differs from the counts axis")
		}
		if d.Exposure != nil && !k.TrueAxis.WithKind(axis.True).Compatible(d.Exposure.Axis) {
			return nil, core.NewAxisError("edisp true axis differs from the exposure axis")
		}
		d.Edisp = opts.Edisp.Copy()
	}
	return d, nil
}

// CreateSpectrumDataset returns an empty template to stack observations
// into. Every bin is outside the safe mask, the kernel is diagonal with zero
// exposure and the livetime starts at zero. A nil trueAxis reuses recoAxis.
func CreateSpectrumDataset(recoAxis, trueAxis *axis.EnergyAxis, name string) *SpectrumDataset {
	reco := recoAxis.WithKind(axis.Reco)
	if trueAxis == nil {
		trueAxis = recoAxis
	}
	etrue := trueAxis.WithKind(axis.True)

	exposure := spectrum.Zeros(etrue)
	exposure.SetMeta(spectrum.MetaLivetime, 0)

	return &SpectrumDataset{
		Counts:     spectrum.Zeros(reco),
		Exposure:   exposure,
		Edisp:      &edisp.KernelMap{Kernel: edisp.Diagonal(reco, etrue), Exposure: make([]float64, etrue.NBin())},
		Background: spectrum.Zeros(reco),
		MaskSafe:   spectrum.AllFalse(reco),
		GTI:        gti.Empty(0),
		name:       core.NameOrNew(name),
	}
}

func (d *SpectrumDataset) Name() string     { return d.name }
func (d *SpectrumDataset) Type() string     { return TypeSpectrum }
func (d *SpectrumDataset) StatType() string { return stats.TypeCash }

func (d *SpectrumDataset) Models() *model.Models          { return d.models }
func (d *SpectrumDataset) SetModels(models *model.Models) { d.models = models }

// Mask combines the safe and fit masks
func (d *SpectrumDataset) Mask() *spectrum.Mask {
	return spectrum.And(d.MaskSafe, d.MaskFit)
}

// EnergyRange returns the bounds of the safe region; ok is false when no
// bin is safe
func (d *SpectrumDataset) EnergyRange() (emin, emax float64, ok bool) {
	ax := d.Counts.Axis
	lo, hi := -1, -1
	for i, v := range d.MaskSafe.Data {
		if !v {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}
	if lo < 0 {
		return 0, 0, false
	}
	return ax.Lo(lo), ax.Hi(hi), true
}

// Livetime returns the accumulated livetime from the exposure meta
func (d *SpectrumDataset) Livetime() (float64, bool) {
	return d.Exposure.MetaValue(spectrum.MetaLivetime)
}

// Ontime returns the summed GTI duration
func (d *SpectrumDataset) Ontime() float64 {
	if d.GTI == nil {
		return 0
	}
	return d.GTI.TimeSum()
}

// NPredSignal predicts the source counts per reco bin. An empty modelName
// sums every model applying to the dataset.
func (d *SpectrumDataset) NPredSignal(modelName string) (*spectrum.Map, error) {
	var selected []*model.SkyModel
	if modelName != "" {
		m, err := d.models.Get(modelName)
		if err != nil {
			return nil, err
		}
		selected = []*model.SkyModel{m}
	} else {
		selected = d.models.ForDataset(d.name)
	}

	out := spectrum.Zeros(d.Counts.Axis)
	if d.Exposure == nil {
		return out, nil
	}
	for _, m := range selected {
		npred, err := d.evaluate(m)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		floats.Add(out.Data, npred)
	}
	return out, nil
}

func (d *SpectrumDataset) evaluate(m *model.SkyModel) ([]float64, error) {
	flux := model.IntegrateBins(m.Spectral, d.Exposure.Axis.Edges)
	floats.Mul(flux, d.Exposure.Data)
	if m.Temporal != nil && d.GTI != nil && d.GTI.Len() > 0 {
		floats.Scale(d.temporalFactor(m.Temporal), flux)
	}

	if d.Edisp != nil {
		return d.Edisp.Kernel.Apply(flux)
	}
	if !d.Exposure.Axis.WithKind(axis.Reco).Compatible(d.Counts.Axis) {
		return nil, core.NewAxisError("without energy dispersion the exposure must share the counts binning")
	}
	return flux, nil
}

func (d *SpectrumDataset) temporalFactor(t model.TemporalModel) float64 {
	start := make([]core.MJD, d.GTI.Len())
	stop := make([]core.MJD, d.GTI.Len())
	for i := range start {
		start[i] = d.GTI.Reference.AddSeconds(d.GTI.Start[i])
		stop[i] = d.GTI.Reference.AddSeconds(d.GTI.Stop[i])
	}
	return floats.Sum(t.Integral(start, stop))
}

// NPredBackground returns the background prediction, zero when absent
func (d *SpectrumDataset) NPredBackground() *spectrum.Map {
	if d.Background == nil {
		return spectrum.Zeros(d.Counts.Axis)
	}
	return d.Background.Copy()
}

// NPred is the total predicted counts
func (d *SpectrumDataset) NPred() (*spectrum.Map, error) {
	npred, err := d.NPredSignal("")
	if err != nil {
		return nil, err
	}
	floats.Add(npred.Data, d.NPredBackground().Data)
	return npred, nil
}

// StatArray returns CASH per bin
func (d *SpectrumDataset) StatArray() ([]float64, error) {
	npred, err := d.NPred()
	if err != nil {
		return nil, err
	}
	return stats.CashArray(d.Counts.Data, npred.Data), nil
}

// StatSum sums StatArray over Mask
func (d *SpectrumDataset) StatSum() (float64, error) {
	arr, err := d.StatArray()
	if err != nil {
		return 0, err
	}
	return maskedSum(arr, d.Mask()), nil
}

func maskedSum(values []float64, mask *spectrum.Mask) float64 {
	var s float64
	for i, v := range values {
		if mask == nil || mask.Data[i] {
			s += v
		}
	}
	return s
}

// Fake replaces the counts with a Poisson realisation of NPred
func (d *SpectrumDataset) Fake(src rand.Source) error {
	npred, err := d.NPred()
	if err != nil {
		return err
	}
	d.Counts.Data = poisson(npred.Data, src)
	return nil
}

func poisson(mean []float64, src rand.Source) []float64 {
	out := make([]float64, len(mean))
	for i, lambda := range mean {
		if !(lambda > 0) {
			continue
		}
		out[i] = distuv.Poisson{Lambda: lambda, Src: src}.Rand()
	}
	return out
}

// Copy returns an independent deep copy, models included. An empty name
// generates a new one.
func (d *SpectrumDataset) Copy(name string) *SpectrumDataset {
	return &SpectrumDataset{
		Counts:     d.Counts.Copy(),
		Exposure:   d.Exposure.Copy(),
		Edisp:      d.Edisp.Copy(),
		Background: d.Background.Copy(),
		MaskSafe:   d.MaskSafe.Copy(),
		MaskFit:    d.MaskFit.Copy(),
		GTI:        d.GTI.Copy(),
		MetaTable:  copyMeta(d.MetaTable),
		name:       core.NameOrNew(name),
		models:     d.models.Copy(),
	}
}

// CopyAs implements Dataset
func (d *SpectrumDataset) CopyAs(name string) Dataset {
	return d.Copy(name)
}

// String implements fmt.Stringer
func (d *SpectrumDataset) String() string {
	return fmt.Sprintf("%s %s: %d bins, %d safe, counts=%.0f", d.Type(), d.name,
		d.Counts.NBin(), d.MaskSafe.Count(), d.Counts.SumMasked(d.MaskSafe))
}
