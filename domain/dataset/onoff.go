package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gammastack/domain/axis"
	"gammastack/domain/core"
	"gammastack/domain/spectrum"
	"gammastack/domain/stats"

	"gonum.org/v1/gonum/floats"
)

// SpectrumDatasetOnOff is a spectrum dataset whose background is measured
// in an off region. The background estimate is alpha*counts_off with
// alpha = acceptance/acceptance_off. It is fitted with WSTAT.
type SpectrumDatasetOnOff struct {
	SpectrumDataset

	CountsOff     *spectrum.Map
	Acceptance    *spectrum.Map
	AcceptanceOff *spectrum.Map
}

// OnOffOptions carries the components of a new on/off dataset. Unset
// acceptances default to 1.
type OnOffOptions struct {
	Options

	CountsOff     *spectrum.Map
	Acceptance    spectrum.Acceptance
	AcceptanceOff spectrum.Acceptance
}

// NewSpectrumDatasetOnOff validates opts and builds an on/off dataset
func NewSpectrumDatasetOnOff(opts OnOffOptions) (*SpectrumDatasetOnOff, error) {
	if opts.Background != nil {
		return nil, core.NewValidationError("background", "on/off datasets derive their background from counts_off")
	}
	base, err := NewSpectrumDataset(opts.Options)
	if err != nil {
		return nil, err
	}
	reco := base.Counts.Axis
	d := &SpectrumDatasetOnOff{SpectrumDataset: *base}

	if opts.CountsOff != nil {
		if opts.CountsOff.NBin() != reco.NBin() {
			return nil, core.NewShapeError("counts_off", reco.NBin(), opts.CountsOff.NBin())
		}
		d.CountsOff = opts.CountsOff.Copy()
	}

	if d.Acceptance, err = broadcastAcceptance("acceptance", opts.Acceptance, d); err != nil {
		return nil, err
	}
	if d.AcceptanceOff, err = broadcastAcceptance("acceptance_off", opts.AcceptanceOff, d); err != nil {
		return nil, err
	}
	return d, nil
}

func broadcastAcceptance(field string, a spectrum.Acceptance, d *SpectrumDatasetOnOff) (*spectrum.Map, error) {
	if !a.IsSet() {
		a = spectrum.Scalar(1)
	}
	m, err := a.Broadcast(d.Counts.Axis)
	if err != nil {
		return nil, err
	}
	for i, v := range m.Data {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, core.NewValidationError(field, fmt.Sprintf("bin %d must be positive and finite, got %g", i, v))
		}
	}
	return m, nil
}

// CreateSpectrumDatasetOnOff returns an empty on/off template with zero
// off counts and unit acceptances
func CreateSpectrumDatasetOnOff(recoAxis, trueAxis *axis.EnergyAxis, name string) *SpectrumDatasetOnOff {
	base := CreateSpectrumDataset(recoAxis, trueAxis, name)
	base.Background = nil
	reco := base.Counts.Axis
	return &SpectrumDatasetOnOff{
		SpectrumDataset: *base,
		CountsOff:       spectrum.Zeros(reco),
		Acceptance:      spectrum.Full(reco, 1),
		AcceptanceOff:   spectrum.Full(reco, 1),
	}
}

func (d *SpectrumDatasetOnOff) Type() string     { return TypeSpectrumOnOff }
func (d *SpectrumDatasetOnOff) StatType() string { return stats.TypeWStat }

// Alpha returns acceptance/acceptance_off per bin; bins without off
// acceptance get zero
func (d *SpectrumDatasetOnOff) Alpha() *spectrum.Map {
	alpha, _ := spectrum.Ratio(d.Acceptance, d.AcceptanceOff, 0)
	return alpha
}

// NPredBackground returns alpha*counts_off, zero without off counts
func (d *SpectrumDatasetOnOff) NPredBackground() *spectrum.Map {
	if d.CountsOff == nil {
		return spectrum.Zeros(d.Counts.Axis)
	}
	bkg := d.Alpha()
	floats.Mul(bkg.Data, d.CountsOff.Data)
	return bkg
}

// BackgroundProfiled returns alpha times the background that maximises the
// likelihood for the current signal prediction
func (d *SpectrumDatasetOnOff) BackgroundProfiled() (*spectrum.Map, error) {
	if d.CountsOff == nil {
		return nil, fmt.Errorf("%w is required for the profiled background", core.ErrMissingCountsOff)
	}
	signal, err := d.NPredSignal("")
	if err != nil {
		return nil, err
	}
	alpha := d.Alpha()
	mu := stats.WStatMuBkgArray(d.Counts.Data, d.CountsOff.Data, alpha.Data, signal.Data)
	floats.Mul(mu, alpha.Data)
	return spectrum.NewMap(d.Counts.Axis, mu)
}

// NPred is the signal plus alpha*counts_off
func (d *SpectrumDatasetOnOff) NPred() (*spectrum.Map, error) {
	npred, err := d.NPredSignal("")
	if err != nil {
		return nil, err
	}
	floats.Add(npred.Data, d.NPredBackground().Data)
	return npred, nil
}

// StatArray returns WSTAT per bin
func (d *SpectrumDatasetOnOff) StatArray() ([]float64, error) {
	if d.CountsOff == nil {
		return nil, fmt.Errorf("%w is required for wstat", core.ErrMissingCountsOff)
	}
	signal, err := d.NPredSignal("")
	if err != nil {
		return nil, err
	}
	return stats.WStatArray(d.Counts.Data, d.CountsOff.Data, d.Alpha().Data, signal.Data), nil
}

// StatSum sums StatArray over Mask
func (d *SpectrumDatasetOnOff) StatSum() (float64, error) {
	arr, err := d.StatArray()
	if err != nil {
		return 0, err
	}
	return maskedSum(arr, d.Mask()), nil
}

// Fake simulates on and off counts for the given background prediction
// (on-region counts). The signal comes from the attached models.
func (d *SpectrumDatasetOnOff) Fake(npredBackground *spectrum.Map, src rand.Source) error {
	if npredBackground.NBin() != d.Counts.NBin() {
		return core.NewShapeError("npred_background", d.Counts.NBin(), npredBackground.NBin())
	}
	signal, err := d.NPredSignal("")
	if err != nil {
		return err
	}
	counts := poisson(signal.Data, src)
	floats.Add(counts, poisson(npredBackground.Data, src))

	alpha := d.Alpha()
	off := make([]float64, len(counts))
	for i, b := range npredBackground.Data {
		if alpha.Data[i] > 0 {
			off[i] = b / alpha.Data[i]
		}
	}

	d.Counts.Data = counts
	d.CountsOff = &spectrum.Map{Axis: d.Counts.Axis.Copy(), Data: poisson(off, src)}
	return nil
}

// ToSpectrumDataset converts to a CASH dataset whose fixed background is
// alpha*counts_off. The models are shared.
func (d *SpectrumDatasetOnOff) ToSpectrumDataset(name string) *SpectrumDataset {
	out := d.SpectrumDataset.Copy(name)
	out.Background = d.NPredBackground()
	out.models = d.models
	return out
}

// Copy returns an independent deep copy, models included
func (d *SpectrumDatasetOnOff) Copy(name string) *SpectrumDatasetOnOff {
	return &SpectrumDatasetOnOff{
		SpectrumDataset: *d.SpectrumDataset.Copy(name),
		CountsOff:       d.CountsOff.Copy(),
		Acceptance:      d.Acceptance.Copy(),
		AcceptanceOff:   d.AcceptanceOff.Copy(),
	}
}

// CopyAs implements Dataset
func (d *SpectrumDatasetOnOff) CopyAs(name string) Dataset {
	return d.Copy(name)
}

// String implements fmt.Stringer
func (d *SpectrumDatasetOnOff) String() string {
	var off float64
	if d.CountsOff != nil {
		off = d.CountsOff.SumMasked(d.MaskSafe)
	}
	return fmt.Sprintf("%s %s: %d bins, %d safe, counts=%.0f counts_off=%.0f", d.Type(), d.name,
		d.Counts.NBin(), d.MaskSafe.Count(), d.Counts.SumMasked(d.MaskSafe), off)
}
