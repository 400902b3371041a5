package dataset

import (
	"fmt"

	"gammastack/domain/core"
	"gammastack/domain/spectrum"

	"gonum.org/v1/gonum/floats"
)

// Stack merges other into d. Only bins inside each dataset's safe mask
// contribute. other is regrouped onto d's reco axis when its binning is a
// refinement of it; other is never modified.
func (d *SpectrumDataset) Stack(other Dataset) error {
	o, ok := other.(*SpectrumDataset)
	if !ok {
		return fmt.Errorf("%w: cannot stack %s into %s", core.ErrIncompatibleType, other.Type(), d.Type())
	}
	o, err := d.align(o)
	if err != nil {
		return err
	}
	if err := d.checkStackable(o); err != nil {
		return err
	}
	return d.stackBase(o)
}

// Stack merges other into d, recomputing alpha so that alpha*counts_off in
// every bin equals the sum of the masked background estimates of both sides
func (d *SpectrumDatasetOnOff) Stack(other Dataset) error {
	o, ok := other.(*SpectrumDatasetOnOff)
	if !ok {
		return fmt.Errorf("%w: cannot stack %s into %s", core.ErrIncompatibleType, other.Type(), d.Type())
	}
	if !d.Counts.Axis.Compatible(o.Counts.Axis) {
		r, err := o.ResampleEnergyAxis(d.Counts.Axis, o.name)
		if err != nil {
			return fmt.Errorf("cannot stack %s onto %s: %w", o.name, d.name, err)
		}
		o = r
	}
	if err := d.checkStackable(&o.SpectrumDataset); err != nil {
		return err
	}
	if err := d.checkOffStackable(o); err != nil {
		return err
	}

	if d.CountsOff != nil && o.CountsOff != nil {
		d.stackOff(o)
	} else {
		d.CountsOff = nil
	}
	return d.stackBase(&o.SpectrumDataset)
}

func (d *SpectrumDataset) align(o *SpectrumDataset) (*SpectrumDataset, error) {
	if d.Counts.Axis.Compatible(o.Counts.Axis) {
		return o, nil
	}
	r, err := o.ResampleEnergyAxis(d.Counts.Axis, o.name)
	if err != nil {
		return nil, fmt.Errorf("cannot stack %s onto %s: %w", o.name, d.name, err)
	}
	return r, nil
}

// checkStackable runs every check before anything is mutated, so a failed
// Stack leaves the receiver untouched
func (d *SpectrumDataset) checkStackable(o *SpectrumDataset) error {
	n := d.Counts.NBin()
	if o.Counts.NBin() != n {
		return core.NewShapeError("counts", n, o.Counts.NBin())
	}
	if d.Exposure != nil && o.Exposure != nil && !d.Exposure.Axis.Compatible(o.Exposure.Axis) {
		return core.NewAxisError("exposure true energy axes differ")
	}
	if d.Edisp != nil && o.Edisp != nil {
		if !d.Edisp.Kernel.TrueAxis.Compatible(o.Edisp.Kernel.TrueAxis) ||
			!d.Edisp.Kernel.RecoAxis.Compatible(o.Edisp.Kernel.RecoAxis) {
			return core.NewAxisError("edisp axes differ")
		}
		if len(o.Edisp.Exposure) != len(d.Edisp.Exposure) {
			return core.NewShapeError("edisp exposure", len(d.Edisp.Exposure), len(o.Edisp.Exposure))
		}
	}
	for _, side := range []*SpectrumDataset{d, o} {
		if side.Background != nil && side.Background.NBin() != n {
			return core.NewShapeError("background", n, side.Background.NBin())
		}
		if side.MaskSafe == nil || len(side.MaskSafe.Data) != n {
			return core.NewShapeError("mask_safe", n, maskLen(side.MaskSafe))
		}
		if side.MaskFit != nil && len(side.MaskFit.Data) != n {
			return core.NewShapeError("mask_fit", n, len(side.MaskFit.Data))
		}
		if side.Edisp != nil && side.Edisp.Kernel.RecoAxis.NBin() != n {
			return core.NewShapeError("edisp reco bins", n, side.Edisp.Kernel.RecoAxis.NBin())
		}
	}
	return nil
}

func (d *SpectrumDatasetOnOff) checkOffStackable(o *SpectrumDatasetOnOff) error {
	n := d.Counts.NBin()
	for _, side := range []*SpectrumDatasetOnOff{d, o} {
		for field, m := range map[string]*spectrum.Map{
			"counts_off":     side.CountsOff,
			"acceptance":     side.Acceptance,
			"acceptance_off": side.AcceptanceOff,
		} {
			if m != nil && m.NBin() != n {
				return core.NewShapeError(field, n, m.NBin())
			}
		}
	}
	return nil
}

func maskLen(m *spectrum.Mask) int {
	if m == nil {
		return 0
	}
	return len(m.Data)
}

// stackOff merges the off counts and acceptances. It must run before
// stackBase, which widens the safe mask.
func (d *SpectrumDatasetOnOff) stackOff(o *SpectrumDatasetOnOff) {
	maskA, maskB := d.MaskSafe.Data, o.MaskSafe.Data
	alphaA, alphaB := d.Alpha().Data, o.Alpha().Data

	n := len(maskA)
	totalOff := make([]float64, n)
	totalAlpha := make([]float64, n)
	for i := 0; i < n; i++ {
		if maskA[i] {
			totalOff[i] += d.CountsOff.Data[i]
			totalAlpha[i] += alphaA[i] * d.CountsOff.Data[i]
		}
		if maskB[i] {
			totalOff[i] += o.CountsOff.Data[i]
			totalAlpha[i] += alphaB[i] * o.CountsOff.Data[i]
		}
	}

	wA, wB := exposureWeight(&d.SpectrumDataset), exposureWeight(&o.SpectrumDataset)
	fallback := func(i int) float64 {
		var num, den float64
		if maskA[i] {
			num += wA * alphaA[i]
			den += wA
		}
		if maskB[i] {
			num += wB * alphaB[i]
			den += wB
		}
		if den > 0 {
			return num / den
		}
		return alphaA[i]
	}
	alpha := stackedAlpha(totalAlpha, totalOff, fallback)

	reco := d.Counts.Axis
	d.CountsOff.Data = totalOff
	d.Acceptance = spectrum.Zeros(reco)
	d.AcceptanceOff = spectrum.Full(reco, 1)
	for i, a := range alpha {
		if a > 0 {
			d.Acceptance.Data[i] = 1
			d.AcceptanceOff.Data[i] = 1 / a
		}
	}
}

// stackedAlpha divides the off-count weighted alpha sum by the off counts.
// Bins without off counts use the global ratio, then fallback.
func stackedAlpha(totalAlpha, totalOff []float64, fallback func(int) float64) []float64 {
	sumAlpha, sumOff := floats.Sum(totalAlpha), floats.Sum(totalOff)
	out := make([]float64, len(totalOff))
	for i := range out {
		switch {
		case totalOff[i] > 0:
			out[i] = totalAlpha[i] / totalOff[i]
		case sumOff > 0:
			out[i] = sumAlpha / sumOff
		default:
			out[i] = fallback(i)
		}
	}
	return out
}

// exposureWeight is the summed exposure of a dataset with any safe bin.
// Datasets without exposure weigh 1.
func exposureWeight(d *SpectrumDataset) float64 {
	if !d.MaskSafe.Any() {
		return 0
	}
	if d.Exposure == nil {
		return 1
	}
	return d.Exposure.Sum()
}

// stackBase merges the components shared by every dataset kind. Callers
// run checkStackable first.
func (d *SpectrumDataset) stackBase(o *SpectrumDataset) error {
	maskA, maskB := d.MaskSafe, o.MaskSafe
	anyA, anyB := maskA.Any(), maskB.Any()

	d.Counts.ApplyMask(maskA)
	if err := d.Counts.Stack(o.Counts, maskB); err != nil {
		return fmt.Errorf("stacking counts of %s: %w", o.name, err)
	}

	switch {
	case d.Background != nil && o.Background != nil:
		d.Background.ApplyMask(maskA)
		if err := d.Background.Stack(o.Background, maskB); err != nil {
			return fmt.Errorf("stacking background of %s: %w", o.name, err)
		}
	case d.Background != nil:
		d.Background.ApplyMask(maskA)
	case o.Background != nil:
		d.Background = o.Background.Copy().ApplyMask(maskB)
	}

	switch {
	case d.Exposure != nil && o.Exposure != nil:
		stackExposure(d.Exposure, anyA, o.Exposure, anyB)
	case d.Exposure != nil:
		if !anyA {
			zeroExposure(d.Exposure)
		}
	case o.Exposure != nil:
		d.Exposure = o.Exposure.Copy()
		if !anyB {
			zeroExposure(d.Exposure)
		}
	}

	// the kernel weights follow the stacked exposure: a side without
	// safe bins carries no weight
	switch {
	case d.Edisp != nil && o.Edisp != nil:
		other := o.Edisp
		if !anyB {
			other = o.Edisp.Copy()
			floats.Scale(0, other.Exposure)
		}
		if !anyA {
			floats.Scale(0, d.Edisp.Exposure)
		}
		if err := d.Edisp.Stack(other, maskA.Data, maskB.Data); err != nil {
			return fmt.Errorf("stacking edisp of %s: %w", o.name, err)
		}
	case d.Edisp != nil:
		d.Edisp.ApplyMask(maskA.Data)
		if !anyA {
			floats.Scale(0, d.Edisp.Exposure)
		}
	case o.Edisp != nil:
		d.Edisp = o.Edisp.Copy()
		d.Edisp.ApplyMask(maskB.Data)
		if !anyB {
			floats.Scale(0, d.Edisp.Exposure)
		}
	}

	switch {
	case d.GTI != nil && o.GTI != nil:
		d.GTI.Stack(o.GTI)
		d.GTI = d.GTI.Union()
	case o.GTI != nil:
		d.GTI = o.GTI.Copy()
	}

	d.MetaTable = append(d.MetaTable, copyMeta(o.MetaTable)...)

	if d.MaskFit != nil && o.MaskFit != nil {
		if err := d.MaskFit.Or(o.MaskFit); err != nil {
			return fmt.Errorf("stacking mask_fit of %s: %w", o.name, err)
		}
	} else {
		d.MaskFit = nil
	}
	if err := d.MaskSafe.Or(maskB); err != nil {
		return fmt.Errorf("stacking mask_safe of %s: %w", o.name, err)
	}
	return nil
}

// stackExposure sums b into a; a side without safe bins contributes
// nothing. Livetime is summed when both sides track it.
func stackExposure(a *spectrum.Map, anyA bool, b *spectrum.Map, anyB bool) {
	liveA, okA := a.MetaValue(spectrum.MetaLivetime)
	liveB, okB := b.MetaValue(spectrum.MetaLivetime)
	if !anyA {
		a.Scale(0)
		liveA = 0
	}
	if anyB {
		floats.Add(a.Data, b.Data)
	} else {
		liveB = 0
	}
	if okA && okB {
		a.SetMeta(spectrum.MetaLivetime, liveA+liveB)
	} else {
		delete(a.Meta, spectrum.MetaLivetime)
	}
}

func zeroExposure(m *spectrum.Map) {
	m.Scale(0)
	if _, ok := m.MetaValue(spectrum.MetaLivetime); ok {
		m.SetMeta(spectrum.MetaLivetime, 0)
	}
}
