package dataset

import (
	"gammastack/domain/axis"
	"gammastack/domain/spectrum"
)

// ResampleEnergyAxis groups the reco bins onto coarse, whose edges must be
// a subset of the current edges. Bins outside the safe mask are dropped
// from the sums; the new safe mask is the OR inside each group. Exposure
// lives on true energy and is kept as is. Models are not carried over.
func (d *SpectrumDataset) ResampleEnergyAxis(coarse *axis.EnergyAxis, name string) (*SpectrumDataset, error) {
	coarse = coarse.WithKind(d.Counts.Axis.Kind)
	weights := d.MaskSafe

	out := &SpectrumDataset{
		Exposure:  d.Exposure.Copy(),
		GTI:       d.GTI.Copy(),
		MetaTable: copyMeta(d.MetaTable),
		name:      name,
	}
	if out.name == "" {
		out.name = d.name
	}

	var err error
	if out.Counts, err = d.Counts.Resample(coarse, weights); err != nil {
		return nil, err
	}
	if out.MaskSafe, err = d.MaskSafe.Resample(coarse); err != nil {
		return nil, err
	}
	if d.MaskFit != nil {
		if out.MaskFit, err = d.MaskFit.Resample(coarse); err != nil {
			return nil, err
		}
	}
	if d.Background != nil {
		if out.Background, err = d.Background.Resample(coarse, weights); err != nil {
			return nil, err
		}
	}
	if d.Edisp != nil {
		reco := coarse.WithKind(d.Edisp.Kernel.RecoAxis.Kind)
		if out.Edisp, err = d.Edisp.Resample(reco, weights.Data); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func fillUnweighted(grouped, fine *spectrum.Map) error {
	plain, err := fine.Resample(grouped.Axis, nil)
	if err != nil {
		return err
	}
	for i, v := range grouped.Data {
		if v <= 0 {
			grouped.Data[i] = plain.Data[i]
		}
	}
	return nil
}

// ToImage collapses the reco axis into a single bin
func (d *SpectrumDataset) ToImage(name string) (*SpectrumDataset, error) {
	return d.ResampleEnergyAxis(d.Counts.Axis.Squash(), name)
}

// ResampleEnergyAxis groups the reco bins onto coarse. Acceptance and off
// counts are summed; acceptance_off is then chosen so that alpha*counts_off
// reproduces the summed background estimate of each group.
func (d *SpectrumDatasetOnOff) ResampleEnergyAxis(coarse *axis.EnergyAxis, name string) (*SpectrumDatasetOnOff, error) {
	base, err := d.SpectrumDataset.ResampleEnergyAxis(coarse, name)
	if err != nil {
		return nil, err
	}
	coarse = base.Counts.Axis
	weights := d.MaskSafe
	out := &SpectrumDatasetOnOff{SpectrumDataset: *base}

	if out.Acceptance, err = d.Acceptance.Resample(coarse, weights); err != nil {
		return nil, err
	}
	accOff, err := d.AcceptanceOff.Resample(coarse, weights)
	if err != nil {
		return nil, err
	}
	// groups without safe bins keep the plain sums so acceptances stay positive
	if err := fillUnweighted(out.Acceptance, d.Acceptance); err != nil {
		return nil, err
	}
	if err := fillUnweighted(accOff, d.AcceptanceOff); err != nil {
		return nil, err
	}
	if d.CountsOff == nil {
		out.AcceptanceOff = accOff
		return out, nil
	}

	if out.CountsOff, err = d.CountsOff.Resample(coarse, weights); err != nil {
		return nil, err
	}
	bkg, err := d.NPredBackground().Resample(coarse, weights)
	if err != nil {
		return nil, err
	}

	out.AcceptanceOff = spectrum.Zeros(coarse)
	for i := range out.AcceptanceOff.Data {
		if bkg.Data[i] > 0 {
			out.AcceptanceOff.Data[i] = out.Acceptance.Data[i] * out.CountsOff.Data[i] / bkg.Data[i]
			continue
		}
		out.AcceptanceOff.Data[i] = accOff.Data[i]
	}
	return out, nil
}

// ToImage collapses the reco axis into a single bin
func (d *SpectrumDatasetOnOff) ToImage(name string) (*SpectrumDatasetOnOff, error) {
	return d.ResampleEnergyAxis(d.Counts.Axis.Squash(), name)
}
