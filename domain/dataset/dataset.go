// Package dataset implements spectrum datasets: binned on-region counts with
// the exposure, energy dispersion and background needed to predict them, and
// the stacking that merges observations into one equivalent dataset.
package dataset

import (
	"gammastack/domain/model"
	"gammastack/domain/spectrum"
)

// Dataset type tags
const (
	TypeSpectrum      = "SpectrumDataset"
	TypeSpectrumOnOff = "SpectrumDatasetOnOff"
)

// Dataset is the behaviour shared by every dataset kind the fit engine and
// the Datasets collection work with
type Dataset interface {
	Name() string
	Type() string
	StatType() string
	// StatArray returns the fit statistic of every bin, masked or not
	StatArray() ([]float64, error)
	// StatSum sums StatArray over the safe and fit masks
	StatSum() (float64, error)
	Models() *model.Models
	SetModels(models *model.Models)
	Mask() *spectrum.Mask
	Info() Info
	// Stack merges other into the receiver; other is never modified
	Stack(other Dataset) error
	CopyAs(name string) Dataset
}

// MetaRow is one row of free-form per-observation bookkeeping
type MetaRow map[string]string

func copyMeta(rows []MetaRow) []MetaRow {
	if rows == nil {
		return nil
	}
	out := make([]MetaRow, len(rows))
	for i, r := range rows {
		cp := make(MetaRow, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}
