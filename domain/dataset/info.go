package dataset

import (
	"math"

	"gammastack/domain/spectrum"
	"gammastack/domain/stats"

	mstats "github.com/montanaflynn/stats"
)

// Info summarises a dataset over its safe mask. The off-region fields are
// only filled for on/off datasets.
type Info struct {
	Name            string  `json:"name" yaml:"name"`
	Counts          float64 `json:"counts" yaml:"counts"`
	Background      float64 `json:"background" yaml:"background"`
	Excess          float64 `json:"excess" yaml:"excess"`
	SqrtTS          float64 `json:"sqrt_ts" yaml:"sqrt_ts"`
	NPred           float64 `json:"npred" yaml:"npred"`
	NPredBackground float64 `json:"npred_background" yaml:"npred_background"`
	NPredSignal     float64 `json:"npred_signal" yaml:"npred_signal"`
	ExposureMin     float64 `json:"exposure_min" yaml:"exposure_min"`
	ExposureMax     float64 `json:"exposure_max" yaml:"exposure_max"`
	Livetime        float64 `json:"livetime" yaml:"livetime"`
	Ontime          float64 `json:"ontime" yaml:"ontime"`
	CountsRate      float64 `json:"counts_rate" yaml:"counts_rate"`
	BackgroundRate  float64 `json:"background_rate" yaml:"background_rate"`
	ExcessRate      float64 `json:"excess_rate" yaml:"excess_rate"`
	NBins           int     `json:"n_bins" yaml:"n_bins"`
	NFitBins        int     `json:"n_fit_bins" yaml:"n_fit_bins"`
	StatType        string  `json:"stat_type" yaml:"stat_type"`
	StatSum         float64 `json:"stat_sum" yaml:"stat_sum"`

	CountsOff     float64 `json:"counts_off,omitempty" yaml:"counts_off,omitempty"`
	Acceptance    float64 `json:"acceptance,omitempty" yaml:"acceptance,omitempty"`
	AcceptanceOff float64 `json:"acceptance_off,omitempty" yaml:"acceptance_off,omitempty"`
	Alpha         float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
}

// Info summarises the dataset; the significance uses CASH against the
// background prediction
func (d *SpectrumDataset) Info() Info {
	info := d.baseInfo()
	info.Background = d.NPredBackground().SumMasked(d.MaskSafe)
	s := stats.CashCountsStatistic{NOn: info.Counts, MuBkg: info.Background}
	info.Excess = s.Excess()
	info.SqrtTS = s.SqrtTS()
	info.fillPredictions(d.NPredSignal, info.Background, d.MaskSafe)
	info.StatSum = statSumOrNaN(d.StatSum)
	info.fillRates()
	return info
}

// Info adds the off-region sums; the significance uses WSTAT with the
// off-count weighted alpha
func (d *SpectrumDatasetOnOff) Info() Info {
	info := d.baseInfo()
	info.StatType = d.StatType()
	mask := d.MaskSafe

	info.Acceptance = d.Acceptance.SumMasked(mask)
	alpha := d.Alpha()
	if d.CountsOff != nil {
		on := maskedValues(d.Counts.Data, mask.Data)
		off := maskedValues(d.CountsOff.Data, mask.Data)
		s := stats.SumWStat(on, off, maskedValues(alpha.Data, mask.Data))
		info.CountsOff = s.NOff
		info.Alpha = s.Alpha
		info.Background = s.Background()
		info.Excess = s.Excess()
		info.SqrtTS = s.SqrtTS()
	} else {
		info.Excess = info.Counts
	}
	if info.Alpha > 0 {
		info.AcceptanceOff = info.Acceptance / info.Alpha
	}
	info.fillPredictions(d.NPredSignal, d.NPredBackground().SumMasked(mask), mask)
	info.StatSum = statSumOrNaN(d.StatSum)
	info.fillRates()
	return info
}

func (d *SpectrumDataset) baseInfo() Info {
	info := Info{
		Name:     d.name,
		Counts:   d.Counts.SumMasked(d.MaskSafe),
		NBins:    d.Counts.NBin(),
		NFitBins: d.Mask().Count(),
		StatType: d.StatType(),
		Ontime:   d.Ontime(),
	}
	info.Livetime, _ = d.Livetime()
	if d.Exposure != nil {
		info.ExposureMin, info.ExposureMax = exposureRange(d.Exposure.Data)
	}
	return info
}

func (info *Info) fillPredictions(signal func(string) (*spectrum.Map, error), background float64, mask *spectrum.Mask) {
	info.NPredBackground = background
	info.NPred = background
	if npred, err := signal(""); err == nil {
		info.NPredSignal = npred.SumMasked(mask)
		info.NPred += info.NPredSignal
	}
}

func (info *Info) fillRates() {
	if info.Livetime <= 0 {
		return
	}
	info.CountsRate = info.Counts / info.Livetime
	info.BackgroundRate = info.Background / info.Livetime
	info.ExcessRate = info.Excess / info.Livetime
}

// exposureRange returns the smallest and largest non-zero exposure
func exposureRange(data []float64) (float64, float64) {
	var positive mstats.Float64Data
	for _, v := range data {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	lo, err := mstats.Min(positive)
	if err != nil {
		return 0, 0
	}
	hi, _ := mstats.Max(positive)
	return lo, hi
}

func maskedValues(values []float64, mask []bool) []float64 {
	out := make([]float64, 0, len(values))
	for i, v := range values {
		if mask[i] {
			out = append(out, v)
		}
	}
	return out
}

func statSumOrNaN(f func() (float64, error)) float64 {
	v, err := f()
	if err != nil {
		return math.NaN()
	}
	return v
}
