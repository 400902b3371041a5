package fit

import (
	"context"
	"math"

	"gammastack/internal/errors"
)

// Profile is the total statistic scanned over one parameter
type Profile struct {
	Parameter string
	Values    []float64
	StatScan  []float64
	// FitSuccess is only filled when the other parameters were re-optimised
	FitSuccess []bool
}

// Min returns the scanned value with the lowest statistic
func (p *Profile) Min() (value, stat float64) {
	stat = math.Inf(1)
	value = math.NaN()
	for i, s := range p.StatScan {
		if s < stat {
			value, stat = p.Values[i], s
		}
	}
	return value, stat
}

// StatProfile evaluates the total statistic with the named parameter fixed
// at each of values. With reoptimize set the remaining free parameters are
// fitted at every point. All parameters are restored afterwards.
func (f *Fit) StatProfile(ctx context.Context, name string, values []float64, reoptimize bool) (*Profile, error) {
	all := f.datasets.Parameters()
	par, err := all.Get(name)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.ValidationError("profile needs at least one value")
	}

	saved := all.Values()
	frozen := par.Frozen
	defer func() {
		_ = all.SetValues(saved)
		par.Frozen = frozen
	}()
	par.Frozen = true

	f.logger.Debug("Profiling %s over %d values (reoptimize=%t)", name, len(values), reoptimize)
	profile := &Profile{Parameter: name, Values: append([]float64(nil), values...)}
	for _, v := range values {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_ = all.SetValues(saved)
		par.Value = v

		if reoptimize {
			res, err := f.Optimize(ctx)
			if err != nil {
				return nil, err
			}
			profile.StatScan = append(profile.StatScan, res.TotalStat)
			profile.FitSuccess = append(profile.FitSuccess, res.Success)
			continue
		}

		stat, err := f.datasets.StatSum()
		if err != nil {
			return nil, err
		}
		profile.StatScan = append(profile.StatScan, stat)
	}
	return profile, nil
}
