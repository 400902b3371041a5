// Package edisp implements the energy dispersion kernel: the response matrix
// that maps counts in true-energy bins onto reconstructed-energy bins.
package edisp

import (
	"fmt"
	"math"

	"gammastack/domain/axis"
	"gammastack/domain/core"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// rowTolerance bounds how far a row may exceed unit probability
const rowTolerance = 1e-6

// Kernel is a migration matrix with one row per true bin and one column per
// reco bin. Rows sum to at most one.
type Kernel struct {
	TrueAxis *axis.EnergyAxis
	RecoAxis *axis.EnergyAxis
	PDF      *mat.Dense
}

// NewKernel validates data (nTrue rows of nReco values) and builds a kernel
func NewKernel(trueAxis, recoAxis *axis.EnergyAxis, data [][]float64) (*Kernel, error) {
	nTrue, nReco := trueAxis.NBin(), recoAxis.NBin()
	if len(data) != nTrue {
		return nil, core.NewShapeError("edisp true axis", nTrue, len(data))
	}
	pdf := mat.NewDense(nTrue, nReco, nil)
	for i, row := range data {
		if len(row) != nReco {
			return nil, core.NewShapeError(fmt.Sprintf("edisp row %d", i), nReco, len(row))
		}
		var sum float64
		for j, v := range row {
			if v < 0 || math.IsNaN(v) {
				return nil, core.NewValidationError("edisp", fmt.Sprintf("invalid probability %g at (%d, %d)", v, i, j))
			}
			sum += v
		}
		if sum > 1+rowTolerance {
			return nil, core.NewValidationError("edisp", fmt.Sprintf("row %d sums to %g", i, sum))
		}
		pdf.SetRow(i, row)
	}
	return &Kernel{TrueAxis: trueAxis.WithKind(axis.True), RecoAxis: recoAxis.WithKind(axis.Reco), PDF: pdf}, nil
}

// Diagonal builds the kernel of a perfect detector: each true bin migrates
// into the reco bins it overlaps, in proportion to the overlap.
func Diagonal(recoAxis, trueAxis *axis.EnergyAxis) *Kernel {
	nTrue, nReco := trueAxis.NBin(), recoAxis.NBin()
	pdf := mat.NewDense(nTrue, nReco, nil)
	for i := 0; i < nTrue; i++ {
		tlo, thi := trueAxis.Lo(i), trueAxis.Hi(i)
		for j := 0; j < nReco; j++ {
			overlap := math.Min(thi, recoAxis.Hi(j)) - math.Max(tlo, recoAxis.Lo(j))
			if overlap > 0 {
				pdf.Set(i, j, overlap/(thi-tlo))
			}
		}
	}
	return &Kernel{TrueAxis: trueAxis.WithKind(axis.True), RecoAxis: recoAxis.WithKind(axis.Reco), PDF: pdf}
}

// Gaussian builds a kernel whose migration e_reco/e_true is normally
// distributed with mean 1+bias and width sigma.
func Gaussian(recoAxis, trueAxis *axis.EnergyAxis, sigma, bias float64) (*Kernel, error) {
	if !(sigma > 0) {
		return nil, core.NewValidationError("sigma", fmt.Sprintf("must be positive, got %g", sigma))
	}
	nTrue, nReco := trueAxis.NBin(), recoAxis.NBin()
	pdf := mat.NewDense(nTrue, nReco, nil)
	migra := distuv.Normal{Mu: 1 + bias, Sigma: sigma}
	for i := 0; i < nTrue; i++ {
		et := trueAxis.Center(i)
		for j := 0; j < nReco; j++ {
			p := migra.CDF(recoAxis.Hi(j)/et) - migra.CDF(recoAxis.Lo(j)/et)
			if p > 0 {
				pdf.Set(i, j, p)
			}
		}
	}
	return &Kernel{TrueAxis: trueAxis.WithKind(axis.True), RecoAxis: recoAxis.WithKind(axis.Reco), PDF: pdf}, nil
}

// Apply folds a true-energy spectrum through the kernel
func (k *Kernel) Apply(trueCounts []float64) ([]float64, error) {
	nTrue, nReco := k.PDF.Dims()
	if len(trueCounts) != nTrue {
		return nil, core.NewShapeError("true-energy counts", nTrue, len(trueCounts))
	}
	in := mat.NewVecDense(nTrue, append([]float64(nil), trueCounts...))
	out := mat.NewVecDense(nReco, nil)
	out.MulVec(k.PDF.T(), in)
	return out.RawVector().Data, nil
}

// Row returns a copy of the migration probabilities of true bin i
func (k *Kernel) Row(i int) []float64 {
	return mat.Row(nil, i, k.PDF)
}

// Rows returns the matrix as nested slices
func (k *Kernel) Rows() [][]float64 {
	n, _ := k.PDF.Dims()
	out := make([][]float64, n)
	for i := range out {
		out[i] = k.Row(i)
	}
	return out
}

// Bias returns the mean relative migration (e_reco - e_true)/e_true for the
// true bin containing energy
func (k *Kernel) Bias(energy float64) float64 {
	migra, weights, ok := k.migration(energy)
	if !ok {
		return math.NaN()
	}
	return stat.Mean(migra, weights) - 1
}

// Resolution returns the width of the relative migration for the true bin
// containing energy
func (k *Kernel) Resolution(energy float64) float64 {
	migra, weights, ok := k.migration(energy)
	if !ok {
		return math.NaN()
	}
	_, std := stat.PopMeanStdDev(migra, weights)
	return std
}

func (k *Kernel) migration(energy float64) ([]float64, []float64, bool) {
	i := k.TrueAxis.Coord(energy)
	if i < 0 {
		return nil, nil, false
	}
	et := k.TrueAxis.Center(i)
	weights := k.Row(i)
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return nil, nil, false
	}
	migra := make([]float64, len(weights))
	for j := range migra {
		migra[j] = k.RecoAxis.Center(j) / et
	}
	return migra, weights, true
}

// Copy returns a deep copy
func (k *Kernel) Copy() *Kernel {
	if k == nil {
		return nil
	}
	return &Kernel{TrueAxis: k.TrueAxis.Copy(), RecoAxis: k.RecoAxis.Copy(), PDF: mat.DenseCopyOf(k.PDF)}
}

// ResampleReco sums columns into the coarser reco axis. Columns with a false
// weight are dropped; a nil weights slice keeps every column.
func (k *Kernel) ResampleReco(coarse *axis.EnergyAxis, weights []bool) (*Kernel, error) {
	idx, err := k.RecoAxis.GroupIndices(coarse)
	if err != nil {
		return nil, err
	}
	if weights != nil && len(weights) != len(idx) {
		return nil, core.NewShapeError("edisp weights", len(idx), len(weights))
	}
	nTrue, _ := k.PDF.Dims()
	pdf := mat.NewDense(nTrue, coarse.NBin(), nil)
	for i := 0; i < nTrue; i++ {
		for j, c := range idx {
			if c < 0 || (weights != nil && !weights[j]) {
				continue
			}
			pdf.Set(i, c, pdf.At(i, c)+k.PDF.At(i, j))
		}
	}
	return &Kernel{TrueAxis: k.TrueAxis.Copy(), RecoAxis: coarse.Copy(), PDF: pdf}, nil
}

// String implements fmt.Stringer
func (k *Kernel) String() string {
	r, c := k.PDF.Dims()
	return fmt.Sprintf("EDispKernel: %d true x %d reco bins", r, c)
}
