package edisp

import (
	"gammastack/domain/axis"
	"gammastack/domain/core"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// KernelMap pairs a kernel with the exposure (cm² s, per true bin) that
// weights it when kernels are combined.
type KernelMap struct {
	Kernel   *Kernel
	Exposure []float64
}

// NewKernelMap wraps k with unit exposure
func NewKernelMap(k *Kernel) *KernelMap {
	exposure := make([]float64, k.TrueAxis.NBin())
	for i := range exposure {
		exposure[i] = 1
	}
	return &KernelMap{Kernel: k, Exposure: exposure}
}

// NewKernelMapWithExposure wraps k with the given exposure weights
func NewKernelMapWithExposure(k *Kernel, exposure []float64) (*KernelMap, error) {
	if len(exposure) != k.TrueAxis.NBin() {
		return nil, core.NewShapeError("edisp exposure", k.TrueAxis.NBin(), len(exposure))
	}
	return &KernelMap{Kernel: k, Exposure: append([]float64(nil), exposure...)}, nil
}

// Copy returns a deep copy
func (m *KernelMap) Copy() *KernelMap {
	if m == nil {
		return nil
	}
	return &KernelMap{Kernel: m.Kernel.Copy(), Exposure: append([]float64(nil), m.Exposure...)}
}

// Stack merges other into m. Each matrix row becomes the exposure weighted
// average of both rows; weights select the reco bins each side contributes.
// Rows without exposure on either side are left zero.
func (m *KernelMap) Stack(other *KernelMap, selfWeights, otherWeights []bool) error {
	if !m.Kernel.TrueAxis.Compatible(other.Kernel.TrueAxis) {
		return core.NewAxisError("edisp true energy axes differ")
	}
	if !m.Kernel.RecoAxis.Compatible(other.Kernel.RecoAxis) {
		return core.NewAxisError("edisp reco energy axes differ")
	}
	nTrue, nReco := m.Kernel.PDF.Dims()
	if err := checkWeights(nReco, selfWeights, otherWeights); err != nil {
		return err
	}

	pdf := mat.NewDense(nTrue, nReco, nil)
	for i := 0; i < nTrue; i++ {
		ea, eb := m.Exposure[i], other.Exposure[i]
		total := ea + eb
		if total == 0 {
			continue
		}
		for j := 0; j < nReco; j++ {
			var v float64
			if selfWeights == nil || selfWeights[j] {
				v += ea * m.Kernel.PDF.At(i, j)
			}
			if otherWeights == nil || otherWeights[j] {
				v += eb * other.Kernel.PDF.At(i, j)
			}
			pdf.Set(i, j, v/total)
		}
	}
	m.Kernel.PDF = pdf
	floats.Add(m.Exposure, other.Exposure)
	return nil
}

// Resample groups the reco axis onto coarse; exposure is unchanged
func (m *KernelMap) Resample(coarse *axis.EnergyAxis, weights []bool) (*KernelMap, error) {
	k, err := m.Kernel.ResampleReco(coarse, weights)
	if err != nil {
		return nil, err
	}
	return &KernelMap{Kernel: k, Exposure: append([]float64(nil), m.Exposure...)}, nil
}

// ApplyMask zeroes the columns of reco bins outside mask
func (m *KernelMap) ApplyMask(mask []bool) {
	nTrue, _ := m.Kernel.PDF.Dims()
	for j, ok := range mask {
		if ok {
			continue
		}
		for i := 0; i < nTrue; i++ {
			m.Kernel.PDF.Set(i, j, 0)
		}
	}
}

func checkWeights(n int, weights ...[]bool) error {
	for _, w := range weights {
		if w != nil && len(w) != n {
			return core.NewShapeError("edisp weights", n, len(w))
		}
	}
	return nil
}
