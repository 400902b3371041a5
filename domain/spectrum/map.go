// Package spectrum provides the region maps every spectrum dataset is built
// from: one value per energy bin of a single on (or off) region.
package spectrum

import (
	"fmt"

	"gammastack/domain/axis"
	"gammastack/domain/core"

	"gonum.org/v1/gonum/floats"
)

// MetaLivetime is the meta key holding accumulated livetime (s)
const MetaLivetime = "livetime"

// Map is a region map: a value per energy bin
type Map struct {
	Axis *axis.EnergyAxis
	Data []float64
	Meta map[string]float64
}

// NewMap wraps data (copied) over ax
func NewMap(ax *axis.EnergyAxis, data []float64) (*Map, error) {
	if len(data) != ax.NBin() {
		return nil, core.NewShapeError(fmt.Sprintf("%s map", ax.Kind), ax.NBin(), len(data))
	}
	cp := make([]float64, len(data))
	copy(cp, data)
	return &Map{Axis: ax.Copy(), Data: cp}, nil
}

// Zeros creates a zero-filled map
func Zeros(ax *axis.EnergyAxis) *Map {
	return &Map{Axis: ax.Copy(), Data: make([]float64, ax.NBin())}
}

// Full creates a map filled with v
func Full(ax *axis.EnergyAxis, v float64) *Map {
	m := Zeros(ax)
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

// NBin returns the number of bins
func (m *Map) NBin() int {
	return len(m.Data)
}

// Copy returns a deep copy
func (m *Map) Copy() *Map {
	if m == nil {
		return nil
	}
	data := make([]float64, len(m.Data))
	copy(data, m.Data)
	var meta map[string]float64
	if m.Meta != nil {
		meta = make(map[string]float64, len(m.Meta))
		for k, v := range m.Meta {
			meta[k] = v
		}
	}
	return &Map{Axis: m.Axis.Copy(), Data: data, Meta: meta}
}

// SetMeta records a meta value
func (m *Map) SetMeta(key string, v float64) {
	if m.Meta == nil {
		m.Meta = make(map[string]float64)
	}
	m.Meta[key] = v
}

// MetaValue returns a meta value and whether it is tracked
func (m *Map) MetaValue(key string) (float64, bool) {
	if m == nil || m.Meta == nil {
		return 0, false
	}
	v, ok := m.Meta[key]
	return v, ok
}

// Sum returns the sum over all bins
func (m *Map) Sum() float64 {
	return floats.Sum(m.Data)
}

// SumMasked returns the sum over bins where mask is true
func (m *Map) SumMasked(mask *Mask) float64 {
	if mask == nil {
		return m.Sum()
	}
	var s float64
	for i, v := range m.Data {
		if mask.Data[i] {
			s += v
		}
	}
	return s
}

// Scale multiplies every bin by f in place
func (m *Map) Scale(f float64) *Map {
	floats.Scale(f, m.Data)
	return m
}

// ApplyMask zeroes bins outside mask in place
func (m *Map) ApplyMask(mask *Mask) *Map {
	if mask == nil {
		return m
	}
	for i := range m.Data {
		if !mask.Data[i] {
			m.Data[i] = 0
		}
	}
	return m
}

// Add adds other bin by bin in place
func (m *Map) Add(other *Map) error {
	if err := m.checkShape(other); err != nil {
		return err
	}
	floats.Add(m.Data, other.Data)
	return nil
}

// Mul multiplies by other bin by bin in place
func (m *Map) Mul(other *Map) error {
	if err := m.checkShape(other); err != nil {
		return err
	}
	floats.Mul(m.Data, other.Data)
	return nil
}

// Stack adds other*weights in place; a nil weights mask means all bins
func (m *Map) Stack(other *Map, weights *Mask) error {
	if err := m.checkShape(other); err != nil {
		return err
	}
	for i, v := range other.Data {
		if weights == nil || weights.Data[i] {
			m.Data[i] += v
		}
	}
	return nil
}

// Resample sums bins into the coarser axis; bins outside weights are dropped
func (m *Map) Resample(coarse *axis.EnergyAxis, weights *Mask) (*Map, error) {
	idx, err := m.Axis.GroupIndices(coarse)
	if err != nil {
		return nil, err
	}
	out := Zeros(coarse)
	for i, k := range idx {
		if k < 0 || (weights != nil && !weights.Data[i]) {
			continue
		}
		out.Data[k] += m.Data[i]
	}
	if m.Meta != nil {
		for key, v := range m.Meta {
			out.SetMeta(key, v)
		}
	}
	return out, nil
}

// Ratio returns m / other per bin; bins where other is zero get fill
func Ratio(m, other *Map, fill float64) (*Map, error) {
	if err := m.checkShape(other); err != nil {
		return nil, err
	}
	out := Zeros(m.Axis)
	for i := range out.Data {
		if other.Data[i] == 0 {
			out.Data[i] = fill
			continue
		}
		out.Data[i] = m.Data[i] / other.Data[i]
	}
	return out, nil
}

func (m *Map) checkShape(other *Map) error {
	if other == nil {
		return core.NewMissingComponentError("map", "elementwise operation")
	}
	if len(other.Data) != len(m.Data) {
		return core.NewShapeError("map", len(m.Data), len(other.Data))
	}
	return nil
}
