package spectrum

import (
	"gammastack/domain/axis"
	"gammastack/domain/core"
)

// Mask is a boolean region map; true bins are included
type Mask struct {
	Axis *axis.EnergyAxis
	Data []bool
}

// NewMask wraps data (copied) over ax
func NewMask(ax *axis.EnergyAxis, data []bool) (*Mask, error) {
	if len(data) != ax.NBin() {
		return nil, core.NewShapeError("mask", ax.NBin(), len(data))
	}
	cp := make([]bool, len(data))
	copy(cp, data)
	return &Mask{Axis: ax.Copy(), Data: cp}, nil
}

// AllTrue creates a mask including every bin
func AllTrue(ax *axis.EnergyAxis) *Mask {
	m := AllFalse(ax)
	for i := range m.Data {
		m.Data[i] = true
	}
	return m
}

// AllFalse creates a mask excluding every bin
func AllFalse(ax *axis.EnergyAxis) *Mask {
	return &Mask{Axis: ax.Copy(), Data: make([]bool, ax.NBin())}
}

// Copy returns a deep copy
func (m *Mask) Copy() *Mask {
	if m == nil {
		return nil
	}
	data := make([]bool, len(m.Data))
	copy(data, m.Data)
	return &Mask{Axis: m.Axis.Copy(), Data: data}
}

// Or sets m |= other in place
func (m *Mask) Or(other *Mask) error {
	if len(other.Data) != len(m.Data) {
		return core.NewShapeError("mask", len(m.Data), len(other.Data))
	}
	for i, v := range other.Data {
		m.Data[i] = m.Data[i] || v
	}
	return nil
}

// And returns the intersection; a nil operand is ignored
func And(a, b *Mask) *Mask {
	switch {
	case a == nil:
		return b.Copy()
	case b == nil:
		return a.Copy()
	}
	out := a.Copy()
	for i := range out.Data {
		out.Data[i] = a.Data[i] && b.Data[i]
	}
	return out
}

// Any reports whether any bin is included
func (m *Mask) Any() bool {
	for _, v := range m.Data {
		if v {
			return true
		}
	}
	return false
}

// Count returns the number of included bins
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Float returns the mask as 0/1 weights
func (m *Mask) Float() []float64 {
	out := make([]float64, len(m.Data))
	for i, v := range m.Data {
		if v {
			out[i] = 1
		}
	}
	return out
}

// Resample ORs bins inside each coarse bin
func (m *Mask) Resample(coarse *axis.EnergyAxis) (*Mask, error) {
	idx, err := m.Axis.GroupIndices(coarse)
	if err != nil {
		return nil, err
	}
	out := AllFalse(coarse)
	for i, k := range idx {
		if k >= 0 && m.Data[i] {
			out.Data[k] = true
		}
	}
	return out, nil
}
