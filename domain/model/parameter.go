// Package model holds the parametric source models fitted to spectra and
// the ordered parameter containers they expose to the fit engine.
package model

import (
	"fmt"
	"math"
	"strings"

	"gammastack/domain/core"
)

// Parameter is a named model value with optional bounds (NaN = unbounded).
// The optimiser works on Factor = Value / Scale.
type Parameter struct {
	Name   string
	Value  float64
	Unit   string
	Min    float64
	Max    float64
	Frozen bool
	Error  float64
	Scale  float64
}

// NewParameter creates an unbounded free parameter with unit scale
func NewParameter(name string, value float64, unit string) *Parameter {
	return &Parameter{Name: name, Value: value, Unit: unit, Min: math.NaN(), Max: math.NaN(), Scale: 1}
}

// Factor returns the scaled value seen by the optimiser
func (p *Parameter) Factor() float64 {
	return p.Value / p.scale()
}

// SetFactor sets the value from a scaled factor
func (p *Parameter) SetFactor(f float64) {
	p.Value = f * p.scale()
}

// FactorBounds returns the bounds in factor space
func (p *Parameter) FactorBounds() (float64, float64) {
	return p.Min / p.scale(), p.Max / p.scale()
}

// AutoScale picks a power of ten so the factor is of order one
func (p *Parameter) AutoScale() {
	if p.Value == 0 || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		p.Scale = 1
		return
	}
	p.Scale = math.Pow(10, math.Floor(math.Log10(math.Abs(p.Value))))
}

// InBounds reports whether v satisfies the bounds
func (p *Parameter) InBounds(v float64) bool {
	if !math.IsNaN(p.Min) && v < p.Min {
		return false
	}
	if !math.IsNaN(p.Max) && v > p.Max {
		return false
	}
	return true
}

// Copy returns an independent parameter
func (p *Parameter) Copy() *Parameter {
	cp := *p
	return &cp
}

func (p *Parameter) scale() float64 {
	if p.Scale == 0 {
		return 1
	}
	return p.Scale
}

// String implements fmt.Stringer
func (p *Parameter) String() string {
	state := "free"
	if p.Frozen {
		state = "frozen"
	}
	return fmt.Sprintf("%s = %.6g %s (%s)", p.Name, p.Value, p.Unit, state)
}

// Parameters is an ordered list of parameters looked up by name
type Parameters struct {
	items []*Parameter
}

// NewParameters wraps ps in order
func NewParameters(ps ...*Parameter) *Parameters {
	return &Parameters{items: append([]*Parameter(nil), ps...)}
}

// Len returns the number of parameters
func (ps *Parameters) Len() int {
	return len(ps.items)
}

// All returns the parameters in order
func (ps *Parameters) All() []*Parameter {
	return append([]*Parameter(nil), ps.items...)
}

// At returns the i-th parameter
func (ps *Parameters) At(i int) *Parameter {
	return ps.items[i]
}

// Index returns the position of the first parameter named name, or -1
func (ps *Parameters) Index(name string) int {
	for i, p := range ps.items {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the first parameter named name
func (ps *Parameters) Get(name string) (*Parameter, error) {
	if i := ps.Index(name); i >= 0 {
		return ps.items[i], nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrParameterNotFound, name)
}

// Names returns the parameter names in order
func (ps *Parameters) Names() []string {
	out := make([]string, len(ps.items))
	for i, p := range ps.items {
		out[i] = p.Name
	}
	return out
}

// Free returns the parameters that are not frozen (shared pointers)
func (ps *Parameters) Free() *Parameters {
	out := &Parameters{}
	for _, p := range ps.items {
		if !p.Frozen {
			out.items = append(out.items, p)
		}
	}
	return out
}

// Values returns the current values
func (ps *Parameters) Values() []float64 {
	out := make([]float64, len(ps.items))
	for i, p := range ps.items {
		out[i] = p.Value
	}
	return out
}

// SetValues assigns values in order
func (ps *Parameters) SetValues(values []float64) error {
	if len(values) != len(ps.items) {
		return core.NewShapeError("parameter values", len(ps.items), len(values))
	}
	for i, v := range values {
		ps.items[i].Value = v
	}
	return nil
}

// Factors returns the scaled values
func (ps *Parameters) Factors() []float64 {
	out := make([]float64, len(ps.items))
	for i, p := range ps.items {
		out[i] = p.Factor()
	}
	return out
}

// SetFactors assigns scaled values in order
func (ps *Parameters) SetFactors(factors []float64) error {
	if len(factors) != len(ps.items) {
		return core.NewShapeError("parameter factors", len(ps.items), len(factors))
	}
	for i, f := range factors {
		ps.items[i].SetFactor(f)
	}
	return nil
}

// Copy returns a deep copy; the copies are not shared with any model
func (ps *Parameters) Copy() *Parameters {
	out := &Parameters{items: make([]*Parameter, len(ps.items))}
	for i, p := range ps.items {
		out.items[i] = p.Copy()
	}
	return out
}

// Union joins parameter lists, keeping each parameter object once
func Union(lists ...*Parameters) *Parameters {
	seen := make(map[*Parameter]bool)
	out := &Parameters{}
	for _, l := range lists {
		if l == nil {
			continue
		}
		for _, p := range l.items {
			if seen[p] {
				continue
			}
			seen[p] = true
			out.items = append(out.items, p)
		}
	}
	return out
}

// String renders one parameter per line
func (ps *Parameters) String() string {
	var b strings.Builder
	for _, p := range ps.items {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	return b.String()
}
