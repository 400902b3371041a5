package model

import (
	"fmt"
	"math"

	"gammastack/domain/core"

	"gonum.org/v1/gonum/integrate/quad"
)

// Spectral model type tags
const (
	TypePowerLaw          = "PowerLawSpectralModel"
	TypeExpCutoffPowerLaw = "ExpCutoffPowerLawSpectralModel"
	TypeConstantSpectral  = "ConstantSpectralModel"
)

// Flux units shared by the spectral models
const (
	UnitDiffFlux = "cm-2 s-1 TeV-1"
	UnitEnergy   = "TeV"
)

// quadPoints is the Gauss-Legendre order used per integration interval
const quadPoints = 16

// SpectralModel is a differential flux dN/dE (cm⁻² s⁻¹ TeV⁻¹)
type SpectralModel interface {
	Type() string
	Evaluate(energy float64) float64
	// Integral returns the flux integrated over [emin, emax] (cm⁻² s⁻¹)
	Integral(emin, emax float64) float64
	Parameters() *Parameters
	Copy() SpectralModel
}

// PowerLaw is amplitude * (E / reference)^-index
type PowerLaw struct {
	Index     *Parameter
	Amplitude *Parameter
	Reference *Parameter
}

// NewPowerLaw creates a power law with a frozen reference energy
func NewPowerLaw(index, amplitude, reference float64) *PowerLaw {
	ref := NewParameter("reference", reference, UnitEnergy)
	ref.Frozen = true
	return &PowerLaw{
		Index:     NewParameter("index", index, ""),
		Amplitude: NewParameter("amplitude", amplitude, UnitDiffFlux),
		Reference: ref,
	}
}

// DefaultPowerLaw returns index 2, amplitude 1e-12, reference 1 TeV
func DefaultPowerLaw() *PowerLaw {
	return NewPowerLaw(2, 1e-12, 1)
}

func (m *PowerLaw) Type() string { return TypePowerLaw }

func (m *PowerLaw) Evaluate(energy float64) float64 {
	return m.Amplitude.Value * math.Pow(energy/m.Reference.Value, -m.Index.Value)
}

// Integral is analytic, with the index 1 case handled separately
func (m *PowerLaw) Integral(emin, emax float64) float64 {
	amp, ref, idx := m.Amplitude.Value, m.Reference.Value, m.Index.Value
	if math.Abs(idx-1) < 1e-10 {
		return amp * ref * math.Log(emax/emin)
	}
	g := 1 - idx
	return amp * ref / g * (math.Pow(emax/ref, g) - math.Pow(emin/ref, g))
}

func (m *PowerLaw) Parameters() *Parameters {
	return NewParameters(m.Index, m.Amplitude, m.Reference)
}

func (m *PowerLaw) Copy() SpectralModel {
	return &PowerLaw{Index: m.Index.Copy(), Amplitude: m.Amplitude.Copy(), Reference: m.Reference.Copy()}
}

// ExpCutoffPowerLaw is a power law times exp(-(lambda*E)^alpha)
type ExpCutoffPowerLaw struct {
	Index     *Parameter
	Amplitude *Parameter
	Reference *Parameter
	Lambda    *Parameter
	Alpha     *Parameter
}

// NewExpCutoffPowerLaw creates the model with alpha frozen at 1
func NewExpCutoffPowerLaw(index, amplitude, reference, lambda float64) *ExpCutoffPowerLaw {
	pl := NewPowerLaw(index, amplitude, reference)
	alpha := NewParameter("alpha", 1, "")
	alpha.Frozen = true
	return &ExpCutoffPowerLaw{
		Index:     pl.Index,
		Amplitude: pl.Amplitude,
		Reference: pl.Reference,
		Lambda:    NewParameter("lambda_", lambda, "TeV-1"),
		Alpha:     alpha,
	}
}

func (m *ExpCutoffPowerLaw) Type() string { return TypeExpCutoffPowerLaw }

func (m *ExpCutoffPowerLaw) Evaluate(energy float64) float64 {
	pwl := m.Amplitude.Value * math.Pow(energy/m.Reference.Value, -m.Index.Value)
	return pwl * math.Exp(-math.Pow(m.Lambda.Value*energy, m.Alpha.Value))
}

// Integral uses Gauss-Legendre quadrature in log energy
func (m *ExpCutoffPowerLaw) Integral(emin, emax float64) float64 {
	return logQuad(m.Evaluate, emin, emax)
}

func (m *ExpCutoffPowerLaw) Parameters() *Parameters {
	return NewParameters(m.Index, m.Amplitude, m.Reference, m.Lambda, m.Alpha)
}

func (m *ExpCutoffPowerLaw) Copy() SpectralModel {
	return &ExpCutoffPowerLaw{
		Index:     m.Index.Copy(),
		Amplitude: m.Amplitude.Copy(),
		Reference: m.Reference.Copy(),
		Lambda:    m.Lambda.Copy(),
		Alpha:     m.Alpha.Copy(),
	}
}

// ConstantSpectral is a flat differential flux
type ConstantSpectral struct {
	Const *Parameter
}

// NewConstantSpectral creates a flat spectrum
func NewConstantSpectral(value float64) *ConstantSpectral {
	return &ConstantSpectral{Const: NewParameter("const", value, UnitDiffFlux)}
}

func (m *ConstantSpectral) Type() string { return TypeConstantSpectral }

func (m *ConstantSpectral) Evaluate(float64) float64 { return m.Const.Value }

func (m *ConstantSpectral) Integral(emin, emax float64) float64 {
	return m.Const.Value * (emax - emin)
}

func (m *ConstantSpectral) Parameters() *Parameters { return NewParameters(m.Const) }

func (m *ConstantSpectral) Copy() SpectralModel {
	return &ConstantSpectral{Const: m.Const.Copy()}
}

// NewSpectralModel creates a default model of the given type
func NewSpectralModel(typ string) (SpectralModel, error) {
	switch typ {
	case TypePowerLaw, "PowerLaw", "pl":
		return DefaultPowerLaw(), nil
	case TypeExpCutoffPowerLaw, "ExpCutoffPowerLaw", "ecpl":
		return NewExpCutoffPowerLaw(1.5, 1e-12, 1, 0.1), nil
	case TypeConstantSpectral, "Constant", "const":
		return NewConstantSpectral(1e-12), nil
	default:
		return nil, core.NewValidationError("spectral model", fmt.Sprintf("unknown type %q", typ))
	}
}

// IntegrateBins integrates m over every bin of edges
func IntegrateBins(m SpectralModel, edges []float64) []float64 {
	out := make([]float64, len(edges)-1)
	for i := range out {
		out[i] = m.Integral(edges[i], edges[i+1])
	}
	return out
}

func logQuad(f func(float64) float64, emin, emax float64) float64 {
	if emin <= 0 {
		return quad.Fixed(f, emin, emax, quadPoints, nil, 0)
	}
	g := func(x float64) float64 {
		e := math.Exp(x)
		return f(e) * e
	}
	return quad.Fixed(g, math.Log(emin), math.Log(emax), quadPoints, nil, 0)
}
