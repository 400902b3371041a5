package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gammastack/domain/core"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"
)

// Temporal model type tags
const (
	TypeConstantTemporal = "ConstantTemporalModel"
	TypeLightCurve       = "LightCurveTemplateTemporalModel"
	TypePhaseCurve       = "PhaseCurveTemplateTemporalModel"
)

// TemporalModel is a dimensionless time dependent norm
type TemporalModel interface {
	Type() string
	// Integral returns, per interval, the integrated norm divided by the
	// total duration of all intervals. The result sums to the mean norm.
	Integral(start, stop []core.MJD) []float64
	Parameters() *Parameters
	Copy() TemporalModel
}

// ConstantTemporal is a flat light curve
type ConstantTemporal struct {
	Norm *Parameter
}

// NewConstantTemporal creates a flat light curve with norm 1
func NewConstantTemporal() *ConstantTemporal {
	return &ConstantTemporal{Norm: NewParameter("norm", 1, "")}
}

func (m *ConstantTemporal) Type() string { return TypeConstantTemporal }

func (m *ConstantTemporal) Integral(start, stop []core.MJD) []float64 {
	return normalise(start, stop, func(a, b float64) float64 {
		return m.Norm.Value * (b - a)
	})
}

func (m *ConstantTemporal) Parameters() *Parameters { return NewParameters(m.Norm) }

func (m *ConstantTemporal) Copy() TemporalModel {
	return &ConstantTemporal{Norm: m.Norm.Copy()}
}

// LightCurveTable interpolates a tabulated norm linearly in time. Outside the
// table the boundary values are used.
type LightCurveTable struct {
	Reference core.MJD
	Times     []float64
	Norms     []float64

	// cumulative integral at each node, rebuilt by SetTable
	cum []float64
}

// NewLightCurveTable creates the model from node times (s since reference)
func NewLightCurveTable(reference core.MJD, times, norms []float64) (*LightCurveTable, error) {
	m := &LightCurveTable{Reference: reference}
	if err := m.SetTable(times, norms); err != nil {
		return nil, err
	}
	return m, nil
}

// SetTable replaces the nodes and rebuilds the interpolator
func (m *LightCurveTable) SetTable(times, norms []float64) error {
	if len(times) != len(norms) || len(times) < 2 {
		return core.NewValidationError("light curve",
			fmt.Sprintf("need at least two nodes with matching norms, got %d times and %d norms", len(times), len(norms)))
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return core.NewValidationError("light curve", "node times must be strictly increasing")
		}
	}
	m.Times = append([]float64(nil), times...)
	m.Norms = append([]float64(nil), norms...)
	m.cum = make([]float64, len(times))
	for i := 1; i < len(times); i++ {
		m.cum[i] = m.cum[i-1] + 0.5*(m.Norms[i]+m.Norms[i-1])*(m.Times[i]-m.Times[i-1])
	}
	return nil
}

func (m *LightCurveTable) Type() string { return TypeLightCurve }

// EvaluateAt returns the norm at t seconds after the reference
func (m *LightCurveTable) EvaluateAt(t float64) float64 {
	n := len(m.Times)
	switch {
	case t <= m.Times[0]:
		return m.Norms[0]
	case t >= m.Times[n-1]:
		return m.Norms[n-1]
	}
	i := sort.SearchFloat64s(m.Times, t)
	t0, t1 := m.Times[i-1], m.Times[i]
	w := (t - t0) / (t1 - t0)
	return m.Norms[i-1]*(1-w) + m.Norms[i]*w
}

// EvaluateAtTime returns the norm at an absolute time
func (m *LightCurveTable) EvaluateAtTime(t core.MJD) float64 {
	return m.EvaluateAt(t.SecondsSince(m.Reference))
}

// primitive is the exact integral of the interpolated curve from the first node to t
func (m *LightCurveTable) primitive(t float64) float64 {
	n := len(m.Times)
	switch {
	case t <= m.Times[0]:
		return m.Norms[0] * (t - m.Times[0])
	case t >= m.Times[n-1]:
		return m.cum[n-1] + m.Norms[n-1]*(t-m.Times[n-1])
	}
	i := sort.SearchFloat64s(m.Times, t)
	t0 := m.Times[i-1]
	v := m.EvaluateAt(t)
	return m.cum[i-1] + 0.5*(m.Norms[i-1]+v)*(t-t0)
}

// MeanNorm returns the mean norm in [tmin, tmax]
func (m *LightCurveTable) MeanNorm(tmin, tmax core.MJD) float64 {
	a, b := tmin.SecondsSince(m.Reference), tmax.SecondsSince(m.Reference)
	if b == a {
		return m.EvaluateAt(a)
	}
	return (m.primitive(b) - m.primitive(a)) / (b - a)
}

func (m *LightCurveTable) Integral(start, stop []core.MJD) []float64 {
	return normalise(start, stop, func(a, b float64) float64 {
		ra, rb := a-m.offset(), b-m.offset()
		return m.primitive(rb) - m.primitive(ra)
	})
}

// SampleTime draws n event times (s after tmin) following the light curve,
// with the curve sampled every step seconds
func (m *LightCurveTable) SampleTime(n int, tmin, tmax core.MJD, step float64, src rand.Source) []float64 {
	duration := tmax.SecondsSince(tmin)
	return sampleTime(n, duration, step, src, func(t float64) float64 {
		return m.EvaluateAtTime(tmin.AddSeconds(t))
	})
}

func (m *LightCurveTable) Parameters() *Parameters { return NewParameters() }

func (m *LightCurveTable) Copy() TemporalModel {
	cp, _ := NewLightCurveTable(m.Reference, m.Times, m.Norms)
	return cp
}

// offset returns the reference in the seconds-since-MJD-0 frame used by normalise
func (m *LightCurveTable) offset() float64 {
	return float64(m.Reference) * core.DaysToSeconds(1)
}

// PhaseCurveTable interpolates a tabulated norm in rotational phase
type PhaseCurveTable struct {
	Phases []float64
	Norms  []float64

	Time0  *Parameter
	Phase0 *Parameter
	F0     *Parameter
	F1     *Parameter
	F2     *Parameter
}

// NewPhaseCurveTable creates the model; phases must lie in [0, 1)
func NewPhaseCurveTable(phases, norms []float64, time0 core.MJD, phase0, f0, f1, f2 float64) (*PhaseCurveTable, error) {
	if len(phases) != len(norms) || len(phases) < 1 {
		return nil, core.NewValidationError("phase curve", "phases and norms must be non-empty and of equal length")
	}
	for i, p := range phases {
		if p < 0 || p >= 1 {
			return nil, core.NewValidationError("phase curve", fmt.Sprintf("phase %g outside [0, 1)", p))
		}
		if i > 0 && !(p > phases[i-1]) {
			return nil, core.NewValidationError("phase curve", "phases must be strictly increasing")
		}
	}
	frozen := func(name string, v float64, unit string) *Parameter {
		p := NewParameter(name, v, unit)
		p.Frozen = true
		return p
	}
	return &PhaseCurveTable{
		Phases: append([]float64(nil), phases...),
		Norms:  append([]float64(nil), norms...),
		Time0:  frozen("time_0", float64(time0), "d"),
		Phase0: frozen("phase_0", phase0, ""),
		F0:     frozen("f0", f0, "s-1"),
		F1:     frozen("f1", f1, "s-2"),
		F2:     frozen("f2", f2, "s-3"),
	}, nil
}

func (m *PhaseCurveTable) Type() string { return TypePhaseCurve }

// Phase returns the rotational phase in [0, 1) at t
func (m *PhaseCurveTable) Phase(t core.MJD) float64 {
	p := m.unwrappedPhase(t)
	return p - math.Floor(p)
}

func (m *PhaseCurveTable) unwrappedPhase(t core.MJD) float64 {
	dt := t.SecondsSince(core.MJD(m.Time0.Value))
	return m.Phase0.Value + dt*(m.F0.Value+dt*(m.F1.Value/2+m.F2.Value/6*dt))
}

// EvaluateAtPhase interpolates the table periodically
func (m *PhaseCurveTable) EvaluateAtPhase(phase float64) float64 {
	phase -= math.Floor(phase)
	n := len(m.Phases)
	if n == 1 {
		return m.Norms[0]
	}
	i := sort.SearchFloat64s(m.Phases, phase)
	var p0, p1, n0, n1 float64
	switch {
	case i < n && m.Phases[i] == phase:
		return m.Norms[i]
	case i == 0:
		p0, n0 = m.Phases[n-1]-1, m.Norms[n-1]
		p1, n1 = m.Phases[0], m.Norms[0]
	case i == n:
		p0, n0 = m.Phases[n-1], m.Norms[n-1]
		p1, n1 = m.Phases[0]+1, m.Norms[0]
	default:
		p0, n0 = m.Phases[i-1], m.Norms[i-1]
		p1, n1 = m.Phases[i], m.Norms[i]
	}
	w := (phase - p0) / (p1 - p0)
	return n0*(1-w) + n1*w
}

// EvaluateAtTime returns the norm at an absolute time
func (m *PhaseCurveTable) EvaluateAtTime(t core.MJD) float64 {
	return m.EvaluateAtPhase(m.Phase(t))
}

// Integral integrates numerically, resolving each rotation with several
// quadrature panels
func (m *PhaseCurveTable) Integral(start, stop []core.MJD) []float64 {
	return normalise(start, stop, func(a, b float64) float64 {
		ta, tb := core.MJD(a/core.DaysToSeconds(1)), core.MJD(b/core.DaysToSeconds(1))
		cycles := math.Abs(m.unwrappedPhase(tb) - m.unwrappedPhase(ta))
		panels := int(math.Ceil(cycles * 20))
		if panels < 1 {
			panels = 1
		}
		if panels > 100000 {
			panels = 100000
		}
		f := func(s float64) float64 {
			return m.EvaluateAtTime(core.MJD(s / core.DaysToSeconds(1)))
		}
		width := (b - a) / float64(panels)
		var sum float64
		for k := 0; k < panels; k++ {
			lo := a + float64(k)*width
			sum += quad.Fixed(f, lo, lo+width, 5, nil, 0)
		}
		return sum
	})
}

// SampleTime draws n event times (s after tmin) following the phase curve
func (m *PhaseCurveTable) SampleTime(n int, tmin, tmax core.MJD, step float64, src rand.Source) []float64 {
	return sampleTime(n, tmax.SecondsSince(tmin), step, src, func(t float64) float64 {
		return m.EvaluateAtTime(tmin.AddSeconds(t))
	})
}

func (m *PhaseCurveTable) Parameters() *Parameters {
	return NewParameters(m.Time0, m.Phase0, m.F0, m.F1, m.F2)
}

func (m *PhaseCurveTable) Copy() TemporalModel {
	return &PhaseCurveTable{
		Phases: append([]float64(nil), m.Phases...),
		Norms:  append([]float64(nil), m.Norms...),
		Time0:  m.Time0.Copy(),
		Phase0: m.Phase0.Copy(),
		F0:     m.F0.Copy(),
		F1:     m.F1.Copy(),
		F2:     m.F2.Copy(),
	}
}

// normalise integrates f over each interval, in seconds since MJD 0, and
// divides by the summed duration
func normalise(start, stop []core.MJD, f func(a, b float64) float64) []float64 {
	out := make([]float64, len(start))
	var ontime float64
	for i := range start {
		ontime += stop[i].SecondsSince(start[i])
	}
	if ontime <= 0 {
		return out
	}
	day := core.DaysToSeconds(1)
	for i := range start {
		out[i] = f(float64(start[i])*day, float64(stop[i])*day) / ontime
	}
	return out
}

func sampleTime(n int, duration, step float64, src rand.Source, norm func(float64) float64) []float64 {
	if n <= 0 || duration <= 0 {
		return nil
	}
	if step <= 0 || step > duration {
		step = duration
	}
	nstep := int(math.Ceil(duration / step))
	pdf := make([]float64, nstep)
	var total float64
	for i := range pdf {
		pdf[i] = math.Max(norm(float64(i)*step), 0)
		total += pdf[i]
	}
	if total == 0 {
		for i := range pdf {
			pdf[i] = 1
		}
	}
	rng := rand.New(src)
	cat := distuv.NewCategorical(pdf, src)
	out := make([]float64, n)
	for i := range out {
		t := (cat.Rand() + rng.Float64()) * step
		out[i] = math.Min(t, duration)
	}
	sort.Float64s(out)
	return out
}
