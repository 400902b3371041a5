package model

import (
	"math"
	"math/rand/v2"
	"testing"

	"gammastack/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterFactor(t *testing.T) {
	p := NewParameter("amplitude", 3.2e-12, UnitDiffFlux)
	p.AutoScale()

	assert.InDelta(t, 1e-12, p.Scale, 1e-27)
	assert.InDelta(t, 3.2, p.Factor(), 1e-12)

	p.SetFactor(4)
	assert.InDelta(t, 4e-12, p.Value, 1e-24)

	p.Min = 0
	assert.True(t, p.InBounds(1))
	assert.False(t, p.InBounds(-1))
}

func TestParametersLookup(t *testing.T) {
	pl := DefaultPowerLaw()
	ps := pl.Parameters()

	assert.Equal(t, []string{"index", "amplitude", "reference"}, ps.Names())

	p, err := ps.Get("index")
	require.NoError(t, err)
	assert.Same(t, pl.Index, p)

	_, err = ps.Get("sigma")
	assert.ErrorIs(t, err, core.ErrParameterNotFound)
	assert.True(t, core.IsNotFoundError(err))

	assert.Equal(t, 2, ps.Free().Len())
}

func TestParametersUnionDeduplicates(t *testing.T) {
	pl := DefaultPowerLaw()
	u := Union(pl.Parameters(), pl.Parameters(), NewParameters(NewParameter("index", 1, "")))

	assert.Equal(t, 4, u.Len())
}

func TestParametersCopyIsIndependent(t *testing.T) {
	pl := DefaultPowerLaw()
	cp := pl.Parameters().Copy()
	require.NoError(t, cp.SetValues([]float64{3, 1, 1}))

	assert.Equal(t, 2.0, pl.Index.Value)
	assert.Error(t, cp.SetValues([]float64{1}))
}

func TestPowerLawIntegral(t *testing.T) {
	pl := DefaultPowerLaw()
	assert.InDelta(t, 0.9e-12, pl.Integral(1, 10), 1e-24)

	pl.Index.Value = 1
	assert.InDelta(t, 1e-12*math.Log(10), pl.Integral(1, 10), 1e-24)
}

func TestExpCutoffIntegralMatchesPowerLaw(t *testing.T) {
	ecpl := NewExpCutoffPowerLaw(2, 1e-12, 1, 0)
	pl := DefaultPowerLaw()

	assert.InEpsilon(t, pl.Integral(1, 10), ecpl.Integral(1, 10), 1e-8)

	ecpl.Lambda.Value = 0.5
	assert.Less(t, ecpl.Integral(1, 10), pl.Integral(1, 10))
}

func TestConstantSpectral(t *testing.T) {
	c := NewConstantSpectral(1)
	assert.InDelta(t, 9.9, c.Integral(0.1, 10), 1e-12)
}

func TestNewSpectralModel(t *testing.T) {
	m, err := NewSpectralModel(TypeExpCutoffPowerLaw)
	require.NoError(t, err)
	assert.Equal(t, TypeExpCutoffPowerLaw, m.Type())

	_, err = NewSpectralModel("nope")
	assert.True(t, core.IsValidationError(err))
}

func TestConstantTemporalIntegral(t *testing.T) {
	c := NewConstantTemporal()
	start := []core.MJD{55555, 55557}
	stop := []core.MJD{55556, 55560}

	w := c.Integral(start, stop)
	assert.InDelta(t, 0.25, w[0], 1e-9)
	assert.InDelta(t, 0.75, w[1], 1e-9)
}

func TestLightCurveTable(t *testing.T) {
	lc, err := NewLightCurveTable(55555, []float64{0, 100, 200}, []float64{1, 3, 1})
	require.NoError(t, err)

	assert.Equal(t, 2.0, lc.EvaluateAt(50))
	assert.Equal(t, 1.0, lc.EvaluateAt(-10))
	assert.Equal(t, 1.0, lc.EvaluateAt(1000))

	assert.InDelta(t, 2.0, lc.MeanNorm(55555, core.MJD(55555).AddSeconds(200)), 1e-6)

	start := []core.MJD{55555}
	stop := []core.MJD{core.MJD(55555).AddSeconds(100)}
	assert.InDelta(t, 2.0, lc.Integral(start, stop)[0], 1e-4)

	_, err = NewLightCurveTable(0, []float64{0, 0}, []float64{1, 1})
	assert.True(t, core.IsValidationError(err))
}

func TestLightCurveSampleTime(t *testing.T) {
	lc, err := NewLightCurveTable(0, []float64{0, 50, 100}, []float64{0, 0, 1})
	require.NoError(t, err)

	times := lc.SampleTime(200, 0, core.MJD(0).AddSeconds(100), 1, rand.NewPCG(1, 2))
	require.Len(t, times, 200)
	for _, tt := range times {
		assert.GreaterOrEqual(t, tt, 50.0)
	}
	again := lc.SampleTime(200, 0, core.MJD(0).AddSeconds(100), 1, rand.NewPCG(1, 2))
	assert.Equal(t, times, again)
}

func TestPhaseCurveTable(t *testing.T) {
	pc, err := NewPhaseCurveTable([]float64{0, 0.5}, []float64{1, 3}, 50000, 0, 1.0/10, 0, 0)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, pc.EvaluateAtPhase(0.25), 1e-12)
	assert.InDelta(t, 2.0, pc.EvaluateAtPhase(0.75), 1e-12)
	assert.InDelta(t, 3.0, pc.EvaluateAtPhase(1.5), 1e-12)

	assert.InDelta(t, 0.5, pc.Phase(core.MJD(50000).AddSeconds(25)), 1e-6)

	start := []core.MJD{50000}
	stop := []core.MJD{core.MJD(50000).AddSeconds(1000)}
	assert.InDelta(t, 2.0, pc.Integral(start, stop)[0], 1e-3)

	assert.Equal(t, 0, pc.Parameters().Free().Len())
}

func TestModelsUniqueNames(t *testing.T) {
	a := NewSkyModel("a", DefaultPowerLaw(), nil)
	_, err := NewModels(a, NewSkyModel("a", DefaultPowerLaw(), nil))
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	ms, err := NewModels(a, NewSkyModel("", DefaultPowerLaw(), NewConstantTemporal()))
	require.NoError(t, err)
	assert.Len(t, ms.All()[1].Name, 8)
	assert.Equal(t, 7, ms.Parameters().Len())

	_, err = ms.Get("missing")
	assert.ErrorIs(t, err, core.ErrModelNotFound)
}

func TestSkyModelCopy(t *testing.T) {
	s := NewSkyModel("src", DefaultPowerLaw(), NewConstantTemporal())
	cp := s.Copy("")

	cp.Spectral.Parameters().At(0).Value = 3
	assert.Equal(t, 2.0, s.Spectral.Parameters().At(0).Value)
	assert.Equal(t, "src", cp.Name)
}
