package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCashTruncation(t *testing.T) {
	tests := []struct {
		name string
		nOn  float64
		mu   float64
	}{
		{"zero prediction", 5, 0},
		{"negative prediction", 5, -3},
		{"zero counts", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Cash(tt.nOn, tt.mu)
			assert.False(t, math.IsNaN(v))
			assert.False(t, math.IsInf(v, 0))
		})
	}

	assert.InDelta(t, 2*(2-3*math.Log(2)), Cash(3, 2), 1e-12)
}

func TestWStatPerfectFitIsZero(t *testing.T) {
	nOn, nOff, alpha := 3.0, 40.0, 0.1
	excess := nOn - alpha*nOff

	assert.InDelta(t, 40, WStatMuBkg(nOn, nOff, alpha, excess), 1e-9)
	assert.InDelta(t, 0, WStat(nOn, nOff, alpha, excess), 1e-9)
}

func TestWStatZeroCounts(t *testing.T) {
	v := WStat(0, 0, 0.2, 1.5)
	assert.InDelta(t, 3, v, 1e-12)
	assert.Equal(t, 0.0, WStatMuBkg(0, 0, 0.2, 1.5))

	v = WStat(4, 0, 0.5, 2)
	assert.False(t, math.IsNaN(v))
}

func TestWStatZeroAlpha(t *testing.T) {
	assert.Equal(t, 7.0, WStatMuBkg(3, 7, 0, 1))
	assert.False(t, math.IsNaN(WStat(3, 7, 0, 1)))

	// no signal and no background in the on region
	v := WStat(5, 0, 0, 0)
	assert.False(t, math.IsInf(v, 0))
	assert.False(t, math.IsNaN(v))
}

func TestWStatCountsStatistic(t *testing.T) {
	s := WStatCountsStatistic{NOn: 3, NOff: 40, Alpha: 0.1}

	assert.InDelta(t, -1, s.Excess(), 1e-12)
	assert.InDelta(t, 4, s.Background(), 1e-12)
	assert.InDelta(t, -0.501005, s.SqrtTS(), 1e-3)
}

func TestCashCountsStatistic(t *testing.T) {
	s := CashCountsStatistic{NOn: 907010, MuBkg: 3000}

	assert.InDelta(t, 904010, s.Excess(), 1e-9)
	assert.InEpsilon(t, 2924.522174, s.SqrtTS(), 1e-6)

	none := CashCountsStatistic{NOn: 0, MuBkg: 0}
	assert.Equal(t, 0.0, none.SqrtTS())
}

func TestSumWStat(t *testing.T) {
	s := SumWStat([]float64{1, 1, 1, 0}, []float64{10, 10, 10, 10}, []float64{0.1, 0.1, 0.1, 0.1})
	assert.Equal(t, 3.0, s.NOn)
	assert.Equal(t, 40.0, s.NOff)
	assert.InDelta(t, 0.1, s.Alpha, 1e-12)

	s = SumWStat([]float64{1}, []float64{0}, []float64{0.25})
	assert.Equal(t, 0.25, s.Alpha)
}
