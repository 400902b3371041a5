package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CountsStatistic summarises a counts measurement against a background
type CountsStatistic interface {
	Excess() float64
	Background() float64
	TS() float64
	SqrtTS() float64
}

// CashCountsStatistic compares nOn with a known background
type CashCountsStatistic struct {
	NOn   float64
	MuBkg float64
}

func (s CashCountsStatistic) Excess() float64     { return s.NOn - s.MuBkg }
func (s CashCountsStatistic) Background() float64 { return s.MuBkg }

// TS is the likelihood ratio of the background-only against the best fit
func (s CashCountsStatistic) TS() float64 {
	return Cash(s.NOn, s.MuBkg) - Cash(s.NOn, s.NOn)
}

func (s CashCountsStatistic) SqrtTS() float64 {
	return signedSqrt(s.TS(), s.Excess())
}

// WStatCountsStatistic compares nOn with alpha*nOff
type WStatCountsStatistic struct {
	NOn   float64
	NOff  float64
	Alpha float64
}

func (s WStatCountsStatistic) Background() float64 { return s.Alpha * s.NOff }
func (s WStatCountsStatistic) Excess() float64     { return s.NOn - s.Background() }

func (s WStatCountsStatistic) TS() float64 {
	return WStat(s.NOn, s.NOff, s.Alpha, 0) - WStat(s.NOn, s.NOff, s.Alpha, s.Excess())
}

func (s WStatCountsStatistic) SqrtTS() float64 {
	return signedSqrt(s.TS(), s.Excess())
}

// SumWStat combines per-bin measurements into one. The summed alpha is the
// off-count weighted mean, or the plain mean when there are no off counts.
func SumWStat(nOn, nOff, alpha []float64) WStatCountsStatistic {
	sumOff := floats.Sum(nOff)
	s := WStatCountsStatistic{NOn: floats.Sum(nOn), NOff: sumOff}
	switch {
	case sumOff > 0:
		s.Alpha = floats.Dot(alpha, nOff) / sumOff
	case len(alpha) > 0:
		s.Alpha = stat.Mean(alpha, nil)
	}
	return s
}

func signedSqrt(ts, excess float64) float64 {
	if ts <= 0 || math.IsNaN(ts) {
		return 0
	}
	if excess < 0 {
		return -math.Sqrt(ts)
	}
	return math.Sqrt(ts)
}
