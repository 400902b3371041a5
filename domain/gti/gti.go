// Package gti holds Good Time Intervals: the time spans during which an
// observation's data are valid.
package gti

import (
	"fmt"
	"sort"

	"gammastack/domain/core"
)

// GTI is a list of [start, stop) intervals in seconds since Reference
type GTI struct {
	Reference core.MJD
	Start     []float64
	Stop      []float64
}

// Interval is a single [Start, Stop] span in seconds since the reference
type Interval struct {
	Start float64
	Stop  float64
}

// New creates a GTI from parallel start/stop arrays
func New(start, stop []float64, reference core.MJD) (*GTI, error) {
	if len(start) != len(stop) {
		return nil, core.NewValidationError("gti", fmt.Sprintf("%d starts but %d stops", len(start), len(stop)))
	}
	for i := range start {
		if !(start[i] < stop[i]) {
			return nil, core.NewValidationError("gti",
				fmt.Sprintf("interval %d has start %g >= stop %g", i, start[i], stop[i]))
		}
	}
	g := &GTI{Reference: reference, Start: make([]float64, len(start)), Stop: make([]float64, len(stop))}
	copy(g.Start, start)
	copy(g.Stop, stop)
	return g, nil
}

// Empty returns a GTI without intervals
func Empty(reference core.MJD) *GTI {
	return &GTI{Reference: reference, Start: []float64{}, Stop: []float64{}}
}

// Len returns the number of intervals
func (g *GTI) Len() int {
	return len(g.Start)
}

// Intervals returns the intervals in stored order
func (g *GTI) Intervals() []Interval {
	out := make([]Interval, g.Len())
	for i := range out {
		out[i] = Interval{Start: g.Start[i], Stop: g.Stop[i]}
	}
	return out
}

// TimeSum returns the summed interval length (s)
func (g *GTI) TimeSum() float64 {
	var sum float64
	for i := range g.Start {
		sum += g.Stop[i] - g.Start[i]
	}
	return sum
}

// TimeStart returns the earliest start as MJD
func (g *GTI) TimeStart() core.MJD {
	if g.Len() == 0 {
		return g.Reference
	}
	min := g.Start[0]
	for _, s := range g.Start[1:] {
		if s < min {
			min = s
		}
	}
	return g.Reference.AddSeconds(min)
}

// TimeStop returns the latest stop as MJD
func (g *GTI) TimeStop() core.MJD {
	if g.Len() == 0 {
		return g.Reference
	}
	max := g.Stop[0]
	for _, s := range g.Stop[1:] {
		if s > max {
			max = s
		}
	}
	return g.Reference.AddSeconds(max)
}

// Copy returns a deep copy
func (g *GTI) Copy() *GTI {
	if g == nil {
		return nil
	}
	cp := &GTI{Reference: g.Reference, Start: make([]float64, len(g.Start)), Stop: make([]float64, len(g.Stop))}
	copy(cp.Start, g.Start)
	copy(cp.Stop, g.Stop)
	return cp
}

// Stack appends the intervals of other, converted to g's reference.
// An empty receiver adopts the reference of other.
func (g *GTI) Stack(other *GTI) {
	if other == nil || other.Len() == 0 {
		return
	}
	if g.Len() == 0 {
		g.Reference = other.Reference
	}
	offset := other.Reference.SecondsSince(g.Reference)
	for i := range other.Start {
		g.Start = append(g.Start, other.Start[i]+offset)
		g.Stop = append(g.Stop, other.Stop[i]+offset)
	}
}

// Union sorts intervals by start and merges overlapping or touching ones
func (g *GTI) Union() *GTI {
	iv := g.Intervals()
	sort.SliceStable(iv, func(i, j int) bool { return iv[i].Start < iv[j].Start })

	out := Empty(g.Reference)
	for _, in := range iv {
		n := out.Len()
		if n > 0 && in.Start <= out.Stop[n-1] {
			if in.Stop > out.Stop[n-1] {
				out.Stop[n-1] = in.Stop
			}
			continue
		}
		out.Start = append(out.Start, in.Start)
		out.Stop = append(out.Stop, in.Stop)
	}
	return out
}

// Select returns the intervals overlapping [tmin, tmax], clipped to it
func (g *GTI) Select(tmin, tmax float64) *GTI {
	out := Empty(g.Reference)
	for i := range g.Start {
		lo, hi := g.Start[i], g.Stop[i]
		if hi <= tmin || lo >= tmax {
			continue
		}
		if lo < tmin {
			lo = tmin
		}
		if hi > tmax {
			hi = tmax
		}
		out.Start = append(out.Start, lo)
		out.Stop = append(out.Stop, hi)
	}
	return out
}

// String implements fmt.Stringer
func (g *GTI) String() string {
	return fmt.Sprintf("GTI: %d intervals, %.1f s total, MJD %.5f - %.5f",
		g.Len(), g.TimeSum(), float64(g.TimeStart()), float64(g.TimeStop()))
}
