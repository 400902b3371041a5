// Package axis defines the energy axes that label every spectral grid.
package axis

import (
	"fmt"
	"math"

	"gammastack/domain/core"
)

// Kind tags an axis as reconstructed or true energy
type Kind string

const (
	Reco Kind = "energy"
	True Kind = "energy_true"
)

// Interp selects how bin centres are computed
type Interp string

const (
	Log Interp = "log"
	Lin Interp = "lin"
)

// edgeTolerance is the relative tolerance used when matching edges
const edgeTolerance = 1e-9

// EnergyAxis is an ordered set of contiguous energy bins (TeV)
type EnergyAxis struct {
	Edges  []float64
	Kind   Kind
	Interp Interp
}

// New creates an energy axis from strictly increasing edges
func New(edges []float64, kind Kind) (*EnergyAxis, error) {
	if len(edges) < 2 {
		return nil, core.NewValidationError("energy axis", "at least two edges are required")
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return nil, core.NewValidationError("energy axis",
				fmt.Sprintf("edges must be strictly increasing (edge %d: %g <= %g)", i, edges[i], edges[i-1]))
		}
	}
	cp := make([]float64, len(edges))
	copy(cp, edges)
	interp := Log
	if edges[0] <= 0 {
		interp = Lin
	}
	return &EnergyAxis{Edges: cp, Kind: kind, Interp: interp}, nil
}

// MustNew is New for literal edges known to be valid
func MustNew(edges []float64, kind Kind) *EnergyAxis {
	ax, err := New(edges, kind)
	if err != nil {
		panic(err)
	}
	return ax
}

// FromEnergyBounds creates nbin log-spaced bins between emin and emax
func FromEnergyBounds(emin, emax float64, nbin int, kind Kind) (*EnergyAxis, error) {
	if nbin < 1 || emin <= 0 || emax <= emin {
		return nil, core.NewValidationError("energy bounds",
			fmt.Sprintf("need 0 < emin < emax and nbin >= 1, got [%g, %g] nbin=%d", emin, emax, nbin))
	}
	edges := make([]float64, nbin+1)
	lmin, lmax := math.Log10(emin), math.Log10(emax)
	for i := range edges {
		edges[i] = math.Pow(10, lmin+(lmax-lmin)*float64(i)/float64(nbin))
	}
	edges[0], edges[nbin] = emin, emax
	return New(edges, kind)
}

// NBin returns the number of bins
func (a *EnergyAxis) NBin() int {
	return len(a.Edges) - 1
}

// Lo returns the lower edge of bin i
func (a *EnergyAxis) Lo(i int) float64 { return a.Edges[i] }

// Hi returns the upper edge of bin i
func (a *EnergyAxis) Hi(i int) float64 { return a.Edges[i+1] }

// Center returns the bin centre, geometric for log axes
func (a *EnergyAxis) Center(i int) float64 {
	if a.Interp == Log {
		return math.Sqrt(a.Edges[i] * a.Edges[i+1])
	}
	return 0.5 * (a.Edges[i] + a.Edges[i+1])
}

// Centers returns all bin centres
func (a *EnergyAxis) Centers() []float64 {
	out := make([]float64, a.NBin())
	for i := range out {
		out[i] = a.Center(i)
	}
	return out
}

// Bounds returns the first and last edge
func (a *EnergyAxis) Bounds() (float64, float64) {
	return a.Edges[0], a.Edges[len(a.Edges)-1]
}

// Coord returns the index of the bin containing e, or -1
func (a *EnergyAxis) Coord(e float64) int {
	if e < a.Edges[0] || e > a.Edges[len(a.Edges)-1] {
		return -1
	}
	for i := 0; i < a.NBin(); i++ {
		if e < a.Edges[i+1] {
			return i
		}
	}
	return a.NBin() - 1
}

// Copy returns an independent axis
func (a *EnergyAxis) Copy() *EnergyAxis {
	edges := make([]float64, len(a.Edges))
	copy(edges, a.Edges)
	return &EnergyAxis{Edges: edges, Kind: a.Kind, Interp: a.Interp}
}

// WithKind returns a copy tagged with another kind
func (a *EnergyAxis) WithKind(kind Kind) *EnergyAxis {
	cp := a.Copy()
	cp.Kind = kind
	return cp
}

// Equal reports exact equality of kind and edges
func (a *EnergyAxis) Equal(other *EnergyAxis) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.Kind != other.Kind || len(a.Edges) != len(other.Edges) {
		return false
	}
	for i := range a.Edges {
		if a.Edges[i] != other.Edges[i] {
			return false
		}
	}
	return true
}

// Compatible reports equal kind and edges within tolerance
func (a *EnergyAxis) Compatible(other *EnergyAxis) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.Kind != other.Kind || len(a.Edges) != len(other.Edges) {
		return false
	}
	for i := range a.Edges {
		if !closeEdge(a.Edges[i], other.Edges[i]) {
			return false
		}
	}
	return true
}

// GroupIndices maps every bin of a onto the bin of coarse containing it.
// Every edge of coarse must coincide with an edge of a; fine bins outside
// the coarse range map to -1.
func (a *EnergyAxis) GroupIndices(coarse *EnergyAxis) ([]int, error) {
	if coarse.Kind != a.Kind {
		return nil, core.NewAxisError(fmt.Sprintf("cannot group %s axis onto %s axis", a.Kind, coarse.Kind))
	}
	pos := make([]int, len(coarse.Edges))
	j := 0
	for k, ce := range coarse.Edges {
		for j < len(a.Edges) && a.Edges[j] < ce && !closeEdge(a.Edges[j], ce) {
			j++
		}
		if j == len(a.Edges) || !closeEdge(a.Edges[j], ce) {
			return nil, core.NewAxisError(fmt.Sprintf("edge %g is not an edge of the finer axis", ce))
		}
		pos[k] = j
	}
	idx := make([]int, a.NBin())
	for i := range idx {
		idx[i] = -1
	}
	for k := 0; k < coarse.NBin(); k++ {
		for i := pos[k]; i < pos[k+1]; i++ {
			idx[i] = k
		}
	}
	return idx, nil
}

// EnergyMask selects bins fully contained in [emin, emax]; NaN leaves a side open
func (a *EnergyAxis) EnergyMask(emin, emax float64) []bool {
	out := make([]bool, a.NBin())
	for i := range out {
		ok := true
		if !math.IsNaN(emin) && a.Lo(i) < emin && !closeEdge(a.Lo(i), emin) {
			ok = false
		}
		if !math.IsNaN(emax) && a.Hi(i) > emax && !closeEdge(a.Hi(i), emax) {
			ok = false
		}
		out[i] = ok
	}
	return out
}

// Squash returns a single-bin axis spanning the full range
func (a *EnergyAxis) Squash() *EnergyAxis {
	lo, hi := a.Bounds()
	return &EnergyAxis{Edges: []float64{lo, hi}, Kind: a.Kind, Interp: a.Interp}
}

// String implements fmt.Stringer
func (a *EnergyAxis) String() string {
	lo, hi := a.Bounds()
	return fmt.Sprintf("%s axis: %d bins [%.4g, %.4g] TeV (%s)", a.Kind, a.NBin(), lo, hi, a.Interp)
}

func closeEdge(x, y float64) bool {
	if x == y {
		return true
	}
	return math.Abs(x-y) <= edgeTolerance*math.Max(math.Abs(x), math.Abs(y))
}
