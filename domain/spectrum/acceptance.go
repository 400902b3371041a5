package spectrum

import (
	"gammastack/domain/axis"
)

// Acceptance is either a scalar or a full map; it is broadcast to a map
// over the reco axis when a dataset is built
type Acceptance struct {
	scalar float64
	grid   *Map
	set    bool
}

// Scalar creates a constant acceptance
func Scalar(v float64) Acceptance {
	return Acceptance{scalar: v, set: true}
}

// Grid creates a per-bin acceptance
func Grid(m *Map) Acceptance {
	return Acceptance{grid: m, set: m != nil}
}

// IsSet reports whether a value was provided
func (a Acceptance) IsSet() bool {
	return a.set
}

// Broadcast normalises the acceptance to a map over ax
func (a Acceptance) Broadcast(ax *axis.EnergyAxis) (*Map, error) {
	if a.grid != nil {
		return NewMap(ax, a.grid.Data)
	}
	return Full(ax, a.scalar), nil
}
