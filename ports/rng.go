package ports

import (
	"context"
	"math/rand/v2"
)

// RNGPort provides seeded random sources for deterministic simulation
type RNGPort interface {
	// SeededStream creates a deterministic source for a named operation
	SeededStream(ctx context.Context, name string, seed uint64) (rand.Source, error)

	// Stream creates a deterministic source for one dataset of a run, so
	// simulations give identical counts for the same run and dataset
	Stream(ctx context.Context, runID, datasetName string, baseSeed uint64) (rand.Source, error)
}
