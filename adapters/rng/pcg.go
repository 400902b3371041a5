// Package rng provides deterministic random sources for simulations
package rng

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
)

// PCGAdapter implements RNGPort with PCG streams. The stream of a dataset
// depends only on the run, the dataset name and the base seed.
type PCGAdapter struct{}

// NewPCGAdapter creates a new adapter
func NewPCGAdapter() *PCGAdapter {
	return &PCGAdapter{}
}

// SeededStream creates a deterministic source for a named operation
func (r *PCGAdapter) SeededStream(ctx context.Context, name string, seed uint64) (rand.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.NewPCG(seed, hashString(name)), nil
}

// Stream creates a deterministic source for one dataset of a run
func (r *PCGAdapter) Stream(ctx context.Context, runID, datasetName string, baseSeed uint64) (rand.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.NewPCG(baseSeed^hashString(runID), hashString(datasetName)), nil
}

// hashString creates a 64 bit FNV-1a hash for stream selection
func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
