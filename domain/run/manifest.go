package run

import (
	"time"

	"gammastack/domain/core"
)

// Manifest represents the complete specification for a run.
// It is stored before any result of the run.
type Manifest struct {
	RunID       ID          `json:"run_id"`
	Kind        Kind        `json:"kind"`
	Datasets    []string    `json:"datasets"`
	Seed        uint64      `json:"seed"`
	CodeVersion string      `json:"code_version"`
	Fingerprint Fingerprint `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewManifest creates a run manifest; inputs are the counts grids that
// feed the run, in order
func NewManifest(kind Kind, datasets []string, inputs [][]float64, modelHash core.Hash, seed uint64, codeVersion string) *Manifest {
	return &Manifest{
		RunID:       NewID(),
		Kind:        kind,
		Datasets:    append([]string(nil), datasets...),
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: NewFingerprint(core.ComputeArrayHash(inputs...), modelHash, seed, codeVersion),
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if m.RunID.IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	switch m.Kind {
	case KindStack, KindFit, KindSimulate, KindImport:
	default:
		return core.NewValidationError("run_manifest", "unknown kind "+string(m.Kind))
	}
	if len(m.Datasets) == 0 {
		return core.NewValidationError("run_manifest", "datasets cannot be empty")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	return nil
}
