package run

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"gammastack/domain/core"

	"github.com/google/uuid"
)

// ID identifies one execution of a stack, fit or simulate command
type ID string

// NewID creates a random run id
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) IsEmpty() bool { return id == "" }

// Kind is the command a run executed
type Kind string

const (
	KindStack    Kind = "stack"
	KindFit      Kind = "fit"
	KindSimulate Kind = "simulate"
	KindImport   Kind = "import" // collection read into the ledger from disk
)

// Fingerprint ensures deterministic replay: identical inputs, seed and code
// version give identical fingerprints
type Fingerprint struct {
	InputHash   core.Hash `json:"input_hash"`
	ModelHash   core.Hash `json:"model_hash"`
	Seed        uint64    `json:"seed"`
	CodeVersion string    `json:"code_version"`
	Fingerprint core.Hash `json:"fingerprint"` // Hash of all above
}

// NewFingerprint creates a fingerprint from determinism parameters
func NewFingerprint(inputHash, modelHash core.Hash, seed uint64, codeVersion string) Fingerprint {
	return Fingerprint{
		InputHash:   inputHash,
		ModelHash:   modelHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeFingerprint(inputHash, modelHash, seed, codeVersion),
	}
}

func computeFingerprint(inputHash, modelHash core.Hash, seed uint64, codeVersion string) core.Hash {
	data := fmt.Sprintf("inputs:%s|models:%s|seed:%d|code:%s", inputHash, modelHash, seed, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

// ParameterValue is the fitted state of one parameter
type ParameterValue struct {
	Name   string  `json:"name" db:"name"`
	Value  float64 `json:"value" db:"value"`
	Error  float64 `json:"error" db:"error"`
	Unit   string  `json:"unit" db:"unit"`
	Frozen bool    `json:"frozen" db:"frozen"`
}

// FitRecord is what the ledger keeps of a finished fit
type FitRecord struct {
	RunID      ID               `json:"run_id"`
	Datasets   []string         `json:"datasets"`
	StatType   string           `json:"stat_type"`
	TotalStat  float64          `json:"total_stat"`
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	NFev       int              `json:"nfev"`
	Parameters []ParameterValue `json:"parameters"`
}

// DatasetList joins dataset names for storage
func (r *FitRecord) DatasetList() string {
	return strings.Join(r.Datasets, ",")
}
