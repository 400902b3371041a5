package ports

import (
	"context"

	"gammastack/domain/dataset"
	"gammastack/domain/run"
)

// LedgerWriterPort provides append-only write access to run records.
// A run manifest is recorded before any of its results.
type LedgerWriterPort interface {
	RecordManifest(ctx context.Context, m *run.Manifest) error
	RecordFit(ctx context.Context, r *run.FitRecord) error
	RecordInfo(ctx context.Context, runID run.ID, rows []dataset.Info) error
}

// LedgerReaderPort provides read-only access to stored runs
type LedgerReaderPort interface {
	GetManifest(ctx context.Context, runID run.ID) (*run.Manifest, error)
	ListFits(ctx context.Context, filters FitFilters) ([]run.FitRecord, error)
	ListInfo(ctx context.Context, runID run.ID) ([]dataset.Info, error)
}

// FitFilters for querying fit records
type FitFilters struct {
	RunID   *run.ID
	Dataset string
	Limit   int
	Offset  int
}

// LedgerPort combines read and write access
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
