package ports

import (
	"context"

	"gammastack/domain/dataset"
)

// DatasetReader loads on/off datasets from persistent storage
type DatasetReader interface {
	ReadOnOff(ctx context.Context, path string) (*dataset.SpectrumDatasetOnOff, error)
}

// DatasetWriter persists on/off datasets
type DatasetWriter interface {
	// CheckWritable fails when a file of d already exists in dir
	CheckWritable(dir string, d *dataset.SpectrumDatasetOnOff) error
	WriteOnOff(ctx context.Context, dir string, d *dataset.SpectrumDatasetOnOff, overwrite bool) error
}

// DatasetRepository combines read and write access
type DatasetRepository interface {
	DatasetReader
	DatasetWriter
}

// InfoExporter writes info tables for human consumption
type InfoExporter interface {
	// ExportInfo writes one table per sheet, in order
	ExportInfo(ctx context.Context, path string, sheets []InfoSheet) error
}

// InfoSheet is one named info table
type InfoSheet struct {
	Name string
	Rows []dataset.Info
}
