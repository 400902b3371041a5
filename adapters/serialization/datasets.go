// Package serialization reads and writes dataset collections as a YAML index
// of OGIP files plus a YAML models file.
package serialization

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gammastack/adapters/ogip"
	"gammastack/domain/core"
	"gammastack/domain/dataset"
	"gammastack/internal"
	"gammastack/internal/errors"
	"gammastack/ports"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of datasets read at once
const DefaultConcurrency = 4

// DatasetsFile is the YAML index of a dataset collection
type DatasetsFile struct {
	Datasets []DatasetEntry `yaml:"datasets"`
}

// DatasetEntry points at the OGIP file of one dataset, relative to the
// index file
type DatasetEntry struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Filename string `yaml:"filename"`
}

// Serializer writes and reads dataset collections
type Serializer struct {
	repo        ports.DatasetRepository
	concurrency int
	logger      *internal.Logger // Logger for controlled verbosity
}

// NewSerializer creates a serializer storing datasets through repo
func NewSerializer(repo ports.DatasetRepository) *Serializer {
	return &Serializer{
		repo:        repo,
		concurrency: DefaultConcurrency,
		logger:      internal.DefaultLogger.With("serialization"),
	}
}

// WithConcurrency sets how many datasets are read in parallel
func (s *Serializer) WithConcurrency(n int) *Serializer {
	if n < 1 {
		n = 1
	}
	s.concurrency = n
	return s
}

// WithLogger replaces the serializer logger
func (s *Serializer) WithLogger(logger *internal.Logger) *Serializer {
	s.logger = logger
	return s
}

// WriteDatasets writes every dataset next to filename, then the index and,
// when filenameModels is set, the shared models. Only on/off datasets have
// a file representation.
func (s *Serializer) WriteDatasets(ctx context.Context, datasets *dataset.Datasets, filename, filenameModels string, overwrite bool) error {
	dir := filepath.Dir(filename)
	onoffs := make([]*dataset.SpectrumDatasetOnOff, 0, datasets.Len())
	for _, d := range datasets.All() {
		onoff, ok := d.(*dataset.SpectrumDatasetOnOff)
		if !ok {
			return fmt.Errorf("%w: cannot write %s dataset %s", core.ErrIncompatibleType, d.Type(), d.Name())
		}
		onoffs = append(onoffs, onoff)
	}
	// nothing is written unless every target is free
	if !overwrite {
		for _, path := range []string{filename, filenameModels} {
			if path == "" {
				continue
			}
			if _, err := os.Stat(path); err == nil {
				return errors.IOError(path, os.ErrExist)
			}
		}
		for _, d := range onoffs {
			if err := s.repo.CheckWritable(dir, d); err != nil {
				return err
			}
		}
	}

	index := DatasetsFile{Datasets: make([]DatasetEntry, 0, len(onoffs))}
	for _, d := range onoffs {
		if err := s.repo.WriteOnOff(ctx, dir, d, overwrite); err != nil {
			return err
		}
		pha, _, _, _ := ogip.Filenames(d.Name())
		index.Datasets = append(index.Datasets, DatasetEntry{Name: d.Name(), Type: d.Type(), Filename: pha})
	}

	if err := writeYAML(filename, index, overwrite); err != nil {
		return err
	}
	if filenameModels != "" {
		if err := WriteModels(filenameModels, datasets.Models(), overwrite); err != nil {
			return err
		}
	}
	s.logger.Info("Wrote %d datasets to %s", datasets.Len(), filename)
	return nil
}

// ReadDatasets reads the index at filename and every dataset it lists,
// several at a time, keeping the index order. The models file is optional.
func (s *Serializer) ReadDatasets(ctx context.Context, filename, filenameModels string) (*dataset.Datasets, error) {
	var index DatasetsFile
	if err := readYAML(filename, &index); err != nil {
		return nil, err
	}
	dir := filepath.Dir(filename)
	for _, entry := range index.Datasets {
		if entry.Type != "" && entry.Type != dataset.TypeSpectrumOnOff {
			return nil, errors.FormatError(filename, fmt.Sprintf("dataset %s has unsupported type %q", entry.Name, entry.Type))
		}
	}

	loaded := make([]dataset.Dataset, len(index.Datasets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, entry := range index.Datasets {
		g.Go(func() error {
			d, err := s.repo.ReadOnOff(gctx, filepath.Join(dir, entry.Filename))
			if err != nil {
				return err
			}
			if entry.Name != "" && entry.Name != d.Name() {
				loaded[i] = d.CopyAs(entry.Name)
				return nil
			}
			loaded[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	datasets, err := dataset.NewDatasets(loaded...)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid datasets in %s", filename)
	}
	if filenameModels != "" {
		models, err := ReadModels(filenameModels)
		if err != nil {
			return nil, err
		}
		datasets.SetModels(models)
	}
	s.logger.Info("Read %d datasets from %s", datasets.Len(), filename)
	return datasets, nil
}
