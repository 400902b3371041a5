package testkit

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"gammastack/adapters/rng"
	"gammastack/domain/axis"
	"gammastack/domain/core"
	"gammastack/domain/dataset"
	"gammastack/domain/edisp"
	"gammastack/domain/gti"
	"gammastack/domain/model"
	"gammastack/domain/run"
	"gammastack/domain/spectrum"
	"gammastack/ports"
)

// Reference is the reference time shared by the fixtures (2010-01-01)
var Reference = core.NewMJD(time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC))

// TestKit provides testing utilities and fixtures
type TestKit struct {
	ledger *InMemoryLedgerAdapter // Shared ledger instance
}

// NewTestKit creates a new test kit instance
func NewTestKit() *TestKit {
	return &TestKit{ledger: NewInMemoryLedgerAdapter()}
}

// LedgerAdapter returns the shared in-memory ledger
func (t *TestKit) LedgerAdapter() ports.LedgerPort {
	return t.ledger
}

// RNGAdapter returns the deterministic random source adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return rng.NewPCGAdapter()
}

// LogAxis returns n log-spaced bins between emin and emax
func LogAxis(emin, emax float64, n int, kind axis.Kind) *axis.EnergyAxis {
	return must(axis.FromEnergyBounds(emin, emax, n, kind))
}

// OnOffDataset is the reference on/off dataset: 4 reco bins and 9 true
// bins over 0.1-10 TeV, 1 cm² over 1000 s, on counts [1,1,1,0], 10 off
// counts per bin, alpha 0.1 and a diagonal response.
func OnOffDataset() *dataset.SpectrumDatasetOnOff {
	reco := LogAxis(0.1, 10, 4, axis.Reco)
	etrue := LogAxis(0.1, 10, 9, axis.True)

	exposure := spectrum.Full(etrue, 1000)
	exposure.SetMeta(spectrum.MetaLivetime, 1000)
	kernel := must(edisp.NewKernelMapWithExposure(edisp.Diagonal(reco, etrue), exposure.Data))

	return must(dataset.NewSpectrumDatasetOnOff(dataset.OnOffOptions{
		Options: dataset.Options{
			Name:     "test",
			Counts:   must(spectrum.NewMap(reco, []float64{1, 1, 1, 0})),
			Exposure: exposure,
			Edisp:    kernel,
			GTI:      must(gti.New([]float64{0}, []float64{1000}, Reference)),
		},
		CountsOff:     spectrum.Full(reco, 10),
		Acceptance:    spectrum.Scalar(1),
		AcceptanceOff: spectrum.Scalar(10),
	}))
}

// ObservationList returns two on/off observations over three bins sharing
// on counts [0,1,2], with off counts [1,0,1] and [3,0,3] and off
// acceptances 2 and 4. The middle bin has no off counts in either.
func ObservationList() []*dataset.SpectrumDatasetOnOff {
	reco := LogAxis(0.1, 10, 3, axis.Reco)
	etrue := reco.WithKind(axis.True)

	// 1 m² over 2 h
	exposure := spectrum.Full(etrue, 1e4*7200)
	exposure.SetMeta(spectrum.MetaLivetime, 7200)
	kernel := must(edisp.Gaussian(reco, etrue, 0.2, 0))

	gtis := []*gti.GTI{
		must(gti.New([]float64{5, 6, 1, 2}, []float64{8, 7, 3, 4}, Reference)),
		must(gti.New([]float64{14}, []float64{15}, Reference)),
	}
	off := [][]float64{{1, 0, 1}, {3, 0, 3}}
	accOff := []float64{2, 4}

	out := make([]*dataset.SpectrumDatasetOnOff, 2)
	for i := range out {
		out[i] = must(dataset.NewSpectrumDatasetOnOff(dataset.OnOffOptions{
			Options: dataset.Options{
				Name:      fmt.Sprintf("obs-%d", i+1),
				Counts:    must(spectrum.NewMap(reco, []float64{0, 1, 2})),
				Exposure:  exposure,
				Edisp:     must(edisp.NewKernelMapWithExposure(kernel, exposure.Data)),
				GTI:       gtis[i],
				MetaTable: []dataset.MetaRow{{"OBS_ID": fmt.Sprint(i)}},
			},
			CountsOff:     must(spectrum.NewMap(reco, off[i])),
			Acceptance:    spectrum.Scalar(1),
			AcceptanceOff: spectrum.Scalar(accOff[i]),
		}))
	}
	return out
}

// CashDataset is a 30 bin dataset over 0.1-10 TeV with a power law source
// (index 2.1, 1e5 cm⁻² s⁻¹ TeV⁻¹ at 0.1 TeV) seen for 100 s with 1 cm²,
// one background count per second and bin, and GTIs of 2.5 days in total.
// Its counts are zero until faked.
func CashDataset() *dataset.SpectrumDataset {
	reco := LogAxis(0.1, 10, 30, axis.Reco)
	etrue := reco.WithKind(axis.True)

	exposure := spectrum.Full(etrue, 100)
	exposure.SetMeta(spectrum.MetaLivetime, 100)

	source := model.NewSkyModel("test-source", model.NewPowerLaw(2.1, 1e5, 0.1), model.NewConstantTemporal())
	models := must(model.NewModels(source))

	return must(dataset.NewSpectrumDataset(dataset.Options{
		Name:       "test",
		Counts:     spectrum.Zeros(reco),
		Exposure:   exposure,
		Background: spectrum.Full(reco, 100),
		GTI: must(gti.New(
			[]float64{core.DaysToSeconds(1), core.DaysToSeconds(3), core.DaysToSeconds(5)},
			[]float64{core.DaysToSeconds(2), core.DaysToSeconds(3.5), core.DaysToSeconds(6)},
			55555,
		)),
		Models: models,
	}))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("testkit fixture: %v", err))
	}
	return v
}

// InMemoryLedgerAdapter implements LedgerPort with in-memory storage
type InMemoryLedgerAdapter struct {
	manifests map[run.ID]run.Manifest
	fits      []run.FitRecord
	info      map[run.ID][]dataset.Info
	mu        sync.RWMutex
}

func NewInMemoryLedgerAdapter() *InMemoryLedgerAdapter {
	return &InMemoryLedgerAdapter{
		manifests: make(map[run.ID]run.Manifest),
		info:      make(map[run.ID][]dataset.Info),
	}
}

func (s *InMemoryLedgerAdapter) RecordManifest(ctx context.Context, m *run.Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.manifests[m.RunID]; exists {
		return fmt.Errorf("%w: run %s", core.ErrDuplicateName, m.RunID)
	}
	s.manifests[m.RunID] = *m
	return nil
}

func (s *InMemoryLedgerAdapter) RecordFit(ctx context.Context, r *run.FitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.manifests[r.RunID]; !exists {
		return fmt.Errorf("run %s has no manifest", r.RunID)
	}
	s.fits = append(s.fits, *r)
	return nil
}

func (s *InMemoryLedgerAdapter) RecordInfo(ctx context.Context, runID run.ID, rows []dataset.Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.manifests[runID]; !exists {
		return fmt.Errorf("run %s has no manifest", runID)
	}
	s.info[runID] = append(s.info[runID], rows...)
	return nil
}

func (s *InMemoryLedgerAdapter) GetManifest(ctx context.Context, runID run.ID) (*run.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.manifests[runID]
	if !exists {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return &m, nil
}

func (s *InMemoryLedgerAdapter) ListFits(ctx context.Context, filters ports.FitFilters) ([]run.FitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []run.FitRecord
	for _, r := range s.fits {
		if filters.RunID != nil && r.RunID != *filters.RunID {
			continue
		}
		if filters.Dataset != "" && !slices.Contains(r.Datasets, filters.Dataset) {
			continue
		}
		results = append(results, r)
	}

	if filters.Offset > 0 {
		if filters.Offset >= len(results) {
			return nil, nil
		}
		results = results[filters.Offset:]
	}
	if filters.Limit > 0 && len(results) > filters.Limit {
		results = results[:filters.Limit]
	}
	return results, nil
}

func (s *InMemoryLedgerAdapter) ListInfo(ctx context.Context, runID run.ID) ([]dataset.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]dataset.Info(nil), s.info[runID]...), nil
}
