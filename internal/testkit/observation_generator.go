package testkit

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gammastack/adapters/rng"
	"gammastack/domain/axis"
	"gammastack/domain/core"
	"gammastack/domain/dataset"
	"gammastack/domain/edisp"
	"gammastack/domain/gti"
	"gammastack/domain/model"
	"gammastack/domain/spectrum"
	"gammastack/ports"
)

// ObservationGeneratorConfig configures the simulated observation generator
type ObservationGeneratorConfig struct {
	Observations   int     `json:"observations"`
	EMin           float64 `json:"emin"`            // TeV
	EMax           float64 `json:"emax"`            // TeV
	NBinReco       int     `json:"nbin_reco"`       // reco bins over [EMin, EMax]
	NBinTrue       int     `json:"nbin_true"`       // true bins over [EMin, EMax]
	Livetime       float64 `json:"livetime"`        // s per observation
	EffectiveArea  float64 `json:"effective_area"`  // cm²
	Alpha          float64 `json:"alpha"`           // on/off acceptance ratio
	BackgroundRate float64 `json:"background_rate"` // on-region counts per second and bin
	Resolution     float64 `json:"resolution"`      // relative energy resolution
	Threshold      float64 `json:"threshold"`       // safe threshold of the first observation, TeV
	Index          float64 `json:"index"`
	Amplitude      float64 `json:"amplitude"` // cm⁻² s⁻¹ TeV⁻¹ at 1 TeV
	Seed           uint64  `json:"seed"`
}

// DefaultObservationConfig returns a Crab-like source seen by a small array
func DefaultObservationConfig() ObservationGeneratorConfig {
	return ObservationGeneratorConfig{
		Observations:   3,
		EMin:           0.1,
		EMax:           100,
		NBinReco:       12,
		NBinTrue:       24,
		Livetime:       1800,
		EffectiveArea:  1e8,
		Alpha:          0.2,
		BackgroundRate: 0.01,
		Resolution:     0.1,
		Threshold:      0.2,
		Index:          2.5,
		Amplitude:      3.85e-11,
		Seed:           42,
	}
}

// ObservationGenerator simulates on/off observations of a power law source.
// Each observation raises the safe threshold a little so that masks differ.
type ObservationGenerator struct {
	config ObservationGeneratorConfig
}

// NewObservationGenerator creates a new observation generator
func NewObservationGenerator(config ObservationGeneratorConfig) *ObservationGenerator {
	return &ObservationGenerator{config: config}
}

// Source returns the simulated sky model
func (g *ObservationGenerator) Source() *model.SkyModel {
	return model.NewSkyModel("source", model.NewPowerLaw(g.config.Index, g.config.Amplitude, 1), nil)
}

// Generate simulates every observation. Identical configs give identical
// counts.
func (g *ObservationGenerator) Generate() ([]*dataset.SpectrumDatasetOnOff, error) {
	return g.GenerateWith(context.Background(), rng.NewPCGAdapter())
}

// GenerateWith simulates every observation drawing counts from one seeded
// stream per observation name
func (g *ObservationGenerator) GenerateWith(ctx context.Context, rngPort ports.RNGPort) ([]*dataset.SpectrumDatasetOnOff, error) {
	c := g.config
	if c.Observations <= 0 || c.Alpha <= 0 || c.Livetime <= 0 {
		return nil, core.NewValidationError("observation generator", "observations, alpha and livetime must be positive")
	}
	reco, err := axis.FromEnergyBounds(c.EMin, c.EMax, c.NBinReco, axis.Reco)
	if err != nil {
		return nil, err
	}
	etrue, err := axis.FromEnergyBounds(c.EMin, c.EMax, c.NBinTrue, axis.True)
	if err != nil {
		return nil, err
	}
	kernel, err := edisp.Gaussian(reco, etrue, c.Resolution, 0)
	if err != nil {
		return nil, err
	}
	models, err := model.NewModels(g.Source())
	if err != nil {
		return nil, err
	}

	out := make([]*dataset.SpectrumDatasetOnOff, 0, c.Observations)
	for i := 0; i < c.Observations; i++ {
		src, err := rngPort.SeededStream(ctx, fmt.Sprintf("obs-%d", i+1), c.Seed)
		if err != nil {
			return nil, err
		}
		obs, err := g.observation(i, reco, etrue, kernel, models, src)
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

func (g *ObservationGenerator) observation(i int, reco, etrue *axis.EnergyAxis, kernel *edisp.Kernel, models *model.Models, src rand.Source) (*dataset.SpectrumDatasetOnOff, error) {
	c := g.config

	exposure := spectrum.Full(etrue, c.EffectiveArea*c.Livetime)
	exposure.SetMeta(spectrum.MetaLivetime, c.Livetime)
	km, err := edisp.NewKernelMapWithExposure(kernel, exposure.Data)
	if err != nil {
		return nil, err
	}

	threshold := c.Threshold * (1 + 0.5*float64(i))
	mask, err := spectrum.NewMask(reco, reco.EnergyMask(threshold, c.EMax))
	if err != nil {
		return nil, err
	}

	// observations are separated by one livetime
	start := 2 * float64(i) * c.Livetime
	times, err := gti.New([]float64{start}, []float64{start + c.Livetime}, Reference)
	if err != nil {
		return nil, err
	}

	obs, err := dataset.NewSpectrumDatasetOnOff(dataset.OnOffOptions{
		Options: dataset.Options{
			Name:      fmt.Sprintf("obs-%d", i+1),
			Counts:    spectrum.Zeros(reco),
			Exposure:  exposure,
			Edisp:     km,
			MaskSafe:  mask,
			GTI:       times,
			MetaTable: []dataset.MetaRow{{"OBS_ID": fmt.Sprint(i + 1)}},
			Models:    models,
		},
		Acceptance:    spectrum.Scalar(1),
		AcceptanceOff: spectrum.Scalar(1 / c.Alpha),
	})
	if err != nil {
		return nil, err
	}

	background := spectrum.Full(reco, c.BackgroundRate*c.Livetime)
	if err := obs.Fake(background, src); err != nil {
		return nil, err
	}
	return obs, nil
}
