package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gammastack/adapters/excel"
	"gammastack/adapters/ledger"
	"gammastack/adapters/ogip"
	"gammastack/adapters/rng"
	"gammastack/adapters/serialization"
	"gammastack/domain/core"
	"gammastack/domain/dataset"
	"gammastack/domain/run"
	"gammastack/internal"
	"gammastack/internal/config"
	"gammastack/internal/errors"
	"gammastack/internal/fit"
	"gammastack/internal/testkit"
	"gammastack/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

// app holds the adapters shared by every command
type app struct {
	cfg        *config.Config
	logger     *internal.Logger // Logger for controlled verbosity
	db         *sqlx.DB
	ledger     ports.LedgerPort
	rng        ports.RNGPort
	serializer *serialization.Serializer
	exporter   ports.InfoExporter
}

// newApp loads the configuration and opens the migrated ledger
func newApp(ctx context.Context) (*app, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	internal.DefaultLogger.SetLevel(logger.GetLevel())
	if envErr != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	db, err := ledger.Open(ctx, cfg.Ledger.Driver, cfg.Ledger.DSN)
	if err != nil {
		return nil, err
	}
	if err := ledger.NewMigrator(db).Up(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate ledger")
	}
	logger.Debug("Ledger ready (%s)", cfg.Ledger.Driver)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		ledger:     ledger.NewRepository(db),
		rng:        rng.NewPCGAdapter(),
		serializer: serialization.NewSerializer(ogip.NewRepository().WithLogger(logger.With("ogip"))).WithLogger(logger.With("serialization")),
		exporter:   excel.NewInfoExporter().WithLogger(logger.With("excel")),
	}, nil
}

// Close releases the ledger connection
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close ledger: %v", err)
	}
}

func (a *app) outDir(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Paths.OutputDir
}

// recordManifest stores the manifest of a run over datasets
func (a *app) recordManifest(ctx context.Context, kind run.Kind, ds *dataset.Datasets) (*run.Manifest, error) {
	inputs := make([][]float64, 0, ds.Len())
	for _, d := range ds.All() {
		inputs = append(inputs, countsOf(d))
	}
	modelHash := core.NewHash([]byte(ds.Parameters().String()))
	m := run.NewManifest(kind, ds.Names(), inputs, modelHash, a.cfg.Simulation.Seed, codeVersion)
	if err := a.ledger.RecordManifest(ctx, m); err != nil {
		return nil, err
	}
	a.logger.Debug("Recorded %s run %s (fingerprint %s)", kind, m.RunID, m.Fingerprint.Fingerprint.Short())
	return m, nil
}

func countsOf(d dataset.Dataset) []float64 {
	var sd *dataset.SpectrumDataset
	switch v := d.(type) {
	case *dataset.SpectrumDatasetOnOff:
		sd = &v.SpectrumDataset
	case *dataset.SpectrumDataset:
		sd = v
	}
	if sd == nil || sd.Counts == nil {
		return nil
	}
	return sd.Counts.Data
}

func (a *app) runSimulate(ctx context.Context, outDir string) error {
	sim := a.cfg.Simulation
	genCfg := testkit.DefaultObservationConfig()
	genCfg.Seed = sim.Seed
	genCfg.Observations = sim.Observations
	genCfg.Livetime = sim.Livetime

	a.logger.Info("Simulating %d observations (seed %d, %.0f s each)", sim.Observations, sim.Seed, sim.Livetime)
	obs, err := testkit.NewObservationGenerator(genCfg).GenerateWith(ctx, a.rng)
	if err != nil {
		return err
	}
	items := make([]dataset.Dataset, len(obs))
	for i, o := range obs {
		items[i] = o
	}
	ds, err := dataset.NewDatasets(items...)
	if err != nil {
		return err
	}

	filename := filepath.Join(outDir, "datasets.yaml")
	if err := a.serializer.WriteDatasets(ctx, ds, filename, filepath.Join(outDir, "models.yaml"), true); err != nil {
		return err
	}
	m, err := a.recordManifest(ctx, run.KindSimulate, ds)
	if err != nil {
		return err
	}
	rows, err := ds.InfoTable(false)
	if err != nil {
		return err
	}
	if err := a.ledger.RecordInfo(ctx, m.RunID, rows); err != nil {
		return err
	}

	fmt.Printf("\n🔭 SIMULATED %d OBSERVATIONS (run %s)\n", len(obs), m.RunID)
	printInfoTable(os.Stdout, rows)
	fmt.Printf("\n💾 Datasets written to: %s\n", filename)
	return nil
}

func (a *app) runStack(ctx context.Context, filename, outDir, name string, overwrite bool) error {
	ds, err := a.serializer.ReadDatasets(ctx, filename, "")
	if err != nil {
		return err
	}
	a.logger.Info("Stacking %d datasets into %s", ds.Len(), name)
	stacked, err := ds.StackReduce(name)
	if err != nil {
		return err
	}

	perDataset, err := ds.InfoTable(false)
	if err != nil {
		return err
	}
	cumulative, err := ds.InfoTable(true)
	if err != nil {
		return err
	}

	out, err := dataset.NewDatasets(stacked)
	if err != nil {
		return err
	}
	stackedFile := filepath.Join(outDir, "stacked.yaml")
	if err := a.serializer.WriteDatasets(ctx, out, stackedFile, "", overwrite); err != nil {
		return err
	}

	m, err := a.recordManifest(ctx, run.KindStack, ds)
	if err != nil {
		return err
	}
	if err := a.ledger.RecordInfo(ctx, m.RunID, append(perDataset, stacked.Info())); err != nil {
		return err
	}

	fmt.Printf("\n📊 STACKED %d DATASETS (run %s)\n", ds.Len(), m.RunID)
	printInfoTable(os.Stdout, cumulative)
	fmt.Printf("\n💾 Stacked dataset written to: %s\n", stackedFile)
	return nil
}

func (a *app) runInfo(ctx context.Context, filename string, cumulative bool, workbook string) error {
	ds, err := a.serializer.ReadDatasets(ctx, filename, "")
	if err != nil {
		return err
	}
	perDataset, err := ds.InfoTable(false)
	if err != nil {
		return err
	}
	stacked, err := ds.InfoTable(true)
	if err != nil {
		return err
	}

	rows := perDataset
	if cumulative {
		rows = stacked
	}
	printInfoTable(os.Stdout, rows)
	printInfoSummary(os.Stdout, perDataset)

	if workbook != "" {
		sheets := []ports.InfoSheet{{Name: "datasets", Rows: perDataset}, {Name: "cumulative", Rows: stacked}}
		if err := a.exporter.ExportInfo(ctx, workbook, sheets); err != nil {
			return err
		}
		fmt.Printf("\n💾 Info tables exported to: %s\n", workbook)
	}
	return nil
}

type fitOptions struct {
	stack       bool
	method      string
	writeModels string
	profile     string
	values      []float64
	reoptimize  bool
}

func (a *app) runFit(ctx context.Context, filename, modelsFile string, opts fitOptions) error {
	switch a.cfg.Fit.Method {
	case config.MethodNelderMead, config.MethodBFGS:
	default:
		return errors.InvalidInput(fmt.Sprintf("unknown fit method %q", a.cfg.Fit.Method))
	}
	if opts.profile != "" && len(opts.values) == 0 {
		return errors.InvalidInput("--profile needs --values")
	}

	ds, err := a.serializer.ReadDatasets(ctx, filename, modelsFile)
	if err != nil {
		return err
	}
	if opts.stack {
		models := ds.Models()
		stacked, err := ds.StackReduce("stacked")
		if err != nil {
			return err
		}
		stacked.SetModels(models)
		if ds, err = dataset.NewDatasets(stacked); err != nil {
			return err
		}
	}
	if ds.Models().Len() == 0 {
		return errors.InvalidInput("no models to fit in " + modelsFile)
	}

	m, err := a.recordManifest(ctx, run.KindFit, ds)
	if err != nil {
		return err
	}

	f := fit.New(ds, a.cfg.Fit).WithLogger(a.logger.With("fit"))
	res, err := f.Run(ctx)
	if err != nil {
		return errors.FitFailed("fit did not complete", err)
	}
	if err := a.ledger.RecordFit(ctx, res.Record(m.RunID, ds.Names(), ds.At(0).StatType())); err != nil {
		return err
	}

	printFitResult(os.Stdout, m.RunID, res, ds.Parameters())

	if opts.profile != "" {
		profile, err := f.StatProfile(ctx, opts.profile, opts.values, opts.reoptimize)
		if err != nil {
			return err
		}
		printProfile(os.Stdout, profile)
	}

	if opts.writeModels != "" {
		if err := serialization.WriteModels(opts.writeModels, ds.Models(), true); err != nil {
			return err
		}
		fmt.Printf("\n💾 Fitted models written to: %s\n", opts.writeModels)
	}
	return nil
}

func (a *app) runHistory(ctx context.Context, runID, datasetName string, limit int) error {
	filters := ports.FitFilters{Dataset: datasetName, Limit: limit}
	if runID != "" {
		id := run.ID(runID)
		filters.RunID = &id
	}
	records, err := a.ledger.ListFits(ctx, filters)
	if err != nil {
		return err
	}
	printFitRecords(os.Stdout, records)
	return nil
}

