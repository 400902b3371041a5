package main

import (
	"fmt"
	"os"

	"gammastack/internal/errors"

	"github.com/spf13/cobra"
)

// codeVersion is recorded in every run manifest
const codeVersion = "gammastack-0.3.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "gammastack",
		Short: "Stack and fit ON/OFF spectral datasets",
		Long: `gammastack simulates, stacks, summarises and fits ON/OFF spectra stored
as OGIP files indexed by a datasets YAML file.

Configuration is read from the environment (and an optional .env file):
FIT_METHOD, FIT_MAX_ITERATIONS, FIT_TOLERANCE, FIT_ERRORS, LEDGER_DRIVER,
LEDGER_DSN, OUTPUT_DIR, INFO_WORKBOOK, SIM_SEED, SIM_OBSERVATIONS,
SIM_LIVETIME and LOG_LEVEL.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newSimulateCmd(),
		newStackCmd(),
		newInfoCmd(),
		newFitCmd(),
		newHistoryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError prefixes application errors with their code
func formatError(err error) string {
	if errors.IsAppError(err) {
		return fmt.Sprintf("[%s] %v", errors.GetCode(err), err)
	}
	return err.Error()
}

func newSimulateCmd() *cobra.Command {
	var outDir string
	var seed uint64
	var observations int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate ON/OFF observations of a power law source",
		Long: `Simulate ON/OFF observations of a Crab-like power law and write them as
OGIP files with a datasets.yaml index and a models.yaml file.

Example: gammastack simulate --out ./sim --observations 5 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if cmd.Flags().Changed("seed") {
				a.cfg.Simulation.Seed = seed
			}
			if cmd.Flags().Changed("observations") {
				a.cfg.Simulation.Observations = observations
			}
			return a.runSimulate(cmd.Context(), a.outDir(outDir))
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default OUTPUT_DIR)")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed (default SIM_SEED)")
	cmd.Flags().IntVar(&observations, "observations", 3, "Number of observations (default SIM_OBSERVATIONS)")
	return cmd
}

func newStackCmd() *cobra.Command {
	var outDir string
	var name string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "stack [datasets.yaml]",
		Short: "Stack every dataset of a collection into one",
		Long: `Stack the datasets of a collection into a single ON/OFF dataset and write it
with its own index as stacked.yaml. The per-dataset and cumulative info
tables are recorded in the ledger.

Example: gammastack stack ./sim/datasets.yaml --out ./stacked --name crab`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.runStack(cmd.Context(), args[0], a.outDir(outDir), name, overwrite)
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default OUTPUT_DIR)")
	cmd.Flags().StringVar(&name, "name", "stacked", "Name of the stacked dataset")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	return cmd
}

func newInfoCmd() *cobra.Command {
	var cumulative bool
	var workbook string

	cmd := &cobra.Command{
		Use:   "info [datasets.yaml]",
		Short: "Print the info table of a collection",
		Long: `Print the per-dataset info table of a collection, or the running stacked
totals with --cumulative. With --xlsx (or INFO_WORKBOOK) both tables are
exported to a workbook.

Example: gammastack info ./sim/datasets.yaml --cumulative --xlsx info.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if workbook == "" {
				workbook = a.cfg.Paths.InfoWorkbook
			}
			return a.runInfo(cmd.Context(), args[0], cumulative, workbook)
		},
	}

	cmd.Flags().BoolVar(&cumulative, "cumulative", false, "Print running stacked totals")
	cmd.Flags().StringVar(&workbook, "xlsx", "", "Export both tables to this workbook")
	return cmd
}

func newFitCmd() *cobra.Command {
	var opts fitOptions

	cmd := &cobra.Command{
		Use:   "fit [datasets.yaml] [models.yaml]",
		Short: "Fit models to a collection",
		Long: `Fit the models to the datasets of a collection by minimising the summed
fit statistic (CASH or WSTAT). The result is recorded in the ledger.

Example: gammastack fit ./sim/datasets.yaml ./sim/models.yaml --stack --profile index --values 2.3,2.5,2.7`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if opts.method != "" {
				a.cfg.Fit.Method = opts.method
			}
			return a.runFit(cmd.Context(), args[0], args[1], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.stack, "stack", false, "Stack the datasets before fitting")
	cmd.Flags().StringVar(&opts.method, "method", "", "Optimiser: nelder-mead|bfgs (default FIT_METHOD)")
	cmd.Flags().StringVar(&opts.writeModels, "write-models", "", "Write the fitted models to this file")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "Parameter to profile after the fit")
	cmd.Flags().Float64SliceVar(&opts.values, "values", nil, "Profile values")
	cmd.Flags().BoolVar(&opts.reoptimize, "reoptimize", false, "Refit the other parameters at every profile value")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var datasetName string
	var runID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded fits",
		Long: `List the fit results recorded in the ledger, oldest first.

Example: gammastack history --dataset obs-1 --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.runHistory(cmd.Context(), runID, datasetName, limit)
		},
	}

	cmd.Flags().StringVar(&datasetName, "dataset", "", "Only fits that used this dataset")
	cmd.Flags().StringVar(&runID, "run", "", "Only fits of this run")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of fits")
	return cmd
}
