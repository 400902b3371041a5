// Package fit minimises the joint likelihood of a dataset collection over
// the free model parameters and estimates their errors.
package fit

import (
	"context"
	"fmt"
	"math"
	"time"

	"gammastack/domain/dataset"
	"gammastack/domain/model"
	"gammastack/domain/run"
	"gammastack/internal"
	"gammastack/internal/config"
	"gammastack/internal/errors"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Fit drives the optimiser over a dataset collection. Parameter values are
// updated in place on the models attached to the datasets.
type Fit struct {
	datasets *dataset.Datasets // Datasets whose StatSum is minimised
	config   config.FitConfig  // Optimiser settings
	logger   *internal.Logger  // Logger for controlled verbosity
}

// Result is the outcome of Run
type Result struct {
	Parameters *model.Parameters // Copy of the free parameters at the optimum
	TotalStat  float64
	Success    bool
	Message    string
	NFev       int
	NIter      int
	// Covariance of the free parameter values; nil when errors were not
	// estimated or the Hessian could not be inverted
	Covariance *mat.SymDense
	Duration   time.Duration
}

// New creates a fit over datasets
func New(datasets *dataset.Datasets, cfg config.FitConfig) *Fit {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = config.Default().Fit.MaxIterations
	}
	if !(cfg.Tolerance > 0) {
		cfg.Tolerance = config.Default().Fit.Tolerance
	}
	if cfg.Method == "" {
		cfg.Method = config.MethodNelderMead
	}
	return &Fit{datasets: datasets, config: cfg, logger: internal.DefaultLogger.With("fit")}
}

// WithLogger replaces the logger
func (f *Fit) WithLogger(logger *internal.Logger) *Fit {
	f.logger = logger
	return f
}

// Run optimises the free parameters and, when enabled, estimates their
// errors. A fit that stops without converging is reported through
// Result.Success, not as an error.
func (f *Fit) Run(ctx context.Context) (*Result, error) {
	res, err := f.Optimize(ctx)
	if err != nil {
		return nil, err
	}
	if !f.config.Errors || res.Parameters.Len() == 0 {
		return res, nil
	}
	cov, err := f.Covariance(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn("error estimation failed: %v", err)
		return res, nil
	}
	res.Covariance = cov
	res.Parameters = f.free().Copy()
	return res, nil
}

func (f *Fit) free() *model.Parameters {
	return f.datasets.Parameters().Free()
}

// objective evaluates the total statistic at the given factors. Factors
// outside the parameter bounds give +Inf.
func (f *Fit) objective(params *model.Parameters, nfev *int) func(x []float64) float64 {
	return func(x []float64) float64 {
		*nfev++
		for i, p := range params.All() {
			p.SetFactor(x[i])
			if !p.InBounds(p.Value) {
				return math.Inf(1)
			}
		}
		stat, err := f.datasets.StatSum()
		if err != nil || math.IsNaN(stat) {
			return math.Inf(1)
		}
		return stat
	}
}

// Optimize minimises the total statistic without estimating errors
func (f *Fit) Optimize(ctx context.Context) (*Result, error) {
	start := time.Now()
	params := f.free()
	if _, err := f.datasets.StatSum(); err != nil {
		return nil, errors.Wrap(err, "initial statistic")
	}
	if params.Len() == 0 {
		stat, _ := f.datasets.StatSum()
		return &Result{Parameters: params.Copy(), TotalStat: stat, Success: true, Message: "no free parameters"}, nil
	}
	for _, p := range params.All() {
		p.AutoScale()
	}

	f.logger.Info("Starting %s fit of %d datasets (%d free parameters)", f.config.Method, f.datasets.Len(), params.Len())

	var nfev int
	problem := optimize.Problem{
		Func: f.objective(params, &nfev),
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	var method optimize.Method = &optimize.NelderMead{}
	if f.config.Method == config.MethodBFGS {
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, problem.Func, x, nil)
		}
		method = &optimize.BFGS{}
	}

	settings := &optimize.Settings{
		MajorIterations: f.config.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   f.config.Tolerance,
			Iterations: 50,
		},
	}

	initial := params.Factors()
	out, err := optimize.Minimize(problem, initial, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		_ = params.SetFactors(initial)
		return nil, ctxErr
	}
	if out == nil {
		_ = params.SetFactors(initial)
		return nil, errors.FitFailed("optimiser failed", err)
	}

	if err := params.SetFactors(out.X); err != nil {
		return nil, err
	}
	stat, statErr := f.datasets.StatSum()
	if statErr != nil {
		return nil, errors.Wrap(statErr, "statistic at optimum")
	}

	res := &Result{
		Parameters: params.Copy(),
		TotalStat:  stat,
		Success:    err == nil && converged(out.Status),
		Message:    out.Status.String(),
		NFev:       nfev,
		NIter:      out.MajorIterations,
		Duration:   time.Since(start),
	}
	if err != nil {
		res.Message = fmt.Sprintf("%s: %v", out.Status, err)
	}
	if res.Success {
		f.logger.Info("Fit converged: stat=%.4f after %d evaluations in %.2fs", stat, nfev, res.Duration.Seconds())
	} else {
		f.logger.Warn("Fit did not converge: %s", res.Message)
	}
	return res, nil
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold, optimize.MethodConverge:
		return true
	}
	return false
}

// Covariance estimates the covariance of the free parameters at the
// current values as twice the inverse Hessian of the total statistic.
// Parameter errors are set from its diagonal.
func (f *Fit) Covariance(ctx context.Context) (*mat.SymDense, error) {
	params := f.free()
	n := params.Len()
	if n == 0 {
		return nil, errors.ValidationError("no free parameters")
	}
	for _, p := range params.All() {
		p.AutoScale()
	}

	x := params.Factors()
	defer func() { _ = params.SetFactors(x) }()

	var nfev int
	objective := f.objective(params, &nfev)
	hess := mat.NewSymDense(n, nil)
	fd.Hessian(hess, objective, x, nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		return nil, errors.FitFailed("hessian is not positive definite", nil)
	}
	inv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, errors.FitFailed("hessian inversion failed", err)
	}

	scales := make([]float64, n)
	for i, p := range params.All() {
		scales[i] = p.Scale
	}
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, 2*inv.At(i, j)*scales[i]*scales[j])
		}
	}
	for i, p := range params.All() {
		// a negative variance means the Hessian is not positive definite there
		p.Error = 0
		if v := cov.At(i, i); v > 0 {
			p.Error = math.Sqrt(v)
		}
	}
	f.logger.Debug("Hessian estimated with %d evaluations", nfev)
	return cov, nil
}

// Record converts the result into a ledger row
func (r *Result) Record(runID run.ID, datasets []string, statType string) *run.FitRecord {
	rec := &run.FitRecord{
		RunID:     runID,
		Datasets:  append([]string(nil), datasets...),
		StatType:  statType,
		TotalStat: r.TotalStat,
		Success:   r.Success,
		Message:   r.Message,
		NFev:      r.NFev,
	}
	for _, p := range r.Parameters.All() {
		rec.Parameters = append(rec.Parameters, run.ParameterValue{
			Name:   p.Name,
			Value:  p.Value,
			Error:  p.Error,
			Unit:   p.Unit,
			Frozen: p.Frozen,
		})
	}
	return rec
}
