package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"gammastack/domain/dataset"
	"gammastack/domain/model"
	"gammastack/domain/run"
	"gammastack/internal/fit"

	"github.com/montanaflynn/stats"
)

func printInfoTable(w io.Writer, rows []dataset.Info) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "name\tcounts\tcounts_off\talpha\texcess\tsqrt_ts\tlivetime\tfit bins\tstat_sum\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.4g\t%.2f\t%.2f\t%.0f\t%d\t%s\t\n",
			r.Name, r.Counts, r.CountsOff, r.Alpha, r.Excess, r.SqrtTS, r.Livetime, r.NFitBins, formatStat(r.StatSum))
	}
	tw.Flush()
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}

// printInfoSummary prints the spread of the per-dataset significance
func printInfoSummary(w io.Writer, rows []dataset.Info) {
	if len(rows) == 0 {
		return
	}
	sqrtTS := make(stats.Float64Data, len(rows))
	excess := make(stats.Float64Data, len(rows))
	for i, r := range rows {
		sqrtTS[i] = r.SqrtTS
		excess[i] = r.Excess
	}
	median, _ := sqrtTS.Median()
	maxTS, _ := sqrtTS.Max()
	total, _ := excess.Sum()

	fmt.Fprintf(w, "\n📈 %d datasets: total excess %.1f, median sqrt_ts %.2f, max sqrt_ts %.2f\n",
		len(rows), total, median, maxTS)
}

func printFitResult(w io.Writer, runID run.ID, res *fit.Result, params *model.Parameters) {
	status := "✅ CONVERGED"
	if !res.Success {
		status = "⚠️  NOT CONVERGED"
	}
	fmt.Fprintf(w, "\n🎯 FIT %s (run %s)\n", status, runID)
	fmt.Fprintf(w, "   Total stat: %.4f  nfev: %d  time: %s\n", res.TotalStat, res.NFev, res.Duration.Round(time.Millisecond))
	if res.Message != "" {
		fmt.Fprintf(w, "   %s\n", res.Message)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nparameter\tvalue\terror\tunit\tfrozen")
	for _, p := range params.All() {
		errStr := "-"
		if !p.Frozen && p.Error > 0 {
			errStr = fmt.Sprintf("%.4g", p.Error)
		}
		fmt.Fprintf(tw, "%s\t%.5g\t%s\t%s\t%t\n", p.Name, p.Value, errStr, p.Unit, p.Frozen)
	}
	tw.Flush()
}

func printProfile(w io.Writer, profile *fit.Profile) {
	best, stat := profile.Min()
	fmt.Fprintf(w, "\n🔍 PROFILE OF %s (minimum %.4f at %.5g)\n", profile.Parameter, stat, best)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "value\tstat\tdelta")
	for i, v := range profile.Values {
		fmt.Fprintf(tw, "%.5g\t%.4f\t%.4f\n", v, profile.StatScan[i], profile.StatScan[i]-stat)
	}
	tw.Flush()
}

func printFitRecords(w io.Writer, records []run.FitRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No fits recorded")
		return
	}
	fmt.Fprintf(w, "\n📚 %d RECORDED FITS\n", len(records))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "run\tdatasets\tstat\ttotal\tsuccess\tnfev")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%d\n", r.RunID, r.DatasetList(), r.StatType, formatStat(r.TotalStat), r.Success, r.NFev)
	}
	tw.Flush()
}
