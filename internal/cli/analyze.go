package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kacperjurak/tafelcore"
	"github.com/kacperjurak/tafelcore/pkg/config"
	"github.com/kacperjurak/tafelcore/pkg/report"
	"github.com/kacperjurak/tafelcore/pkg/sweepio"
)

type analyzeOptions struct {
	minSpan  float64
	onset    float64
	workers  int
	outDir   string
	noCharts bool
	xlsx     string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file[:sample]>...",
		Short: "Analyze sweep files and print one summary line per sample",
		Long: `Analyze reads each sweep file (.csv, .txt or .xlsx), finds its Tafel region
and prints

  sample,tafel slope,onset potential,potential at ref,exchange current density,intercept,r

or "sample,error" when the sample could not be analyzed. The sample name
defaults to the file name and can be given after a colon.

For every sample the derived table (out-<file>), the fitted points
(linear-<file>) and, unless --no-charts is given, Tafel and polarization
charts are written. All Tafel plots are also overlaid in one chart.

Examples:
  tafel analyze cv1.csv cv2.csv:NiFe
  tafel analyze --min-span 0.5 --out-dir results --xlsx results/tafel.xlsx *.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.minSpan, "min-span", tafelcore.DefaultMinSpan, "minimum log j span of the fitted window in decades")
	f.Float64Var(&opts.onset, "onset", 1.0, "current density marking the onset potential (mA/cm^2)")
	f.IntVarP(&opts.workers, "workers", "w", 1, "samples analyzed in parallel")
	f.StringVarP(&opts.outDir, "out-dir", "o", "", "directory for tables and charts (default: next to each input)")
	f.BoolVar(&opts.noCharts, "no-charts", false, "skip PNG charts")
	f.StringVar(&opts.xlsx, "xlsx", "", "also write all results to this workbook")
	return cmd
}

// apply copies the flags the user set onto cfg.
func (o *analyzeOptions) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("min-span") {
		cfg.Analysis.MinSpan = o.minSpan
	}
	if flags.Changed("onset") {
		cfg.Analysis.OnsetThreshold = o.onset
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = o.workers
	}
	if flags.Changed("out-dir") {
		cfg.Output.Dir = o.outDir
	}
	if flags.Changed("no-charts") {
		cfg.Output.Charts = !o.noCharts
	}
	if flags.Changed("xlsx") {
		cfg.Output.Workbook = o.xlsx
	}
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	cfg := a.cfg
	opts.apply(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	samples, sweeps, errs := a.readSamples(args, cfg.Input)

	// parallelize across files, or inside the search for a single file
	params := cfg.Params()
	workers := cfg.Analysis.Workers
	if len(args) > 1 {
		params.Workers = 1
	}
	analyzer := tafelcore.NewAnalyzer(params)

	var pending []tafelcore.Sweep
	var index []int
	for i, s := range sweeps {
		if errs[i] == nil {
			pending = append(pending, s)
			index = append(index, i)
		}
	}
	analyses := make([]*tafelcore.Analysis, len(samples))
	for _, res := range tafelcore.AnalyzeAll(cmd.Context(), analyzer, pending, workers) {
		i := index[res.Index]
		analyses[i], errs[i] = res.Analysis, res.Err
	}

	out, err := newOutputs(cfg.Output, a.logger)
	if err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	failed := 0
	for i, s := range samples {
		if errs[i] != nil {
			failed++
			fmt.Fprintln(stdout, report.ErrorLine(s.ID))
			a.logger.Warn("❌ Analysis failed",
				slog.String("sample", s.ID),
				slog.String("file", s.Path),
				slog.String("kind", tafelcore.ErrorKind(errs[i])),
				slog.String("error", errs[i].Error()),
			)
			out.fail(s, errs[i])
			continue
		}

		an := analyses[i]
		fmt.Fprintln(stdout, report.SummaryLine(s.ID, an.Summary))
		for _, w := range an.Summary.Warnings {
			a.logger.Warn("⚠️ "+w, slog.String("sample", s.ID))
		}
		a.logger.Info("✅ Sample analyzed",
			slog.String("sample", s.ID),
			slog.Int("boundary", an.Boundary),
			slog.Int("window_start", an.Window.Start),
			slog.Int("window_end", an.Window.End),
			slog.Float64("tafel_slope", an.Summary.TafelSlope),
		)
		out.add(s, an)
	}

	if err := out.close(); err != nil {
		return err
	}

	if failed == len(samples) {
		return fmt.Errorf("all %d samples failed", failed)
	}
	return nil
}

// readSamples parses every argument and reads its sweep. A sample that
// cannot be read carries its error.
func (a *app) readSamples(args []string, in config.InputConfig) ([]sweepio.Sample, []tafelcore.Sweep, []error) {
	opts := sweepio.Options{
		HeaderRows:    in.HeaderRows,
		VoltageColumn: in.VoltageColumn,
		CurrentColumn: in.CurrentColumn,
		Sheet:         in.Sheet,
	}

	samples := make([]sweepio.Sample, len(args))
	sweeps := make([]tafelcore.Sweep, len(args))
	errs := make([]error, len(args))
	for i, arg := range args {
		s, err := sweepio.ParseSample(arg)
		if err != nil {
			samples[i], errs[i] = sweepio.Sample{Path: arg, ID: arg}, err
			continue
		}
		samples[i] = s

		sweep, err := sweepio.ReadFile(s.Path, opts)
		if err == nil {
			err = sweep.Validate()
		}
		sweeps[i], errs[i] = sweep, err
		a.logger.Debug("sweep read",
			slog.String("sample", s.ID),
			slog.String("file", s.Path),
			slog.Int("samples", len(sweep)),
		)
	}
	return samples, sweeps, errs
}
