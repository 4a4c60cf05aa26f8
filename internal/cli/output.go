package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kacperjurak/tafelcore"
	"github.com/kacperjurak/tafelcore/pkg/config"
	"github.com/kacperjurak/tafelcore/pkg/report"
	"github.com/kacperjurak/tafelcore/pkg/sweepio"
)

// outputs writes the per-sample report files and collects the overlay
// chart and workbook until close.
type outputs struct {
	cfg      config.OutputConfig
	chart    report.ChartOptions
	overlay  *report.Overlay
	workbook *report.Workbook
	logger   *slog.Logger
}

func newOutputs(cfg config.OutputConfig, logger *slog.Logger) (*outputs, error) {
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	chart := report.DefaultChartOptions()
	chart.Size = cfg.ChartSize
	o := &outputs{cfg: cfg, chart: chart, logger: logger}

	if cfg.Charts && cfg.OverlayFile != "" {
		o.overlay = report.NewOverlay("Tafel plots")
	}
	if cfg.Workbook != "" {
		wb, err := report.NewWorkbook()
		if err != nil {
			return nil, err
		}
		o.workbook = wb
	}
	return o, nil
}

// add writes the files of one analyzed sample. Failures are logged; the
// summary line has already been printed.
func (o *outputs) add(s sweepio.Sample, an *tafelcore.Analysis) {
	paths := report.OutputPaths(o.cfg.Dir, s.Path)

	err := errors.Join(
		writeFile(paths.Table, func(w io.Writer) error { return report.WriteTable(w, an.Rows) }),
		writeFile(paths.Linear, func(w io.Writer) error { return report.WriteLinear(w, an.Candidates, an.Window) }),
	)
	if o.cfg.Charts {
		err = errors.Join(err, o.charts(s, an, paths))
	}
	if o.overlay != nil {
		err = errors.Join(err, o.overlay.Add(s.ID, an))
	}
	if o.workbook != nil {
		err = errors.Join(err, o.workbook.AddSample(s.ID, an))
	}
	if err != nil {
		o.logger.Error("❌ Failed to write report", slog.String("sample", s.ID), slog.String("error", err.Error()))
	}
}

func (o *outputs) charts(s sweepio.Sample, an *tafelcore.Analysis, paths report.Paths) error {
	tafel, err := report.TafelChart(s.ID, an)
	if err != nil {
		return err
	}
	if err := report.Save(paths.Tafel, tafel, o.chart); err != nil {
		return err
	}
	pc, err := report.PolarizationChart(s.ID, an.Rows, true)
	if err != nil {
		return err
	}
	return report.Save(paths.Polarization, pc, o.chart)
}

// fail records a failed sample in the workbook.
func (o *outputs) fail(s sweepio.Sample, cause error) {
	if o.workbook == nil {
		return
	}
	if err := o.workbook.AddFailure(s.ID, cause); err != nil {
		o.logger.Error("❌ Failed to write report", slog.String("sample", s.ID), slog.String("error", err.Error()))
	}
}

// close writes the overlay chart and the workbook.
func (o *outputs) close() error {
	var errs []error
	if o.overlay != nil && o.overlay.Len() > 0 {
		path := filepath.Join(o.cfg.Dir, o.cfg.OverlayFile)
		if err := report.Save(path, o.overlay.Plot(), o.chart); err != nil {
			errs = append(errs, err)
		} else {
			o.logger.Info("📊 Overlay chart saved", slog.String("file", path), slog.Int("samples", o.overlay.Len()))
		}
	}
	if o.workbook != nil {
		if err := o.workbook.SaveAs(o.cfg.Workbook); err != nil {
			errs = append(errs, fmt.Errorf("save workbook: %w", err))
		} else {
			o.logger.Info("📊 Workbook saved", slog.String("file", o.cfg.Workbook))
		}
		errs = append(errs, o.workbook.Close())
	}
	return errors.Join(errs...)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
