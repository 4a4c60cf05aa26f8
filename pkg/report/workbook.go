package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kacperjurak/tafelcore"
)

const summarySheet = "Summary"

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")", "'", "",
)

// Workbook collects one sheet per sample plus a summary sheet.
type Workbook struct {
	file *excelize.File
	row  int
}

// NewWorkbook creates a workbook whose first sheet is the summary.
func NewWorkbook() (*Workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		f.Close()
		return nil, err
	}
	header := make([]interface{}, 0, len(SummaryHeader)+1)
	for _, h := range SummaryHeader {
		header = append(header, h)
	}
	header = append(header, "status")
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	return &Workbook{file: f, row: 1}, nil
}

// AddSample writes the derived table and fit of one sample.
func (wb *Workbook) AddSample(id string, an *tafelcore.Analysis) error {
	sheet, err := wb.newSheet(id)
	if err != nil {
		return err
	}

	header := make([]interface{}, 0, len(TableHeader)+len(LinearHeader))
	for _, h := range TableHeader {
		header = append(header, h)
	}
	for _, h := range LinearHeader {
		header = append(header, h)
	}
	if err := wb.file.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	inWindow := make(map[int]int, an.Window.Len())
	for k := an.Window.Start; k < an.Window.End; k++ {
		inWindow[an.Candidates.Index[k]] = k
	}

	for i, r := range an.Rows {
		rec := []interface{}{r.Voltage, r.Current, r.VNHE, r.CurrentDensity, r.Overpotential, finite(r.LogJ)}
		if k, ok := inWindow[i]; ok {
			rec = append(rec, an.Candidates.X[k], an.Candidates.Y[k])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.file.SetSheetRow(sheet, cell, &rec); err != nil {
			return err
		}
	}

	s := an.Summary
	return wb.addSummaryRow([]interface{}{
		id, s.TafelSlope, optionalCell(s.Onset), s.PotentialAtRef,
		optionalCell(s.ExchangeCurrentDensity), s.Intercept, s.R, "ok",
	})
}

// AddFailure records a sample whose analysis failed.
func (wb *Workbook) AddFailure(id string, cause error) error {
	return wb.addSummaryRow([]interface{}{id, nil, nil, nil, nil, nil, nil, "error: " + cause.Error()})
}

// SaveAs writes the workbook to path.
func (wb *Workbook) SaveAs(path string) error {
	return wb.file.SaveAs(path)
}

// WriteTo writes the workbook to w.
func (wb *Workbook) WriteTo(w io.Writer) (int64, error) {
	return wb.file.WriteTo(w)
}

// Close releases the workbook.
func (wb *Workbook) Close() error {
	return wb.file.Close()
}

// SheetNames lists the sheets in order.
func (wb *Workbook) SheetNames() []string {
	return wb.file.GetSheetList()
}

func (wb *Workbook) addSummaryRow(rec []interface{}) error {
	wb.row++
	cell, err := excelize.CoordinatesToCellName(1, wb.row)
	if err != nil {
		return err
	}
	return wb.file.SetSheetRow(summarySheet, cell, &rec)
}

// newSheet creates a uniquely named sheet for a sample id.
func (wb *Workbook) newSheet(id string) (string, error) {
	base := sheetNameReplacer.Replace(id)
	if base == "" {
		base = "sample"
	}
	if r := []rune(base); len(r) > 28 {
		base = string(r[:28])
	}
	name := base
	for n := 2; ; n++ {
		idx, err := wb.file.GetSheetIndex(name)
		if err != nil {
			return "", err
		}
		if idx == -1 && !strings.EqualFold(name, summarySheet) {
			break
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
	if _, err := wb.file.NewSheet(name); err != nil {
		return "", err
	}
	return name, nil
}

func optionalCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return finite(*v)
}

// finite maps non-finite values to empty cells.
func finite(v float64) interface{} {
	if !isFinite(v) {
		return nil
	}
	return v
}
