// Package sweepio reads potentiostat exports into sweeps.
package sweepio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kacperjurak/tafelcore"
)

// Options describes the file layout.
type Options struct {
	// HeaderRows is the number of preamble lines to skip. Blank lines
	// count.
	HeaderRows    int
	VoltageColumn int
	CurrentColumn int
	// Sheet selects a workbook sheet; empty means the first one.
	Sheet string
}

// DefaultOptions matches the instrument CSV export: 16 preamble lines,
// potential then current.
func DefaultOptions() Options {
	return Options{HeaderRows: 16, VoltageColumn: 0, CurrentColumn: 1}
}

// Sample is a sweep file paired with the label used in reports.
type Sample struct {
	Path string
	ID   string
}

// ParseSample splits a "path[:id]" argument. The id defaults to the file
// name without extension.
func ParseSample(arg string) (Sample, error) {
	path, id := arg, ""
	if i := strings.LastIndex(arg, ":"); i >= 0 && !isDriveLetter(arg, i) {
		path, id = arg[:i], arg[i+1:]
	}
	if path == "" {
		return Sample{}, fmt.Errorf("empty path in %q", arg)
	}
	if id == "" {
		base := filepath.Base(path)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return Sample{Path: path, ID: id}, nil
}

func isDriveLetter(arg string, i int) bool {
	return i == 1 && len(arg) > 2 && (arg[2] == '\\' || arg[2] == '/')
}

// ReadFile reads a sweep from a .csv/.txt or .xlsx file.
func ReadFile(path string, opts Options) (tafelcore.Sweep, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path, opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ReadCSV skips the first HeaderRows physical lines, then parses comma
// separated records. Blank lines after the preamble are ignored.
func ReadCSV(r io.Reader, opts Options) (tafelcore.Sweep, error) {
	br := bufio.NewReader(r)
	for skipped := 0; skipped < opts.HeaderRows; skipped++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("line %d: %w", skipped+1, err)
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var sweep tafelcore.Sweep
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", opts.HeaderRows+csvLine(err), err)
		}
		if blank(rec) {
			continue
		}
		p, err := parseRecord(rec, opts)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", opts.HeaderRows+line, err)
		}
		sweep = append(sweep, p)
	}
	return sweep, nil
}

// csvLine extracts the line of a csv parse error, relative to the reader.
func csvLine(err error) int {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return perr.Line
	}
	return 0
}

func readWorkbook(path string, opts Options) (tafelcore.Sweep, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: sheet %q: %w", path, sheet, err)
	}

	var sweep tafelcore.Sweep
	for i, row := range rows {
		if i < opts.HeaderRows || blank(row) {
			continue
		}
		p, err := parseRecord(row, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i+1, err)
		}
		sweep = append(sweep, p)
	}
	return sweep, nil
}

func parseRecord(rec []string, opts Options) (tafelcore.Sample, error) {
	need := max(opts.VoltageColumn, opts.CurrentColumn) + 1
	if len(rec) < need {
		return tafelcore.Sample{}, fmt.Errorf("expected at least %d columns, got %d", need, len(rec))
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[opts.VoltageColumn]), 64)
	if err != nil {
		return tafelcore.Sample{}, fmt.Errorf("voltage: %w", err)
	}
	c, err := strconv.ParseFloat(strings.TrimSpace(rec[opts.CurrentColumn]), 64)
	if err != nil {
		return tafelcore.Sample{}, fmt.Errorf("current: %w", err)
	}
	return tafelcore.Sample{Voltage: v, Current: c}, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
