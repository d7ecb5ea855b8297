package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column names expected in a profile file header.
const (
	colElapsed       = "roast_time"
	colBeanTemp      = "temp_bean"
	colAirTemp       = "temp_air"
	colFireTemp      = "temp_fire"
	colServoPosition = "servo_position"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported profile format (want .csv or .xlsx)")
	ErrMissingColumn     = errors.New("profile header is missing a required column")
)

// Load reads a profile file (.csv or .xlsx) and builds a Profile sampled every
// interval seconds.
func Load(path string, interval int) (*Profile, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx":
		records, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	rows, err := parseRecords(records)
	if err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return New(rows, interval)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile %q: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads all records from a CSV stream with a variable field count.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open profile %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("profile %q has no sheets", path)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return records, nil
}

// parseRecords maps a header row plus data rows into Rows. Unknown columns
// are ignored; empty cells become nil fields.
func parseRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}

	index := map[string]int{}
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colElapsed, colBeanTemp, colAirTemp, colFireTemp, colServoPosition} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, required)
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for n, rec := range records[1:] {
		line := n + 2
		cell := func(col string) string {
			i := index[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		var (
			row Row
			err error
		)
		if row.BeanTemp, err = parseOptional(cell(colBeanTemp)); err != nil {
			return nil, fmt.Errorf("line %d %s: %w", line, colBeanTemp, err)
		}
		if row.AirTemp, err = parseOptional(cell(colAirTemp)); err != nil {
			return nil, fmt.Errorf("line %d %s: %w", line, colAirTemp, err)
		}
		if row.FireTemp, err = parseOptional(cell(colFireTemp)); err != nil {
			return nil, fmt.Errorf("line %d %s: %w", line, colFireTemp, err)
		}
		if row.ServoPosition, err = parseOptional(cell(colServoPosition)); err != nil {
			return nil, fmt.Errorf("line %d %s: %w", line, colServoPosition, err)
		}

		elapsed := cell(colElapsed)
		if elapsed == "" {
			// blank line in the recording; New drops it when nothing else is set
			if !row.blank() {
				return nil, fmt.Errorf("line %d: missing %s", line, colElapsed)
			}
			rows = append(rows, row)
			continue
		}
		v, err := parseNumber(elapsed)
		if err != nil {
			return nil, fmt.Errorf("line %d %s: %w", line, colElapsed, err)
		}
		row.Elapsed = int(v)
		rows = append(rows, row)
	}
	return rows, nil
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseNumber(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseNumber accepts both "12.5" and the comma decimal separator "12,5".
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}
