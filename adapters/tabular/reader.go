// Package tabular loads delimited miner output into a column-oriented
// RawTable. CSV and XLSX files share one API.
package tabular

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"qachart/domain/core"
	"qachart/domain/report"
)

// RawTable is a column-oriented view of one loaded file: column name to the
// ordered raw string values of that column. All columns have identical
// length. A table is constructed once per load and read-only thereafter.
type RawTable struct {
	columns []string
	data    map[string][]string
	rows    int
}

// Options control a Load.
type Options struct {
	Delimiter rune // default ','
	HasHeader bool
}

// Option mutates Options.
type Option func(*Options)

// WithDelimiter sets the cell delimiter.
func WithDelimiter(d rune) Option {
	return func(o *Options) { o.Delimiter = d }
}

// WithoutHeader treats the first row as data; columns are named "0".."K-1".
func WithoutHeader() Option {
	return func(o *Options) { o.HasHeader = false }
}

// Load reads a CSV or XLSX file into a RawTable. The load is a pure read:
// on any failure no partially populated table is returned.
func Load(path string, opts ...Option) (*RawTable, error) {
	options := Options{Delimiter: ',', HasHeader: true}
	for _, opt := range opts {
		opt(&options)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, core.NewFileNotFoundError(path)
	}

	var rows [][]string
	var err error
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = readXLSX(path)
	} else {
		rows, err = readCSV(path, options.Delimiter)
	}
	if err != nil {
		return nil, err
	}

	return fromRows(rows, options.HasHeader)
}

func readCSV(path string, delimiter rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = delimiter
	// Row-length consistency is checked against the header in fromRows so
	// the error carries our taxonomy, not the csv package's.
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedTable, err)
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.ErrEmptySheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func fromRows(rows [][]string, hasHeader bool) (*RawTable, error) {
	if len(rows) == 0 {
		return &RawTable{data: map[string][]string{}}, nil
	}

	var columns []string
	var body [][]string
	if hasHeader {
		for _, name := range rows[0] {
			columns = append(columns, strings.TrimSpace(name))
		}
		body = rows[1:]
	} else {
		for i := range rows[0] {
			columns = append(columns, strconv.Itoa(i))
		}
		body = rows
	}

	data := make(map[string][]string, len(columns))
	for _, col := range columns {
		data[col] = make([]string, 0, len(body))
	}
	for r, row := range body {
		if len(row) != len(columns) {
			return nil, core.NewMalformedTableError(r+1, len(row), len(columns))
		}
		for c, cell := range row {
			data[columns[c]] = append(data[columns[c]], cell)
		}
	}

	log.Printf("[TableReader] Loaded %d rows, %d columns", len(body), len(columns))
	return &RawTable{columns: columns, data: data, rows: len(body)}, nil
}

// Columns returns column names in file order.
func (t *RawTable) Columns() []string {
	return t.columns
}

// RowCount returns the number of data rows.
func (t *RawTable) RowCount() int {
	return t.rows
}

// HasColumn reports whether the table contains the named column.
func (t *RawTable) HasColumn(name string) bool {
	_, ok := t.data[name]
	return ok
}

// Column returns the raw string values of one column.
func (t *RawTable) Column(name string) ([]string, error) {
	col, ok := t.data[name]
	if !ok {
		return nil, core.NewUnknownColumnError(name, t.columns)
	}
	return col, nil
}

// NumericColumn applies a coercer to one column, emitting NaN per
// unconvertible cell. Malformed cells never abort the read.
func (t *RawTable) NumericColumn(name string, coerce report.Coercer) ([]float64, error) {
	if coerce == nil {
		coerce = report.DefaultCoercer
	}
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, cell := range col {
		v, ok := coerce(cell)
		if !ok {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out, nil
}

// DistinctValues returns the set of values observed in one column, in first
// occurrence order.
func (t *RawTable) DistinctValues(name string) ([]string, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(col))
	var out []string
	for _, v := range col {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}
