package dataset

import (
	"fmt"

	"mlgate/domain/core"
)

// Table is a column-major numeric table. Column order follows Headers and
// every column holds the same number of rows.
type Table struct {
	Headers []string    `json:"headers"`
	Columns [][]float64 `json:"columns"`
}

// NewTable validates shape and header uniqueness before returning a table.
func NewTable(headers []string, columns [][]float64) (*Table, error) {
	if len(headers) != len(columns) {
		return nil, fmt.Errorf("%w: %d headers for %d columns", core.ErrMalformedTable, len(headers), len(columns))
	}
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if seen[h] {
			return nil, fmt.Errorf("%w: duplicate header %q", core.ErrMalformedTable, h)
		}
		seen[h] = true
	}
	for i := 1; i < len(columns); i++ {
		if len(columns[i]) != len(columns[0]) {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d",
				core.ErrMalformedTable, headers[i], len(columns[i]), len(columns[0]))
		}
	}
	return &Table{Headers: headers, Columns: columns}, nil
}

// NumRows returns the row count
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

// NumCols returns the column count
func (t *Table) NumCols() int {
	return len(t.Headers)
}

// Index returns the position of a column or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns the values of a named column.
func (t *Table) Column(name string) ([]float64, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	return t.Columns[i], true
}

// Row copies row i in column order.
func (t *Table) Row(i int) []float64 {
	row := make([]float64, len(t.Columns))
	for j, col := range t.Columns {
		row[j] = col[i]
	}
	return row
}

// Rows returns a row-major copy of the table.
func (t *Table) Rows() [][]float64 {
	rows := make([][]float64, t.NumRows())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// Select returns a new table with only the named columns, in the given order.
func (t *Table) Select(names []string) (*Table, error) {
	headers := make([]string, 0, len(names))
	columns := make([][]float64, 0, len(names))
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok {
			return nil, core.NewMissingColumnError(name)
		}
		headers = append(headers, name)
		columns = append(columns, append([]float64(nil), col...))
	}
	return &Table{Headers: headers, Columns: columns}, nil
}

// Take returns a new table holding the given rows in the given order.
func (t *Table) Take(rows []int) *Table {
	columns := make([][]float64, len(t.Columns))
	for j, col := range t.Columns {
		out := make([]float64, len(rows))
		for k, r := range rows {
			out[k] = col[r]
		}
		columns[j] = out
	}
	return &Table{Headers: append([]string(nil), t.Headers...), Columns: columns}
}

// Head returns the first n rows (fewer if the table is shorter).
func (t *Table) Head(n int) *Table {
	if n > t.NumRows() {
		n = t.NumRows()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.Take(rows)
}

// Loaded is a table together with the hash of the bytes it was parsed from.
type Loaded struct {
	Table  *Table
	Hash   core.DatasetHash
	Source string
}
