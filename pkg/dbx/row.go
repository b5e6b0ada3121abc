package dbx

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Row is a materialized cursor row: an ordered mapping from column name to value.
type Row struct {
	columns []string
	values  map[string]any
}

// FromRow is the capability every typed model built from a cursor row implements.
//
// Example:
//
//	type Line struct {
//	    ID   int64  `db:"id"`
//	    Name string `db:"name"`
//	}
//
//	func (l *Line) FromRow(row dbx.Row) error {
//	    return dbx.ScanRowIntoStruct(row, l, "db")
//	}
type FromRow interface {
	FromRow(row Row) error
}

// NewRow builds a Row from the cursor column names and the values of one row, in column order.
func NewRow(columns []string, values []any) Row {
	r := Row{
		columns: make([]string, 0, len(columns)),
		values:  make(map[string]any, len(columns)),
	}

	for i, col := range columns {
		var v any
		if i < len(values) {
			v = values[i]
		}

		r.Set(col, v)
	}

	return r
}

// Columns returns the column names in cursor order.
func (r Row) Columns() []string {
	return r.columns
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.columns)
}

// Get returns the value of a column.
func (r Row) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Set sets the value of a column, appending the column when new.
func (r *Row) Set(column string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}

	if _, exists := r.values[column]; !exists {
		r.columns = append(r.columns, column)
	}

	r.values[column] = value
}

// Map returns a copy of the row as a plain map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}

	return m
}

// MarshalJSON encodes the row as a JSON object keeping the cursor column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}

		val, err := json.Marshal(r.values[col])
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
