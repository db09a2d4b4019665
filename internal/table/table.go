package table

import "sort"

// Row maps column names to values. Missing columns read as null.
type Row map[string]Value

// Get returns the value for column, or null if absent.
func (r Row) Get(column string) Value {
	if r == nil {
		return Null()
	}
	return r[column]
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered set of columns plus rows.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Records renders the table as a header plus one formatted record per row.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	header := make([]string, len(t.Columns))
	copy(header, t.Columns)
	out = append(out, header)
	for _, row := range t.Rows {
		rec := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			rec[i] = row.Get(col).Format()
		}
		out = append(out, rec)
	}
	return out
}

// Column returns every value of column in row order.
func (t Table) Column(name string) []Value {
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Get(name)
	}
	return out
}

// SortedKeys returns the union of the given column names sorted
// lexically, without duplicates.
func SortedKeys(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, set := range sets {
		for _, k := range set {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
