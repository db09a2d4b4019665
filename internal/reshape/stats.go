package reshape

import (
	"sort"

	"github.com/fortuna/gridiron/internal/ingest/cfbd"
	"github.com/fortuna/gridiron/internal/table"
)

// ColumnSchool is the stats table team column.
const ColumnSchool = "teams_school"

// StatRow is one (game, school) row of the wide stats table.
type StatRow struct {
	GameID int64
	School string
	Values map[string]table.Value
}

// Get returns the value of a stat column, or null.
func (r StatRow) Get(column string) table.Value {
	return r.Values[column]
}

func (r StatRow) clone() StatRow {
	out := StatRow{GameID: r.GameID, School: r.School, Values: make(map[string]table.Value, len(r.Values))}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// StatTable is the parsed stats output: category columns in sorted order
// followed by the columns decomposition adds.
type StatTable struct {
	Categories []string
	Derived    []string
	Rows       []StatRow
}

// Columns returns the stats table header.
func (t StatTable) Columns() []string {
	cols := make([]string, 0, 2+len(t.Categories)+len(t.Derived))
	cols = append(cols, ColumnID, ColumnSchool)
	cols = append(cols, t.Categories...)
	return append(cols, t.Derived...)
}

// Table renders the stats output table.
func (t StatTable) Table() table.Table {
	out := table.Table{Name: "stats", Columns: t.Columns(), Rows: make([]table.Row, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = r.Row()
	}
	return out
}

// Row renders the stat row as named cells.
func (r StatRow) Row() table.Row {
	out := make(table.Row, len(r.Values)+2)
	for k, v := range r.Values {
		out[k] = v
	}
	out[ColumnID] = table.Int(r.GameID)
	out[ColumnSchool] = table.String(r.School)
	return out
}

type statKey struct {
	id     int64
	school string
}

// Pivot groups entries by (game id, school) and spreads categories into
// columns. The first non-null value of a duplicated (id, school, category)
// wins. Rows are ordered by (id, school).
func Pivot(entries []cfbd.RawStatEntry) []StatRow {
	index := make(map[statKey]int)
	var rows []StatRow
	for _, e := range entries {
		if e.Stat.IsNull() {
			continue
		}
		key := statKey{e.GameID, e.School}
		idx, ok := index[key]
		if !ok {
			idx = len(rows)
			index[key] = idx
			rows = append(rows, StatRow{GameID: e.GameID, School: e.School, Values: make(map[string]table.Value)})
		}
		if _, seen := rows[idx].Values[e.Category]; !seen {
			rows[idx].Values[e.Category] = e.Stat
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].GameID != rows[j].GameID {
			return rows[i].GameID < rows[j].GameID
		}
		return rows[i].School < rows[j].School
	})
	return rows
}

// Categories returns the sorted union of categories across rows plus the
// compound categories, which are always present.
func Categories(rows []StatRow) []string {
	sets := make([][]string, 0, len(rows)+1)
	base := make([]string, 0, len(compoundStats))
	for _, c := range compoundStats {
		base = append(base, c.source)
	}
	sets = append(sets, base)
	for _, r := range rows {
		keys := make([]string, 0, len(r.Values))
		for k := range r.Values {
			keys = append(keys, k)
		}
		sets = append(sets, keys)
	}
	return table.SortedKeys(sets...)
}

// FillMissing returns copies of rows where every category absent from a
// row is set to the integer 0.
func FillMissing(rows []StatRow, categories []string) []StatRow {
	out := make([]StatRow, len(rows))
	for i, r := range rows {
		c := r.clone()
		for _, cat := range categories {
			if v, ok := c.Values[cat]; !ok || v.IsNull() {
				c.Values[cat] = table.Int(0)
			}
		}
		out[i] = c
	}
	return out
}

// Decompose returns copies of rows with each compound category split into
// its success and total columns plus the derived ratio.
func Decompose(rows []StatRow) []StatRow {
	out := make([]StatRow, len(rows))
	for i, r := range rows {
		c := r.clone()
		for _, cs := range compoundStats {
			success, total := SplitCompound(r.Get(cs.source))
			c.Values[cs.success] = success
			c.Values[cs.total] = total
			if cs.ratio != "" {
				c.Values[cs.ratio] = Ratio(success, total)
			}
		}
		out[i] = c
	}
	return out
}

// DerivedColumns lists the columns Decompose adds that are not already
// categories, in creation order.
func DerivedColumns(categories []string) []string {
	have := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		have[c] = struct{}{}
	}
	var out []string
	add := func(col string) {
		if col == "" {
			return
		}
		if _, ok := have[col]; ok {
			return
		}
		have[col] = struct{}{}
		out = append(out, col)
	}
	for _, cs := range compoundStats {
		add(cs.success)
		add(cs.total)
		add(cs.ratio)
	}
	return out
}

// ParseStats runs the stat parser over fetch batches: each batch is
// pivoted on its own, the pivots are concatenated in batch order, then
// missing categories are filled and compound stats decomposed.
func ParseStats(batches [][]cfbd.RawStatEntry) StatTable {
	var pivoted []StatRow
	for _, batch := range batches {
		pivoted = append(pivoted, Pivot(batch)...)
	}
	categories := Categories(pivoted)
	return StatTable{
		Categories: categories,
		Derived:    DerivedColumns(categories),
		Rows:       Decompose(FillMissing(pivoted, categories)),
	}
}
