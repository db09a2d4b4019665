package reshape

import "github.com/fortuna/gridiron/internal/table"

// CombinedRow is a perspective row with its matching stat row, if any.
type CombinedRow struct {
	Game  PerspectiveRow
	Stats *StatRow
}

// Join left-joins perspective rows to stat rows on id and team ==
// teams_school. Every game row is kept in order; a game row matching k
// stat rows yields k combined rows; an unmatched one yields a single row
// with nil Stats.
func Join(games []PerspectiveRow, stats StatTable) []CombinedRow {
	index := make(map[statKey][]int, len(stats.Rows))
	for i, r := range stats.Rows {
		key := statKey{r.GameID, r.School}
		index[key] = append(index[key], i)
	}

	out := make([]CombinedRow, 0, len(games))
	for _, g := range games {
		matches := index[statKey{g.ID, g.Team}]
		if len(matches) == 0 {
			out = append(out, CombinedRow{Game: g})
			continue
		}
		for _, i := range matches {
			s := stats.Rows[i].clone()
			out = append(out, CombinedRow{Game: g, Stats: &s})
		}
	}
	return out
}

// Suffixes applied when a stat column name collides with a game column.
const (
	leftSuffix  = "_x"
	rightSuffix = "_y"
)

// CombinedTable renders joined rows. Columns are the games columns
// followed by the stats columns without the shared id key. Colliding
// names get _x (game side) and _y (stats side) suffixes.
func CombinedTable(rows []CombinedRow, stats StatTable) table.Table {
	games := make([]PerspectiveRow, len(rows))
	for i, r := range rows {
		games[i] = r.Game
	}
	gameCols := GameColumns(games)

	statCols := make([]string, 0, len(stats.Columns()))
	for _, c := range stats.Columns() {
		if c != ColumnID {
			statCols = append(statCols, c)
		}
	}

	gameSet := make(map[string]struct{}, len(gameCols))
	for _, c := range gameCols {
		gameSet[c] = struct{}{}
	}
	statSet := make(map[string]struct{}, len(statCols))
	for _, c := range statCols {
		statSet[c] = struct{}{}
	}

	leftName := make(map[string]string, len(gameCols))
	columns := make([]string, 0, len(gameCols)+len(statCols))
	for _, c := range gameCols {
		name := c
		if _, clash := statSet[c]; clash {
			name = c + leftSuffix
		}
		leftName[c] = name
		columns = append(columns, name)
	}
	rightName := make(map[string]string, len(statCols))
	for _, c := range statCols {
		name := c
		if _, clash := gameSet[c]; clash {
			name = c + rightSuffix
		}
		rightName[c] = name
		columns = append(columns, name)
	}

	out := table.Table{Name: "combined", Columns: columns, Rows: make([]table.Row, len(rows))}
	for i, r := range rows {
		row := make(table.Row, len(columns))
		gameRow := r.Game.Row()
		for _, c := range gameCols {
			row[leftName[c]] = gameRow.Get(c)
		}
		if r.Stats != nil {
			statRow := r.Stats.Row()
			for _, c := range statCols {
				row[rightName[c]] = statRow.Get(c)
			}
		}
		out.Rows[i] = row
	}
	return out
}
