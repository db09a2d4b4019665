// Package reshape turns raw game and team-stat records into the games,
// stats and combined output tables.
//
// Every step is a pure function over its inputs: game records are never
// mutated, and each stage returns new values.
package reshape

import (
	"github.com/fortuna/gridiron/internal/ingest/cfbd"
	"github.com/fortuna/gridiron/internal/table"
)

// Options tune the game normalizer.
type Options struct {
	Collapse CollapsePolicy
}

// Result holds the three output tables.
type Result struct {
	Games    table.Table
	Stats    table.Table
	Combined table.Table
}

// Tables returns the output tables in write order: stats, games, combined.
func (r Result) Tables() []table.Table {
	return []table.Table{r.Stats, r.Games, r.Combined}
}

// Build runs the normalizer, the stat parser and the joiner.
func Build(games []cfbd.Game, statBatches [][]cfbd.RawStatEntry, opts Options) Result {
	perspectives := NormalizeGames(games, opts.Collapse)
	stats := ParseStats(statBatches)
	combined := Join(perspectives, stats)

	return Result{
		Games:    GamesTable(perspectives),
		Stats:    stats.Table(),
		Combined: CombinedTable(combined, stats),
	}
}
