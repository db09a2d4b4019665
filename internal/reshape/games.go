package reshape

import (
	"github.com/fortuna/gridiron/internal/ingest/cfbd"
	"github.com/fortuna/gridiron/internal/table"
)

// Side tags which side of the game a perspective row describes.
type Side string

const (
	Home Side = "home"
	Away Side = "away"
)

// Games table columns produced by the relabeling.
const (
	ColumnID             = "id"
	ColumnTeam           = "team"
	ColumnOpp            = "opp"
	ColumnTeamConference = "team_conference"
	ColumnOppConference  = "opp_conference"
	ColumnTeamPoints     = "team_points"
	ColumnOppPoints      = "opp_points"
	ColumnHomeOrAway     = "home_or_away"
	ColumnPointDiff      = "point_diff"
)

var perspectiveColumns = []string{
	ColumnID, ColumnTeam, ColumnOpp, ColumnTeamConference, ColumnOppConference,
	ColumnTeamPoints, ColumnOppPoints, ColumnHomeOrAway, ColumnPointDiff,
}

// PerspectiveRow is one team's view of a game.
type PerspectiveRow struct {
	ID             int64
	Team           string
	Opp            string
	TeamConference *string
	OppConference  *string
	TeamPoints     *int
	OppPoints      *int
	HomeOrAway     Side
	// PointDiff is TeamPoints-OppPoints, nil when either score is missing.
	PointDiff *int
	// Extra holds the game's passthrough fields, unchanged.
	Extra map[string]table.Value
}

// Expand turns every game into two perspective rows: all away-side rows
// first, then all home-side rows, each in input order.
func Expand(games []cfbd.Game) []PerspectiveRow {
	rows := make([]PerspectiveRow, 0, 2*len(games))
	for _, g := range games {
		rows = append(rows, perspective(g, Away))
	}
	for _, g := range games {
		rows = append(rows, perspective(g, Home))
	}
	return rows
}

// NormalizeGames runs the game normalizer: null conference fill, non-FBS
// collapse, then perspective expansion.
func NormalizeGames(games []cfbd.Game, policy CollapsePolicy) []PerspectiveRow {
	return Expand(CollapseNonFBS(FillConferences(games), policy))
}

func perspective(g cfbd.Game, side Side) PerspectiveRow {
	c := g.Clone()
	row := PerspectiveRow{ID: c.ID, HomeOrAway: side, Extra: c.Extra}
	if side == Away {
		row.Team, row.Opp = c.AwayTeam, c.HomeTeam
		row.TeamConference, row.OppConference = c.AwayConference, c.HomeConference
		row.TeamPoints, row.OppPoints = c.AwayPoints, c.HomePoints
	} else {
		row.Team, row.Opp = c.HomeTeam, c.AwayTeam
		row.TeamConference, row.OppConference = c.HomeConference, c.AwayConference
		row.TeamPoints, row.OppPoints = c.HomePoints, c.AwayPoints
	}
	if row.TeamPoints != nil && row.OppPoints != nil {
		row.PointDiff = ptr(*row.TeamPoints - *row.OppPoints)
	}
	return row
}

// Row renders the perspective row as named cells.
func (r PerspectiveRow) Row() table.Row {
	out := make(table.Row, len(r.Extra)+len(perspectiveColumns))
	for k, v := range r.Extra {
		out[k] = v
	}
	out[ColumnID] = table.Int(r.ID)
	out[ColumnTeam] = table.String(r.Team)
	out[ColumnOpp] = table.String(r.Opp)
	out[ColumnTeamConference] = table.StringPtr(r.TeamConference)
	out[ColumnOppConference] = table.StringPtr(r.OppConference)
	out[ColumnTeamPoints] = table.IntPtr(r.TeamPoints)
	out[ColumnOppPoints] = table.IntPtr(r.OppPoints)
	out[ColumnHomeOrAway] = table.String(string(r.HomeOrAway))
	out[ColumnPointDiff] = table.IntPtr(r.PointDiff)
	return out
}

// GameColumns returns the games table header: every relabeled and
// passthrough column, sorted.
func GameColumns(rows []PerspectiveRow) []string {
	sets := make([][]string, 0, len(rows)+1)
	sets = append(sets, perspectiveColumns)
	for _, r := range rows {
		keys := make([]string, 0, len(r.Extra))
		for k := range r.Extra {
			keys = append(keys, k)
		}
		sets = append(sets, keys)
	}
	return table.SortedKeys(sets...)
}

// GamesTable renders perspective rows as the games output table.
func GamesTable(rows []PerspectiveRow) table.Table {
	t := table.Table{Name: "games", Columns: GameColumns(rows), Rows: make([]table.Row, len(rows))}
	for i, r := range rows {
		t.Rows[i] = r.Row()
	}
	return t
}
