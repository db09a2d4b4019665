package reshape

import "github.com/fortuna/gridiron/internal/ingest/cfbd"

// NonFBS is the sentinel conference and team identity given to teams
// outside the top tier.
const NonFBS = "Non-FBS"

// CollapsePolicy selects which side of a game has its team identity
// collapsed to NonFBS.
type CollapsePolicy int

const (
	// CollapseAwayOnly rewrites away_team only. A non-FBS home side keeps
	// its name while its conference still reads NonFBS.
	CollapseAwayOnly CollapsePolicy = iota
	// CollapseBothSides rewrites whichever side carries the NonFBS
	// conference.
	CollapseBothSides
)

// FillConferences returns copies of games with null home/away conferences
// replaced by NonFBS. It must run before Expand so both perspective rows
// agree on conference naming.
func FillConferences(games []cfbd.Game) []cfbd.Game {
	out := make([]cfbd.Game, len(games))
	for i, g := range games {
		c := g.Clone()
		if c.HomeConference == nil {
			c.HomeConference = ptr(NonFBS)
		}
		if c.AwayConference == nil {
			c.AwayConference = ptr(NonFBS)
		}
		out[i] = c
	}
	return out
}

// CollapseNonFBS returns copies of games whose NonFBS side is renamed to
// NonFBS according to policy.
func CollapseNonFBS(games []cfbd.Game, policy CollapsePolicy) []cfbd.Game {
	out := make([]cfbd.Game, len(games))
	for i, g := range games {
		c := g.Clone()
		if isNonFBS(c.AwayConference) {
			c.AwayTeam = NonFBS
		}
		if policy == CollapseBothSides && isNonFBS(c.HomeConference) {
			c.HomeTeam = NonFBS
		}
		out[i] = c
	}
	return out
}

func isNonFBS(conference *string) bool {
	return conference != nil && *conference == NonFBS
}

func ptr[T any](v T) *T { return &v }
