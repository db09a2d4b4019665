package cfbd

import "github.com/fortuna/gridiron/internal/table"

// Game is one played (or scheduled) game as reported by /games.
//
// The fields the reshaping pipeline works with are typed; every other
// field of the API object is carried verbatim in Extra under its
// snake_case key.
type Game struct {
	ID             int64
	HomeTeam       string
	AwayTeam       string
	HomeConference *string
	AwayConference *string
	HomePoints     *int
	AwayPoints     *int
	Extra          map[string]table.Value
}

// Clone returns a deep copy so callers can derive new records without
// touching the original.
func (g Game) Clone() Game {
	out := g
	out.HomeConference = clonePtr(g.HomeConference)
	out.AwayConference = clonePtr(g.AwayConference)
	out.HomePoints = clonePtr(g.HomePoints)
	out.AwayPoints = clonePtr(g.AwayPoints)
	if g.Extra != nil {
		out.Extra = make(map[string]table.Value, len(g.Extra))
		for k, v := range g.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// RawStatEntry is one (game, team, category, value) fact flattened out of
// the nested /games/teams payload.
type RawStatEntry struct {
	GameID     int64
	School     string
	Conference *string
	HomeAway   string
	Points     *int
	Category   string
	Stat       table.Value
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
