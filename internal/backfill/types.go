package backfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/gridiron/internal/ingest/cfbd"
)

// UnitKind enumerates the fetch unit variants.
type UnitKind string

const (
	UnitGames     UnitKind = "games"
	UnitTeamStats UnitKind = "team_stats"
)

// Unit is one request's worth of work: all games of a season, or the team
// stats of one (season, week).
type Unit struct {
	Kind   UnitKind
	Season int
	Week   int
}

func (u Unit) String() string {
	if u.Kind == UnitTeamStats {
		return fmt.Sprintf("team stats season=%d week=%d", u.Season, u.Week)
	}
	return fmt.Sprintf("games season=%d", u.Season)
}

// JobSpec describes the seasons and weeks to fetch. Weeks are the
// half-open range [FirstWeek, EndWeek) applied to every season.
type JobSpec struct {
	Seasons   []int
	FirstWeek int
	EndWeek   int
}

// Units enumerates the fetch units in their canonical order: games per
// season, then team stats per (season, week).
func (s JobSpec) Units() []Unit {
	weeks := s.EndWeek - s.FirstWeek
	if weeks < 0 {
		weeks = 0
	}
	units := make([]Unit, 0, len(s.Seasons)*(1+weeks))
	for _, season := range s.Seasons {
		units = append(units, Unit{Kind: UnitGames, Season: season})
	}
	for _, season := range s.Seasons {
		for week := s.FirstWeek; week < s.EndWeek; week++ {
			units = append(units, Unit{Kind: UnitTeamStats, Season: season, Week: week})
		}
	}
	return units
}

// StatBatch holds the stat entries of one team-stats unit. The stat parser
// pivots each batch on its own.
type StatBatch struct {
	Unit    Unit
	Entries []cfbd.RawStatEntry
}

// Dataset is the folded result of a run.
type Dataset struct {
	Games []cfbd.Game
	Stats []StatBatch
}

// UnitResult is what one fetch unit produced.
type UnitResult struct {
	Unit  Unit
	Games []cfbd.Game
	Stats []cfbd.RawStatEntry
}

// Records returns the number of records the unit produced.
func (r UnitResult) Records() int {
	if r.Unit.Kind == UnitTeamStats {
		return len(r.Stats)
	}
	return len(r.Games)
}

// Source fetches raw records from the API.
type Source interface {
	FetchGames(ctx context.Context, season int) ([]cfbd.Game, error)
	FetchTeamStats(ctx context.Context, season, week int) ([]cfbd.RawStatEntry, error)
}

// Reporter receives lifecycle callbacks from the runner. Calls are
// serialized even when units are fetched concurrently.
type Reporter interface {
	OnJobStart(spec JobSpec, units int)
	OnUnitStart(unit Unit, index int, total int)
	OnUnitDone(unit Unit, records int, index int, total int)
	OnJobComplete(ds *Dataset)
	OnJobError(err error)
}

// UnitError identifies the fetch unit that aborted a run.
type UnitError struct {
	Unit Unit
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Unit, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// FailedUnit extracts the failing unit from err, if any.
func FailedUnit(err error) (Unit, bool) {
	var ue *UnitError
	if errors.As(err, &ue) {
		return ue.Unit, true
	}
	return Unit{}, false
}
