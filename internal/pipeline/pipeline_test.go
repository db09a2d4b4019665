package pipeline_test

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/config"
	"github.com/fortuna/gridiron/internal/ingest/cfbd"
	"github.com/fortuna/gridiron/internal/ingest/cfbd/cfbdtest"
	"github.com/fortuna/gridiron/internal/metrics"
	"github.com/fortuna/gridiron/internal/pipeline"
	"github.com/fortuna/gridiron/internal/publisher"
)

const games2019 = `[
  {"id": 1, "season": 2019, "week": 1, "attendance": 60000,
   "home_team": "Miami", "home_conference": "ACC", "home_points": 20,
   "away_team": "Florida", "away_conference": "SEC", "away_points": 24},
  {"id": 2, "season": 2019, "week": 1,
   "home_team": "Alabama", "home_conference": "SEC", "home_points": 62,
   "away_team": "New Mexico State", "away_conference": null, "away_points": 10}
]`

const stats2019w1 = `[
  {"id": 1, "teams": [
    {"school": "Miami", "conference": "ACC", "homeAway": "home", "points": 20,
     "stats": [{"category": "completionAttempts", "stat": "22-32"}]},
    {"school": "Florida", "conference": "SEC", "homeAway": "away", "points": 24,
     "stats": [{"category": "thirdDownEff", "stat": "4-13"}]}
  ]},
  {"id": 2, "teams": [
    {"school": "Alabama", "conference": "SEC", "homeAway": "home", "points": 62,
     "stats": [{"category": "rushingYards", "stat": 300}]}
  ]}
]`

const gamesAcrossWeeks = `[
  {"id": 1, "season": 2019, "week": 1,
   "home_team": "Miami", "home_conference": "ACC", "home_points": 20,
   "away_team": "Florida", "away_conference": "SEC", "away_points": 24},
  {"id": 2, "season": 2019, "week": 2,
   "home_team": "Alabama", "home_conference": "SEC", "home_points": 62,
   "away_team": "New Mexico State", "away_conference": null, "away_points": 10}
]`

const statsWeekOneOnly = `[
  {"id": 1, "teams": [
    {"school": "Miami", "conference": "ACC", "homeAway": "home", "points": 20,
     "stats": [{"category": "completionAttempts", "stat": "22-32"}]},
    {"school": "Florida", "conference": "SEC", "homeAway": "away", "points": 24,
     "stats": [{"category": "thirdDownEff", "stat": "4-13"}]}
  ]}
]`

type fakeNotifier struct {
	mu        sync.Mutex
	summaries []publisher.ExportSummary
	err       error
}

func (f *fakeNotifier) PublishExport(_ context.Context, s publisher.ExportSummary) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return "1-0", f.err
}

func newConfig(baseURL, prefix string) *config.Config {
	cfg := config.New()
	cfg.APIBaseURL = baseURL
	cfg.StartSeason = 2019
	cfg.EndSeason = 2020
	cfg.FirstWeek = 1
	cfg.EndWeek = 3
	cfg.OutputPrefix = prefix
	cfg.RequestsPerSecond = 0
	return cfg
}

func readCSV(path string) [][]string {
	f, err := os.Open(path)
	So(err, ShouldBeNil)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	So(err, ShouldBeNil)
	return recs
}

func TestPipelineRun(t *testing.T) {
	Convey("Given a fake API with one season of data", t, func() {
		srv := cfbdtest.NewServer()
		defer srv.Close()
		srv.SetGames(2019, games2019)
		srv.SetTeamStats(2019, 1, stats2019w1)

		dir := t.TempDir()
		store := cache.NewMemory()
		notifier := &fakeNotifier{}
		m := metrics.NewManager()

		cfg := newConfig(srv.URL, filepath.Join(dir, "first", "cfb"))
		p, err := pipeline.New(context.Background(), cfg,
			pipeline.WithCache(store),
			pipeline.WithNotifier(notifier),
			pipeline.WithMetrics(m))
		So(err, ShouldBeNil)
		defer p.Close()

		Convey("When the export runs", func() {
			report, err := p.Run(context.Background())
			So(err, ShouldBeNil)

			Convey("Then the three files are written", func() {
				So(report.RunID, ShouldNotBeEmpty)
				So(report.Files, ShouldResemble, []string{
					filepath.Join(dir, "first", "cfb_stats.csv"),
					filepath.Join(dir, "first", "cfb_games.csv"),
					filepath.Join(dir, "first", "cfb_combined.csv"),
				})
				So(report.Rows, ShouldResemble, map[string]int{"stats": 3, "games": 4, "combined": 4})
			})

			Convey("Then every unit was fetched once", func() {
				So(srv.Requests(), ShouldResemble, []string{
					"/games?year=2019",
					"/games/teams?week=1&year=2019",
					"/games/teams?week=2&year=2019",
				})
			})

			Convey("Then the games file holds both perspectives with the non-FBS collapse", func() {
				recs := readCSV(report.Files[1])
				So(recs, ShouldResemble, [][]string{
					{"home_or_away", "id", "opp", "opp_conference", "opp_points", "point_diff", "season", "team", "team_conference", "team_points", "week"},
					{"away", "1", "Miami", "ACC", "20", "4", "2019", "Florida", "SEC", "24", "1"},
					{"away", "2", "Alabama", "SEC", "62", "-52", "2019", "Non-FBS", "Non-FBS", "10", "1"},
					{"home", "1", "Florida", "SEC", "24", "-4", "2019", "Miami", "ACC", "20", "1"},
					{"home", "2", "Non-FBS", "Non-FBS", "10", "52", "2019", "Alabama", "SEC", "62", "1"},
				})
			})

			Convey("Then the combined file keeps unmatched rows with empty stats", func() {
				recs := readCSV(report.Files[2])
				So(recs, ShouldHaveLength, 5)
				header := recs[0]
				school := -1
				pct := -1
				for i, c := range header {
					switch c {
					case "teams_school":
						school = i
					case "completionPercentage":
						pct = i
					}
				}
				So(school, ShouldBeGreaterThan, 0)
				So(pct, ShouldBeGreaterThan, 0)

				So(recs[1][school], ShouldEqual, "Florida")
				So(recs[2][school], ShouldEqual, "")
				So(recs[3][school], ShouldEqual, "Miami")
				So(recs[3][pct], ShouldEqual, "0.6875")
				So(recs[4][school], ShouldEqual, "Alabama")
			})

			Convey("Then the run is announced and measured", func() {
				So(notifier.summaries, ShouldHaveLength, 1)
				So(notifier.summaries[0].RunID, ShouldEqual, report.RunID)
				So(notifier.summaries[0].Rows["games"], ShouldEqual, 4)

				n, err := testutil.GatherAndCount(m.Registry(), "gridiron_export_units_fetched_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})

			Convey("When it runs again concurrently from the cache", func() {
				again := newConfig(srv.URL, filepath.Join(dir, "second", "cfb"))
				again.FetchConcurrency = 3
				p2, err := pipeline.New(context.Background(), again, pipeline.WithCache(store))
				So(err, ShouldBeNil)
				defer p2.Close()

				second, err := p2.Run(context.Background())
				So(err, ShouldBeNil)

				Convey("Then the output is byte-identical", func() {
					for i := range report.Files {
						a, err := os.ReadFile(report.Files[i])
						So(err, ShouldBeNil)
						b, err := os.ReadFile(second.Files[i])
						So(err, ShouldBeNil)
						So(string(b), ShouldEqual, string(a))
					}
				})

				Convey("Then no further requests reached the API", func() {
					So(srv.Requests(), ShouldHaveLength, 3)
				})
			})
		})
	})
}

func TestPipelineWeekWithoutStats(t *testing.T) {
	Convey("Given two games where only week 1 has team stats", t, func() {
		srv := cfbdtest.NewServer()
		defer srv.Close()
		srv.SetGames(2019, gamesAcrossWeeks)
		srv.SetTeamStats(2019, 1, statsWeekOneOnly)

		cfg := newConfig(srv.URL, filepath.Join(t.TempDir(), "cfb"))
		p, err := pipeline.New(context.Background(), cfg)
		So(err, ShouldBeNil)
		defer p.Close()

		report, err := p.Run(context.Background())
		So(err, ShouldBeNil)

		Convey("Then there are four perspective rows", func() {
			So(report.Rows["games"], ShouldEqual, 4)
			So(readCSV(report.Files[1]), ShouldHaveLength, 5)
		})

		Convey("Then stats rows come from week 1 only", func() {
			recs := readCSV(report.Files[0])
			So(recs, ShouldHaveLength, 3)
			So(recs[0][0], ShouldEqual, "id")
			for _, rec := range recs[1:] {
				So(rec[0], ShouldEqual, "1")
			}
		})

		Convey("Then the second game's rows have empty stat columns", func() {
			recs := readCSV(report.Files[2])
			So(recs, ShouldHaveLength, 5)

			header := recs[0]
			idCol, schoolCol := -1, -1
			var statCols []int
			for i, c := range header {
				switch c {
				case "id":
					idCol = i
				case "teams_school":
					schoolCol = i
				case "completionAttempts", "thirdDownEff", "fourthDownEff", "totalPenaltiesYards":
					statCols = append(statCols, i)
				}
			}
			So(idCol, ShouldBeGreaterThanOrEqualTo, 0)
			So(schoolCol, ShouldBeGreaterThan, 0)
			So(statCols, ShouldHaveLength, 4)

			empty := 0
			for _, rec := range recs[1:] {
				if rec[schoolCol] != "" {
					So(rec[idCol], ShouldEqual, "1")
					continue
				}
				empty++
				So(rec[idCol], ShouldEqual, "2")
				for _, c := range statCols {
					So(rec[c], ShouldEqual, "")
				}
			}
			So(empty, ShouldEqual, 2)
		})
	})
}

func TestPipelineFailure(t *testing.T) {
	Convey("Given an API that fails one week", t, func() {
		srv := cfbdtest.NewServer()
		defer srv.Close()
		srv.SetGames(2019, games2019)
		srv.SetTeamStats(2019, 1, stats2019w1)
		srv.Fail("/games/teams?week=2&year=2019", http.StatusInternalServerError)

		dir := t.TempDir()
		notifier := &fakeNotifier{}
		cfg := newConfig(srv.URL, filepath.Join(dir, "cfb"))
		p, err := pipeline.New(context.Background(), cfg, pipeline.WithNotifier(notifier))
		So(err, ShouldBeNil)
		defer p.Close()

		Convey("When the export runs", func() {
			report, err := p.Run(context.Background())

			Convey("Then the failing unit is named", func() {
				So(report, ShouldBeNil)
				So(errors.Is(err, cfbd.ErrUnexpectedStatus), ShouldBeTrue)
				unit, ok := backfill.FailedUnit(err)
				So(ok, ShouldBeTrue)
				So(unit.String(), ShouldEqual, "team stats season=2019 week=2")
			})

			Convey("Then no output is produced or announced", func() {
				entries, err := os.ReadDir(dir)
				So(err, ShouldBeNil)
				So(entries, ShouldBeEmpty)
				So(notifier.summaries, ShouldBeEmpty)
			})
		})
	})
}

func TestPipelineSideEffects(t *testing.T) {
	Convey("Given a run with a failing notifier and a Pushgateway", t, func() {
		srv := cfbdtest.NewServer()
		defer srv.Close()
		srv.SetGames(2019, games2019)

		var mu sync.Mutex
		var pushes []string
		gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			pushes = append(pushes, r.Method+" "+r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer gw.Close()

		cfg := newConfig(srv.URL, filepath.Join(t.TempDir(), "cfb"))
		cfg.PushgatewayURL = gw.URL
		cfg.CollapseHomeNonFBS = true
		notifier := &fakeNotifier{err: errors.New("stream unavailable")}

		p, err := pipeline.New(context.Background(), cfg, pipeline.WithNotifier(notifier))
		So(err, ShouldBeNil)
		defer p.Close()

		report, err := p.Run(context.Background())

		Convey("Then the run still succeeds", func() {
			So(err, ShouldBeNil)
			So(report.Rows["stats"], ShouldEqual, 0)
			So(report.Rows["combined"], ShouldEqual, 4)
			So(notifier.summaries, ShouldHaveLength, 1)
		})

		Convey("Then metrics were pushed once", func() {
			mu.Lock()
			defer mu.Unlock()
			So(pushes, ShouldResemble, []string{"PUT /metrics/job/gridiron"})
		})
	})

	Convey("Given an invalid configuration", t, func() {
		cfg := config.New()
		cfg.EndSeason = cfg.StartSeason

		_, err := pipeline.New(context.Background(), cfg)

		So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
	})
}
