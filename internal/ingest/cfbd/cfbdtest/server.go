// Package cfbdtest provides an in-process fake of the CollegeFootballData
// endpoints for tests.
package cfbdtest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
)

type weekKey struct {
	season int
	week   int
}

// Server serves canned /games and /games/teams bodies. Seasons or weeks
// without a body answer with an empty JSON array.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	games      map[int]string
	teamStats  map[weekKey]string
	failures   map[string]int
	requests   []string
	authHeader string
}

// NewServer starts a fake API server. Call Close when done.
func NewServer() *Server {
	s := &Server{
		games:     make(map[int]string),
		teamStats: make(map[weekKey]string),
		failures:  make(map[string]int),
	}

	r := mux.NewRouter()
	r.HandleFunc("/games", s.handleGames).
		Methods(http.MethodGet).
		Queries("year", "{year:[0-9]+}")
	r.HandleFunc("/games/teams", s.handleTeamStats).
		Methods(http.MethodGet).
		Queries("year", "{year:[0-9]+}", "week", "{week:[0-9]+}")

	s.Server = httptest.NewServer(r)
	return s
}

// SetGames sets the /games body for season.
func (s *Server) SetGames(season int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[season] = body
}

// SetTeamStats sets the /games/teams body for (season, week).
func (s *Server) SetTeamStats(season, week int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teamStats[weekKey{season, week}] = body
}

// Fail makes requests whose path and query equal target answer status.
// target looks like "/games/teams?week=3&year=2019" (query keys sorted).
func (s *Server) Fail(target string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[target] = status
}

// Requests returns the request targets served so far, in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastAuthorization returns the Authorization header of the latest request.
func (s *Server) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authHeader
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	season, _ := strconv.Atoi(mux.Vars(r)["year"])

	s.mu.Lock()
	body, ok := s.games[season]
	s.mu.Unlock()

	s.respond(w, r, body, ok)
}

func (s *Server) handleTeamStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	season, _ := strconv.Atoi(vars["year"])
	week, _ := strconv.Atoi(vars["week"])

	s.mu.Lock()
	body, ok := s.teamStats[weekKey{season, week}]
	s.mu.Unlock()

	s.respond(w, r, body, ok)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, body string, ok bool) {
	target := r.URL.Path + "?" + r.URL.Query().Encode()

	s.mu.Lock()
	s.requests = append(s.requests, target)
	s.authHeader = r.Header.Get("Authorization")
	status, fail := s.failures[target]
	s.mu.Unlock()

	if fail {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !ok {
		body = "[]"
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
