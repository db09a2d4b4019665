package cfbd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/fortuna/gridiron/internal/table"
)

// droppedGameFields carry no analytical value and are removed at decode
// time. Both the legacy and the current API spellings are listed.
var droppedGameFields = map[string]struct{}{
	"away_post_win_prob":            {},
	"home_post_win_prob":            {},
	"away_postgame_win_probability": {},
	"home_postgame_win_probability": {},
	"away_line_scores":              {},
	"home_line_scores":              {},
	"attendance":                    {},
}

// Keys the Game struct lifts out of the raw object.
const (
	keyID             = "id"
	keyHomeTeam       = "home_team"
	keyAwayTeam       = "away_team"
	keyHomeConference = "home_conference"
	keyAwayConference = "away_conference"
	keyHomePoints     = "home_points"
	keyAwayPoints     = "away_points"
)

// ParseGames decodes a /games response body.
func ParseGames(body []byte) ([]Game, error) {
	var raw []interface{}
	if err := decode(body, &raw); err != nil {
		return nil, err
	}

	games := make([]Game, 0, len(raw))
	for idx, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: game %d is %T, not an object", ErrDecode, idx, item)
		}
		game, err := parseGame(canonicalKeys(obj))
		if err != nil {
			return nil, fmt.Errorf("%w: game %d: %v", ErrDecode, idx, err)
		}
		games = append(games, game)
	}
	return games, nil
}

func parseGame(obj map[string]interface{}) (Game, error) {
	id, err := extractInt64(obj, keyID)
	if err != nil {
		return Game{}, err
	}

	game := Game{
		ID:             id,
		HomeTeam:       extractString(obj, keyHomeTeam),
		AwayTeam:       extractString(obj, keyAwayTeam),
		HomeConference: extractOptString(obj, keyHomeConference),
		AwayConference: extractOptString(obj, keyAwayConference),
		HomePoints:     extractOptInt(obj, keyHomePoints),
		AwayPoints:     extractOptInt(obj, keyAwayPoints),
		Extra:          make(map[string]table.Value),
	}

	for k, v := range obj {
		if _, drop := droppedGameFields[k]; drop {
			continue
		}
		switch k {
		case keyID, keyHomeTeam, keyAwayTeam, keyHomeConference, keyAwayConference, keyHomePoints, keyAwayPoints:
			continue
		}
		game.Extra[k] = toValue(v)
	}
	return game, nil
}

// ParseTeamStats decodes a /games/teams response body and flattens every
// team's stats array into one entry per category.
func ParseTeamStats(body []byte) ([]RawStatEntry, error) {
	var raw []interface{}
	if err := decode(body, &raw); err != nil {
		return nil, err
	}

	var entries []RawStatEntry
	for idx, item := range raw {
		game, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: game %d is %T, not an object", ErrDecode, idx, item)
		}
		gameID, err := extractInt64(game, keyID)
		if err != nil {
			return nil, fmt.Errorf("%w: game %d: %v", ErrDecode, idx, err)
		}

		for _, teamInterface := range extractArray(game, "teams") {
			team, ok := teamInterface.(map[string]interface{})
			if !ok {
				continue
			}
			school := extractString(team, "school")
			if school == "" {
				school = extractString(team, "team")
			}
			conference := extractOptString(team, "conference")
			homeAway := extractString(team, "homeAway")
			points := extractOptInt(team, "points")

			for _, statInterface := range extractArray(team, "stats") {
				stat, ok := statInterface.(map[string]interface{})
				if !ok {
					continue
				}
				entries = append(entries, RawStatEntry{
					GameID:     gameID,
					School:     school,
					Conference: conference,
					HomeAway:   homeAway,
					Points:     points,
					Category:   extractString(stat, "category"),
					Stat:       statValue(stat["stat"]),
				})
			}
		}
	}
	return entries, nil
}

func decode(body []byte, dst interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return fmt.Errorf("%w: API returned an HTML page: %s", ErrDecode, snippet(trimmed))
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v (body: %s)", ErrDecode, err, snippet(trimmed))
	}
	return nil
}

// canonicalKeys maps camelCase keys (current API) onto the snake_case
// spelling of the legacy API so both decode into the same columns.
func canonicalKeys(obj map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		out[snakeCase(k)] = v
	}
	return out
}

// snakeCase lowers camelCase keys. A run of capitals is one word, so
// startTimeTBD becomes start_time_tbd.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if (!unicode.IsUpper(prev) && prev != '_') || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Helper functions

func extractString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

func extractOptString(m map[string]interface{}, key string) *string {
	if v, ok := m[key]; ok {
		if str, ok := v.(string); ok {
			return &str
		}
	}
	return nil
}

func extractOptInt(m map[string]interface{}, key string) *int {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			n := int(i)
			return &n
		}
		if f, err := val.Float64(); err == nil {
			n := int(f)
			return &n
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return &i
		}
	}
	return nil
}

func extractInt64(m map[string]interface{}, key string) (int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing %q", key)
	}
	switch val := v.(type) {
	case json.Number:
		return val.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	default:
		return 0, fmt.Errorf("%q has type %T", key, v)
	}
}

func extractArray(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key]; ok {
		if arrVal, ok := v.([]interface{}); ok {
			return arrVal
		}
	}
	return []interface{}{}
}

// toValue converts a decoded JSON value into a cell. Objects and arrays
// are kept as compact JSON text.
func toValue(v interface{}) table.Value {
	switch val := v.(type) {
	case nil:
		return table.Null()
	case string:
		return table.String(val)
	case bool:
		return table.Bool(val)
	case json.Number:
		if n, ok := table.ParseNumber(val.String()); ok {
			return n
		}
		return table.String(val.String())
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return table.String(fmt.Sprint(val))
		}
		return table.String(string(raw))
	}
}

// statValue keeps stats as text so compound values like "18-29" survive
// until the stat parser splits them.
func statValue(v interface{}) table.Value {
	switch val := v.(type) {
	case nil:
		return table.Null()
	case string:
		return table.String(val)
	case json.Number:
		return table.String(val.String())
	default:
		return toValue(val)
	}
}

func snippet(b []byte) string {
	const maxSnippet = 200
	if len(b) > maxSnippet {
		return string(b[:maxSnippet])
	}
	return string(b)
}
