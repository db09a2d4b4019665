package export_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/export"
	"github.com/fortuna/gridiron/internal/table"
)

func sampleTables() []table.Table {
	return []table.Table{
		{
			Name:    "stats",
			Columns: []string{"id", "teams_school", "thirdDownEff"},
			Rows:    []table.Row{{"id": table.Int(1), "teams_school": table.String("LSU"), "thirdDownEff": table.NaN()}},
		},
		{
			Name:    "games",
			Columns: []string{"id", "team", "venue"},
			Rows:    []table.Row{{"id": table.Int(1), "team": table.String("LSU"), "venue": table.String("Tiger Stadium, Baton Rouge")}},
		},
		{
			Name:    "combined",
			Columns: []string{"id", "team"},
			Rows:    []table.Row{{"id": table.Int(1), "team": table.String("LSU")}},
		},
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Encode(&buf, sampleTables()[1]))
	assert.Equal(t, "id,team,venue\n1,LSU,\"Tiger Stadium, Baton Rouge\"\n", buf.String())

	buf.Reset()
	require.NoError(t, export.Encode(&buf, sampleTables()[0]))
	assert.Equal(t, "id,teams_school,thirdDownEff\n1,LSU,\n", buf.String())
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	w := export.NewWriter(filepath.Join(dir, "out", "cfb"))

	paths, err := w.WriteAll(context.Background(), sampleTables()...)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "out", "cfb_stats.csv"),
		filepath.Join(dir, "out", "cfb_games.csv"),
		filepath.Join(dir, "out", "cfb_combined.csv"),
	}, paths)

	data, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "id,team\n1,LSU\n", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temporary files left behind")

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm(), p)
	}
}

func TestWriteAllReplacesOutputs(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "cfb")
	w := export.NewWriter(prefix)

	_, err := w.WriteAll(context.Background(), sampleTables()...)
	require.NoError(t, err)

	next := sampleTables()
	next[2].Rows = append(next[2].Rows, table.Row{"id": table.Int(2), "team": table.String("Texas")})
	paths, err := w.WriteAll(context.Background(), next...)
	require.NoError(t, err)

	data, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "id,team\n1,LSU\n2,Texas\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(prefix))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestWriteAllCanceled(t *testing.T) {
	dir := t.TempDir()
	w := export.NewWriter(filepath.Join(dir, "cfb"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.WriteAll(ctx, sampleTables()...)
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteAllUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	w := export.NewWriter(filepath.Join(blocker, "cfb"))
	_, err := w.WriteAll(context.Background(), sampleTables()...)
	require.Error(t, err)
	assert.True(t, errors.Is(err, export.ErrWrite))
}

func TestPath(t *testing.T) {
	assert.Equal(t, "cfb_games.csv", export.NewWriter("cfb").Path("games"))
}
