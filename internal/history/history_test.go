package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "nested", "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)
	run := Run{
		ID:          "6f1c2a9e-0000-4000-8000-000000000001",
		Source:      "sales.csv",
		Status:      StatusCompleted,
		Steps:       []string{"clean_column_names", "remove_duplicates"},
		RowsIn:      10,
		RowsOut:     8,
		RowsRemoved: 2,
		Warnings:    []string{`override for unknown column "x" ignored`},
		StartedAt:   start,
		FinishedAt:  start.Add(time.Second),
		Log:         []string{"Cleaned column names: [\"A\"] -> [\"a\"]", "Removed 2 exact duplicate rows"},
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "6f1c2a9e")
	require.NoError(t, err)
	assert.Equal(t, run.Source, got.Source)
	assert.Equal(t, run.Steps, got.Steps)
	assert.Equal(t, run.Log, got.Log)
	assert.Equal(t, run.Warnings, got.Warnings)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 2, got.RowsRemoved)

	assert.Error(t, s.SaveRun(ctx, run), "duplicate id must be rejected")
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaa", "bbb", "ccc"} {
		require.NoError(t, s.SaveRun(ctx, Run{
			ID: id, Source: id + ".csv", Status: StatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Hour), FinishedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "ccc", runs[0].ID)
	assert.Equal(t, "bbb", runs[1].ID)
	assert.Empty(t, runs[0].Log)
	assert.Empty(t, runs[0].Steps)
}

func TestGetRunErrors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	now := time.Now()
	require.NoError(t, s.SaveRun(ctx, Run{ID: "abc-1", Status: StatusCompleted, StartedAt: now, FinishedAt: now}))
	require.NoError(t, s.SaveRun(ctx, Run{ID: "abc-2", Status: StatusFailed, Error: "boom", StartedAt: now, FinishedAt: now}))
	_, err = s.GetRun(ctx, "abc")
	assert.ErrorContains(t, err, "ambiguous")
	_, err = s.GetRun(ctx, "")
	assert.ErrorIs(t, err, ErrRunNotFound)

	got, err := s.GetRun(ctx, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "boom", got.Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
	_, err = Open(context.Background(), Config{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestDialectBind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES (?, ?)"
	pg, _ := lookupDialect("postgres")
	ms, _ := lookupDialect("mssql")
	lite, _ := lookupDialect("")
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", pg.bind(q))
	assert.Equal(t, "INSERT INTO t (a, b) VALUES (@p1, @p2)", ms.bind(q))
	assert.Equal(t, q, lite.bind(q))
	assert.Equal(t, "SELECT TOP (5) id FROM runs", ms.limit("id", "FROM runs", 5))
	assert.Equal(t, "SELECT id FROM runs LIMIT 5", pg.limit("id", "FROM runs", 5))
}

func TestRunFromResult(t *testing.T) {
	f, err := frame.New(frame.Column{Name: "A", Cells: []frame.Value{frame.Num(1), frame.Num(1)}})
	require.NoError(t, err)
	res, err := clean.Clean(context.Background(), f, clean.NewSelection(clean.StepRemoveDuplicates), nil, clean.DefaultOptions(), nil)
	require.NoError(t, err)

	run := RunFromResult("a.csv", res)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, []string{"remove_duplicates"}, run.Steps)
	assert.Equal(t, 1, run.RowsRemoved)
	assert.Equal(t, []string{"Removed 1 exact duplicate rows"}, run.Log)

	s := openTestStore(t)
	require.NoError(t, s.SaveRun(context.Background(), run))
	got, err := s.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Log, got.Log)
}
