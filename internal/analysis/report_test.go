package analysis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T) *frame.Frame {
	t.Helper()
	day := func(d int) frame.Value { return frame.TimeOf(time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)) }
	f, err := frame.New(
		frame.Column{Name: "Speed (km/h)", Cells: []frame.Value{frame.Str("120"), frame.Str("80"), frame.Str("95"), frame.Str("101"), frame.Null()}},
		frame.Column{Name: "laps", Cells: []frame.Value{frame.Num(10), frame.Num(20), frame.Num(30), frame.Num(40), frame.Num(50)}},
		frame.Column{Name: "score", Cells: []frame.Value{frame.Num(1), frame.Num(2), frame.Num(3), frame.Num(4), frame.Num(5)}},
		frame.Column{Name: "team", Cells: []frame.Value{frame.Str("red"), frame.Str("blue"), frame.Str("red"), frame.Str("red|x"), frame.Str("blue")}},
		frame.Column{Name: "when", Cells: []frame.Value{day(3), day(1), frame.Null(), day(9), day(2)}},
		frame.Column{Name: "void", Cells: []frame.Value{frame.Null(), frame.Null(), frame.Null(), frame.Null(), frame.Null()}},
	)
	require.NoError(t, err)
	return f
}

func TestProfileColumns(t *testing.T) {
	rep := Profile("race.csv", testFrame(t), DefaultOptions())
	require.Len(t, rep.Cols, 6)

	speed := rep.Cols[0]
	assert.Equal(t, "km/h", speed.Unit)
	assert.Equal(t, "categorical", speed.Kind)
	assert.Equal(t, 1, speed.Missing)

	laps := rep.Cols[1]
	assert.Equal(t, "numeric", laps.Kind)
	assert.Equal(t, 10.0, laps.Min)
	assert.Equal(t, 50.0, laps.Max)
	assert.InDelta(t, 30, laps.Mean, 1e-9)
	assert.InDelta(t, 15.8113883, laps.Std, 1e-6)

	team := rep.Cols[3]
	assert.Equal(t, []CategoryCount{{"blue", 2}, {"red", 2}, {"red|x", 1}}, team.TopValues)

	when := rep.Cols[4]
	assert.Equal(t, "datetime", when.Kind)
	assert.Equal(t, 1, when.First.Day())
	assert.Equal(t, 9, when.Last.Day())

	assert.Equal(t, "empty", rep.Cols[5].Kind)

	require.Len(t, rep.Corr, 1)
	assert.InDelta(t, 1.0, rep.Corr[0].R, 1e-9)
	assert.Equal(t, 5, rep.Corr[0].N)
	assert.Len(t, rep.Samples, 5)
}

func TestMarkdownSections(t *testing.T) {
	md := Profile("race.csv", testFrame(t), DefaultOptions()).Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: race.csv",
		"Rows: 5",
		"[SCHEMA]",
		"- Speed (km/h) [km/h]: categorical",
		"- laps: numeric (non-null 5, missing 0.0%); min 10, max 50",
		"- when: datetime (non-null 4, missing 20.0%); range 2024-01-01 to 2024-01-09",
		"[CORRELATIONS]",
		"- laps ~ score: r=1.000 (n=5)",
		"[HEAD AND SAMPLE ROWS]",
		"red/x",
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "[CHANGE LOG]")
}

func TestFromResult(t *testing.T) {
	res, err := clean.Clean(context.Background(), testFrame(t),
		clean.NewSelection(clean.StepCleanColumnNames, clean.StepConvertNumeric, clean.StepRemoveDuplicates),
		map[string]clean.ColumnType{"nope": clean.TypeNumeric}, clean.DefaultOptions(), nil)
	require.NoError(t, err)

	rep := FromResult("race.csv", res, DefaultOptions())
	assert.Equal(t, "speed_kmh", rep.Cols[0].Name)
	assert.Equal(t, "km/h", rep.Cols[0].Unit)
	assert.Equal(t, "numeric", rep.Cols[0].Kind)

	md := rep.Markdown()
	assert.Contains(t, md, "[DETECTION]")
	assert.Contains(t, md, "- speed_kmh: numeric (sampled 4, numeric-like 4")
	assert.Contains(t, md, "[CHANGE LOG]\n1. Cleaned column names:")
	assert.Contains(t, md, "[NOTES]\n- override for unknown column \"nope\" ignored")
	assert.True(t, strings.HasPrefix(md, "[DATASET SUMMARY]\nFile: race.csv\nRows: 5\n"))
}
