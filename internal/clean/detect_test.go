package clean

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectColumnDecisions(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		name string
		vals []any
		want ColumnType
	}{
		{"numeric storage", []any{1, 2, 3}, TypeNumeric},
		{"currency text", []any{"₹1,000", "₹2,500", "$30", "40%"}, TypeNumeric},
		{"speeds with units", []any{"120 km/h", "80 km/h", "95 km/h", "n/a"}, TypeNumeric},
		{"iso dates", []any{"2024-01-01", "2024-02-01", "2024-03-01"}, TypeDate},
		{"named dates", []any{"Jan 5, 2024", "12 Feb 2024", "March 3, 2024", "foo"}, TypeDate},
		{"words", []any{"alpha", "beta", "gamma", "delta"}, TypeText},
		{"too few numbers", []any{"1", "2"}, TypeText},
		{"mostly text", []any{"1", "2", "3", "a", "b", "c", "d", "e"}, TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DetectColumn(col("c", tt.vals...), opts)
			assert.True(t, d.Decided)
			assert.Equal(t, tt.want, d.Type, "numeric=%d date=%d", d.NumericScore, d.DateScore)
		})
	}
}

func TestLooksLikeDate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2024-01-31", true},
		{"Jan 5, 2024", true},
		{"due in March", true},
		{"15Jan2024", true},
		{"3sept.2024", true},
		{"Mayor", false},
		{"Junior 2", false},
		{"dec", true},
		{"decimal", false},
		{"120", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, looksLikeDate(tt.in), "input %q", tt.in)
	}
}

func TestDetectColumnCompactDates(t *testing.T) {
	d := DetectColumn(col("when", "15Jan2024", "02Feb2024", "9Mar2024"), DefaultOptions())
	assert.Equal(t, TypeDate, d.Type)
	assert.Equal(t, 3, d.DateScore)
}

func TestDetectColumnEmptySample(t *testing.T) {
	d := DetectColumn(col("blank", nil, nil, nil), DefaultOptions())
	assert.False(t, d.Decided)
	assert.Equal(t, TypeText, d.Type)
	assert.Zero(t, d.Sampled)
}

func TestDetectColumnSamplesFirstN(t *testing.T) {
	opts := DefaultOptions()
	opts.SampleSize = 4
	vals := append([]any{nil, "1", "2", "3", "4"}, repeat("word", 50)...)
	d := DetectColumn(col("c", vals...), opts)
	assert.Equal(t, 4, d.Sampled)
	assert.Equal(t, TypeNumeric, d.Type)
}

func TestDetectColumnUniqueness(t *testing.T) {
	d := DetectColumn(col("c", "a", "a", "b", nil), DefaultOptions())
	assert.InDelta(t, 0.5, d.Uniqueness, 1e-9)
}

func TestDetectKeepsColumnOrder(t *testing.T) {
	f := mustFrame(t,
		col("n", 1, 2, 3, 4),
		col("d", "2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"),
		col("t", "x", "y", "z", "w"),
		col("m", "1", "2", "3", "4"),
	)
	opts := DefaultOptions()
	opts.DetectWorkers = 3
	got, err := Detect(context.Background(), f, opts)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"n", "d", "t", "m"}, []string{got[0].Column, got[1].Column, got[2].Column, got[3].Column})
	assert.Equal(t, []ColumnType{TypeNumeric, TypeDate, TypeText, TypeNumeric}, []ColumnType{got[0].Type, got[1].Type, got[2].Type, got[3].Type})
}

func TestDetectDoesNotMutate(t *testing.T) {
	f := mustFrame(t, col("price", "$1", "$2", "$3"))
	before := f.Clone()
	_, err := Detect(context.Background(), f, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, before.Equal(f))
}

func TestDetectHonoursCancellation(t *testing.T) {
	f := mustFrame(t, col("a", 1), col("b", 2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Detect(ctx, f, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
