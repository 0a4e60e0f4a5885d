package clean

import (
	"testing"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"github.com/stretchr/testify/require"
)

// cells builds a column body: nil is missing, numbers are numeric, strings
// are text and time.Time values are dates.
func cells(vals ...any) []frame.Value {
	out := make([]frame.Value, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case nil:
			out[i] = frame.Null()
		case int:
			out[i] = frame.Num(float64(x))
		case float64:
			out[i] = frame.Num(x)
		case string:
			out[i] = frame.Str(x)
		case time.Time:
			out[i] = frame.TimeOf(x)
		default:
			panic("unsupported cell")
		}
	}
	return out
}

func col(name string, vals ...any) frame.Column {
	return frame.Column{Name: name, Cells: cells(vals...)}
}

func mustFrame(t *testing.T, cols ...frame.Column) *frame.Frame {
	t.Helper()
	f, err := frame.New(cols...)
	require.NoError(t, err)
	return f
}

func repeat(v any, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = v
	}
	return out
}
