package clean

import (
	"fmt"
	"strings"
)

// NoStepsMessage is shown in place of an empty change log.
const NoStepsMessage = "No cleaning steps selected."

// ChangeLog is the ordered, append-only audit trail of a run.
type ChangeLog struct {
	entries []string
}

// Addf appends one formatted entry.
func (l *ChangeLog) Addf(format string, args ...any) {
	if l == nil {
		return
	}
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

// Len returns the number of entries.
func (l *ChangeLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Entries returns a copy of the entries in append order.
func (l *ChangeLog) Entries() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// RenderLog formats entries as a numbered list.
func RenderLog(entries []string) string {
	if len(entries) == 0 {
		return NoStepsMessage + "\n"
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e)
	}
	return b.String()
}

// quoteList renders values as ["a", "b"] for log entries.
func quoteList(vals []string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
