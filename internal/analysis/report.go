package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
)

// Options controls the profile report.
type Options struct {
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// TopValues caps the categories listed per categorical column.
	TopValues int
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
}

// DefaultOptions returns reasonable defaults for the report.
func DefaultOptions() Options {
	return Options{SampleRows: 5, TopValues: 5, Correlations: true}
}

// Report is a markdown-friendly profile of a cleaned dataset.
type Report struct {
	Name      string
	RowsIn    int
	Rows      int
	Cols      []ColumnSummary
	Decisions []clean.Decision
	Log       []string
	Samples   [][]string
	Warnings  []string
	Corr      []PairCorr
}

// ColumnSummary captures the profiled kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text|empty
	Unit    string
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Datetime range
	First time.Time
	Last  time.Time
	// Categorical top values
	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
	N    int
}

// Profile summarizes every column of f.
func Profile(name string, f *frame.Frame, opt Options) *Report {
	rep := &Report{Name: name}
	if f == nil {
		return rep
	}
	rep.Rows = f.Rows()
	rep.RowsIn = rep.Rows
	for _, c := range f.Columns {
		rep.Cols = append(rep.Cols, summarize(c, opt))
	}
	sampleRows := opt.SampleRows
	if sampleRows < 0 {
		sampleRows = 0
	}
	for i := 0; i < rep.Rows && i < sampleRows; i++ {
		row := f.Row(i)
		vals := make([]string, len(row))
		for j, v := range row {
			vals[j] = v.String()
		}
		rep.Samples = append(rep.Samples, vals)
	}
	if opt.Correlations {
		rep.Corr = correlations(f)
	}
	return rep
}

// FromResult profiles a run's output and attaches its detection decisions,
// change log and warnings. Units found in the original labels are kept as
// hints on the renamed columns.
func FromResult(name string, res *clean.Result, opt Options) *Report {
	rep := Profile(name, res.Frame, opt)
	rep.RowsIn = res.RowsIn
	rep.Decisions = res.Decisions
	rep.Log = res.Log
	rep.Warnings = append(rep.Warnings, res.Warnings...)
	units := make(map[string]string, len(res.Renames))
	for _, r := range res.Renames {
		if _, u := splitUnits(r.From); u != "" {
			units[r.To] = u
		}
	}
	for i := range rep.Cols {
		if u, ok := units[rep.Cols[i].Name]; ok {
			rep.Cols[i].Unit = u
		}
	}
	return rep
}

func summarize(c frame.Column, opt Options) ColumnSummary {
	s := ColumnSummary{Name: c.Name, NonNull: c.NonMissing(), Unique: c.Distinct()}
	s.Missing = len(c.Cells) - s.NonNull
	if _, u := splitUnits(c.Name); u != "" {
		s.Unit = u
	}
	switch c.Storage() {
	case frame.Missing:
		s.Kind = "empty"
	case frame.Number:
		s.Kind = "numeric"
		// Welford
		var n int
		var mean, m2 float64
		s.Min, s.Max = math.Inf(1), math.Inf(-1)
		for _, x := range c.Numbers() {
			n++
			d := x - mean
			mean += d / float64(n)
			m2 += d * (x - mean)
			s.Min = math.Min(s.Min, x)
			s.Max = math.Max(s.Max, x)
		}
		s.Mean = mean
		if n > 1 {
			s.Std = math.Sqrt(m2 / float64(n-1))
		}
	case frame.Time:
		s.Kind = "datetime"
		for _, v := range c.Cells {
			if v.Kind != frame.Time {
				continue
			}
			if s.First.IsZero() || v.Time.Before(s.First) {
				s.First = v.Time
			}
			if s.Last.IsZero() || v.Time.After(s.Last) {
				s.Last = v.Time
			}
		}
	default:
		counts := make(map[string]int)
		for _, v := range c.Cells {
			if !v.IsMissing() {
				counts[v.String()]++
			}
		}
		if s.Unique <= 20 || s.Unique*2 <= s.NonNull {
			s.Kind = "categorical"
			s.TopValues = topValues(counts, opt.TopValues)
		} else {
			s.Kind = "text"
			for _, v := range c.Cells {
				if len(s.ExampleTexts) >= 3 {
					break
				}
				if !v.IsMissing() {
					s.ExampleTexts = append(s.ExampleTexts, v.String())
				}
			}
		}
	}
	return s
}

func topValues(counts map[string]int, limit int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Value < out[j].Value
		}
		return out[i].Count > out[j].Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// correlations computes Pearson r for every pair of numeric columns over the
// rows where both are present, strongest first.
func correlations(f *frame.Frame) []PairCorr {
	var idx []int
	for i, c := range f.Columns {
		if c.Storage() == frame.Number {
			idx = append(idx, i)
		}
	}
	var pairs []PairCorr
	for a := 0; a < len(idx); a++ {
		for b := a + 1; b < len(idx); b++ {
			ca, cb := f.Columns[idx[a]], f.Columns[idx[b]]
			var n, sx, sy, sxx, syy, sxy float64
			for r := range ca.Cells {
				x, y := ca.Cells[r], cb.Cells[r]
				if x.Kind != frame.Number || y.Kind != frame.Number {
					continue
				}
				n++
				sx += x.Num
				sy += y.Num
				sxx += x.Num * x.Num
				syy += y.Num * y.Num
				sxy += x.Num * y.Num
			}
			if n < 3 {
				continue
			}
			den := math.Sqrt((n*sxx - sx*sx) * (n*syy - sy*sy))
			if den == 0 || math.IsNaN(den) {
				continue
			}
			pairs = append(pairs, PairCorr{A: ca.Name, B: cb.Name, R: (n*sxy - sx*sy) / den, N: int(n)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai := math.Abs(pairs[i].R)
		aj := math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	return pairs
}

// Markdown renders the report as a standalone document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	if r.RowsIn != r.Rows {
		b.WriteString(fmt.Sprintf("Rows: %d (input %d)\n", r.Rows, r.RowsIn))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n", len(r.Cols)))

	if len(r.Decisions) > 0 {
		b.WriteString("\n[DETECTION]\n")
		for _, d := range r.Decisions {
			verdict := string(d.Type)
			if !d.Decided {
				verdict += " (no values sampled)"
			}
			b.WriteString(fmt.Sprintf("- %s: %s (sampled %d, numeric-like %d, date-like %d, uniqueness %.2f)\n",
				safeName(d.Column), verdict, d.Sampled, d.NumericScore, d.DateScore, d.Uniqueness))
		}
	}

	b.WriteString("\n[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		name := safeName(c.Name)
		if c.Unit != "" {
			name = fmt.Sprintf("%s [%s]", name, c.Unit)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", name, c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		case "datetime":
			b.WriteString(fmt.Sprintf("; range %s to %s", frame.FormatTime(c.First), frame.FormatTime(c.Last)))
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString("; top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		case "text":
			if len(c.ExampleTexts) > 0 {
				b.WriteString("; e.g., ")
				for i, ex := range c.ExampleTexts {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(safeVal(ex))
				}
			}
		}
		b.WriteString("\n")
	}

	if len(r.Corr) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		maxp := min(10, len(r.Corr))
		for _, p := range r.Corr[:maxp] {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (n=%d)\n", p.A, p.B, p.R, p.N))
		}
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n| ")
		for i := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}

	if r.Log != nil {
		b.WriteString("\n[CHANGE LOG]\n")
		b.WriteString(clean.RenderLog(r.Log))
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}
func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Income (₹)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Speed [km/h]
	{regexp.MustCompile(`^(.*?)[_\s-]+(km/h|kmh|mph|rpm|kwh|kw|°[CF]|%)$`), 2},
}

func splitUnits(name string) (string, string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}
