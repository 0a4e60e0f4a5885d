package clean

import (
	"strings"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
)

// Conversion records the outcome of converting one column.
type Conversion struct {
	Column string     `json:"column"`
	Target ColumnType `json:"target"`
	// Before is the non-missing count before conversion.
	Before int `json:"before"`
	// After is the non-missing count after a numeric conversion, or the
	// number of cells that parsed for a date conversion.
	After     int  `json:"after"`
	Committed bool `json:"committed"`
}

// ParseNumber coerces one cell. Sentinels nan, None and empty strings are
// missing, a trailing percent sign is dropped, and anything that is not a
// plain decimal afterwards fails.
func ParseNumber(v frame.Value, stripUnits bool) (float64, bool) {
	switch v.Kind {
	case frame.Number:
		return v.Num, true
	case frame.Missing, frame.Time:
		return 0, false
	}
	s, _ := NormalizeCell(v, stripUnits)
	switch s {
	case "", "nan", "None":
		return 0, false
	}
	s = strings.TrimSuffix(s, "%")
	return frame.ParseDecimal(s)
}

// ConvertNumeric coerces the named columns of a copy of f to numbers.
// Cells that fail to parse become missing. Columns that already hold only
// numbers, or that are absent, are left alone.
func ConvertNumeric(f *frame.Frame, columns []string, opts Options, log *ChangeLog) (*frame.Frame, []Conversion) {
	out := f.Clone()
	var convs []Conversion
	for _, name := range columns {
		idx := out.Index(name)
		if idx < 0 {
			continue
		}
		col := &out.Columns[idx]
		if s := col.Storage(); s == frame.Number || s == frame.Missing {
			continue
		}
		guardColumn(log, StepConvertNumeric, name, func() {
			before := col.NonMissing()
			cells := make([]frame.Value, len(col.Cells))
			after := 0
			for i, v := range col.Cells {
				if x, ok := ParseNumber(v, opts.StripUnits); ok {
					cells[i] = frame.Num(x)
					after++
				}
			}
			col.Cells = cells
			convs = append(convs, Conversion{Column: name, Target: TypeNumeric, Before: before, After: after, Committed: true})
			log.Addf("Converted '%s' from text -> numeric (non-null: %d -> %d)", name, before, after)
		})
	}
	if len(convs) == 0 {
		log.Addf("No columns converted to numeric")
	}
	return out, convs
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006.01.02",
}

var monthFirstLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06",
	"1-2-2006",
	"1-2-06",
	"1.2.2006",
}

var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2/1/06",
	"2-1-2006",
	"2-1-06",
	"2.1.2006",
}

var namedLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"2-Jan-06",
	"2Jan2006",
	"2January2006",
	"Jan. 2, 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006",
	"Monday, January 2, 2006",
	"Jan 2006",
	"January 2006",
}

var (
	layoutsMonthFirst = joinLayouts(isoLayouts, monthFirstLayouts, dayFirstLayouts, namedLayouts)
	layoutsDayFirst   = joinLayouts(isoLayouts, dayFirstLayouts, monthFirstLayouts, namedLayouts)
)

func joinLayouts(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var ordinalSuffix = strings.NewReplacer("1st", "1", "2nd", "2", "3rd", "3", "th ", " ", "th,", ",")

// ParseDate tries ISO, numeric and month-name layouts in turn. With
// dayFirst, 03/04/2024 reads as 3 April.
func ParseDate(s string, dayFirst bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	candidates := []string{s}
	if alt := ordinalSuffix.Replace(s); alt != s {
		candidates = append(candidates, alt)
	}
	layouts := layoutsMonthFirst
	if dayFirst {
		layouts = layoutsDayFirst
	}
	for _, c := range candidates {
		for _, l := range layouts {
			if t, err := time.Parse(l, c); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func parseDateCell(v frame.Value, dayFirst bool) (time.Time, bool) {
	switch v.Kind {
	case frame.Time:
		return v.Time, true
	case frame.Text:
		return ParseDate(v.Str, dayFirst)
	default:
		return time.Time{}, false
	}
}

// ConvertDates parses the named columns of a copy of f as dates. A column
// is only replaced when at least max(MinMatches, rows*DateCommitFraction)
// cells parse; otherwise it is kept as is and the skip is logged.
func ConvertDates(f *frame.Frame, columns []string, opts Options, log *ChangeLog) (*frame.Frame, []Conversion) {
	out := f.Clone()
	rows := out.Rows()
	need := threshold(rows, opts.DateCommitFraction, opts.MinMatches)
	var convs []Conversion
	for _, name := range columns {
		idx := out.Index(name)
		if idx < 0 {
			continue
		}
		col := &out.Columns[idx]
		if s := col.Storage(); s == frame.Time || s == frame.Missing {
			continue
		}
		guardColumn(log, StepConvertDates, name, func() {
			before := col.NonMissing()
			cells := make([]frame.Value, len(col.Cells))
			parsed := 0
			for i, v := range col.Cells {
				if t, ok := parseDateCell(v, opts.DayFirst); ok {
					cells[i] = frame.TimeOf(t)
					parsed++
				}
			}
			conv := Conversion{Column: name, Target: TypeDate, Before: before, After: parsed}
			if parsed >= need {
				col.Cells = cells
				conv.Committed = true
				log.Addf("Parsed column '%s' to datetime (parsed %d values)", name, parsed)
			} else {
				log.Addf("Skipped date conversion for '%s': only %d of %d values parsed (need %d)", name, parsed, rows, need)
			}
			convs = append(convs, conv)
		})
	}
	if len(convs) == 0 {
		log.Addf("No date-like columns found")
	}
	return out, convs
}
