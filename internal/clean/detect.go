package clean

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"golang.org/x/sync/errgroup"
)

// Decision is the detector's verdict for one column.
type Decision struct {
	Column string     `json:"column"`
	Type   ColumnType `json:"type"`
	// Decided is false when the column had no values to sample.
	Decided      bool    `json:"decided"`
	Storage      string  `json:"storage"`
	Sampled      int     `json:"sampled"`
	NumericScore int     `json:"numeric_score"`
	DateScore    int     `json:"date_score"`
	Uniqueness   float64 `json:"uniqueness"`
}

var numericLike = regexp.MustCompile(`^-?\d+(\.\d+)?%?$`)

var datePatterns = []*regexp.Regexp{
	// 2024-01-31, 2024/1/31
	regexp.MustCompile(`^\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`),
	// 31-01-2024, 1/2/24
	regexp.MustCompile(`^\d{1,2}[-/.]\d{1,2}[-/.](\d{4}|\d{2})\b`),
	// Jan 31, 2024
	regexp.MustCompile(`(?i)^[a-z]{3,9}\.? \d{1,2}(st|nd|rd|th)?,? \d{4}\b`),
	// 31 Jan 2024, 31-Jan-24
	regexp.MustCompile(`(?i)^\d{1,2}(st|nd|rd|th)?[ -][a-z]{3,9}\.?[ -]\d{2,4}\b`),
}

var monthName = regexp.MustCompile(`(?i)\b(jan(uary)?|feb(ruary)?|mar(ch)?|apr(il)?|may|june?|july?|aug(ust)?|sep(t(ember)?)?|oct(ober)?|nov(ember)?|dec(ember)?)\b`)

// compactMonth matches a month name glued between digits, as in 15Jan2024.
var compactMonth = regexp.MustCompile(`(?i)\d(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\d`)

func looksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, re := range datePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return monthName.MatchString(s) || compactMonth.MatchString(s)
}

func looksNumeric(s string, stripUnits bool) bool {
	return numericLike.MatchString(NormalizeValue(s, stripUnits))
}

// threshold is max(floor, floor(n*frac)).
func threshold(n int, frac float64, floor int) int {
	t := int(math.Floor(float64(n) * frac))
	if t < floor {
		return floor
	}
	return t
}

// sample returns the string form of the first n non-missing cells.
func sample(c frame.Column, n int) []string {
	out := make([]string, 0, n)
	for _, v := range c.Cells {
		if len(out) >= n {
			break
		}
		if v.IsMissing() {
			continue
		}
		out = append(out, v.String())
	}
	return out
}

// DetectColumn scores one column and decides its type. It never mutates c.
func DetectColumn(c frame.Column, opts Options) Decision {
	storage := c.Storage()
	d := Decision{Column: c.Name, Type: TypeText, Storage: storage.String()}
	if rows := len(c.Cells); rows > 0 {
		d.Uniqueness = float64(c.Distinct()) / float64(rows)
	}
	vals := sample(c, opts.SampleSize)
	d.Sampled = len(vals)
	if len(vals) == 0 {
		return d
	}
	d.Decided = true
	switch storage {
	case frame.Number:
		d.Type = TypeNumeric
		d.NumericScore = len(vals)
		return d
	case frame.Time:
		d.Type = TypeDate
		d.DateScore = len(vals)
		return d
	}
	for _, s := range vals {
		if looksNumeric(s, opts.StripUnits) {
			d.NumericScore++
		}
		if looksLikeDate(s) {
			d.DateScore++
		}
	}
	n := len(vals)
	switch {
	case d.DateScore >= threshold(n, opts.DateSampleFraction, opts.MinMatches) && d.DateScore > d.NumericScore:
		d.Type = TypeDate
	case d.NumericScore >= threshold(n, opts.NumericSampleFraction, opts.MinMatches) && d.NumericScore > d.DateScore:
		d.Type = TypeNumeric
	}
	return d
}

// Detect runs DetectColumn over every column. Columns are scored
// concurrently; the result is in column order regardless of scheduling.
// A column whose scoring panics is reported as undecided text.
func Detect(ctx context.Context, f *frame.Frame, opts Options) ([]Decision, error) {
	if f == nil {
		return nil, ErrEmptyDataset
	}
	out := make([]Decision, len(f.Columns))
	g, ctx := errgroup.WithContext(ctx)
	workers := opts.DetectWorkers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i := range f.Columns {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = detectSafely(f.Columns[i], opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return out, nil
}

func detectSafely(c frame.Column, opts Options) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = Decision{Column: c.Name, Type: TypeText, Storage: c.Storage().String()}
		}
	}()
	return DetectColumn(c, opts)
}
