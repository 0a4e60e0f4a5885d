package clean

import (
	"fmt"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
)

// OutlierSuffix is appended to a column name to form its indicator column.
const OutlierSuffix = "_is_outlier"

// Fences returns Q1 - k*IQR and Q3 + k*IQR. ok is false for an empty input.
func Fences(vals []float64, k float64) (low, high float64, ok bool) {
	if len(vals) == 0 {
		return 0, 0, false
	}
	sorted := sortedCopy(vals)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr, true
}

// FlagOutliers appends a 0/1 indicator column for every numeric column of a
// copy of f. A row is flagged when its value lies strictly outside the IQR
// fences; missing cells are never flagged. Existing rows are not touched.
func FlagOutliers(f *frame.Frame, opts Options, log *ChangeLog) (*frame.Frame, []string) {
	out := f.Clone()
	var numeric []int
	for i, c := range out.Columns {
		if c.Storage() == frame.Number {
			numeric = append(numeric, i)
		}
	}
	var added []string
	for _, idx := range numeric {
		src := out.Columns[idx]
		guardColumn(log, StepFlagOutliers, src.Name, func() {
			low, high, ok := Fences(src.Numbers(), opts.IQRMultiplier)
			if !ok {
				log.Addf("Skipped outlier check for '%s': no values", src.Name)
				return
			}
			name := uniqueName(out, src.Name+OutlierSuffix)
			cells := make([]frame.Value, len(src.Cells))
			flagged := 0
			for i, v := range src.Cells {
				flag := 0.0
				if v.Kind == frame.Number && (v.Num < low || v.Num > high) {
					flag = 1
					flagged++
				}
				cells[i] = frame.Num(flag)
			}
			if err := out.AppendColumn(frame.Column{Name: name, Cells: cells}); err != nil {
				panic(err)
			}
			added = append(added, name)
			log.Addf("Flagged outliers for '%s' -> new column '%s' (low=%.3f, high=%.3f, flagged=%d)", src.Name, name, low, high, flagged)
		})
	}
	if len(numeric) == 0 {
		log.Addf("No numeric columns to check for outliers")
	}
	return out, added
}

func uniqueName(f *frame.Frame, name string) string {
	if f.Index(name) < 0 {
		return name
	}
	for k := 2; ; k++ {
		cand := fmt.Sprintf("%s_%d", name, k)
		if f.Index(cand) < 0 {
			return cand
		}
	}
}
