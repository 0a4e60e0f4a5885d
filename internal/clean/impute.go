package clean

import (
	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
)

// FillMissing imputes missing cells in a copy of f. Numeric columns use
// opts.NumericFill over their present values; text columns use the mode,
// falling back to an empty string when no mode exists. Date columns are
// left alone.
func FillMissing(f *frame.Frame, opts Options, log *ChangeLog) *frame.Frame {
	out := f.Clone()
	filled, skipped := 0, 0
	for i := range out.Columns {
		col := &out.Columns[i]
		missing := len(col.Cells) - col.NonMissing()
		if missing == 0 {
			continue
		}
		switch col.Storage() {
		case frame.Time:
			skipped += missing
		case frame.Number:
			guardColumn(log, StepFillMissing, col.Name, func() {
				fill, label := numericFill(col.Numbers(), opts.NumericFill)
				col.Cells = fillCells(col.Cells, frame.Num(fill))
				log.Addf("Filled %d missing values in numeric '%s' with %s", missing, col.Name, label)
				filled++
			})
		case frame.Text, frame.Missing:
			guardColumn(log, StepFillMissing, col.Name, func() {
				var present []string
				for _, v := range col.Cells {
					if !v.IsMissing() {
						present = append(present, v.String())
					}
				}
				m, ok := mode(present)
				if opts.TextFill == FillEmpty || !ok {
					col.Cells = fillCells(col.Cells, frame.Str(""))
					log.Addf("Filled %d missing values in categorical '%s' with empty string", missing, col.Name)
				} else {
					col.Cells = fillCells(col.Cells, frame.Str(m))
					log.Addf("Filled %d missing values in categorical '%s' with mode='%s'", missing, col.Name, m)
				}
				filled++
			})
		}
	}
	switch {
	case filled == 0 && skipped > 0:
		log.Addf("No numeric or text values to fill (%d missing in date columns left as is)", skipped)
	case filled == 0:
		log.Addf("No missing values found")
	}
	return out
}

func numericFill(vals []float64, strategy NumericFill) (float64, string) {
	switch strategy {
	case FillMean:
		m := mean(vals)
		return m, "mean=" + frame.FormatNumber(m)
	case FillZero:
		return 0, "zero"
	default:
		m := median(vals)
		return m, "median=" + frame.FormatNumber(m)
	}
}

func fillCells(cells []frame.Value, with frame.Value) []frame.Value {
	out := make([]frame.Value, len(cells))
	for i, v := range cells {
		if v.IsMissing() {
			out[i] = with
		} else {
			out[i] = v
		}
	}
	return out
}
