package clean

import (
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const textSampleSize = 3

// TitleCase capitalizes the first letter of every word and lowercases the rest.
func TitleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// StandardizeText trims and title-cases every text column of a copy of f.
// Missing cells stay missing.
func StandardizeText(f *frame.Frame, log *ChangeLog) *frame.Frame {
	out := f.Clone()
	caser := cases.Title(language.Und)
	touched := 0
	for i := range out.Columns {
		col := &out.Columns[i]
		if col.Storage() != frame.Text {
			continue
		}
		guardColumn(log, StepStandardizeText, col.Name, func() {
			before := sample(*col, textSampleSize)
			cells := make([]frame.Value, len(col.Cells))
			for r, v := range col.Cells {
				if v.Kind != frame.Text {
					cells[r] = v
					continue
				}
				cells[r] = frame.Str(caser.String(strings.TrimSpace(v.Str)))
			}
			col.Cells = cells
			after := sample(*col, textSampleSize)
			log.Addf("Standardized text in '%s' (sample before -> after): %s -> %s", col.Name, quoteList(before), quoteList(after))
			touched++
		})
	}
	if touched == 0 {
		log.Addf("No text columns to standardize")
	}
	return out
}
