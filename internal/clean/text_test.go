package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "New York", TitleCase("new YORK"))
	assert.Equal(t, "Über Straße", TitleCase("über straße"))
}

func TestStandardizeText(t *testing.T) {
	f := mustFrame(t,
		col("city", "  new york ", "LONDON", nil, "san FRANCISCO"),
		col("n", 1, 2, 3, 4),
	)
	log := &ChangeLog{}
	out := StandardizeText(f, log)

	assert.Equal(t, cells("New York", "London", nil, "San Francisco"), out.Column("city").Cells)
	assert.Equal(t, f.Column("n").Cells, out.Column("n").Cells)
	assert.Equal(t, []string{
		`Standardized text in 'city' (sample before -> after): ["  new york ", "LONDON", "san FRANCISCO"] -> ["New York", "London", "San Francisco"]`,
	}, log.Entries())
}

func TestStandardizeTextNoTextColumns(t *testing.T) {
	log := &ChangeLog{}
	StandardizeText(mustFrame(t, col("n", 1)), log)
	assert.Equal(t, []string{"No text columns to standardize"}, log.Entries())
}
