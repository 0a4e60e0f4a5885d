package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalName(t *testing.T) {
	tests := map[string]string{
		"Monthly Income (₹)": "monthly_income",
		"  First   Name ":    "first_name",
		"Speed-km/h":         "speedkmh",
		"already_clean":      "already_clean",
		"Größe":              "größe",
		"Tab\tSeparated":     "tab_separated",
		"%":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalName(in), "input %q", in)
	}
}

func TestCanonicalNameIdempotent(t *testing.T) {
	for _, in := range []string{"Monthly Income (₹)", "A  B", "x__y", "Ünïcode Name!", "  "} {
		once := CanonicalName(in)
		assert.Equal(t, once, CanonicalName(once))
	}
}

func TestCanonicalizeNamesCollisions(t *testing.T) {
	plan, notes, err := CanonicalizeNames([]string{"First Name", "first_name", "FIRST NAME!", "(₹)"}, CollisionSuffix)
	require.NoError(t, err)
	assert.Equal(t, []Rename{
		{From: "First Name", To: "first_name"},
		{From: "first_name", To: "first_name_2"},
		{From: "FIRST NAME!", To: "first_name_3"},
		{From: "(₹)", To: "column_4"},
	}, plan)
	assert.Len(t, notes, 2)

	_, _, err = CanonicalizeNames([]string{"A", "a"}, CollisionError)
	assert.ErrorIs(t, err, ErrNameCollision)
}

func TestCanonicalizeNamesTwiceIsStable(t *testing.T) {
	plan, _, err := CanonicalizeNames([]string{"A B", "a_b", "C"}, CollisionSuffix)
	require.NoError(t, err)
	names := make([]string, len(plan))
	for i, r := range plan {
		names[i] = r.To
	}
	again, notes, err := CanonicalizeNames(names, CollisionSuffix)
	require.NoError(t, err)
	assert.Empty(t, notes)
	for i, r := range again {
		assert.Equal(t, names[i], r.To)
	}
}

func TestRenameColumnsLogsAndCopies(t *testing.T) {
	f := mustFrame(t, col("Monthly Income (₹)", "₹1,000"), col("Name", "x"))
	log := &ChangeLog{}
	out, plan, err := RenameColumns(f, CollisionSuffix, log)
	require.NoError(t, err)
	assert.Equal(t, []string{"monthly_income", "name"}, out.Names())
	assert.Equal(t, []string{"Monthly Income (₹)", "Name"}, f.Names(), "input must stay untouched")
	assert.Len(t, plan, 2)
	require.Equal(t, 1, log.Len())
	assert.Equal(t, `Cleaned column names: ["Monthly Income (₹)", "Name"] -> ["monthly_income", "name"]`, log.Entries()[0])
}
