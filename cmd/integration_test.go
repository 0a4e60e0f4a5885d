package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/tidyloom-cli/internal/recipe"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of c and its children to its default so
// bound variables do not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(args...)
	require.NoError(t, err, "command %v failed; output:\n%s", args, out)
	return out
}

func execCmd(args ...string) (string, error) {
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// isolate points HOME at a temp dir so config, recipes and history stay local.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const messyCSV = `Name,Score (pts),Joined
 alice ,10,2024-01-05
Bob,12,2024-02-11
Bob,12,2024-02-11
carol,,2024-03-20
dave,400,2024-04-02
erin,11,2024-05-09
`

func TestCLI_DetectPrintsDecisions(t *testing.T) {
	home := isolate(t)
	in := writeFile(t, filepath.Join(home, "data", "people.csv"), messyCSV)

	out := runCmd(t, "detect", in)
	assert.Contains(t, out, "people.csv: 6 rows, 3 columns")
	assert.Contains(t, out, "Score (pts)")

	out = runCmd(t, "detect", in, "--json")
	var decisions []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decisions))
	require.Len(t, decisions, 3)
	assert.Equal(t, "text", decisions[0]["type"])
	assert.Equal(t, "numeric", decisions[1]["type"])
	assert.Equal(t, "date", decisions[2]["type"])
}

func TestCLI_CleanAllWritesOutputReportAndHistory(t *testing.T) {
	home := isolate(t)
	in := writeFile(t, filepath.Join(home, "data", "people.csv"), messyCSV)
	outDir := filepath.Join(home, "out")
	metricsFile := filepath.Join(home, "tidyloom.prom")

	out := runCmd(t, "clean", in, "--all", "--output-dir", outDir, "--report", "--metrics-file", metricsFile)
	assert.Contains(t, out, "[1/1] Processing people.csv...")
	assert.Contains(t, out, "Cleaned column names")
	assert.Contains(t, out, "✓ Cleaned people.csv")

	b, err := os.ReadFile(filepath.Join(outDir, "people_cleaned.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "name,score_pts,joined,score_pts_is_outlier", lines[0])
	assert.Len(t, lines, 6, "one duplicate removed")
	assert.True(t, strings.HasPrefix(lines[1], "Alice,10,2024-01-05"), lines[1])

	rep, err := os.ReadFile(filepath.Join(outDir, "people_cleaned_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(rep), "[CHANGE LOG]")

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `tidyloom_runs_total{status="completed"} 1`)

	out = runCmd(t, "history", "list")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "people.csv")
}

func TestCLI_CleanRequiresSteps(t *testing.T) {
	home := isolate(t)
	in := writeFile(t, filepath.Join(home, "a.csv"), messyCSV)
	_, err := execCmd("clean", in)
	require.ErrorIs(t, err, errNoSteps)
}

func TestCLI_CleanDryRunWritesNothing(t *testing.T) {
	home := isolate(t)
	in := writeFile(t, filepath.Join(home, "a.csv"), messyCSV)
	out := runCmd(t, "clean", in, "--steps", "remove_duplicates", "--dry-run")
	assert.Contains(t, out, "Removed 1 exact duplicate rows")
	assert.Contains(t, out, "nothing written")
	_, err := os.Stat(filepath.Join(home, "a_cleaned.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestCLI_RecipeRoundTrip(t *testing.T) {
	home := isolate(t)
	in := writeFile(t, filepath.Join(home, "a.csv"), messyCSV)

	runCmd(t, "recipe", "init", "tidy", "-d", "names and dupes", "--steps", "clean_column_names,remove_duplicates", "-o", "Score (pts)=text")
	out := runCmd(t, "recipe", "list")
	assert.Contains(t, out, "tidy  steps=clean_column_names,remove_duplicates  names and dupes")

	_, err := execCmd("recipe", "init", "tidy", "--all")
	require.Error(t, err, "existing recipe is not replaced without --force")

	out = runCmd(t, "recipe", "show", "tidy")
	var r recipe.Recipe
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "names and dupes", r.Description)

	runCmd(t, "clean", in, "--recipe", "tidy", "--format", "json", "--no-history")
	b, err := os.ReadFile(filepath.Join(home, "a_cleaned.json"))
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(b, &rows))
	require.Len(t, rows, 5)
	assert.Equal(t, " alice ", rows[0]["name"], "text is not standardized")
	assert.EqualValues(t, 10, rows[0]["score_pts"])
	assert.Nil(t, rows[2]["score_pts"], "missing stays missing without fill_missing")

	runCmd(t, "recipe", "delete", "tidy")
	out = runCmd(t, "recipe", "list")
	assert.Contains(t, out, "No recipes found")
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	isolate(t)
	runCmd(t, "config", "set", "iqr_multiplier", "3")
	out := runCmd(t, "config", "show")
	assert.Contains(t, out, "iqr_multiplier: 3")

	_, err := execCmd("config", "set", "numeric_fill", "average")
	require.Error(t, err)
	_, err = execCmd("config", "set", "no_such_key", "1")
	require.Error(t, err)
}
