package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/analysis"
	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	cfgpkg "github.com/KaramelBytes/tidyloom-cli/internal/config"
	"github.com/KaramelBytes/tidyloom-cli/internal/export"
	"github.com/KaramelBytes/tidyloom-cli/internal/history"
	"github.com/KaramelBytes/tidyloom-cli/internal/ingest"
	"github.com/KaramelBytes/tidyloom-cli/internal/metrics"
	"github.com/KaramelBytes/tidyloom-cli/internal/recipe"
	"github.com/KaramelBytes/tidyloom-cli/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	clIn          inputFlags
	clSteps       []string
	clAll         bool
	clOverrides   []string
	clRecipe      string
	clOutputDir   string
	clFormat      string
	clSuffix      string
	clBOM         bool
	clReport      bool
	clMetricsFile string
	clNoHistory   bool
	clDryRun      bool
	clQuiet       bool
)

// errNoSteps is returned when neither steps nor a recipe were given.
var errNoSteps = errors.New("no steps selected: use --steps, --all or --recipe")

// cleanPlan is the resolved selection for every file of one invocation.
type cleanPlan struct {
	sel       clean.Selection
	overrides map[string]clean.ColumnType
	opts      clean.Options
	format    export.Format
}

func resolvePlan(cmd *cobra.Command, c *cfgpkg.Global) (cleanPlan, error) {
	plan := cleanPlan{opts: c.CleanOptions(), overrides: map[string]clean.ColumnType{}}
	chosen := false
	if clRecipe != "" {
		r, err := recipe.Load(c.RecipesDir, clRecipe)
		if err != nil {
			return plan, err
		}
		plan.sel = r.Steps
		plan.opts = r.CleanOptions(plan.opts)
		for k, v := range r.Overrides {
			plan.overrides[k] = v
		}
		chosen = true
	}
	if cmd.Flags().Changed("steps") {
		sel, err := clean.ParseSelection(clSteps)
		if err != nil {
			return plan, err
		}
		plan.sel = sel
		chosen = true
	}
	if clAll {
		plan.sel = clean.SelectAll()
		chosen = true
	}
	if !chosen {
		return plan, errNoSteps
	}
	ov, err := clean.ParseOverrides(clOverrides)
	if err != nil {
		return plan, err
	}
	for k, v := range ov {
		plan.overrides[k] = v
	}
	if plan.format, err = export.ParseFormat(clFormat); err != nil {
		return plan, err
	}
	return plan, nil
}

var cleanCmd = &cobra.Command{
	Use:   "clean <files...>",
	Short: "Run the selected cleaning steps over CSV/TSV/XLSX/HTML files",
	Long: `Clean runs the chosen steps in their fixed order:

  clean_column_names, convert_numeric, convert_dates, fill_missing,
  remove_duplicates, flag_outliers, standardize_text

Each input is written next to itself (or into --output-dir) with a _cleaned
suffix, and the change log is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		files, err := utils.ExpandInputs(args)
		if err != nil {
			return err
		}
		plan, err := resolvePlan(cmd, c)
		if err != nil {
			return err
		}
		lopt, err := clIn.options()
		if err != nil {
			return err
		}
		if clOutputDir != "" && !clDryRun {
			if err := utils.EnsureDir(clOutputDir); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		var store *history.Store
		if !clNoHistory && !clDryRun {
			store, err = openHistory(ctx, c)
			if err != nil {
				fmt.Fprintf(out, "⚠ Run history disabled: %v\n", err)
				store = nil
			}
		}
		if store != nil {
			defer store.Close()
		}
		rec := metrics.New(false)

		total := len(files)
		for i, path := range files {
			if !clQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			if err := cleanOne(ctx, out, path, plan, lopt, store, rec); err != nil {
				return err
			}
		}
		if clMetricsFile != "" {
			if err := rec.WriteTextfile(clMetricsFile); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
			if !clQuiet {
				fmt.Fprintf(out, "✓ Metrics written to %s\n", clMetricsFile)
			}
		}
		return nil
	},
}

func cleanOne(ctx context.Context, out io.Writer, path string, plan cleanPlan, lopt ingest.Options, store *history.Store, rec *metrics.Recorder) error {
	started := time.Now().UTC()
	res, err := runPipeline(ctx, path, plan, lopt)
	if err != nil {
		rec.ObserveFailure()
		saveRun(ctx, out, store, history.Run{
			ID:         uuid.NewString(),
			Source:     path,
			Status:     history.StatusFailed,
			Error:      err.Error(),
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		})
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	rec.ObserveRun(res)

	for _, w := range res.Warnings {
		fmt.Fprintf(out, "⚠ %s\n", w)
	}
	if !clQuiet {
		fmt.Fprint(out, indent(clean.RenderLog(res.Log), "  "))
	}
	if clDryRun {
		fmt.Fprintf(out, "✓ Dry run for %s: %d rows in, %d rows out (nothing written)\n", filepath.Base(path), res.RowsIn, res.RowsOut)
		return nil
	}

	dest := utils.OutputPath(clOutputDir, path, clSuffix, plan.format.Ext())
	if err := export.WriteFile(dest, res.Frame, plan.format, export.Options{BOMPrefix: clBOM}); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Cleaned %s -> %s (%d rows in, %d rows out)\n", filepath.Base(path), dest, res.RowsIn, res.RowsOut)

	if clReport {
		rep := analysis.FromResult(filepath.Base(path), res, analysis.DefaultOptions())
		reportPath := utils.OutputPath(clOutputDir, path, clSuffix+"_report", ".md")
		if err := utils.SafeWriteFile(reportPath, []byte(rep.Markdown())); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(out, "✓ Report written to %s\n", reportPath)
	}
	saveRun(ctx, out, store, history.RunFromResult(path, res))
	return nil
}

func runPipeline(ctx context.Context, path string, plan cleanPlan, lopt ingest.Options) (*clean.Result, error) {
	f, err := ingest.LoadFile(path, lopt)
	if err != nil {
		return nil, err
	}
	p, err := clean.NewPipeline(plan.opts, logger.With("source", filepath.Base(path)))
	if err != nil {
		return nil, err
	}
	if _, err := p.Detect(ctx, f); err != nil {
		return nil, err
	}
	if err := p.Select(plan.sel, plan.overrides); err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

func saveRun(ctx context.Context, out io.Writer, store *history.Store, run history.Run) {
	if store == nil {
		return
	}
	if err := store.SaveRun(ctx, run); err != nil {
		fmt.Fprintf(out, "⚠ Failed to record run history: %v\n", err)
	}
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString(prefix + l)
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	clIn.register(cleanCmd.Flags())
	cleanCmd.Flags().StringSliceVarP(&clSteps, "steps", "s", nil, "comma-separated steps to run, or 'all'")
	cleanCmd.Flags().BoolVar(&clAll, "all", false, "run every step")
	cleanCmd.Flags().StringArrayVarP(&clOverrides, "override", "o", nil, "column type override column=auto|numeric|date|text (repeatable)")
	cleanCmd.Flags().StringVarP(&clRecipe, "recipe", "r", "", "saved recipe supplying steps, overrides and options")
	cleanCmd.Flags().StringVar(&clOutputDir, "output-dir", "", "directory for cleaned files (default: next to each input)")
	cleanCmd.Flags().StringVarP(&clFormat, "format", "f", "csv", "output format: csv|xlsx|json")
	cleanCmd.Flags().StringVar(&clSuffix, "suffix", "_cleaned", "suffix appended to output file names")
	cleanCmd.Flags().BoolVar(&clBOM, "bom", false, "prefix CSV output with a UTF-8 BOM for Excel")
	cleanCmd.Flags().BoolVar(&clReport, "report", false, "write a markdown profile and change log next to each output")
	cleanCmd.Flags().StringVar(&clMetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	cleanCmd.Flags().BoolVar(&clNoHistory, "no-history", false, "do not record this run in the history store")
	cleanCmd.Flags().BoolVar(&clDryRun, "dry-run", false, "print the change log without writing anything")
	cleanCmd.Flags().BoolVar(&clQuiet, "quiet", false, "suppress progress and the change log")
}
