package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/KaramelBytes/tidyloom-cli/internal/analysis"
	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"github.com/KaramelBytes/tidyloom-cli/internal/ingest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// inputFlags are the reader options shared by detect and clean.
type inputFlags struct {
	delimiter  string
	maxRows    int
	sheetName  string
	sheetIndex int
	table      int
	na         []string
}

func (in *inputFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&in.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab' (sniffed if omitted)")
	fs.IntVar(&in.maxRows, "max-rows", 0, "maximum data rows to read (0 = unlimited)")
	fs.StringVar(&in.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	fs.IntVar(&in.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.IntVar(&in.table, "table", 0, "HTML: 0-based index of the table to read")
	fs.StringSliceVar(&in.na, "na", nil, "extra cell values to read as missing (repeatable)")
}

func (in *inputFlags) options() (ingest.Options, error) {
	delim, err := parseDelimiter(in.delimiter)
	if err != nil {
		return ingest.Options{}, err
	}
	opt := ingest.Options{
		MaxRows:    in.maxRows,
		Delimiter:  delim,
		Sheet:      in.sheetName,
		SheetIndex: in.sheetIndex,
		Table:      in.table,
	}
	if len(in.na) > 0 {
		opt.NAValues = append(append([]string{}, frame.DefaultNAValues...), in.na...)
	}
	return opt, nil
}

var (
	detIn      inputFlags
	detJSON    bool
	detProfile bool
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Propose a type for every column of a CSV/TSV/XLSX/HTML table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		path := args[0]
		opt, err := detIn.options()
		if err != nil {
			return err
		}
		f, err := ingest.LoadFile(path, opt)
		if err != nil {
			return err
		}
		p, err := clean.NewPipeline(c.CleanOptions(), logger)
		if err != nil {
			return err
		}
		decisions, err := p.Detect(cmd.Context(), f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch {
		case detJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(decisions)
		case detProfile:
			rep := analysis.Profile(filepath.Base(path), f, analysis.DefaultOptions())
			rep.Decisions = decisions
			fmt.Fprintln(out, rep.Markdown())
			return nil
		}
		fmt.Fprintf(out, "%s: %d rows, %d columns\n", filepath.Base(path), f.Rows(), len(f.Columns))
		printDecisions(out, decisions)
		return nil
	},
}

func printDecisions(w io.Writer, decisions []clean.Decision) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tSTORAGE\tSAMPLED\tNUMERIC\tDATE\tUNIQUE")
	for _, d := range decisions {
		t := string(d.Type)
		if !d.Decided {
			t += " (no values)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%.2f\n", d.Column, t, d.Storage, d.Sampled, d.NumericScore, d.DateScore, d.Uniqueness)
	}
	_ = tw.Flush()
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detIn.register(detectCmd.Flags())
	detectCmd.Flags().BoolVar(&detJSON, "json", false, "print decisions as JSON")
	detectCmd.Flags().BoolVar(&detProfile, "profile", false, "print a markdown profile of the raw dataset")
}
