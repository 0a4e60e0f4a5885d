package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cfgpkg "github.com/KaramelBytes/tidyloom-cli/internal/config"
	"github.com/KaramelBytes/tidyloom-cli/internal/history"
	"github.com/KaramelBytes/tidyloom-cli/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logLevel  string
	logFormat string

	// Loaded configuration; cfgErr holds the reason when it failed to load.
	cfg    *cfgpkg.Global
	cfgErr error
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "tidyloom",
	Short: "tidyloom: detect column types and clean tabular data",
	Long: `tidyloom inspects CSV, TSV, XLSX and HTML tables, proposes a type for every
column and runs a fixed sequence of cleaning steps chosen by you, printing a
change log of everything it touched.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tidyloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text|json (overrides config)")
}

func loadConfig() {
	cfg, cfgErr = cfgpkg.Load(cfgFile)
	if cfgErr != nil {
		// Non-fatal: commands that need config report it through requireConfig
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", cfgErr)
	}
	level, format := "info", "text"
	if cfg != nil {
		level, format = cfg.LogLevel, cfg.LogFormat
	}
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	if debug {
		level = "debug"
	}
	logger = logging.New(level, format, os.Stderr)
	slog.SetDefault(logger)
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	if cfgErr != nil {
		return nil, fmt.Errorf("config: %w", cfgErr)
	}
	return nil, errors.New("config not loaded")
}

// openHistory returns nil without error when history is disabled.
func openHistory(ctx context.Context, c *cfgpkg.Global) (*history.Store, error) {
	if !c.HistoryEnabled {
		return nil, nil
	}
	return history.Open(ctx, history.Config{Driver: c.HistoryDriver, DSN: c.HistoryDSN})
}

// parseDelimiter accepts a single character or the names tab, comma,
// semicolon and pipe.
func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case "\t", `\t`, "tab":
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	default:
		return 0, fmt.Errorf("unsupported --delimiter: %s", s)
	}
}
