package cmd

import (
	"github.com/KaramelBytes/tidyloom-cli/internal/metrics"
	"github.com/KaramelBytes/tidyloom-cli/internal/server"
	"github.com/spf13/cobra"
)

var (
	srvAddr    string
	srvOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve detection and cleaning over HTTP",
	Long: `Serve exposes:

  GET  /healthz     liveness
  GET  /metrics     Prometheus metrics
  POST /v1/detect   raw CSV (or ?filename=x.xlsx) body, returns column decisions
  POST /v1/clean    multipart "file" plus optional "options" JSON`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := openHistory(ctx, c)
		if err != nil {
			logger.Warn("run history disabled", "error", err)
			store = nil
		}
		if store != nil {
			defer store.Close()
		}
		addr := c.ServerAddr
		if srvAddr != "" {
			addr = srvAddr
		}
		s := server.New(server.Config{
			Addr:           addr,
			RateLimit:      c.ServerRateLimit,
			MaxBodyBytes:   int64(c.ServerMaxBodyMB) << 20,
			AllowedOrigins: srvOrigins,
			Options:        c.CleanOptions(),
		}, logger, metrics.New(true), store)
		return s.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (overrides server_addr)")
	serveCmd.Flags().StringSliceVar(&srvOrigins, "cors-origin", nil, "allowed CORS origins (default any)")
}
