package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/logger"
	"github.com/roach88/ledgermsg/internal/rpc"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string // overrides server.listen
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Long: `Run the engine and expose it over HTTP until interrupted.

Routes:
  POST /v1/transactions      submit a signed transaction
  GET  /v1/accounts/{addr}   read an account and its decoded record
  GET  /v1/entries/{seq}     read a log entry
  GET  /v1/head              current head
  GET  /healthz              liveness
  GET  /metrics              Prometheus metrics

Examples:
  ledgermsg serve
  ledgermsg serve --listen :9000 --config ledgermsg.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides server.listen)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if !opts.Verbose {
		if err := logger.Initialize(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format); err != nil {
			return WrapExitError(ExitCommandError, "invalid logging configuration", err)
		}
	}
	listen := cfg.Server.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	h, err := openLedger(ctx, opts.RootOptions, engine.WithMetrics(engine.NewMetrics(reg)))
	if err != nil {
		return err
	}
	defer h.Close()

	srv := rpc.New(h.engine, h.store, rpc.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Registry:    reg,
	})
	if err := srv.Serve(ctx, listen); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	return nil
}
