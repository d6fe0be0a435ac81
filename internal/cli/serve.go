package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/taxsync/internal/admin"
	"github.com/roach88/taxsync/internal/events"
	"github.com/roach88/taxsync/internal/tenant"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// OnListen is called with the bound address once the server accepts
	// connections (for testing).
	OnListen func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and deferred schema updates",
		Long: `Serve the admin HTTP API, run scheduled schema updates for every tenant
in the data directory, and, when a NATS URL is configured, provision tenants
named in provisioning events.

Example:
  taxsync serve --addr 127.0.0.1:8080
  taxsync serve -c taxsync.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg, logger := opts.Config, opts.Logger

	reg, sch, err := openRegistry(opts.RootOptions)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer closeRegistry(opts.RootOptions, reg)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	opened, err := reg.OpenAll(ctx)
	if err != nil {
		return failTenant(formatter, err)
	}
	if _, err := reg.Open(ctx, cfg.DefaultTenant); err != nil {
		return failTenant(formatter, err)
	}
	logger.Info("tenants opened", "count", len(reg.Tenants()), "existing", len(opened))

	if nc, err := connectEvents(opts.RootOptions, reg); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error())
	} else if nc != nil {
		defer func() {
			if err := nc.Drain(); err != nil {
				logger.Error("error draining NATS connection", "error", err)
			}
		}()
	}

	addr := opts.Addr
	if addr == "" {
		addr = cfg.HTTP.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("listen on %s: %v", addr, err))
	}

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers := admin.NewHandlers(reg,
		admin.WithLogger(logger),
		admin.WithAdminToken(cfg.HTTP.AdminToken),
	)
	srv := &http.Server{
		Handler:           admin.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reg.Start(gctx)
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	bound := ln.Addr().String()
	logger.Info("serving", "addr", bound, "version", sch.Version, "default_tenant", cfg.DefaultTenant)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving admin API on http://%s (schema %s)\n", bound, sch.Version)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.OnListen != nil {
		opts.OnListen(bound)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "serve error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// connectEvents subscribes the provisioning listener when a NATS URL is
// configured. Returns a nil connection when events are disabled.
func connectEvents(opts *RootOptions, reg *tenant.Registry) (*nats.Conn, error) {
	cfg := opts.Config.NATS
	if cfg.URL == "" {
		opts.Logger.Debug("NATS URL not set, provisioning events disabled")
		return nil, nil
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("taxsync"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	listener := events.NewProvisionListener(reg, events.WithLogger(opts.Logger))
	if _, err := listener.Subscribe(nc, cfg.Subject); err != nil {
		nc.Close()
		return nil, err
	}
	return nc, nil
}
