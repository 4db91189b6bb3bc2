package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/aliasgraph/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr  string
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the alias graph over HTTP",
		Long: `Start an HTTP server with a JSON API over the loaded signatures.

Endpoints:
  GET  /api/check          Run the circular alias check
  GET  /api/deps?alias=X   Dependencies of an alias (&direct=true for direct only)
  GET  /api/order          Dependency order, 409 when aliases are circular
  GET  /api/scc            Strongly connected components
  GET  /api/files          File dependency graph
  GET  /api/runs           Recorded checks
  GET  /api/runs/{id}      One recorded check with its diagnostics
  POST /api/reload         Reload the signature directory
  GET  /api/events         Server-sent check results after every reload

With --watch the signature directory is reloaded on change and every
connected event stream receives the new check result.`,
		Example: `  # Serve on the default address
  aliasgraph serve

  # Serve on another port and follow file changes
  aliasgraph serve --addr :9090 --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", server.DefaultAddr, "Address to listen on")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload and notify clients when signature files change")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := discover(cmdCtx)
	if err != nil {
		return err
	}
	cmdCtx.Logger.Info("signatures loaded", "summary", result.Summary())

	srv := server.New(server.Config{
		Engine: cmdCtx.Engine,
		Addr:   opts.Addr,
		Logger: cmdCtx.Logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	if opts.Watch {
		// The server holds the engine, so config edits are not followed here.
		s := newWatchSession(cmdCtx, "")
		s.onApplied = srv.Notifier().Broadcast
		g.Go(func() error {
			return s.run(gctx)
		})
	}

	cmdCtx.Renderer.Muted(fmt.Sprintf("Serving %s on %s (Ctrl+C to stop)", cmdCtx.Cfg.SigDir, opts.Addr))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
