package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/injector"
)

type runOptions struct {
	addr     string
	duration time.Duration
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine against the simulated host and serve diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if opts.addr != "" {
				cfg.Server.Addr = opts.addr
			}
			app, cleanup, err := injector.InitializeApp(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if opts.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.duration)
				defer cancel()
			}
			return run(ctx, app)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address override")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func run(ctx context.Context, app *injector.App) error {
	app.Host.Attach(app.Loop)
	app.Engine.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Loop.Run(gctx, app.Config.Host.Frame)
	})
	g.Go(func() error {
		return app.Server.Serve(gctx)
	})

	err := g.Wait()
	if cerr := app.Engine.Close(); cerr != nil {
		app.Log.Warn("engine close", log.Error(cerr))
	}
	d := app.Engine.Diagnostics()
	app.Log.Info("stopped",
		log.Int("collected", d.Collectibles.Collected),
		log.Uint64("resolutions", d.Resolutions),
		log.Int("rebuilds", app.Host.Rebuilds()),
	)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
