package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpapi "wisefido-shift/internal/http"
	"wisefido-shift/internal/service"
)

func newServeCmd() *cobra.Command {
	var noSweep bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), noSweep)
		},
	}
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "do not run the periodic reminder sweep (use the cron endpoint instead)")
	return cmd
}

func runServe(parent context.Context, noSweep bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sweeper := a.sweeper()
	router := httpapi.NewRouter(a.logger)
	router.RegisterShiftRoutes(httpapi.NewShiftHandler(a.shiftService(), a.history, a.logger))
	router.RegisterCronRoutes(httpapi.NewCronHandler(sweeper, a.logger))
	router.RegisterHealthRoutes(a.storeKind)

	srv := service.NewServer(a.cfg.HTTP.Addr, router.Handler(), a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	if a.cfg.Reminder.Enabled && !noSweep {
		g.Go(func() error { return sweeper.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("wisefido-shift stopped with error", zap.Error(err))
		return err
	}
	return nil
}
