package main

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

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/airspace-playback/internal/config"
	"github.com/signalsfoundry/airspace-playback/internal/control"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/maptile"
	"github.com/signalsfoundry/airspace-playback/internal/observability"
	"github.com/signalsfoundry/airspace-playback/internal/session"
	"github.com/signalsfoundry/airspace-playback/internal/store"
	"github.com/signalsfoundry/airspace-playback/internal/stream"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var snapshot string
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control API, the HTTP API and the event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if snapshot != "" {
				cfg.Snapshot.Path = snapshot
			}
			if cmd.Flags().Changed("watch") {
				cfg.Snapshot.Watch = watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				return fmt.Errorf("listen grpc %s: %w", cfg.GRPC.Addr, err)
			}
			httpLis, err := net.Listen("tcp", cfg.HTTP.Addr)
			if err != nil {
				grpcLis.Close()
				return fmt.Errorf("listen http %s: %w", cfg.HTTP.Addr, err)
			}
			return run(ctx, cfg, log, grpcLis, httpLis)
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot file or directory to load at startup")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the snapshot when it changes on disk")
	return cmd
}

// run serves until ctx is cancelled or a listener fails.
func run(ctx context.Context, cfg config.Config, log logging.Logger, grpcLis, httpLis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.TracingOptions(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewPlaybackCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	st, err := store.Open(store.Options{Path: cfg.Store.Path, InMemory: cfg.Store.InMemory, Logger: log})
	if err != nil {
		return err
	}
	defer st.Close()

	sess := newSession(cfg, log, st, collector)
	defer sess.Close()

	switch {
	case cfg.Snapshot.Path != "":
		if err := sess.LoadFile(ctx, cfg.Snapshot.Path); err != nil {
			log.Warn(ctx, "initial snapshot load failed", logging.String("path", cfg.Snapshot.Path), logging.Err(err))
		}
	case st.CanLoadSimulation(ctx):
		if err := sess.LoadFromStore(ctx); err != nil {
			log.Warn(ctx, "restoring stored snapshot failed", logging.Err(err))
		}
	default:
		log.Info(ctx, "starting without a snapshot")
	}

	if cfg.Snapshot.Watch && cfg.Snapshot.Path != "" {
		go func() {
			if err := sess.Watch(ctx, cfg.Snapshot.Path); err != nil {
				log.Warn(ctx, "snapshot watch stopped", logging.Err(err))
			}
		}()
	}

	grpcSrv := control.NewServer(control.NewService(sess, log), collector)
	httpSrv := &http.Server{
		Handler: stream.NewServer(sess,
			stream.WithLogger(log),
			stream.WithCollector(collector),
			stream.WithServiceName(cfg.Tracing.ServiceName),
		).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	log.Info(ctx, "starting control gRPC server", logging.String("addr", grpcLis.Addr().String()))
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	log.Info(ctx, "starting HTTP server", logging.String("addr", httpLis.Addr().String()))
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.Info(context.Background(), "shutting down playback server")
	grpcSrv.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "http shutdown failed", logging.Err(err))
	}
	return runErr
}

func newSession(cfg config.Config, log logging.Logger, st *store.Store, collector *observability.PlaybackCollector) *session.Session {
	opts := []session.Option{session.WithLogger(log)}
	if st != nil {
		opts = append(opts, session.WithStore(st))
	}
	if collector != nil {
		opts = append(opts, session.WithMetrics(collector))
	}
	if cfg.Playback.SelectAll {
		opts = append(opts, session.WithSelectAll())
	}
	if cfg.Playback.ActiveOnlyFocus {
		opts = append(opts, session.WithActiveOnlyFocus())
	}
	if cfg.Tiles.Enabled {
		loaderOpts := []maptile.Option{maptile.WithLogger(log)}
		if collector != nil {
			loaderOpts = append(loaderOpts, maptile.WithMetricsRecorder(collector))
		}
		opts = append(opts, session.WithTileLoader(maptile.NewLoader(maptile.Config{
			BaseURL:     cfg.Tiles.BaseURL,
			Rate:        cfg.Tiles.Rate,
			Burst:       cfg.Tiles.Burst,
			Concurrency: cfg.Tiles.Concurrency,
			Timeout:     cfg.Tiles.Timeout,
		}, loaderOpts...)))
	}
	return session.New(opts...)
}
