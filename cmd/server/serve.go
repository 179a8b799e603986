package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"econia/api/grpcserver"
	"econia/config"
	"econia/infra/kafka"
	"econia/infra/logging"
	"econia/infra/metrics"
	"econia/infra/sequence"
	entrywal "econia/infra/wal/entry"
	exitwal "econia/infra/wal/exit"
	"econia/jobs/broadcaster"
	"econia/service"
	"econia/snapshot"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	def := config.Default()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the exchange engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("grpc-addr", def.GRPCAddr, "gRPC listen address")
	cmd.Flags().String("metrics-addr", def.MetricsAddr, "prometheus listen address, empty to disable")
	cmd.Flags().String("markets-file", def.MarketsFile, "markets to register at startup")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	conf, logger := a.conf, a.logger
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	// ---------------- WALs ----------------

	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:             conf.EntryWAL.Dir,
		SegmentSize:     conf.EntryWAL.SegmentSize,
		SegmentDuration: conf.EntryWAL.SegmentDuration,
		Sync:            conf.EntryWAL.Sync,
	})
	if err != nil {
		return fmt.Errorf("entry WAL: %w", err)
	}
	defer entryWAL.Close()

	exitWAL, err := exitwal.Open(conf.ExitWAL.Dir)
	if err != nil {
		return fmt.Errorf("exit WAL: %w", err)
	}
	defer exitWAL.Close()

	// ---------------- Recovery ----------------

	svc := service.New(entryWAL, exitWAL, sequence.New(0), logging.Module(logger, "service"), m)

	snap, err := snapshot.Load(snapshot.Path(conf.Snapshot.Dir))
	switch {
	case err == nil:
		if err := svc.Restore(snap); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		logger.Info().Uint64("seq", snap.Seq).Int("markets", len(snap.Markets)).Msg("snapshot restored")
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("load snapshot: %w", err)
	}

	last, err := svc.Replay()
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	logger.Info().Uint64("seq", last).Msg("command log replayed")

	if conf.MarketsFile != "" {
		specs, err := config.LoadMarkets(conf.MarketsFile)
		if err != nil {
			return err
		}
		n, err := config.Bootstrap(ctx, svc, specs, logger)
		if err != nil {
			return fmt.Errorf("bootstrap markets: %w", err)
		}
		logger.Info().Int("registered", n).Int("listed", len(specs)).Msg("markets bootstrapped")
	}

	// ---------------- Servers ----------------

	gs, err := grpcserver.NewGRPCServer(grpcserver.NewServer(svc, logging.Module(logger, "grpc")), reg)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", conf.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.GRPCAddr, err)
	}

	// ---------------- Background jobs ----------------

	pub, err := newPublisher(conf.Broadcast)
	if err != nil {
		return err
	}
	var bc *broadcaster.Broadcaster
	if pub != nil {
		bc = broadcaster.New(exitWAL, pub, broadcaster.Config{
			Interval:   conf.Broadcast.Interval,
			BatchSize:  conf.Broadcast.BatchSize,
			MaxRetries: conf.Broadcast.MaxRetries,
		}, logger, m)
		bc.Start(ctx)
	}

	if conf.Snapshot.Interval > 0 {
		svc.StartSnapshotJob(ctx, conf.Snapshot.Dir, conf.Snapshot.Interval)
	}

	var httpSrv *http.Server
	if conf.MetricsAddr != "" {
		httpSrv = &http.Server{
			Addr:              conf.MetricsAddr,
			Handler:           newHTTPHandler(reg, svc),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gs.Serve(lis) })
	if httpSrv != nil {
		g.Go(func() error {
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		cancel()
		gs.GracefulStop()
		if httpSrv != nil {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return httpSrv.Shutdown(sctx)
		}
		return nil
	})
	logger.Info().Str("grpc", conf.GRPCAddr).Str("http", conf.MetricsAddr).Msg("econia engine running")
	err = g.Wait()

	// ---------------- Shutdown ----------------

	if bc != nil {
		<-bc.Done()
		if cerr := bc.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("close publisher")
		}
	}
	if conf.Snapshot.Interval > 0 {
		if snap, serr := svc.WriteSnapshot(conf.Snapshot.Dir); serr != nil {
			logger.Error().Err(serr).Msg("final snapshot")
		} else {
			logger.Info().Uint64("seq", snap.Seq).Msg("final snapshot written")
		}
	}
	return err
}

// newHTTPHandler serves Prometheus metrics and a liveness probe.
func newHTTPHandler(reg *prometheus.Registry, svc *service.ExchangeService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"markets": len(svc.Markets())})
	})
	return r
}

func newPublisher(c config.BroadcastConfig) (broadcaster.Publisher, error) {
	switch c.Driver {
	case config.DriverSarama:
		return broadcaster.NewSaramaPublisher(c.Brokers, c.Topic)
	case config.DriverKafkaGo:
		return kafka.NewProducer(c.Brokers, c.Topic), nil
	default:
		return nil, nil
	}
}
