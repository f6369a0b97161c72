package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/mesh-architect/interchange"
	"github.com/signalsfoundry/mesh-architect/internal/api"
	"github.com/signalsfoundry/mesh-architect/internal/config"
	"github.com/signalsfoundry/mesh-architect/internal/logging"
	"github.com/signalsfoundry/mesh-architect/internal/observability"
	"github.com/signalsfoundry/mesh-architect/internal/state"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	grpcAddr := flag.String("grpc-addr", "", "TCP address the planner gRPC server listens on (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	flag.Parse()

	bootLog := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Error(ctx, "failed to load config", logging.String("path", *configPath), logging.Err(err))
		os.Exit(1)
	}
	if *grpcAddr != "" {
		cfg.GRPCAddr = *grpcAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	log := logging.New(cfg.LoggingConfig())

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, log, lis); err != nil {
		log.Error(ctx, "planner server failed", logging.Err(err))
		os.Exit(1)
	}
}

// app is the wired planner: state, metrics and the gRPC server.
type app struct {
	state    *state.PlanState
	metrics  *observability.PlannerCollector
	analysis *observability.AnalysisCollector
	server   *grpc.Server
}

func newApp(ctx context.Context, cfg config.Config, log logging.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewPlannerCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics collector: %w", err)
	}
	analysis, err := observability.NewAnalysisCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("analysis collector: %w", err)
	}

	st := state.NewPlanState(log,
		state.WithMetricsRecorder(metrics),
		state.WithAnalysisObserver(analysis),
	)
	if err := loadInitialPlan(ctx, st, cfg, log); err != nil {
		return nil, err
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestIDUnaryServerInterceptor(log),
			api.TracingUnaryServerInterceptor(),
			metrics.UnaryServerInterceptor(),
		),
	)
	api.RegisterServices(server, api.NewPlannerService(st, log))

	return &app{state: st, metrics: metrics, analysis: analysis, server: server}, nil
}

// run serves the planner on lis until ctx is cancelled or the server fails.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.TracingConfig(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, a.metrics, log)

	log.Info(ctx, "starting planner gRPC server", logging.String("addr", lis.Addr().String()))
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(lis)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down planner server")
		a.server.GracefulStop()
	case serveErr = <-errCh:
		if errors.Is(serveErr, grpc.ErrServerStopped) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return serveErr
}

func loadInitialPlan(ctx context.Context, st *state.PlanState, cfg config.Config, log logging.Logger) error {
	switch {
	case cfg.ProjectPath != "":
		data, err := os.ReadFile(cfg.ProjectPath)
		if err != nil {
			return fmt.Errorf("read project: %w", err)
		}
		report, err := st.ImportJSON(ctx, data, interchange.ModeReplace)
		if err != nil {
			return fmt.Errorf("import project %s: %w", cfg.ProjectPath, err)
		}
		log.Info(ctx, "loaded project",
			logging.String("path", cfg.ProjectPath),
			logging.String("kind", string(report.Kind)),
			logging.Int("nodes", report.Imported),
		)
	case cfg.Preset != "":
		report, err := st.LoadPreset(ctx, cfg.Preset)
		if err != nil {
			return fmt.Errorf("load preset: %w", err)
		}
		log.Info(ctx, "loaded preset", logging.String("preset", cfg.Preset), logging.Int("nodes", report.Imported))
	}
	return nil
}

func serveMetrics(addr string, collector *observability.PlannerCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
