package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/mushtruk/framegate"
	"github.com/mushtruk/framegate/config"
	fggrpc "github.com/mushtruk/framegate/grpc"
	framegatehttp "github.com/mushtruk/framegate/http"
	"github.com/mushtruk/framegate/logging"
	fgdatadog "github.com/mushtruk/framegate/metrics/datadog"
	fgotel "github.com/mushtruk/framegate/metrics/opentelemetry"
	fgprom "github.com/mushtruk/framegate/metrics/prometheus"
	"github.com/mushtruk/framegate/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	serviceName     = "framegate"
	shutdownTimeout = 5 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor and serve snapshots over HTTP and gRPC",
		Long: `Starts the local monitor, the HTTP endpoints (/snapshot, /beacon,
/beacon/stream, /metrics, /health) and optionally the gRPC server with snapshot
interceptors and health reporting.

Settings come from the YAML file given with --config, overridden by
FRAMEGATE_* environment variables. The file is watched; log.level
changes apply immediately, other changes need a restart.

Example:
  framegate serve --config framegate.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := newServer(ctx, c, cfg)
			if err != nil {
				return err
			}
			defer s.close()
			return s.run(ctx, path)
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "Path to the YAML configuration file")
	return cmd
}

// server owns everything serve starts. close releases it in reverse order.
type server struct {
	cfg     *config.Config
	level   zap.AtomicLevel
	verbose bool
	logger  *zap.Logger
	log     framegate.Logger

	monitor *framegate.Monitor
	beacon  *framegatehttp.Beacon
	http    *http.Server
	grpc    *grpc.Server
	health  *fggrpc.HealthReporter

	closers []func(context.Context) error
}

func newServer(ctx context.Context, c *cli, cfg *config.Config) (*server, error) {
	s := &server{cfg: cfg, level: c.level, verbose: c.verbose}

	if !c.verbose {
		if err := applyLevel(s.level, cfg.Log.Level); err != nil {
			return nil, err
		}
	}
	logger, err := buildLogger(cfg.Log.Format, s.level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	s.logger = logger.Named(serviceName)
	s.log = logging.NewZapAdapter(s.logger)

	metrics, promReg, err := s.setupMetrics(ctx)
	if err != nil {
		s.close()
		return nil, err
	}
	tracer, err := s.setupTracing(ctx)
	if err != nil {
		s.close()
		return nil, err
	}

	opts := append(cfg.Monitor.Options(),
		framegate.WithScheduler(framegate.NewTickerScheduler(cfg.Monitor.FrameRate)),
		framegate.WithLogger(s.log),
		framegate.WithMetrics(metrics),
		framegate.WithTracer(tracer),
	)
	s.monitor = framegate.New(opts...)

	if cfg.HTTP.Enabled {
		s.http = s.newHTTPServer(ctx, metrics, promReg)
	}
	if cfg.GRPC.Enabled {
		s.newGRPCServer()
	}
	return s, nil
}

func applyLevel(level zap.AtomicLevel, name string) error {
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	level.SetLevel(l)
	return nil
}

// setupMetrics returns the collector for the configured backend and, for
// the backends scraped over /metrics, the registry to serve.
func (s *server) setupMetrics(ctx context.Context) (framegate.MetricsCollector, *prometheus.Registry, error) {
	m := s.cfg.Metrics

	switch m.Backend {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		var r prometheus.Registerer = reg
		if m.Namespace != "" {
			r = prometheus.WrapRegistererWithPrefix(m.Namespace+"_", reg)
		}
		return fgprom.NewMetrics(r), reg, nil

	case "otel":
		reg := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(serviceResource()),
		)
		otel.SetMeterProvider(provider)
		s.closers = append(s.closers, provider.Shutdown)

		collector, err := fgotel.NewMetrics(provider.Meter("github.com/mushtruk/framegate"))
		if err != nil {
			return nil, nil, fmt.Errorf("create otel instruments: %w", err)
		}
		return collector, reg, nil

	case "datadog":
		client, err := statsd.New(m.DatadogAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("create statsd client: %w", err)
		}
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })

		var opts []fgdatadog.Option
		if m.Namespace != "" {
			opts = append(opts, fgdatadog.WithNamespace(m.Namespace))
		}
		return fgdatadog.NewMetrics(client, opts...), nil, nil
	}

	s.log.DebugContext(ctx, "metrics disabled")
	return framegate.NoOpMetrics{}, nil, nil
}

// setupTracing exports tick spans over OTLP/HTTP when an endpoint is set.
func (s *server) setupTracing(ctx context.Context) (framegate.Tracer, error) {
	t := s.cfg.Tracing
	if t.OTLPEndpoint == "" {
		return framegate.NoOpTracer{}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.OTLPEndpoint)}
	if t.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(serviceResource()),
	)
	otel.SetTracerProvider(tp)
	s.closers = append(s.closers, tp.Shutdown)

	s.log.InfoContext(ctx, "tracing enabled", "endpoint", t.OTLPEndpoint)
	return tracing.NewTracer(tp.Tracer("github.com/mushtruk/framegate")), nil
}

func serviceResource() *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)
}

func (s *server) newHTTPServer(ctx context.Context, metrics framegate.MetricsCollector, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()

	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
	mux.HandleFunc("/health", ok)
	mux.HandleFunc("/readiness", func(w http.ResponseWriter, r *http.Request) {
		if s.monitor.State() != framegate.StateRunning {
			http.Error(w, "monitor not running", http.StatusServiceUnavailable)
			return
		}
		ok(w, r)
	})
	mux.Handle("/snapshot", framegatehttp.SnapshotHandler(s.monitor.Store()))

	if s.cfg.Beacon.Enabled {
		bc := framegatehttp.DefaultBeaconConfig()
		bc.CacheSize = s.cfg.Beacon.CacheSize
		bc.CacheTTL = s.cfg.Beacon.SessionTTL
		bc.MaxFrames = s.cfg.Beacon.MaxFrames
		bc.MetricsInterval = s.cfg.Metrics.Interval
		bc.Logger = s.log
		bc.Metrics = metrics
		bc.MonitorOptions = s.cfg.Monitor.ScoringOptions()
		s.beacon = framegatehttp.NewBeacon(ctx, bc)
		mux.Handle("/beacon", s.beacon)
		mux.Handle("/beacon/stream", s.beacon.StreamHandler())
	}

	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = framegatehttp.Middleware(s.monitor.Store(), framegatehttp.DefaultConfig())(mux)
	if s.cfg.Tracing.OTLPEndpoint != "" {
		handler = otelhttp.NewHandler(handler, serviceName)
	}

	return &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *server) newGRPCServer() {
	cfg := fggrpc.DefaultConfig()
	cfg.Logger = s.log

	s.grpc = grpc.NewServer(
		grpc.ChainUnaryInterceptor(fggrpc.UnaryServerInterceptor(s.monitor.Store(), cfg)),
		grpc.ChainStreamInterceptor(fggrpc.StreamServerInterceptor(s.monitor.Store(), cfg)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, hs)
	reflection.Register(s.grpc)
	s.health = fggrpc.NewHealthReporter(s.monitor.Store(), hs, s.cfg.GRPC.HealthService)
}

// run starts the monitor and every listener and blocks until ctx is done
// or one of them fails.
func (s *server) run(ctx context.Context, path string) error {
	if err := s.monitor.Start(ctx); err != nil {
		return err
	}

	var lis net.Listener
	if s.grpc != nil {
		var err error
		if lis, err = net.Listen("tcp", s.cfg.GRPC.Addr); err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if s.http != nil {
		g.Go(func() error {
			s.log.InfoContext(gctx, "http server listening", "addr", s.http.Addr)
			if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return s.http.Shutdown(shutdownCtx)
		})
	}

	if s.grpc != nil {
		g.Go(func() error {
			s.log.InfoContext(gctx, "grpc server listening", "addr", lis.Addr().String())
			return s.grpc.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			s.grpc.GracefulStop()
			return nil
		})
	}

	if path != "" {
		g.Go(func() error {
			return config.Watch(gctx, path, s.log, s.reload)
		})
	}

	err := g.Wait()
	s.log.InfoContext(ctx, "shutting down")
	return err
}

// reload applies the parts of next that can change at runtime and warns
// about the rest.
func (s *server) reload(next *config.Config) {
	ctx := context.Background()
	if !s.verbose && next.Log.Level != s.cfg.Log.Level {
		if err := applyLevel(s.level, next.Log.Level); err == nil {
			s.log.InfoContext(ctx, "log level changed", "level", next.Log.Level)
		}
	}

	restart := func(section string, changed bool) {
		if changed {
			s.log.WarnContext(ctx, "configuration change needs a restart", "section", section)
		}
	}
	restart("monitor", next.Monitor != s.cfg.Monitor)
	restart("http", next.HTTP != s.cfg.HTTP)
	restart("grpc", next.GRPC != s.cfg.GRPC)
	restart("beacon", next.Beacon != s.cfg.Beacon)
	restart("metrics", next.Metrics != s.cfg.Metrics)
	restart("tracing", next.Tracing != s.cfg.Tracing)
	restart("log.format", next.Log.Format != s.cfg.Log.Format)

	s.cfg.Log.Level = next.Log.Level
}

func (s *server) close() {
	if s.health != nil {
		s.health.Close()
	}
	if s.beacon != nil {
		s.beacon.Close()
	}
	if s.monitor != nil {
		s.monitor.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.log.WarnContext(ctx, "shutdown failed", "error", err)
		}
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
}
