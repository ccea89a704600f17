package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/repsense/internal/adapters/http/api"
	"github.com/okian/repsense/internal/adapters/http/swagger"
	"github.com/okian/repsense/internal/adapters/mqtt"
	"github.com/okian/repsense/internal/adapters/ws"
	service "github.com/okian/repsense/internal/app"
	"github.com/okian/repsense/internal/config"
	"github.com/okian/repsense/internal/domain/capability"
	"github.com/okian/repsense/pkg/logger"
	"github.com/okian/repsense/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// components is the wired process: the session service plus its transports.
type components struct {
	svc       *service.Service
	hub       *ws.Hub
	publisher *mqtt.Publisher
	mux       *http.ServeMux
}

// close releases transports after the service has stopped.
func (c *components) close() {
	c.hub.Close()
	if c.publisher != nil {
		c.publisher.Close()
	}
}

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	c, err := build(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	defer c.close()

	go c.hub.Run(ctx)

	if err := c.svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start session", logger.Error(err))
		return
	}
	defer c.svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, c.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           c.mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// build wires the service, the cue hub, the optional MQTT telemetry
// publisher and the HTTP routes. A broker that cannot be reached disables
// telemetry; the session runs without it.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*components, error) {
	wearable, _ := capability.ParseReachability(cfg.Wearable)
	prober := capability.StaticProber{
		Camera:    cfg.CameraAvailable,
		Headphone: cfg.HeadphoneAvailable,
		Watch:     wearable,
	}

	hub := ws.NewHub(ws.WithLogger(log.Named("ws")))
	opts := []service.Option{
		service.WithLogger(log),
		service.WithConfig(cfg),
		service.WithProber(prober),
		service.WithSink("ws", hub),
	}

	var pub *mqtt.Publisher
	if cfg.MQTTBroker != "" {
		p, err := mqtt.Dial(ctx, cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, mqtt.WithLogger(log.Named("mqtt")))
		if err != nil {
			log.Warn(ctx, "telemetry disabled", logger.String("broker", cfg.MQTTBroker), logger.Error(err))
		} else {
			pub = p
			opts = append(opts, service.WithPublisher(pub))
		}
	}

	svc, err := service.New(opts...)
	if err != nil {
		hub.Close()
		if pub != nil {
			pub.Close()
		}
		return nil, err
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, hub).Register(ctx, mux)

	return &components{svc: svc, hub: hub, publisher: pub, mux: mux}, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges derived from session stats.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateDispatchQueueSize(queueLen)
	}
	if conf, ok := stats["confidence"].(float64); ok {
		metrics.UpdateConfidence(conf)
	}
}
