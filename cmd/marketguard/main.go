// Command marketguard runs the exchange API resilience proxy with its
// administrative HTTP surface.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/kyraven-io/marketguard/admin"
	"github.com/kyraven-io/marketguard/component"
	"github.com/kyraven-io/marketguard/config"
	"github.com/kyraven-io/marketguard/exchange"
	"github.com/kyraven-io/marketguard/guard"
	"github.com/kyraven-io/marketguard/logger"
	"github.com/kyraven-io/marketguard/observability"
	"github.com/kyraven-io/marketguard/ratelimit"
)

const gracefulTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Fatal("service exited with error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

func run() error {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	logger.Init(cfg.Logging)
	log := logger.WithComponent("main")
	log.Info("starting marketguard", map[string]interface{}{
		"environment": cfg.Environment,
		"version":     cfg.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry providers are optional; without them the guard layer still
	// aggregates local counters for the metrics endpoint.
	var collector *observability.Collector
	if cfg.Observability.Enabled {
		meterCfg := observability.DefaultMeterConfig(cfg.Name)
		meterCfg.Endpoint = cfg.Observability.Endpoint
		meterCfg.Insecure = cfg.Observability.Insecure
		meterCfg.Interval = time.Duration(cfg.Observability.Interval) * time.Second

		meterProvider, err := observability.InitMeter(ctx, meterCfg)
		if err != nil {
			return err
		}
		defer shutdownProvider(meterProvider.Shutdown)

		collector, err = observability.NewCollector(meterProvider.Meter("marketguard/guard"))
		if err != nil {
			return err
		}

		tracerCfg := observability.DefaultTracerConfig(cfg.Name)
		tracerCfg.Endpoint = cfg.Observability.Endpoint
		tracerCfg.Insecure = cfg.Observability.Insecure
		tracerCfg.SampleRate = cfg.Observability.SampleRate
		tracerCfg.Environment = cfg.Environment

		tracerProvider, err := observability.InitTracer(ctx, tracerCfg)
		if err != nil {
			return err
		}
		defer shutdownProvider(tracerProvider.Shutdown)
	} else {
		var err error
		collector, err = observability.NewLocalCollector()
		if err != nil {
			return err
		}
	}

	runtime := guard.NewRuntime(guard.Options{
		PersistDir: cfg.Cache.PersistDir,
		Metrics:    collector,
	})
	defer runtime.Close()

	for endpoint, rules := range cfg.RateLimits {
		configured := make([]ratelimit.Rule, 0, len(rules))
		for _, r := range rules {
			configured = append(configured, ratelimit.Rule{
				MaxRequests: r.MaxRequests,
				Period:      r.Period(),
			})
		}
		runtime.Limiter().Configure(endpoint, configured)
	}

	client := exchange.NewClient(cfg.Exchange)
	proxy := exchange.NewProxy(client, runtime, cfg.Operations)
	log.Info("registered exchange operations", map[string]interface{}{
		"operations": len(proxy.Operations()),
	})

	health := observability.NewHealthRegistry(cfg.Name, 5*time.Second)
	health.Register("exchange", func(ctx context.Context) error {
		_, err := proxy.ServerStatus(ctx)
		return err
	})

	server := admin.NewServer(cfg.Server)
	api := admin.NewAPI(cfg.Name, runtime, health, collector)
	api.RegisterRoutes(server.Engine())

	components := component.NewRegistry()
	if err := components.Register(server); err != nil {
		return err
	}
	if err := components.StartAll(ctx); err != nil {
		return err
	}
	log.Info("admin server listening", map[string]interface{}{
		"addr": server.Addr(),
	})

	<-ctx.Done()
	log.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()
	if err := components.StopAll(stopCtx); err != nil {
		log.Warn("component shutdown reported error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}

	log.Info("marketguard stopped")
	return nil
}

func shutdownProvider(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}
