package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mqproxy/internal/config"
	"mqproxy/internal/criteria"
	"mqproxy/internal/logger"
	"mqproxy/internal/producer"
	"mqproxy/pkg/bootstrap"
	"mqproxy/pkg/circuitbreaker"
	"mqproxy/pkg/health"
	"mqproxy/pkg/metrics"
	"mqproxy/pkg/models"
)

type App struct {
	*bootstrap.Base
	proxy  *producer.Proxy
	server *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("producer-proxy")
	}
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitProducer(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if a.Config.Proxy.EnableMetrics {
		metrics.RegisterProducerMetrics()
		metrics.RegisterBrokerMetrics()
		if a.Config.CircuitBreaker.Enabled {
			metrics.RegisterCircuitBreakerMetrics()
		}
	}

	a.proxy = producer.New(a.Producer, models.NewFactory(), a.Config.Proxy, a.Logger)
	a.proxy.AddCriteria(criteria.ContentMinLength(2))

	if a.Config.CircuitBreaker.Enabled {
		a.proxy.SetBreaker(circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("direct-send")))
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initHTTPServer() error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return a.publishSampleTraffic(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// publishSampleTraffic sends a steady stream of near-identical readings so
// the condensation is observable end to end.
func (a *App) publishSampleTraffic(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		body := fmt.Sprintf(`{"sensor":"temp-%d","value":%d,"timestamp":%d}`,
			seq%4, 20+seq%3, time.Now().UnixMilli())
		msg := models.NewMessageBuilder().
			WithType("reading").
			WithBody(body).
			Build()

		if err := a.proxy.Send(ctx, msg); err != nil {
			a.Logger.ErrorwCtx(ctx, "Failed to send sample message", "error", err)
		}

		if seq%100 == 0 {
			stats := a.proxy.Stats()
			a.Logger.InfowCtx(ctx, "Condenser stats",
				"input_messages", stats.InputMessages,
				"output_batches", stats.OutputBatches,
				"buffered", a.proxy.BufferedCount(),
			)
		}
	}
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return a.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}
		if a.proxy != nil {
			// The proxy owns the delegate producer and closes it.
			if err := a.proxy.Close(); err != nil {
				errs = append(errs, fmt.Errorf("proxy close error: %w", err))
			}
			a.Producer = nil
		}
		return errs
	})
}
