package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mqproxy/internal/config"
	"mqproxy/internal/consumer"
	"mqproxy/internal/expander"
	"mqproxy/internal/logger"
	"mqproxy/pkg/bootstrap"
	"mqproxy/pkg/health"
	"mqproxy/pkg/logging"
	"mqproxy/pkg/metrics"
	"mqproxy/pkg/models"
)

type App struct {
	*bootstrap.Base
	buffered *consumer.Buffered
	server   *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("consumer-proxy")
	}
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitConsumer(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if a.Config.Proxy.EnableMetrics {
		metrics.RegisterConsumerMetrics()
	}

	exp := expander.NewWithField(models.NewFactory(), a.Config.Proxy.TimestampRestoreField, a.Logger)
	a.buffered = consumer.New(a.Consumer, exp, a.Config.Proxy.ConsumerBufferSize, a.Logger)

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
		err := a.buffered.SetListener(gCtx, func(msg *models.Message) {
			msgCtx := logging.WithMessageID(gCtx, msg.ID)
			a.Logger.InfowCtx(msgCtx, "Received message",
				"type", msg.Type,
				"body", msg.Body,
			)
		})
		if err != nil {
			return fmt.Errorf("failed to register listener: %w", err)
		}
		<-gCtx.Done()
		return gCtx.Err()
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.shutdown()
	})

	return g.Wait()
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
		if a.buffered != nil {
			// The buffered consumer owns the delegate consumer and closes it.
			if err := a.buffered.Close(); err != nil {
				errs = append(errs, fmt.Errorf("consumer close error: %w", err))
			}
			a.Consumer = nil
		}
		return errs
	})
}
