package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/efreitasn/lobsim/internal/config"
	"github.com/efreitasn/lobsim/internal/domain"
	"github.com/efreitasn/lobsim/internal/engine"
	"github.com/efreitasn/lobsim/internal/events"
	"github.com/efreitasn/lobsim/internal/generator"
	"github.com/efreitasn/lobsim/internal/handler"
	"github.com/efreitasn/lobsim/internal/metrics"
	"github.com/efreitasn/lobsim/internal/report"
	"github.com/efreitasn/lobsim/internal/service"
	"github.com/efreitasn/lobsim/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to HTTP_ADDR/healthz, exit 0/1.
	if *healthcheck {
		addr := os.Getenv("HTTP_ADDR")
		if addr == "" {
			os.Exit(1)
		}
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("simulation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Engine and dispatcher are referenced lazily by the scrape-time sources.
	var (
		eng  *engine.Engine
		disp *events.Dispatcher
	)
	collector := metrics.New(reg, cfg.Instrument, cfg.TickSize, metrics.Sources{
		QueueDepth:    func() int { return eng.QueueDepth() },
		Processed:     func() uint64 { return eng.Processed() },
		DroppedEvents: func() uint64 { return disp.Dropped() },
		PendingEvents: func() int { return disp.Pending() },
	})

	trades := store.NewTradeStore()
	handlers := []events.Handler{
		trades,
		collector,
		events.NewLogHandler(logger, cfg.TickSize),
	}

	var kafka *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.TickSize)
		// book_update events stay off the topic.
		handlers = append(handlers, events.Filter(kafka,
			domain.EventTrade,
			domain.EventPartialFill,
			domain.EventOrderFilled,
			domain.EventOrderRested,
			domain.EventOrderRejected,
			domain.EventOrderCancelled,
			domain.EventStopPending,
			domain.EventStopTriggered,
		))
		logger.Info("publishing events to kafka",
			slog.String("brokers", strings.Join(cfg.KafkaBrokers, ",")),
			slog.String("topic", cfg.KafkaTopic),
		)
	}

	disp = events.NewDispatcher(cfg.Dispatcher(), logger, handlers...)
	eng = engine.NewEngine(cfg.Engine(), disp, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Handlers keep running through shutdown so buffered events still reach
	// Kafka after a signal.
	disp.Start(context.Background())
	eng.Start(ctx)

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		marketSvc := service.NewMarketService(trades, cfg.VWAPWindow, eng)
		srv = &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      handler.NewRouter(marketSvc, cfg.TickSize, collector, reg, logger),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		}

		go func() {
			logger.Info("server starting", slog.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}()
	}

	start := time.Now()
	stats, runErr := produce(ctx, cfg, eng)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, domain.ErrEngineClosed) {
		runErr = nil
	}

	// ctx may already be cancelled by a signal; the final book is read
	// under its own deadline.
	snap, ok, err := inspect(eng, cfg.BookDepth, cfg.ShutdownTimeout)
	if err != nil && runErr == nil {
		runErr = err
	}
	elapsed := time.Since(start)

	logger.Info("simulation finished",
		slog.Int("generated", stats.Generated),
		slog.Int("enqueued", stats.Enqueued),
		slog.Int("queue_full", stats.QueueFull),
		slog.Uint64("processed", eng.Processed()),
		slog.Int("trades", trades.Count(cfg.Instrument)),
		slog.Duration("elapsed", elapsed),
	)

	if ok && runErr == nil {
		if err := report.WriteBook(os.Stdout, cfg.Instrument, snap, cfg.TickSize); err != nil {
			runErr = fmt.Errorf("write book: %w", err)
		} else {
			fmt.Fprintf(os.Stdout, "spread %s  elapsed %s\n", report.Spread(snap, cfg.TickSize), elapsed.Round(time.Microsecond))
		}
	}

	// Keep the inspection surface up until a signal arrives.
	if srv != nil && runErr == nil {
		<-ctx.Done()
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Error("engine shutdown error", slog.String("error", err.Error()))
	}
	if err := disp.Shutdown(shutdownCtx); err != nil {
		logger.Error("event dispatcher shutdown error", slog.String("error", err.Error()))
	}
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			logger.Error("kafka writer close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("simulator stopped",
		slog.Uint64("events_delivered", disp.Delivered()),
		slog.Uint64("events_dropped", disp.Dropped()),
		slog.Uint64("handler_failures", disp.Failures()),
	)
	return runErr
}

// inspect checks the book invariants and takes the final snapshot with a
// fresh deadline. ok is false when the engine already stopped accepting
// requests, which is not an error.
func inspect(eng *engine.Engine, depth int, timeout time.Duration) (engine.Snapshot, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := eng.CheckInvariants(ctx); err != nil {
		if errors.Is(err, domain.ErrEngineClosed) {
			return engine.Snapshot{}, false, nil
		}
		return engine.Snapshot{}, false, fmt.Errorf("book invariants: %w", err)
	}
	snap, err := eng.Snapshot(ctx, depth)
	if err != nil {
		if errors.Is(err, domain.ErrEngineClosed) {
			return engine.Snapshot{}, false, nil
		}
		return engine.Snapshot{}, false, fmt.Errorf("book snapshot: %w", err)
	}
	return snap, true, nil
}

// produce splits cfg.SimOrders across cfg.SimProducers generators, each
// seeded from cfg.SimSeed plus its index, and waits for all of them.
func produce(ctx context.Context, cfg *config.Config, eng *engine.Engine) (generator.Stats, error) {
	var generated, enqueued, queueFull atomic.Int64
	enqueue := func(ctx context.Context, o domain.Order) error {
		_, err := eng.Enqueue(ctx, o)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	per, extra := cfg.SimOrders/cfg.SimProducers, cfg.SimOrders%cfg.SimProducers
	for i := 0; i < cfg.SimProducers; i++ {
		n := per
		if i < extra {
			n++
		}
		gen, err := generator.New(cfg.Generator(), cfg.SimSeed+int64(i))
		if err != nil {
			return generator.Stats{}, err
		}
		g.Go(func() error {
			st, err := gen.Run(gctx, n, enqueue)
			generated.Add(int64(st.Generated))
			enqueued.Add(int64(st.Enqueued))
			queueFull.Add(int64(st.QueueFull))
			return err
		})
	}

	err := g.Wait()
	return generator.Stats{
		Generated: int(generated.Load()),
		Enqueued:  int(enqueued.Load()),
		QueueFull: int(queueFull.Load()),
	}, err
}
