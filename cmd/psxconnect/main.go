// Command psxconnect runs a single PSX profile FIX/FIXT market-data
// session: it loads configuration from the environment, wires up the
// connector's FIX engine, and serves an internal ops HTTP surface
// (/healthz, /metrics) on loopback.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psx-connect/connector/internal/fix/dispatcher"
	"github.com/psx-connect/connector/internal/fix/event"
	"github.com/psx-connect/connector/internal/fix/sequence"
	"github.com/psx-connect/connector/internal/logger"
	"github.com/psx-connect/connector/internal/telemetry"
	"github.com/psx-connect/connector/pkg/config"
	"github.com/psx-connect/connector/pkg/metrics"
	promsession "github.com/psx-connect/connector/pkg/metrics/prometheus"
)

func main() {
	dumpConfig := flag.Bool("dump-config", false, "print the fully resolved configuration (secrets redacted) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "psxconnect: config error:", err)
		os.Exit(1)
	}

	if *dumpConfig {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(cfg.Redacted())
		return
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "psxconnect: logger init error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "psxconnect",
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Error("telemetry init failed, continuing without tracing", logger.Err(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryShutdown(shutdownCtx)
	}()

	if cfg.Telemetry.Profiling.Enabled {
		stopProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
			Enabled:        true,
			ServiceName:    "psxconnect",
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Endpoint:       cfg.Telemetry.Profiling.Endpoint,
			ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
		})
		if err != nil {
			logger.Error("profiling init failed, continuing without it", logger.Err(err))
		} else {
			defer stopProfiling()
		}
	}

	var sessionMetrics metrics.SessionMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		sessionMetrics = promsession.NewSessionMetrics()
	} else {
		metrics.Disable()
	}

	seq := sequence.New(sessionMetrics)
	bus := event.New(64)

	d := dispatcher.New(dispatcher.Config{
		Host:                 cfg.Connection.Host,
		Port:                 cfg.Connection.Port,
		BeginString:          "FIXT.1.1",
		SenderCompID:         cfg.Connection.SenderCompID,
		TargetCompID:         cfg.Connection.TargetCompID,
		Username:             cfg.Connection.Username,
		Password:             cfg.Connection.Password,
		HeartBtIntSecs:       cfg.Connection.HeartbeatIntervalSecs,
		ConnectTimeout:       cfg.Connection.ConnectTimeout(),
		ReconnectInterval:    5 * time.Second,
		ResetOnLogon:         cfg.Connection.ResetOnLogon,
		OnBehalfOfCompID:     cfg.Connection.OnBehalfOfCompID,
		RawData:              cfg.Connection.RawData,
		RawDataLength:        cfg.Connection.RawDataLength,
		DefaultApplVerID:     cfg.Connection.DefaultApplVerID,
		DefaultCstmApplVerID: cfg.Connection.DefaultCstmApplVerID,
		SequenceStorePath:    cfg.SequenceStorePath,
	}, seq, bus, sessionMetrics)

	logEvents(ctx, bus)

	if cfg.Metrics.Enabled {
		go serveOps(cfg.Metrics.Port)
	}

	logger.Info("psxconnect starting", logger.SenderCompID(cfg.Connection.SenderCompID), logger.TargetCompID(cfg.Connection.TargetCompID), logger.RemoteAddr(fmt.Sprintf("%s:%d", cfg.Connection.Host, cfg.Connection.Port)))

	runErr := d.Run(ctx)

	if err := d.Shutdown(); err != nil {
		logger.Warn("graceful shutdown encountered an error", logger.Err(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("session terminated", logger.Err(runErr))
		os.Exit(1)
	}
	logger.Info("psxconnect shut down cleanly")
}

// logEvents is a minimal built-in consumer: it logs every published event
// at info level so the connector has observable output even before any
// downstream subscriber is wired up.
func logEvents(ctx context.Context, bus *event.Bus) {
	kinds := []event.Kind{
		event.KindConnected, event.KindDisconnected, event.KindLogon, event.KindLogout,
		event.KindMarketData, event.KindSecurityList, event.KindTradingSessionStat,
		event.KindTradingStatus, event.KindReject, event.KindMarketDataReject,
		event.KindCategorizedData,
	}
	for _, kind := range kinds {
		ch := bus.Subscribe(kind)
		go func(k event.Kind, c <-chan event.Event) {
			for {
				select {
				case <-ctx.Done():
					return
				case evt, ok := <-c:
					if !ok {
						return
					}
					logger.Info("event", "kind", string(k), "payload", evt.Payload)
				}
			}
		}(kind, ch)
	}
}

// serveOps runs the internal ops HTTP server (health and Prometheus
// metrics), bound to loopback only.
func serveOps(port int) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics.IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	logger.Info("ops server listening", logger.RemoteAddr(addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("ops server stopped", logger.Err(err))
	}
}
