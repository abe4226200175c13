// Command server wires the Order Manager, Execution Engine, Settlement
// Engine, and Analytics Engine into one running process: it loads
// configuration, starts each component's background loop, and exposes
// health, metrics, and the event feed over HTTP — the same shape as the
// teacher's own cmd/server/main.go bootstrap, pared down to this core's
// own components.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/epic1st/fxcore/analytics"
	"github.com/epic1st/fxcore/archive"
	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/events"
	"github.com/epic1st/fxcore/execution"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/feed"
	"github.com/epic1st/fxcore/logging"
	"github.com/epic1st/fxcore/metrics"
	"github.com/epic1st/fxcore/oms"
	"github.com/epic1st/fxcore/ratecache"
	"github.com/epic1st/fxcore/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logging.Info("starting fxcore", logging.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	rates := ratecache.New(cfg.Redis, cfg.Analytics.RateValidityPeriod, localRates{})
	defer rates.Close()

	var compliance externals.ComplianceChecker // nil: every order/settlement is auto-approved

	orders := oms.NewService(cfg.OrderManager, localAccounts{}, rates, compliance, bus)
	providers := []externals.LiquidityProvider{newLocalProvider("LP-LOCAL")}
	engine := execution.NewEngine(cfg.Execution, orders, providers, rates, bus)
	settle := settlement.NewService(cfg.Settlement, orders, localPayments{}, localNostro{}, compliance, bus)
	analyticsSvc := analytics.NewService(cfg.Analytics, orders, rates, bus)

	feedHub := feed.NewHub(bus)

	var archiveStore *archive.Store
	if store, err := archive.Connect(ctx, cfg.Postgres); err != nil {
		logging.Error("archive store unavailable, continuing without archival", err)
	} else {
		archiveStore = store
		defer archiveStore.Close()
	}
	wireArchival(bus, orders, settle, archiveStore)

	go runLoop(ctx, "order expiry sweep", func(ctx context.Context) error {
		orders.RunExpirySweep(ctx)
		return ctx.Err()
	})
	go runLoop(ctx, "execution dispatcher", engine.RunDispatcher)
	go runLoop(ctx, "settlement processor", settle.RunProcessor)
	go runLoop(ctx, "analytics P&L loop", analyticsSvc.RunPnLLoop)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/feed", feedHub.ServeWs)

	server := &http.Server{Addr: cfg.ServerAddr, Handler: mux}
	go func() {
		logging.Info("http server listening", logging.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	waitForShutdown()
	logging.Info("shutting down", logging.String("environment", cfg.Environment))
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}

// runLoop logs a background loop's top-level error (other than context
// cancellation) rather than crashing the whole process — one component's
// failure should not take the others down with it.
func runLoop(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		logging.Error(name+" exited unexpectedly", err, logging.Component(name))
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
