package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snapscan/internal"
	"snapscan/internal/app"
	"snapscan/internal/config"
	"snapscan/internal/logging"
	"snapscan/internal/metrics"
	"snapscan/internal/scan"
	"snapscan/internal/station"
)

func main() {
	cfg, err := config.Load()
	must(err)

	listCtx, err := internal.ParseContext(cfg.StationContext)
	must(err)

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "scan-station"})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg, log)
	must(err)
	defer a.Close()

	var hub *station.Hub
	m := metrics.New(metrics.DefaultConfig())
	notifiers := scan.Notifiers{station.NewTerminal(os.Stdout), m}
	notifiers = append(notifiers, scan.NotifierFunc(func(ev internal.ScanEvent) {
		if hub != nil {
			hub.Notify(ev)
		}
	}))
	engine := a.Engine(nil, notifiers)

	st := station.New(engine, listCtx, time.Duration(cfg.StationDedupeMs)*time.Millisecond, log)
	hub = station.NewHub(st, log)

	if cfg.StationListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.StationListenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Info("listening", "addr", cfg.StationListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server stopped", "error", err)
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	go func() {
		if err := st.ReadLines(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("stdin closed", "error", err)
		}
	}()

	summary, err := engine.Summary(listCtx)
	must(err)
	fmt.Printf("%s: %d/%d varer. Skann strekkoder, Ctrl+C avslutter.\n", listCtx.Title(), summary.ProcessedItems, summary.TotalItems)

	if err := st.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		must(err)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
