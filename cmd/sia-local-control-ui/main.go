// Command sia-local-control-ui serves the local dashboard. It follows the
// same tag feed as the control app and refreshes every widget group on each
// tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/sia-local-control/internal/config"
	"github.com/sweeney/sia-local-control/internal/dashboard"
	"github.com/sweeney/sia-local-control/internal/logic"
	"github.com/sweeney/sia-local-control/internal/mqtt"
	"github.com/sweeney/sia-local-control/internal/tags"
	"github.com/sweeney/sia-local-control/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults when empty)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	period := flag.Duration("period", 0, "Dashboard refresh period (overrides config)")
	httpAddr := flag.String("http", "", "Dashboard HTTP address (overrides config)")

	flag.Parse()

	cfg, err := loadConfig(*configPath, *broker, *period, *httpAddr)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(path, broker string, period time.Duration, httpAddr string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	if period != 0 {
		cfg.Dashboard.Period = period
	}
	if httpAddr != "" {
		cfg.Dashboard.Addr = httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app holds everything one refresh needs.
type app struct {
	sources  logic.Sources
	registry logic.TagReader
	sink     dashboard.Sink
}

func run(cfg *config.Config) error {
	registry := tags.NewRegistry()

	client, err := mqtt.NewClient(mqtt.Options{
		Broker:    cfg.MQTT.Broker,
		ClientID:  cfg.MQTT.ClientID,
		App:       "sia-local-control-ui",
		TagPrefix: cfg.MQTT.TagPrefix,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()
	if err := client.SubscribeTags(registry); err != nil {
		log.Printf("tag subscription error: %v", err)
	}

	board := dashboard.NewBoard(nil)
	hub := web.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := web.NewDashboard(cfg.Dashboard.Addr, board, hub)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()
	defer srv.Shutdown(context.Background())
	log.Printf("dashboard started on port %s", cfg.Dashboard.Addr)

	a := &app{
		sources:  cfg.Sources(),
		registry: registry,
		sink:     board,
	}
	log.Printf("started: period=%v broker=%s pumps=%d solar=%d",
		cfg.Dashboard.Period, cfg.MQTT.Broker, a.sources.Pumps.Len(), a.sources.Solar.Len())

	ticker := time.NewTicker(cfg.Dashboard.Period)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(a, ticker.C, sigCh)
}

// runLoop refreshes every widget group on each tick, whether or not any
// value changed, until a signal arrives.
func runLoop(a *app, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			return nil
		case <-tick:
			dashboard.Dispatch(a.sink, logic.Compute(a.registry, a.sources))
		}
	}
}
