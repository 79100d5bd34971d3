// Command sia-local-control aggregates the tags published by the site's
// pump, solar, tank and skid controllers and republishes one flat metric set
// to MQTT once per period.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/sweeney/sia-local-control/internal/config"
	"github.com/sweeney/sia-local-control/internal/gpio"
	"github.com/sweeney/sia-local-control/internal/logic"
	"github.com/sweeney/sia-local-control/internal/metrics"
	"github.com/sweeney/sia-local-control/internal/mqtt"
	"github.com/sweeney/sia-local-control/internal/status"
	"github.com/sweeney/sia-local-control/internal/tags"
	"github.com/sweeney/sia-local-control/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults when empty)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	period := flag.Duration("period", 0, "Aggregation period (overrides config)")
	metricsAddr := flag.String("metrics", "", `Status and metrics HTTP address (overrides config, "off" disables)`)
	printInputs := flag.Bool("print-inputs", false, "Print current digital input states and exit")

	flag.Parse()

	cfg, err := loadConfig(*configPath, *broker, *period, *metricsAddr)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, *printInputs); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(path, broker string, period time.Duration, metricsAddr string) (*config.Config, error) {
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
		cfg.Control.Period = period
	}
	switch metricsAddr {
	case "":
	case "off":
		cfg.Control.MetricsAddr = ""
	default:
		cfg.Control.MetricsAddr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app holds everything one tick needs.
type app struct {
	sources    logic.Sources
	registry   *tags.Registry
	inputs     gpio.Reader // nil when no inputs are configured
	inputSrc   logic.SourceRef
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	heartbeat  time.Duration
	now        func() time.Time
}

func run(cfg *config.Config, printInputs bool) error {
	a := &app{
		sources:   cfg.Sources(),
		registry:  tags.NewRegistry(),
		inputSrc:  logic.SourceRef(cfg.GPIO.Source),
		heartbeat: cfg.Control.Heartbeat,
		now:       time.Now,
	}

	// Initialize GPIO
	if len(cfg.GPIO.Inputs) > 0 {
		reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Lines())
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer reader.Close()
		a.inputs = reader
	}

	if printInputs {
		if a.inputs == nil {
			return fmt.Errorf("no gpio inputs configured")
		}
		states, err := a.inputs.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		names := make([]string, 0, len(states))
		for name := range states {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s: %s\n", name, stateString(states[name]))
		}
		return nil
	}

	// Initialize MQTT
	client, err := mqtt.NewClient(mqtt.Options{
		Broker:    cfg.MQTT.Broker,
		ClientID:  cfg.MQTT.ClientID,
		App:       "sia-local-control",
		TagPrefix: cfg.MQTT.TagPrefix,
		Source:    logic.SourceRef(cfg.Control.Source),
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()
	if err := client.SubscribeTags(a.registry); err != nil {
		log.Printf("tag subscription error: %v", err)
	}
	a.publisher = client
	a.mqttStatus = client

	// Initialize status tracker (before STARTUP so snapshot is available)
	a.tracker = status.NewTracker(time.Now(), status.Config{
		PeriodMs:    cfg.Control.Period.Milliseconds(),
		HeartbeatMs: cfg.Control.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		TagPrefix:   cfg.MQTT.TagPrefix,
		Source:      cfg.Control.Source,
		MetricsAddr: cfg.Control.MetricsAddr,
	})
	if net := readNetworkInfo(); net != nil {
		a.tracker.SetNetwork(net)
	}
	a.metrics = metrics.New(nil)

	// Publish startup event with full status snapshot
	snap := a.tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status and metrics server
	if addr := cfg.Control.MetricsAddr; addr != "" {
		srv := web.NewStatus(addr, a.tracker, a.metrics.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", addr)
	}

	log.Printf("started: period=%v broker=%s publish=%s heartbeat=%v pumps=%d solar=%d inputs=%d",
		cfg.Control.Period, cfg.MQTT.Broker, mqtt.TagTopic(cfg.MQTT.TagPrefix, logic.SourceRef(cfg.Control.Source)),
		cfg.Control.Heartbeat, a.sources.Pumps.Len(), a.sources.Solar.Len(), len(cfg.GPIO.Inputs))

	ticker := time.NewTicker(cfg.Control.Period)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(a, ticker.C, sigCh)
}

func runLoop(a *app, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := a.now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := signalString(s)
			event := mqtt.SystemEvent{
				Timestamp: a.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if a.tracker != nil {
				a.refreshConnection()
				event.RawPayload = status.FormatStatusEvent(a.tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := a.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := a.now()
			states := a.readInputs()

			m := logic.Compute(a.registry, a.sources)
			if err := a.publisher.PublishMetrics(mqtt.MetricsMessage{Timestamp: t, Metrics: m, Inputs: states}); err != nil {
				log.Printf("publish error: %v", err)
				// Don't crash on publish failure
				if a.metrics != nil {
					a.metrics.Error("publish")
				}
			}

			sources := len(a.registry.Sources())
			if a.tracker != nil {
				a.tracker.RecordTick(t, m, states, sources)
				a.refreshConnection()
			}
			if a.metrics != nil {
				a.metrics.Observe(m, states, sources, a.now().Sub(t))
			}

			// Check for heartbeat
			if a.heartbeat > 0 && t.Sub(lastHeartbeat) >= a.heartbeat {
				lastHeartbeat = t
				a.publishHeartbeat(t)
			}
		}
	}
}

// readInputs samples the digital inputs and mirrors them into the registry
// as 1/0 tags so they read like any other source.
func (a *app) readInputs() map[string]bool {
	if a.inputs == nil {
		return nil
	}
	states, err := a.inputs.Read()
	if err != nil {
		log.Printf("gpio read error: %v", err)
		if a.metrics != nil {
			a.metrics.Error("gpio")
		}
		return nil
	}
	for name, v := range gpio.ToReadings(states) {
		a.registry.Set(a.inputSrc, name, logic.Number(v))
	}
	return states
}

func (a *app) publishHeartbeat(t time.Time) {
	hbEvent := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "HEARTBEAT",
	}
	if a.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			a.tracker.SetNetwork(net)
		}
		snap := a.tracker.Snapshot()
		log.Printf("heartbeat: uptime=%v ticks=%d sources=%d", snap.Uptime().Truncate(time.Second), snap.Ticks, snap.Sources)
		hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
	}
	if err := a.publisher.PublishSystem(hbEvent); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (a *app) refreshConnection() {
	if a.mqttStatus != nil {
		a.tracker.SetMQTTConnected(a.mqttStatus.IsConnected())
	}
}

func signalString(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
