// Command refbox runs the referee box: buttons and indicators on GPIO, a
// serial configuration link, and decision publishing over Wi-Fi and MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/refbox/internal/config"
	"github.com/sweeney/refbox/internal/gpio"
	"github.com/sweeney/refbox/internal/indicator"
	"github.com/sweeney/refbox/internal/logging"
	"github.com/sweeney/refbox/internal/mqtt"
	"github.com/sweeney/refbox/internal/radio"
	"github.com/sweeney/refbox/internal/restart"
	"github.com/sweeney/refbox/internal/serial"
	"github.com/sweeney/refbox/internal/status"
	"github.com/sweeney/refbox/internal/store"
	"github.com/sweeney/refbox/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file (defaults only when empty)")
	printState := flag.Bool("print-state", false, "Print button levels and device ID and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if *printState {
		if err := printStateAndExit(cfg); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	logger := logging.New(cfg.Logging, version)
	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printStateAndExit(cfg *config.Config) error {
	reader, err := gpio.NewRealReader(cfg.Pins(), nil)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	s, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	id, err := reader.DeviceID()
	if err != nil {
		return fmt.Errorf("read device id: %w", err)
	}
	fmt.Println(formatState(s, id))
	return nil
}

func formatState(s gpio.Sample, id int) string {
	return fmt.Sprintf("USER: %s, RED: %s, BLACK: %s, ID: %d", levelString(s.User), levelString(s.Red), levelString(s.Black), id)
}

func levelString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

func run(cfg *config.Config, logger *slog.Logger) error {
	tracker := status.NewTracker(time.Now(), status.Config{
		SerialDevice:      cfg.Serial.Device,
		RadioInterface:    cfg.Radio.Interface,
		StorePath:         cfg.Store.Path,
		HTTPAddr:          cfg.HTTP.Addr,
		PollMs:            cfg.Timing.Poll.Milliseconds(),
		DebounceMs:        cfg.Timing.Debounce.Milliseconds(),
		HoldMs:            cfg.Timing.Hold.Milliseconds(),
		DecisionTimeoutMs: cfg.Timing.DecisionTimeout.Milliseconds(),
	})
	d := newDaemon(cfg, tracker, time.Now, logger)

	st, err := store.OpenSQLite(cfg.Store.Path, cfg.Store.BusyTimeout)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reader, err := gpio.NewRealReader(cfg.Pins(), d.onEdge)
	if err != nil {
		return fmt.Errorf("init gpio inputs: %w", err)
	}
	defer reader.Close()

	outputs, err := gpio.NewRealOutputs(cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio outputs: %w", err)
	}
	defer outputs.Close()

	nm, err := radio.NewNetworkManager(cfg.Radio.Interface, d.onLink, logger.With("component", "radio"))
	if err != nil {
		return fmt.Errorf("init radio: %w", err)
	}
	defer nm.Close()

	port, err := serial.Open(serial.Config{Device: cfg.Serial.Device, Baud: cfg.Serial.Baud})
	if err != nil {
		return fmt.Errorf("open serial: %w", err)
	}

	d.build(hardware{
		reader:    reader,
		outputs:   outputs,
		store:     st,
		radio:     nm,
		broker:    mqtt.NewRealBroker(d.onBroker, logger.With("component", "mqtt")),
		restarter: restart.Logind{},
		serial:    port,
		watch:     nm.Watch,
	})

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logger.With("component", "web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	logger.Info("started",
		"referee", d.referee,
		"serial", cfg.Serial.Device,
		"radio", cfg.Radio.Interface,
		"store", st.Path(),
		"poll", cfg.Timing.Poll,
		"debounce", cfg.Timing.Debounce,
	)

	pollTicker := time.NewTicker(cfg.Timing.Poll)
	defer pollTicker.Stop()
	indicatorTicker := time.NewTicker(indicatorResolution(cfg.Timing.BlinkPeriod))
	defer indicatorTicker.Stop()
	coordTicker := time.NewTicker(cfg.Timing.Tick)
	defer coordTicker.Stop()
	statusTicker := time.NewTicker(time.Second)
	defer statusTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.run(context.Background(), clocks{
		poll:      pollTicker.C,
		indicator: indicatorTicker.C,
		coord:     coordTicker.C,
		status:    statusTicker.C,
	}, sigCh)
}

// indicatorResolution is how often the indicator loop wakes: often enough
// for the buzzer deadline, never slower than the blink period.
func indicatorResolution(blink time.Duration) time.Duration {
	if blink < indicator.DefaultResolution {
		return blink
	}
	return indicator.DefaultResolution
}
