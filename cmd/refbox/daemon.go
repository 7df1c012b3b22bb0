package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/refbox/internal/button"
	"github.com/sweeney/refbox/internal/comms"
	"github.com/sweeney/refbox/internal/config"
	"github.com/sweeney/refbox/internal/connectivity"
	"github.com/sweeney/refbox/internal/coordinator"
	"github.com/sweeney/refbox/internal/event"
	"github.com/sweeney/refbox/internal/gpio"
	"github.com/sweeney/refbox/internal/indicator"
	"github.com/sweeney/refbox/internal/mqtt"
	"github.com/sweeney/refbox/internal/protocol"
	"github.com/sweeney/refbox/internal/radio"
	"github.com/sweeney/refbox/internal/restart"
	"github.com/sweeney/refbox/internal/status"
	"github.com/sweeney/refbox/internal/store"
)

// hardware is everything the daemon talks to outside the process.
type hardware struct {
	reader    gpio.Reader
	outputs   gpio.Outputs
	store     store.Store
	radio     radio.Radio
	broker    mqtt.Broker
	restarter restart.Restarter

	// serial carries configuration frames. nil disables the link.
	serial io.ReadWriter
	// watch, if set, delivers radio link changes until ctx is cancelled.
	watch func(ctx context.Context) error
}

// clocks drive the daemon's loops.
type clocks struct {
	poll      <-chan time.Time
	indicator <-chan time.Time
	coord     <-chan time.Time
	status    <-chan time.Time
}

// daemon owns the wired components.
type daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
	hw     hardware

	referee int

	queue       *event.Queue
	debouncer   *button.Debouncer
	poller      *button.Poller
	indicators  *indicator.Manager
	framer      *protocol.Framer
	bridge      *connectivity.Bridge
	comms       *comms.Manager
	coordinator *coordinator.Coordinator
	tracker     *status.Tracker
}

// newDaemon creates the parts that must exist before the hardware is
// opened: raw edges and link callbacks land on them.
func newDaemon(cfg *config.Config, tracker *status.Tracker, now func() time.Time, logger *slog.Logger) *daemon {
	return &daemon{
		cfg:       cfg,
		logger:    logger,
		now:       now,
		tracker:   tracker,
		queue:     event.NewQueue(event.DefaultCapacity, event.DefaultRetries, logger.With("component", "queue")),
		debouncer: button.NewDebouncer(cfg.Timing.Debounce, cfg.Timing.Hold),
	}
}

// onEdge feeds a raw GPIO edge to the debouncer.
func (d *daemon) onEdge(b int, pressed bool) {
	d.debouncer.Edge(button.ID(b), pressed, d.now())
}

// onLink forwards radio link changes to the bridge.
func (d *daemon) onLink(l radio.Link) {
	if d.bridge != nil {
		d.bridge.HandleLink(l)
	}
}

// onBroker forwards broker link changes to the bridge.
func (d *daemon) onBroker(s mqtt.Status, err error) {
	if d.bridge != nil {
		d.bridge.HandleBroker(s, err)
	}
}

// build reads the device identity and wires every component to hw.
func (d *daemon) build(hw hardware) {
	d.hw = hw

	id, err := hw.reader.DeviceID()
	if err != nil {
		d.logger.Warn("device id unreadable, using 0", "error", err)
		id = 0
	}
	d.referee = id
	d.tracker.SetDeviceID(id)
	d.logger.Info("device identity", "referee", id)

	if s, err := hw.reader.Read(); err == nil {
		d.debouncer.Reset(button.Levels{button.User: s.User, button.Red: s.Red, button.Black: s.Black}, d.now())
	} else {
		d.logger.Warn("initial button read failed", "error", err)
	}

	binder := button.NewBinder(d.queue, d.logger.With("component", "buttons"))
	d.poller = button.NewPoller(d.debouncer, button.ReaderSampler{Reader: hw.reader}, binder.Handle, d.logger.With("component", "buttons"))

	d.indicators = indicator.NewManager(hw.outputs, indicator.Timing{
		BlinkPeriod: d.cfg.Timing.BlinkPeriod,
		Buzz:        d.cfg.Timing.Buzz,
		LampTest:    d.cfg.Timing.LampTest,
	}, d.now, d.logger.With("component", "indicator"))

	d.framer = protocol.New(hw.store, d.queue, d.logger.With("component", "protocol"))

	// The bridge reads the session configuration from comms, and comms
	// resets the radio through the bridge.
	d.bridge = connectivity.New(hw.broker, func(ctx context.Context) (mqtt.Config, error) {
		return d.comms.SessionConfig(ctx)
	}, d.queue, d.logger.With("component", "connectivity"))

	d.comms = comms.New(d.bridge.Radio(hw.radio), hw.broker, hw.store, d.framer, d.queue, comms.Options{
		Referee:        id,
		QoS:            byte(d.cfg.MQTT.QoS),
		ConnectTimeout: d.cfg.MQTT.ConnectTimeout,
		PublishTimeout: d.cfg.MQTT.PublishTimeout,
	}, d.logger.With("component", "comms"))

	d.bridge.SetObserver(func(s connectivity.Snapshot) {
		d.tracker.SetLink(status.Link{
			Up:              s.LinkUp,
			Addressed:       s.Addressed,
			BrokerConnected: s.BrokerConnected,
			Sessions:        s.Sessions,
		})
	})

	d.coordinator = coordinator.New(coordinator.Config{
		Source:          d.queue,
		Sink:            d.queue,
		Indicators:      d.indicators,
		Comms:           d.comms,
		Restarter:       hw.restarter,
		Logger:          d.logger.With("component", "coordinator"),
		DecisionTimeout: d.cfg.Timing.DecisionTimeout,
		Observer: func(from, to coordinator.State, ev event.Event) {
			d.tracker.SetState(to.String())
		},
	})
	d.tracker.SetState(d.coordinator.State().String())
}

// run starts every loop and blocks until a signal arrives or ctx ends.
func (d *daemon) run(ctx context.Context, c clocks, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	spawn := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("loop stopped", "loop", name, "error", err)
			}
		}()
	}

	spawn("buttons", func(ctx context.Context) error { return d.poller.Run(ctx, c.poll, d.now) })
	spawn("indicator", func(ctx context.Context) error { d.indicators.Run(ctx, c.indicator); return nil })
	spawn("comms", func(ctx context.Context) error { d.comms.Run(ctx); return nil })
	spawn("coordinator", func(ctx context.Context) error { d.coordinator.Run(ctx, c.coord); return nil })
	if d.hw.serial != nil {
		spawn("serial", func(ctx context.Context) error { return d.framer.Serve(ctx, d.hw.serial) })
	}
	if d.hw.watch != nil {
		spawn("radio", d.hw.watch)
	}

	defer func() {
		cancel()
		// Unblock a pending serial read.
		if c, ok := d.hw.serial.(io.Closer); ok {
			c.Close()
		}
		wg.Wait()
		if err := d.hw.broker.Teardown(); err != nil {
			d.logger.Warn("broker teardown failed", "error", err)
		}
	}()

	for {
		select {
		case s := <-sig:
			d.logger.Info("shutting down", "signal", s.String())
			d.publishShutdown(signalName(s))
			return nil

		case <-ctx.Done():
			return ctx.Err()

		case <-c.status:
			d.refreshStatus()
		}
	}
}

// publishShutdown tells the broker this unit is going away on purpose.
func (d *daemon) publishShutdown(reason string) {
	if !d.hw.broker.IsConnected() {
		return
	}
	payload, err := mqtt.FormatSystemPayload(mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     mqtt.EventShutdown,
		Reason:    reason,
	})
	if err != nil {
		d.logger.Warn("format shutdown event", "error", err)
		return
	}
	topic := mqtt.StatusTopic(d.comms.Platform(), d.referee)
	if err := d.hw.broker.Publish(topic, payload); err != nil {
		d.logger.Warn("failed to publish shutdown event", "error", err)
		return
	}
	d.logger.Info("published shutdown event", "topic", topic)
}

// refreshStatus copies counters into the tracker.
func (d *daemon) refreshStatus() {
	bc := d.debouncer.CountsSnapshot()
	cs := d.comms.Stats()
	fs := d.framer.Stats()

	var counts status.Counts
	for i := 0; i < button.NumButtons; i++ {
		counts.Pressed[i] = bc.Pressed[i]
		counts.Held[i] = bc.Held[i]
	}
	counts.DecisionsSent = cs.DecisionsSent
	counts.DecisionsFailed = cs.DecisionsFailed
	counts.DecisionRequests = cs.Requests
	counts.DroppedCommands = cs.DroppedCommands
	counts.DroppedEvents = d.queue.Dropped()
	counts.Frames = fs.Frames
	counts.FrameErrors = fs.Errors

	d.tracker.UpdateCounts(counts)
	d.tracker.SetConfigMode(d.framer.Running())
	d.tracker.SetPlatform(d.comms.Platform())
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
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
