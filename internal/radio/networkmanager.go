package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	nmBus         = "org.freedesktop.NetworkManager"
	nmPath        = "/org/freedesktop/NetworkManager"
	nmIface       = "org.freedesktop.NetworkManager"
	nmDeviceIface = "org.freedesktop.NetworkManager.Device"
	nmStateSignal = nmDeviceIface + ".StateChanged"
	nmNotActive   = "org.freedesktop.NetworkManager.Device.NotActive"
)

// NetworkManager device states used for link reporting.
const (
	deviceUnavailable  uint32 = 20
	deviceDisconnected uint32 = 30
	deviceIPConfig     uint32 = 70
	deviceActivated    uint32 = 100
	deviceDeactivating uint32 = 110
	deviceFailed       uint32 = 120
)

// LinkFromDeviceState maps a NetworkManager device state to a link status.
// States in between (preparing, authenticating...) report nothing.
func LinkFromDeviceState(state uint32) (Link, bool) {
	switch state {
	case deviceIPConfig:
		return LinkUp, true
	case deviceActivated:
		return AddressAcquired, true
	case deviceUnavailable, deviceDisconnected, deviceDeactivating, deviceFailed:
		return LinkDown, true
	default:
		return 0, false
	}
}

// NetworkManager drives one wireless interface through NetworkManager on
// the system bus.
type NetworkManager struct {
	conn     *dbus.Conn
	iface    string
	device   dbus.ObjectPath
	onStatus StatusFunc
	logger   *slog.Logger
}

// NewNetworkManager connects to the system bus and resolves iface.
func NewNetworkManager(iface string, onStatus StatusFunc, logger *slog.Logger) (*NetworkManager, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	var device dbus.ObjectPath
	err = conn.Object(nmBus, nmPath).Call(nmIface+".GetDeviceByIpIface", 0, iface).Store(&device)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNoDevice, iface, err)
	}

	return &NetworkManager{
		conn:     conn,
		iface:    iface,
		device:   device,
		onStatus: onStatus,
		logger:   logger,
	}, nil
}

// Connect activates a volatile connection for creds on the interface.
func (n *NetworkManager) Connect(ctx context.Context, creds Credentials) error {
	if creds.SSID == "" {
		return ErrNoSSID
	}

	settings := map[string]map[string]dbus.Variant{
		"connection": {
			"id":          dbus.MakeVariant("refbox-" + creds.SSID),
			"type":        dbus.MakeVariant("802-11-wireless"),
			// NetworkManager owns retries after a failed attempt.
			"autoconnect":         dbus.MakeVariant(true),
			"autoconnect-retries": dbus.MakeVariant(int32(0)),
		},
		"802-11-wireless": {
			"ssid": dbus.MakeVariant([]byte(creds.SSID)),
			"mode": dbus.MakeVariant("infrastructure"),
		},
		"ipv4": {"method": dbus.MakeVariant("auto")},
		"ipv6": {"method": dbus.MakeVariant("auto")},
	}
	if creds.PSK != "" {
		settings["802-11-wireless-security"] = map[string]dbus.Variant{
			"key-mgmt": dbus.MakeVariant("wpa-psk"),
			"psk":      dbus.MakeVariant(creds.PSK),
		}
	}
	options := map[string]dbus.Variant{
		"persist": dbus.MakeVariant("volatile"),
	}

	call := n.conn.Object(nmBus, nmPath).CallWithContext(ctx,
		nmIface+".AddAndActivateConnection2", 0,
		settings, n.device, dbus.ObjectPath("/"), options)
	if call.Err != nil {
		return fmt.Errorf("activate %s on %s: %w", creds.SSID, n.iface, call.Err)
	}

	n.logger.Info("wifi connection requested", "ssid", creds.SSID, "iface", n.iface)
	return nil
}

// Disconnect deactivates the interface. An already inactive device is not
// an error.
func (n *NetworkManager) Disconnect(ctx context.Context) error {
	call := n.conn.Object(nmBus, n.device).CallWithContext(ctx, nmDeviceIface+".Disconnect", 0)
	if call.Err != nil && !isNotActive(call.Err) {
		return fmt.Errorf("disconnect %s: %w", n.iface, call.Err)
	}
	return nil
}

// Reset returns the interface to a disconnected state. Volatile connections
// are deleted by NetworkManager on deactivation.
func (n *NetworkManager) Reset(ctx context.Context) error {
	return n.Disconnect(ctx)
}

func isNotActive(err error) bool {
	var e dbus.Error
	if errors.As(err, &e) {
		return e.Name == nmNotActive
	}
	var pe *dbus.Error
	if errors.As(err, &pe) {
		return pe.Name == nmNotActive
	}
	return false
}

// Watch reports device state changes to the status callback until ctx is
// cancelled.
func (n *NetworkManager) Watch(ctx context.Context) error {
	rule := fmt.Sprintf("type='signal',interface='%s',member='StateChanged',path='%s'", nmDeviceIface, n.device)
	if call := n.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule); call.Err != nil {
		return fmt.Errorf("add match: %w", call.Err)
	}

	ch := make(chan *dbus.Signal, 16)
	n.conn.Signal(ch)
	defer n.conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return errors.New("system bus closed")
			}
			n.handleSignal(sig)
		}
	}
}

func (n *NetworkManager) handleSignal(sig *dbus.Signal) {
	if sig.Name != nmStateSignal || sig.Path != n.device || len(sig.Body) < 3 {
		return
	}
	newState, ok1 := sig.Body[0].(uint32)
	oldState, ok2 := sig.Body[1].(uint32)
	reason, _ := sig.Body[2].(uint32)
	if !ok1 || !ok2 {
		return
	}

	n.logger.Debug("device state changed", "iface", n.iface, "old", oldState, "new", newState, "reason", reason)

	link, ok := LinkFromDeviceState(newState)
	if !ok || n.onStatus == nil {
		return
	}
	n.onStatus(link)
}

// Close releases the bus connection.
func (n *NetworkManager) Close() error {
	return n.conn.Close()
}
