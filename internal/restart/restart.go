// Package restart performs the unconditional device restart.
package restart

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Restarter reboots the device. On real hardware Restart does not return
// once the request is accepted.
type Restarter interface {
	Restart() error
}

const (
	logindBus   = "org.freedesktop.login1"
	logindPath  = "/org/freedesktop/login1"
	logindIface = "org.freedesktop.login1.Manager"
)

// Logind reboots through systemd-logind on the system bus.
type Logind struct{}

// Restart asks logind for a non-interactive reboot.
func (Logind) Restart() error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}
	defer conn.Close()

	call := conn.Object(logindBus, dbus.ObjectPath(logindPath)).Call(logindIface+".Reboot", 0, false)
	if call.Err != nil {
		return fmt.Errorf("reboot: %w", call.Err)
	}
	return nil
}

// FakeRestarter counts restart requests.
type FakeRestarter struct {
	mu    sync.Mutex
	count int

	// Err, if set, is returned by Restart.
	Err error
}

func (f *FakeRestarter) Restart() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return f.Err
}

// Count returns the number of Restart calls.
func (f *FakeRestarter) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}
