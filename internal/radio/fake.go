package radio

import (
	"context"
	"sync"
)

// FakeRadio records calls for test assertions.
type FakeRadio struct {
	mu sync.Mutex

	onStatus StatusFunc

	Connects    []Credentials
	Disconnects int
	Resets      int

	// ConnectError and DisconnectError, if set, are returned by the
	// matching calls.
	ConnectError    error
	DisconnectError error

	// ConnectEmits, if set, is reported through the status callback after
	// every successful Connect.
	ConnectEmits []Link

	// up is true while the last reported link was not LinkDown. Disconnect
	// and Reset then report LinkDown, as NetworkManager does when a device
	// is deactivated.
	up bool
}

// NewFakeRadio creates a FakeRadio. onStatus may be nil.
func NewFakeRadio(onStatus StatusFunc) *FakeRadio {
	return &FakeRadio{onStatus: onStatus}
}

// SetStatusFunc replaces the status callback.
func (f *FakeRadio) SetStatusFunc(fn StatusFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onStatus = fn
}

func (f *FakeRadio) Connect(ctx context.Context, creds Credentials) error {
	f.mu.Lock()
	if f.ConnectError != nil {
		err := f.ConnectError
		f.mu.Unlock()
		return err
	}
	f.Connects = append(f.Connects, creds)
	emits := append([]Link(nil), f.ConnectEmits...)
	f.mu.Unlock()

	for _, l := range emits {
		f.Emit(l)
	}
	return nil
}

func (f *FakeRadio) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	if f.DisconnectError != nil {
		err := f.DisconnectError
		f.mu.Unlock()
		return err
	}
	f.Disconnects++
	up := f.up
	f.mu.Unlock()

	if up {
		f.Emit(LinkDown)
	}
	return nil
}

func (f *FakeRadio) Reset(ctx context.Context) error {
	f.mu.Lock()
	f.Resets++
	up := f.up
	f.mu.Unlock()

	if up {
		f.Emit(LinkDown)
	}
	return nil
}

// Emit reports a link change through the status callback.
func (f *FakeRadio) Emit(l Link) {
	f.mu.Lock()
	f.up = l != LinkDown
	fn := f.onStatus
	f.mu.Unlock()
	if fn != nil {
		fn(l)
	}
}

// Calls returns the number of connects, disconnects and resets.
func (f *FakeRadio) Calls() (connects, disconnects, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Connects), f.Disconnects, f.Resets
}

// LastCredentials returns the credentials of the latest Connect.
func (f *FakeRadio) LastCredentials() (Credentials, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Connects) == 0 {
		return Credentials{}, false
	}
	return f.Connects[len(f.Connects)-1], true
}
