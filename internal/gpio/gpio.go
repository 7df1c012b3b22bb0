// Package gpio provides button, ID switch, LED and buzzer access with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Sample is one logical reading of the three buttons. true = pressed.
type Sample struct {
	User  bool
	Red   bool
	Black bool
}

// Reader reads button levels and the device ID switches.
type Reader interface {
	// Read returns the logical button states. Buttons are wired active-low
	// unless Pins.ActiveHigh is set; the inversion happens here.
	Read() (Sample, error)

	// DeviceID returns the ID switches as a 3-bit number (switch 0 = bit 0).
	DeviceID() (int, error)

	// Close releases GPIO resources.
	Close() error
}

// EdgeFunc is called from the GPIO event goroutine on every raw button edge.
// button is the index in Pins.Buttons.
type EdgeFunc func(button int, pressed bool)

// Outputs drives the indicator LEDs and the buzzer.
type Outputs interface {
	// SetLEDs drives LED i from bit i of bits.
	SetLEDs(bits uint8) error

	// ToggleLEDs inverts every LED whose bit is set.
	ToggleLEDs(bits uint8) error

	// SetBuzzer switches the buzzer on or off.
	SetBuzzer(on bool) error

	// Close switches everything off and releases GPIO resources.
	Close() error
}

// NumLEDs is the number of indicator LEDs.
const NumLEDs = 4

// Pins holds BCM pin numbers.
type Pins struct {
	Chip string
	// Buttons in order user, red, black
	Buttons [3]int
	// ID switches, bit 0 first
	IDSwitches [3]int
	LEDs       [NumLEDs]int
	Buzzer     int
	// ActiveHigh disables inversion of button and switch inputs.
	ActiveHigh bool
}

// Pin definitions (BCM numbering)
const (
	DefaultChip     = "gpiochip0"
	DefaultPinUser  = 17
	DefaultPinRed   = 27
	DefaultPinBlack = 22
	DefaultPinBuzz  = 18
)

// DefaultPins returns the reference board wiring.
func DefaultPins() Pins {
	return Pins{
		Chip:       DefaultChip,
		Buttons:    [3]int{DefaultPinUser, DefaultPinRed, DefaultPinBlack},
		IDSwitches: [3]int{23, 24, 25},
		LEDs:       [NumLEDs]int{5, 6, 13, 19},
		Buzzer:     DefaultPinBuzz,
	}
}

// logical converts a raw line value into a logical on/off.
func logical(raw int, activeHigh bool) bool {
	if activeHigh {
		return raw == 1
	}
	return raw == 0
}

// idFromBits packs switch states into the device ID.
func idFromBits(bits [3]bool) int {
	id := 0
	for i, on := range bits {
		if on {
			id |= 1 << i
		}
	}
	return id
}
