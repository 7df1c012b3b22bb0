//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads buttons and ID switches from the GPIO character device.
type RealReader struct {
	chip       *gpiocdev.Chip
	buttons    [3]*gpiocdev.Line
	idSwitches *gpiocdev.Lines
	activeHigh bool
}

// NewRealReader requests the button and ID switch lines. If onEdge is not nil
// both edges of every button are reported to it.
func NewRealReader(pins Pins, onEdge EdgeFunc) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealReader{chip: chip, activeHigh: pins.ActiveHigh}

	for i, pin := range pins.Buttons {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, biasFor(pins.ActiveHigh)}
		if onEdge != nil {
			idx := i
			opts = append(opts,
				gpiocdev.WithBothEdges,
				gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
					onEdge(idx, pressedFromEdge(evt.Type, pins.ActiveHigh))
				}))
		}
		line, err := chip.RequestLine(pin, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request button pin %d: %w", pin, err)
		}
		r.buttons[i] = line
	}

	ids, err := chip.RequestLines(pins.IDSwitches[:], gpiocdev.AsInput, biasFor(pins.ActiveHigh))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request id switch pins %v: %w", pins.IDSwitches, err)
	}
	r.idSwitches = ids

	return r, nil
}

func biasFor(activeHigh bool) gpiocdev.LineReqOption {
	if activeHigh {
		return gpiocdev.WithPullDown
	}
	return gpiocdev.WithPullUp
}

func pressedFromEdge(t gpiocdev.LineEventType, activeHigh bool) bool {
	if activeHigh {
		return t == gpiocdev.LineEventRisingEdge
	}
	return t == gpiocdev.LineEventFallingEdge
}

// Read returns the logical button states.
func (r *RealReader) Read() (Sample, error) {
	var vals [3]bool
	for i, line := range r.buttons {
		raw, err := line.Value()
		if err != nil {
			return Sample{}, fmt.Errorf("read button %d: %w", i, err)
		}
		vals[i] = logical(raw, r.activeHigh)
	}
	return Sample{User: vals[0], Red: vals[1], Black: vals[2]}, nil
}

// DeviceID returns the ID switch value.
func (r *RealReader) DeviceID() (int, error) {
	raw := make([]int, 3)
	if err := r.idSwitches.Values(raw); err != nil {
		return 0, fmt.Errorf("read id switches: %w", err)
	}
	var bits [3]bool
	for i, v := range raw {
		bits[i] = logical(v, r.activeHigh)
	}
	return idFromBits(bits), nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error
	for i, line := range r.buttons {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button %d: %w", i, err))
		}
	}
	if r.idSwitches != nil {
		if err := r.idSwitches.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close id switches: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutputs drives LEDs and the buzzer.
type RealOutputs struct {
	chip   *gpiocdev.Chip
	leds   *gpiocdev.Lines
	buzzer *gpiocdev.Line
	bits   uint8
}

// NewRealOutputs requests the LED and buzzer lines, all initially off.
func NewRealOutputs(pins Pins) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	leds, err := chip.RequestLines(pins.LEDs[:], gpiocdev.AsOutput(0, 0, 0, 0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request led pins %v: %w", pins.LEDs, err)
	}

	buzzer, err := chip.RequestLine(pins.Buzzer, gpiocdev.AsOutput(0))
	if err != nil {
		leds.Close()
		chip.Close()
		return nil, fmt.Errorf("request buzzer pin %d: %w", pins.Buzzer, err)
	}

	return &RealOutputs{chip: chip, leds: leds, buzzer: buzzer}, nil
}

// SetLEDs drives LED i from bit i.
func (o *RealOutputs) SetLEDs(bits uint8) error {
	vals := make([]int, NumLEDs)
	for i := range vals {
		if bits&(1<<i) != 0 {
			vals[i] = 1
		}
	}
	if err := o.leds.SetValues(vals); err != nil {
		return fmt.Errorf("set leds: %w", err)
	}
	o.bits = bits & 0x0F
	return nil
}

// ToggleLEDs inverts every LED whose bit is set.
func (o *RealOutputs) ToggleLEDs(bits uint8) error {
	return o.SetLEDs(o.bits ^ bits)
}

// SetBuzzer switches the buzzer.
func (o *RealOutputs) SetBuzzer(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.buzzer.SetValue(v); err != nil {
		return fmt.Errorf("set buzzer: %w", err)
	}
	return nil
}

// Close switches LEDs and buzzer off, reconfigures the lines as inputs with
// pull-down (the Pi boot default) and releases them.
func (o *RealOutputs) Close() error {
	var errs []error
	if o.leds != nil {
		if err := o.leds.SetValues(make([]int, NumLEDs)); err != nil {
			errs = append(errs, fmt.Errorf("clear leds: %w", err))
		}
		if err := o.leds.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure leds: %w", err))
		}
		if err := o.leds.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close leds: %w", err))
		}
	}
	if o.buzzer != nil {
		if err := o.buzzer.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure buzzer: %w", err))
		}
		if err := o.buzzer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close buzzer: %w", err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
