// Package config loads the daemon configuration.
//
// Values are layered: hardcoded defaults, then the YAML file, then REFBOX_*
// environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/refbox/internal/gpio"
)

// Config is the root configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Timing  TimingConfig  `yaml:"timing"`
	Radio   RadioConfig   `yaml:"radio"`
	Store   StoreConfig   `yaml:"store"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// SerialConfig selects the configuration UART.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// GPIOConfig holds BCM pin numbers.
type GPIOConfig struct {
	Chip string `yaml:"chip"`
	// Buttons in order user, red, black.
	Buttons []int `yaml:"buttons"`
	// IDSwitches, bit 0 first.
	IDSwitches []int `yaml:"id_switches"`
	LEDs       []int `yaml:"leds"`
	Buzzer     int   `yaml:"buzzer"`
	ActiveHigh bool  `yaml:"active_high"`
}

// TimingConfig holds loop periods and timeouts.
type TimingConfig struct {
	Poll            time.Duration `yaml:"poll"`
	Debounce        time.Duration `yaml:"debounce"`
	Hold            time.Duration `yaml:"hold"`
	Tick            time.Duration `yaml:"tick"`
	DecisionTimeout time.Duration `yaml:"decision_timeout"`
	BlinkPeriod     time.Duration `yaml:"blink_period"`
	Buzz            time.Duration `yaml:"buzz"`
	LampTest        time.Duration `yaml:"lamp_test"`
}

// RadioConfig selects the wireless interface.
type RadioConfig struct {
	Interface string `yaml:"interface"`
}

// StoreConfig locates the configuration record database.
type StoreConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// MQTTConfig tunes broker sessions. The broker address itself comes from
// the configuration record.
type MQTTConfig struct {
	QoS            int           `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration.
func Default() *Config {
	pins := gpio.DefaultPins()
	return &Config{
		Serial: SerialConfig{
			Device: "/dev/serial0",
			Baud:   115200,
		},
		GPIO: GPIOConfig{
			Chip:       pins.Chip,
			Buttons:    pins.Buttons[:],
			IDSwitches: pins.IDSwitches[:],
			LEDs:       pins.LEDs[:],
			Buzzer:     pins.Buzzer,
		},
		Timing: TimingConfig{
			Poll:            5 * time.Millisecond,
			Debounce:        10 * time.Millisecond,
			Hold:            2 * time.Second,
			Tick:            time.Millisecond,
			DecisionTimeout: 10 * time.Second,
			BlinkPeriod:     500 * time.Millisecond,
			Buzz:            time.Second,
			LampTest:        2 * time.Second,
		},
		Radio: RadioConfig{Interface: "wlan0"},
		Store: StoreConfig{
			Path:        "/var/lib/refbox/settings.db",
			BusyTimeout: 5 * time.Second,
		},
		MQTT: MQTTConfig{
			QoS:            1,
			ConnectTimeout: 10 * time.Second,
			PublishTimeout: 5 * time.Second,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies REFBOX_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"REFBOX_SERIAL_DEVICE":   &cfg.Serial.Device,
		"REFBOX_GPIO_CHIP":       &cfg.GPIO.Chip,
		"REFBOX_RADIO_INTERFACE": &cfg.Radio.Interface,
		"REFBOX_STORE_PATH":      &cfg.Store.Path,
		"REFBOX_HTTP_ADDR":       &cfg.HTTP.Addr,
		"REFBOX_LOG_LEVEL":       &cfg.Logging.Level,
		"REFBOX_LOG_FORMAT":      &cfg.Logging.Format,
		"REFBOX_LOG_OUTPUT":      &cfg.Logging.Output,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v := os.Getenv("REFBOX_SERIAL_BAUD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REFBOX_SERIAL_BAUD: %w", err)
		}
		cfg.Serial.Baud = n
	}
	if v := os.Getenv("REFBOX_DECISION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REFBOX_DECISION_TIMEOUT: %w", err)
		}
		cfg.Timing.DecisionTimeout = d
	}
	return nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Serial.Device == "" {
		errs = append(errs, errors.New("serial.device is required"))
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}

	if c.GPIO.Chip == "" {
		errs = append(errs, errors.New("gpio.chip is required"))
	}
	errs = append(errs, checkPins("gpio.buttons", c.GPIO.Buttons, 3)...)
	errs = append(errs, checkPins("gpio.id_switches", c.GPIO.IDSwitches, 3)...)
	errs = append(errs, checkPins("gpio.leds", c.GPIO.LEDs, gpio.NumLEDs)...)
	if c.GPIO.Buzzer < 0 {
		errs = append(errs, fmt.Errorf("gpio.buzzer must not be negative, got %d", c.GPIO.Buzzer))
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"timing.poll", c.Timing.Poll},
		{"timing.debounce", c.Timing.Debounce},
		{"timing.hold", c.Timing.Hold},
		{"timing.tick", c.Timing.Tick},
		{"timing.decision_timeout", c.Timing.DecisionTimeout},
		{"timing.blink_period", c.Timing.BlinkPeriod},
		{"timing.buzz", c.Timing.Buzz},
		{"mqtt.connect_timeout", c.MQTT.ConnectTimeout},
		{"mqtt.publish_timeout", c.MQTT.PublishTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", d.name, d.d))
		}
	}
	if c.Timing.Hold <= c.Timing.Debounce {
		errs = append(errs, fmt.Errorf("timing.hold (%v) must exceed timing.debounce (%v)", c.Timing.Hold, c.Timing.Debounce))
	}

	if c.Radio.Interface == "" {
		errs = append(errs, errors.New("radio.interface is required"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func checkPins(name string, pins []int, want int) []error {
	if len(pins) != want {
		return []error{fmt.Errorf("%s needs %d pins, got %d", name, want, len(pins))}
	}
	var errs []error
	for i, p := range pins {
		if p < 0 {
			errs = append(errs, fmt.Errorf("%s[%d] must not be negative, got %d", name, i, p))
		}
	}
	return errs
}

// Pins converts the GPIO section for the gpio package. Validate must have
// passed.
func (c *Config) Pins() gpio.Pins {
	p := gpio.Pins{
		Chip:       c.GPIO.Chip,
		Buzzer:     c.GPIO.Buzzer,
		ActiveHigh: c.GPIO.ActiveHigh,
	}
	copy(p.Buttons[:], c.GPIO.Buttons)
	copy(p.IDSwitches[:], c.GPIO.IDSwitches)
	copy(p.LEDs[:], c.GPIO.LEDs)
	return p
}
