package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refbox.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Errorf("Serial.Baud = %d, want 115200", cfg.Serial.Baud)
	}
	if cfg.Timing.Poll != 5*time.Millisecond {
		t.Errorf("Timing.Poll = %v, want 5ms", cfg.Timing.Poll)
	}
	if cfg.Timing.DecisionTimeout != 10*time.Second {
		t.Errorf("Timing.DecisionTimeout = %v, want 10s", cfg.Timing.DecisionTimeout)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
serial:
  device: /dev/ttyAMA0
gpio:
  buttons: [2, 3, 4]
  active_high: true
timing:
  debounce: 20ms
  decision_timeout: 15s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyAMA0" {
		t.Errorf("Serial.Device = %q, want /dev/ttyAMA0", cfg.Serial.Device)
	}
	if cfg.Serial.Baud != 115200 {
		t.Errorf("Serial.Baud = %d, want default 115200", cfg.Serial.Baud)
	}
	if cfg.Timing.Debounce != 20*time.Millisecond {
		t.Errorf("Timing.Debounce = %v, want 20ms", cfg.Timing.Debounce)
	}
	if cfg.Timing.DecisionTimeout != 15*time.Second {
		t.Errorf("Timing.DecisionTimeout = %v, want 15s", cfg.Timing.DecisionTimeout)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}

	pins := cfg.Pins()
	if pins.Buttons != [3]int{2, 3, 4} {
		t.Errorf("Pins().Buttons = %v, want [2 3 4]", pins.Buttons)
	}
	if !pins.ActiveHigh {
		t.Error("Pins().ActiveHigh = false, want true")
	}
	if pins.LEDs != [4]int{5, 6, 13, 19} {
		t.Errorf("Pins().LEDs = %v, want defaults", pins.LEDs)
	}
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "refbox.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	if cfg.Timing != want.Timing {
		t.Errorf("Timing = %+v, want %+v", cfg.Timing, want.Timing)
	}
	if cfg.Store != want.Store {
		t.Errorf("Store = %+v, want %+v", cfg.Store, want.Store)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/refbox.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "store:\n  path: /tmp/from-file.db\n")
	t.Setenv("REFBOX_STORE_PATH", "/tmp/from-env.db")
	t.Setenv("REFBOX_SERIAL_BAUD", "9600")
	t.Setenv("REFBOX_DECISION_TIMEOUT", "3s")
	t.Setenv("REFBOX_HTTP_ADDR", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Path != "/tmp/from-env.db" {
		t.Errorf("Store.Path = %q, want env value", cfg.Store.Path)
	}
	if cfg.Serial.Baud != 9600 {
		t.Errorf("Serial.Baud = %d, want 9600", cfg.Serial.Baud)
	}
	if cfg.Timing.DecisionTimeout != 3*time.Second {
		t.Errorf("Timing.DecisionTimeout = %v, want 3s", cfg.Timing.DecisionTimeout)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("HTTP.Addr = %q, want disabled", cfg.HTTP.Addr)
	}
}

func TestLoad_BadEnvOverride(t *testing.T) {
	t.Setenv("REFBOX_SERIAL_BAUD", "fast")
	if _, err := Load(""); err == nil {
		t.Error("Load() expected error for bad REFBOX_SERIAL_BAUD, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"no serial device", func(c *Config) { c.Serial.Device = "" }, "serial.device"},
		{"two buttons", func(c *Config) { c.GPIO.Buttons = []int{1, 2} }, "gpio.buttons"},
		{"negative led", func(c *Config) { c.GPIO.LEDs = []int{1, 2, -3, 4} }, "gpio.leds[2]"},
		{"zero poll", func(c *Config) { c.Timing.Poll = 0 }, "timing.poll"},
		{"hold below debounce", func(c *Config) { c.Timing.Hold = 5 * time.Millisecond }, "timing.hold"},
		{"qos 3", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"no interface", func(c *Config) { c.Radio.Interface = "" }, "radio.interface"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Serial.Device = ""
	cfg.Radio.Interface = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"serial.device", "radio.interface"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
