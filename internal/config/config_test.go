package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relabs-tech/msp_bridge/internal/drone"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadKeyValue(t *testing.T) {
	path := writeFile(t, "bridge_config.txt", `
# flight controller
SERIAL_PORT=/dev/ttyAMA0
SERIAL_BAUD_RATE = 57600
SERIAL_DRIVER=bugst

TELEMETRY_ATTITUDE=true
TELEMETRY_RAW_IMU=false
TELEMETRY_INTERVAL_MS=250

ARM_USE_ROLL=true
ARM_MAX_ROLL=1950
CODE_ARM=302
CODE_DISARM=303
CODE_ATTITUDE=0x6C
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SerialPort != "/dev/ttyAMA0" || cfg.SerialBaudRate != 57600 || cfg.SerialDriver != "bugst" {
		t.Errorf("serial = %q %d %q", cfg.SerialPort, cfg.SerialBaudRate, cfg.SerialDriver)
	}
	if cfg.TelemetryIntervalMS != 250 {
		t.Errorf("TelemetryIntervalMS = %d, want 250", cfg.TelemetryIntervalMS)
	}
	if !cfg.ArmUseYaw || !cfg.ArmUseRoll || cfg.ArmMaxRoll != 1950 {
		t.Errorf("arming = yaw:%v roll:%v maxRoll:%d", cfg.ArmUseYaw, cfg.ArmUseRoll, cfg.ArmMaxRoll)
	}
	if cfg.Codes.Arm != 302 || cfg.Codes.Disarm != 303 {
		t.Errorf("codes arm/disarm = %d/%d, want 302/303", cfg.Codes.Arm, cfg.Codes.Disarm)
	}
	if code, _ := cfg.Codes.TelemetryCode(drone.Attitude); code != 108 {
		t.Errorf("attitude code = %d, want 108", code)
	}

	got := cfg.EnabledCategories()
	want := []drone.Category{drone.Altitude, drone.Attitude}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("EnabledCategories() = %v, want %v", got, want)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "bridge.yaml", `
serial_port: /dev/ttyACM0
telemetry_motor: true
telemetry_interval_ms: 100
relay_outbound_order: little
mqtt_broker: tcp://localhost:1883
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SerialPort != "/dev/ttyACM0" || !cfg.TelemetryMotor || cfg.TelemetryIntervalMS != 100 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RelayOutboundOrder != "little" || cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("relay/mqtt = %q %q", cfg.RelayOutboundOrder, cfg.MQTTBroker)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.txt", "# nothing\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ArmHoldMS != 2500 || cfg.ArmMaxYaw != 2000 || cfg.ArmMinThrottle != 990 {
		t.Errorf("arming defaults = %d %d %d", cfg.ArmHoldMS, cfg.ArmMaxYaw, cfg.ArmMinThrottle)
	}
	if cfg.RelayInboundOrder != "little" || cfg.RelayOutboundOrder != "big" {
		t.Errorf("relay orders = %q/%q", cfg.RelayInboundOrder, cfg.RelayOutboundOrder)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing equals", "SERIAL_PORT\n", "invalid config line 1"},
		{"unknown key", "FOO=bar\n", "unknown config key"},
		{"bad int", "SERIAL_BAUD_RATE=fast\n", "invalid SERIAL_BAUD_RATE"},
		{"bad bool", "ARM_USE_YAW=maybe\n", "invalid ARM_USE_YAW"},
		{"bad driver", "SERIAL_DRIVER=usb\n", "SERIAL_DRIVER"},
		{"bad order", "RELAY_INBOUND_ORDER=middle\n", "RELAY_INBOUND_ORDER"},
		{"int16 overflow", "ARM_MAX_YAW=70000\n", "invalid ARM_MAX_YAW"},
		{"no arming axis", "ARM_USE_YAW=false\n", "ARM_USE_YAW or ARM_USE_ROLL"},
		{"duplicate code", "CODE_DISARM=220\n", "assigned to both"},
		{"zero interval", "TELEMETRY_INTERVAL_MS=0\n", "TELEMETRY_INTERVAL_MS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.txt", tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("Load() of missing file: expected error")
	}
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "bridge_config.txt"))
	if err != nil {
		t.Fatalf("Load(sample) error = %v", err)
	}
	def := Default()
	if cfg.Codes.Arm != def.Codes.Arm || cfg.RelayListenAddr != def.RelayListenAddr {
		t.Errorf("sample config differs from defaults: %+v", cfg)
	}
	if cfg.WebServerPort != 8080 || cfg.DisplayI2CBus != "/dev/i2c-1" {
		t.Errorf("web port %d, i2c bus %q", cfg.WebServerPort, cfg.DisplayI2CBus)
	}
}
