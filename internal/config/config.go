package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/relay"
)

// Config holds all application configuration values.
type Config struct {
	// Serial link to the flight controller
	SerialPort          string
	SerialBaudRate      int
	SerialDriver        string // "jacobsa", "bugst" or "sim"
	SerialReadTimeoutMS int
	SerialWakeupMS      int // the controller resets when the port opens

	// Telemetry categories polled on each tick
	TelemetryAltitude   bool
	TelemetryAttitude   bool
	TelemetryRawIMU     bool
	TelemetryRC         bool
	TelemetryMotor      bool
	TelemetryServo      bool
	TelemetryPID        bool
	TelemetryIntervalMS int

	// Operator relay link
	RelayListenAddr    string
	RelayInboundOrder  string // "little" or "big"
	RelayOutboundOrder string
	Codes              relay.Codes

	// Arming stick-hold sequence
	ArmUseYaw         bool
	ArmUseRoll        bool
	ArmMinYaw         int16
	ArmMaxYaw         int16
	ArmMinRoll        int16
	ArmMaxRoll        int16
	ArmMinThrottle    int16
	ArmHoldMS         int
	ArmSendIntervalMS int

	// MQTT mirror (disabled when MQTTBroker is empty)
	MQTTBroker          string
	MQTTClientID        string
	MQTTClientIDConsole string
	MQTTTopicPrefix     string

	// Web dashboard (disabled when 0)
	WebServerPort int

	// OLED status display
	DisplayEnabled        bool
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		SerialPort:          "/dev/ttyUSB0",
		SerialBaudRate:      115200,
		SerialDriver:        "jacobsa",
		SerialReadTimeoutMS: 1000,
		SerialWakeupMS:      10000,

		TelemetryAltitude:   true,
		TelemetryRawIMU:     true,
		TelemetryIntervalMS: 1000,

		RelayListenAddr:    "0.0.0.0:4445",
		RelayInboundOrder:  "little",
		RelayOutboundOrder: "big",
		Codes:              relay.DefaultCodes(),

		ArmUseYaw:         true,
		ArmMinYaw:         900,
		ArmMaxYaw:         2000,
		ArmMinRoll:        900,
		ArmMaxRoll:        1900,
		ArmMinThrottle:    990,
		ArmHoldMS:         2500,
		ArmSendIntervalMS: 20,

		MQTTClientID:        "msp-bridge",
		MQTTClientIDConsole: "msp-bridge-console",
		MQTTTopicPrefix:     "drone",

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
// Files ending in .yaml or .yml hold the same keys as a flat YAML mapping.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := cfg.loadYAML(file); err != nil {
			return nil, err
		}
	default:
		if err := cfg.loadKeyValue(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadKeyValue(file *os.File) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.setValue(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func (c *Config) loadYAML(file *os.File) error {
	var values map[string]any
	if err := yaml.NewDecoder(file).Decode(&values); err != nil {
		return fmt.Errorf("error decoding yaml config: %w", err)
	}

	// Sorted so errors are reported deterministically.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		if err := c.setValue(key, fmt.Sprint(values[k])); err != nil {
			return fmt.Errorf("config key %s: %w", k, err)
		}
	}
	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		return setInt(key, value, &c.SerialBaudRate)
	case "SERIAL_DRIVER":
		driver := strings.ToLower(value)
		if driver != "jacobsa" && driver != "bugst" && driver != "sim" {
			return fmt.Errorf("SERIAL_DRIVER must be jacobsa, bugst or sim, got %q", value)
		}
		c.SerialDriver = driver
	case "SERIAL_READ_TIMEOUT_MS":
		return setInt(key, value, &c.SerialReadTimeoutMS)
	case "SERIAL_WAKEUP_MS":
		return setInt(key, value, &c.SerialWakeupMS)

	// Telemetry
	case "TELEMETRY_ALTITUDE":
		return setBool(key, value, &c.TelemetryAltitude)
	case "TELEMETRY_ATTITUDE":
		return setBool(key, value, &c.TelemetryAttitude)
	case "TELEMETRY_RAW_IMU":
		return setBool(key, value, &c.TelemetryRawIMU)
	case "TELEMETRY_RC":
		return setBool(key, value, &c.TelemetryRC)
	case "TELEMETRY_MOTOR":
		return setBool(key, value, &c.TelemetryMotor)
	case "TELEMETRY_SERVO":
		return setBool(key, value, &c.TelemetryServo)
	case "TELEMETRY_PID":
		return setBool(key, value, &c.TelemetryPID)
	case "TELEMETRY_INTERVAL_MS":
		return setInt(key, value, &c.TelemetryIntervalMS)

	// Relay
	case "RELAY_LISTEN_ADDR":
		c.RelayListenAddr = value
	case "RELAY_INBOUND_ORDER":
		if _, err := relay.NewCodec(value); err != nil {
			return fmt.Errorf("invalid RELAY_INBOUND_ORDER: %w", err)
		}
		c.RelayInboundOrder = value
	case "RELAY_OUTBOUND_ORDER":
		if _, err := relay.NewCodec(value); err != nil {
			return fmt.Errorf("invalid RELAY_OUTBOUND_ORDER: %w", err)
		}
		c.RelayOutboundOrder = value

	// Relay codes
	case "CODE_START_CONNECTION":
		return setInt16(key, value, &c.Codes.StartConnection)
	case "CODE_END_CONNECTION":
		return setInt16(key, value, &c.Codes.EndConnection)
	case "CODE_ACCEPT_CONNECTION":
		return setInt16(key, value, &c.Codes.AcceptConnection)
	case "CODE_ARM":
		return setInt16(key, value, &c.Codes.Arm)
	case "CODE_DISARM":
		return setInt16(key, value, &c.Codes.Disarm)
	case "CODE_SET_RC":
		return setInt16(key, value, &c.Codes.SetRC)
	case "CODE_START_TELEMETRY":
		return setInt16(key, value, &c.Codes.StartTelemetry)
	case "CODE_END_TELEMETRY":
		return setInt16(key, value, &c.Codes.EndTelemetry)
	case "CODE_ALTITUDE":
		return c.setTelemetryCode(key, value, drone.Altitude)
	case "CODE_ATTITUDE":
		return c.setTelemetryCode(key, value, drone.Attitude)
	case "CODE_RAW_IMU":
		return c.setTelemetryCode(key, value, drone.RawIMU)
	case "CODE_RC":
		return c.setTelemetryCode(key, value, drone.RC)
	case "CODE_MOTOR":
		return c.setTelemetryCode(key, value, drone.Motor)
	case "CODE_SERVO":
		return c.setTelemetryCode(key, value, drone.Servo)
	case "CODE_PID":
		return c.setTelemetryCode(key, value, drone.PIDCoef)

	// Arming
	case "ARM_USE_YAW":
		return setBool(key, value, &c.ArmUseYaw)
	case "ARM_USE_ROLL":
		return setBool(key, value, &c.ArmUseRoll)
	case "ARM_MIN_YAW":
		return setInt16(key, value, &c.ArmMinYaw)
	case "ARM_MAX_YAW":
		return setInt16(key, value, &c.ArmMaxYaw)
	case "ARM_MIN_ROLL":
		return setInt16(key, value, &c.ArmMinRoll)
	case "ARM_MAX_ROLL":
		return setInt16(key, value, &c.ArmMaxRoll)
	case "ARM_MIN_THROTTLE":
		return setInt16(key, value, &c.ArmMinThrottle)
	case "ARM_HOLD_MS":
		return setInt(key, value, &c.ArmHoldMS)
	case "ARM_SEND_INTERVAL_MS":
		return setInt(key, value, &c.ArmSendIntervalMS)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_TOPIC_PREFIX":
		c.MQTTTopicPrefix = strings.TrimSuffix(value, "/")

	// Web Server
	case "WEB_SERVER_PORT":
		return setInt(key, value, &c.WebServerPort)

	// Display
	case "DISPLAY_ENABLED":
		return setBool(key, value, &c.DisplayEnabled)
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		return setInt(key, value, &c.DisplayUpdateInterval)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func (c *Config) setTelemetryCode(key, value string, cat drone.Category) error {
	var code int16
	if err := setInt16(key, value, &code); err != nil {
		return err
	}
	c.Codes.Telemetry[cat] = code
	return nil
}

func setInt(key, value string, dst *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func setInt16(key, value string, dst *int16) error {
	v, err := strconv.ParseInt(value, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = int16(v)
	return nil
}

func setBool(key, value string, dst *bool) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required")
	}
	if c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be positive, got %d", c.SerialBaudRate)
	}
	if c.SerialReadTimeoutMS < 0 || c.SerialWakeupMS < 0 {
		return fmt.Errorf("serial timeouts must not be negative")
	}
	if c.TelemetryIntervalMS <= 0 {
		return fmt.Errorf("TELEMETRY_INTERVAL_MS must be positive, got %d", c.TelemetryIntervalMS)
	}
	if c.RelayListenAddr == "" {
		return fmt.Errorf("RELAY_LISTEN_ADDR is required")
	}
	if c.ArmHoldMS <= 0 {
		return fmt.Errorf("ARM_HOLD_MS must be positive, got %d", c.ArmHoldMS)
	}
	if c.ArmSendIntervalMS <= 0 {
		return fmt.Errorf("ARM_SEND_INTERVAL_MS must be positive, got %d", c.ArmSendIntervalMS)
	}
	if !c.ArmUseYaw && !c.ArmUseRoll {
		return fmt.Errorf("at least one of ARM_USE_YAW or ARM_USE_ROLL must be true")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	if err := c.Codes.Validate(); err != nil {
		return err
	}
	return nil
}

// EnabledCategories lists the telemetry categories to poll, in sampling order.
func (c *Config) EnabledCategories() []drone.Category {
	enabled := map[drone.Category]bool{
		drone.Altitude: c.TelemetryAltitude,
		drone.Attitude: c.TelemetryAttitude,
		drone.RawIMU:   c.TelemetryRawIMU,
		drone.RC:       c.TelemetryRC,
		drone.Motor:    c.TelemetryMotor,
		drone.Servo:    c.TelemetryServo,
		drone.PIDCoef:  c.TelemetryPID,
	}
	var out []drone.Category
	for _, cat := range drone.Categories() {
		if enabled[cat] {
			out = append(out, cat)
		}
	}
	return out
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
