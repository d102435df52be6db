package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxSamplingRate is the largest period in seconds a time.Duration can hold.
const maxSamplingRate = math.MaxInt64 / int64(time.Second)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDNode    string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicEnv string

	// Bus
	I2CBus      string // "" = first available bus
	BMP280Addr  uint16
	SHT31Addr   uint16
	SHT31CRC    bool
	SHT31Heater bool
	DisplayAddr uint16
	HasDisplay  bool

	// Humidity helper. When set, humidity is read by running this command
	// instead of talking to the SHT31 directly.
	HumidityHelper        string
	HumidityHelperTimeout int // milliseconds

	// Sampling. SamplingRate is nil when the key is absent: nothing is
	// scheduled in that case.
	SamplingRate *int // seconds

	// Altitude reference
	SeaLevelHPa   float64
	KnownAltitude *float64 // meters
	SeaLevelFile  string

	// GPS
	GPSSerialPort    string
	GPSBaudRate      int
	GPSFixTimeoutSec int

	// Web Server
	WebServerPort int
	HistoryDB     string // SQLite file; "" disables the sample history

	// Display
	DisplayUpdateInterval int // milliseconds

	// Logging
	LogLevel string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal, Reload and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock for initialization
//     and reload, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
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
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_NODE":
		c.MQTTClientIDNode = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_ENV":
		c.TopicEnv = value

	// Bus
	case "I2C_BUS":
		c.I2CBus = value
	case "BMP280_I2C_ADDR":
		addr, err := parseAddr(key, value)
		if err != nil {
			return err
		}
		c.BMP280Addr = addr
	case "SHT31_I2C_ADDR":
		addr, err := parseAddr(key, value)
		if err != nil {
			return err
		}
		c.SHT31Addr = addr
	case "SHT31_VERIFY_CRC":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SHT31_VERIFY_CRC %q: %w", value, err)
		}
		c.SHT31CRC = b
	case "SHT31_HEATER":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SHT31_HEATER %q: %w", value, err)
		}
		c.SHT31Heater = b
	case "DISPLAY_I2C_ADDR":
		addr, err := parseAddr(key, value)
		if err != nil {
			return err
		}
		c.DisplayAddr = addr
		c.HasDisplay = true

	// Humidity helper
	case "HUMIDITY_HELPER":
		c.HumidityHelper = value
	case "HUMIDITY_HELPER_TIMEOUT":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HUMIDITY_HELPER_TIMEOUT %q: %w", value, err)
		}
		c.HumidityHelperTimeout = ms

	// Sampling
	case "SAMPLING_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLING_RATE %q: %w", value, err)
		}
		if rate <= 0 {
			return fmt.Errorf("SAMPLING_RATE must be a positive number of seconds, got %d", rate)
		}
		if int64(rate) > maxSamplingRate {
			return fmt.Errorf("SAMPLING_RATE must be at most %d seconds, got %d", maxSamplingRate, rate)
		}
		c.SamplingRate = &rate

	// Altitude reference
	case "SEA_LEVEL_HPA":
		hpa, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SEA_LEVEL_HPA %q: %w", value, err)
		}
		if hpa <= 0 {
			return fmt.Errorf("SEA_LEVEL_HPA must be positive, got %v", hpa)
		}
		c.SeaLevelHPa = hpa
	case "KNOWN_ALTITUDE":
		alt, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid KNOWN_ALTITUDE %q: %w", value, err)
		}
		c.KnownAltitude = &alt
	case "SEA_LEVEL_FILE":
		c.SeaLevelFile = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate
	case "GPS_FIX_TIMEOUT":
		sec, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_FIX_TIMEOUT %q: %w", value, err)
		}
		c.GPSFixTimeoutSec = sec

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "HISTORY_DB":
		c.HistoryDB = value

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

// applyDefaults fills in values that have a sensible hardware default.
func (c *Config) applyDefaults() {
	if c.MQTTClientIDNode == "" {
		c.MQTTClientIDNode = "spacenode"
	}
	if c.MQTTClientIDWeb == "" {
		c.MQTTClientIDWeb = "spacenode-web"
	}
	if c.MQTTClientIDDisplay == "" {
		c.MQTTClientIDDisplay = "spacenode-display"
	}
	if c.TopicEnv == "" {
		c.TopicEnv = "spacenode/env"
	}
	if c.BMP280Addr == 0 {
		c.BMP280Addr = 0x77
	}
	if c.SHT31Addr == 0 {
		c.SHT31Addr = 0x44
	}
	if c.HumidityHelperTimeout == 0 {
		c.HumidityHelperTimeout = 5000
	}
	if c.GPSBaudRate == 0 {
		c.GPSBaudRate = 9600
	}
	if c.GPSFixTimeoutSec == 0 {
		c.GPSFixTimeoutSec = 30
	}
	if c.WebServerPort == 0 {
		c.WebServerPort = 8080
	}
	if c.DisplayUpdateInterval == 0 {
		c.DisplayUpdateInterval = 1000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.BMP280Addr == c.SHT31Addr {
		return fmt.Errorf("BMP280_I2C_ADDR and SHT31_I2C_ADDR must differ (both 0x%02X)", c.BMP280Addr)
	}
	if c.HumidityHelperTimeout < 0 {
		return fmt.Errorf("HUMIDITY_HELPER_TIMEOUT must not be negative")
	}
	return nil
}

// SamplingInterval returns the configured sampling period and whether one
// is configured at all.
func (c *Config) SamplingInterval() (time.Duration, bool) {
	if c.SamplingRate == nil {
		return 0, false
	}
	return time.Duration(*c.SamplingRate) * time.Second, true
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

// Reload re-reads the configuration file and swaps it in. On error the
// previous configuration stays active.
func Reload(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return cfg, nil
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
