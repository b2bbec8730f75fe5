// Package config loads vrctl settings from a file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SerialConfig selects the port the module is attached to.
type SerialConfig struct {
	Port         string        `mapstructure:"port"`
	BaudRate     int           `mapstructure:"baudRate"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// DriverConfig tunes receive windows.
type DriverConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	ListenTimeout time.Duration `mapstructure:"listenTimeout"`
}

// LumberjackConfig configures the rotating log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets level and output.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MQTTConfig points the event bridge at a broker. An empty URL disables it.
type MQTTConfig struct {
	URL     string        `mapstructure:"url"`
	QoS     byte          `mapstructure:"qos"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config is the top-level configuration.
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	Driver  DriverConfig  `mapstructure:"driver"`
	Logging LoggingConfig `mapstructure:"logging"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
}

// EnvPrefix prefixes environment overrides, e.g. VRCTL_SERIAL_PORT.
const EnvPrefix = "VRCTL"

// Load reads configuration from path (YAML, TOML or JSON) and VRCTL_*
// environment variables. When path is empty VRCTL_CONFIG is consulted, then
// vrctl.yaml in the working directory; a missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("vrctl")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the driver cannot use.
func (c *Config) Validate() error {
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baudRate must be positive, got %d", c.Serial.BaudRate)
	}
	if c.Driver.Timeout <= 0 {
		return fmt.Errorf("driver.timeout must be positive, got %s", c.Driver.Timeout)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baudRate", 38400)
	v.SetDefault("serial.pollInterval", "5ms")

	v.SetDefault("driver.timeout", "1s")
	v.SetDefault("driver.listenTimeout", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 7)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("mqtt.url", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.timeout", "2s")
}
