// Package config loads device configuration with viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"petfeeder/internal/logger"
	"petfeeder/internal/models"
)

const envPrefix = "FEEDER"

// Config is the full device configuration.
type Config struct {
	Device  DeviceConfig  `mapstructure:"device"`
	Control ControlConfig `mapstructure:"control"`
	Clock   ClockConfig   `mapstructure:"clock"`
	Storage StorageConfig `mapstructure:"storage"`
	GPIO    GPIOConfig    `mapstructure:"gpio"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
}

type DeviceConfig struct {
	ID string `mapstructure:"id"`
}

// ControlConfig tunes the control loop and the dispense state machine.
type ControlConfig struct {
	Tick          time.Duration `mapstructure:"tick"`
	UnlockTimeout time.Duration `mapstructure:"unlock_timeout"` // max time waiting for the gate to open
	RotateTimeout time.Duration `mapstructure:"rotate_timeout"` // max time waiting for the gate to close
	QueueSize     int           `mapstructure:"queue_size"`
}

type ClockConfig struct {
	Source    string `mapstructure:"source"` // ntp | system
	NTPServer string `mapstructure:"ntp_server"`
	Resync    string `mapstructure:"resync"` // cron spec, e.g. "@every 1h"
	Location  string `mapstructure:"location"`
}

type StorageConfig struct {
	Path       string `mapstructure:"path"`
	RegionSize int    `mapstructure:"region_size"`
}

type GPIOConfig struct {
	Driver    string        `mapstructure:"driver"` // periph | sim
	SwitchPin string        `mapstructure:"switch_pin"`
	MotorPin  string        `mapstructure:"motor_pin"`
	Debounce  time.Duration `mapstructure:"debounce"`
}

type MQTTConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Broker        string        `mapstructure:"broker"`
	TopicPrefix   string        `mapstructure:"topic_prefix"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RemoteLogs    bool          `mapstructure:"remote_logs"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var (
	errMissingDeviceID = errors.New("device.id must not be empty")
	errBadTick         = errors.New("control.tick must be > 0")
	errBadClockSource  = errors.New("clock.source must be ntp or system")
	errBadGPIODriver   = errors.New("gpio.driver must be periph or sim")
)

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("device.id", "feeder")
	v.SetDefault("control.tick", "50ms")
	v.SetDefault("control.unlock_timeout", "15s")
	v.SetDefault("control.rotate_timeout", "15s")
	v.SetDefault("control.queue_size", 16)
	v.SetDefault("clock.source", "ntp")
	v.SetDefault("clock.ntp_server", "pool.ntp.org")
	v.SetDefault("clock.resync", "@every 1h")
	v.SetDefault("clock.location", "UTC")
	v.SetDefault("storage.path", "feeder.db")
	v.SetDefault("storage.region_size", 256)
	v.SetDefault("gpio.driver", "sim")
	v.SetDefault("gpio.switch_pin", "GPIO5")
	v.SetDefault("gpio.motor_pin", "GPIO6")
	v.SetDefault("gpio.debounce", "100ms")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "devices")
	v.SetDefault("mqtt.retry_interval", "10s")
	v.SetDefault("mqtt.remote_logs", true)
	v.SetDefault("http.port", "8080")
	v.SetDefault("log.level", "info")
}

// New returns a viper instance reading configs/config.yml (or file, when set)
// with FEEDER_* environment overrides.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("configs") // configs/config.yml
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. A missing config file is not an error;
// defaults and environment apply.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that the rest of the program relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Device.ID) == "" {
		return errMissingDeviceID
	}
	if c.Control.Tick <= 0 {
		return errBadTick
	}
	if !logger.IsLevel(c.Log.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Clock.Source {
	case "ntp", "system":
	default:
		return errBadClockSource
	}
	switch c.GPIO.Driver {
	case "periph", "sim":
	default:
		return errBadGPIODriver
	}
	if c.Storage.RegionSize < models.MinRegionSize {
		return fmt.Errorf("storage.region_size must be >= %d, got %d", models.MinRegionSize, c.Storage.RegionSize)
	}
	if c.MQTT.RetryInterval <= 0 {
		return fmt.Errorf("mqtt.retry_interval must be > 0, got %s", c.MQTT.RetryInterval)
	}
	return nil
}

// Watch re-decodes the configuration whenever the file changes and hands
// the result to onChange. Invalid edits are reported through onErr and
// otherwise ignored.
func Watch(v *viper.Viper, onChange func(*Config), onErr func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
