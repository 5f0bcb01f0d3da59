package main

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"gregoryjjb/gpiocount/controller"
	"gregoryjjb/gpiocount/gpio"
)

var ErrValidation = errors.New("validation error")

// Flags are the command line settings that override the config file.
type Flags struct {
	ConfigPath string
	// EnableGPIO is nil unless -enable-gpio was given.
	EnableGPIO *bool
}

type MQTTConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	ClientID string `toml:"client_id" yaml:"client_id"`
	Topic    string `toml:"topic" yaml:"topic"`
}

type tomlConfig struct {
	EnableGPIO  bool       `toml:"enable_gpio" yaml:"enable_gpio"`
	Backend     string     `toml:"backend" yaml:"backend"`
	Chip        string     `toml:"chip" yaml:"chip"`
	LEDs        string     `toml:"leds" yaml:"leds"`
	Button      *uint      `toml:"button" yaml:"button"`
	Host        string     `toml:"host" yaml:"host"`
	Port        int        `toml:"port" yaml:"port"`
	LogLevel    string     `toml:"log_level" yaml:"log_level"`
	HistorySize int        `toml:"history_size" yaml:"history_size"`
	MQTT        MQTTConfig `toml:"mqtt" yaml:"mqtt"`
}

func defaultTomlConfig() tomlConfig {
	return tomlConfig{
		EnableGPIO:  false,
		Backend:     gpio.BackendRpio,
		Chip:        "gpiochip0",
		Host:        "127.0.0.1",
		Port:        1226,
		LogLevel:    "info",
		HistorySize: controller.DefaultHistorySize,
		MQTT: MQTTConfig{
			Port:     1883,
			ClientID: "gpiocount",
			Topic:    "gpiocount",
		},
	}
}

type Config struct {
	path string
	toml tomlConfig
}

// defaultConfigPaths are tried in order when no -config flag is given.
func defaultConfigPaths(fs ConfigFS) []string {
	paths := []string{"gpiocount.toml"}
	if home, err := fs.HomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gpiocount.toml"))
	}
	return append(paths, "/etc/gpiocount.toml")
}

// NewConfig layers defaults, the config file, the environment and flags.
func NewConfig(fs ConfigFS, flags Flags, getenv func(string) string) (*Config, error) {
	c := &Config{
		toml: defaultTomlConfig(),
	}

	if flags.ConfigPath != "" {
		c.path = flags.ConfigPath
	} else {
		for _, p := range defaultConfigPaths(fs) {
			if ok, _ := afero.Exists(fs, p); ok {
				c.path = p
				break
			}
		}
	}

	if c.path != "" {
		data, err := afero.ReadFile(fs, c.path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeConfig(c.path, data, &c.toml); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", c.path, err)
		}
	}

	if host := getenv("HOST"); host != "" {
		c.toml.Host = host
	}
	if port := getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("%w: PORT %q is not a number", ErrValidation, port)
		}
		c.toml.Port = p
	}
	if enable := getenv("GPIOCOUNT_ENABLE_GPIO"); enable != "" {
		b, err := strconv.ParseBool(enable)
		if err != nil {
			return nil, fmt.Errorf("%w: GPIOCOUNT_ENABLE_GPIO %q", ErrValidation, enable)
		}
		c.toml.EnableGPIO = b
	}

	if flags.EnableGPIO != nil {
		c.toml.EnableGPIO = *flags.EnableGPIO
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeConfig(path string, data []byte, into *tomlConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.UnmarshalStrict(data, into)
	default:
		d := toml.NewDecoder(bytes.NewReader(data))
		d.DisallowUnknownFields()
		return d.Decode(into)
	}
}

func (c *Config) validate() error {
	switch c.toml.Backend {
	case gpio.BackendRpio, gpio.BackendGpiocdev:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrValidation, c.toml.Backend)
	}
	if c.toml.Port <= 0 || c.toml.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrValidation, c.toml.Port)
	}
	if c.toml.HistorySize <= 0 {
		return fmt.Errorf("%w: history_size must be positive", ErrValidation)
	}
	if _, err := zerolog.ParseLevel(c.toml.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %s", ErrValidation, err)
	}
	return nil
}

// Path is the config file that was loaded, empty if none.
func (c *Config) Path() string {
	return c.path
}

func (c *Config) Address() string {
	return net.JoinHostPort(c.toml.Host, strconv.Itoa(c.toml.Port))
}

func (c *Config) GPIOOptions() gpio.Options {
	return gpio.Options{
		Enabled: c.toml.EnableGPIO,
		Backend: c.toml.Backend,
		Chip:    c.toml.Chip,
	}
}

// LEDs is the descriptor to assign at startup.
func (c *Config) LEDs() (string, bool) {
	return c.toml.LEDs, strings.TrimSpace(c.toml.LEDs) != ""
}

// Button is the pin to assign at startup.
func (c *Config) Button() (uint, bool) {
	if c.toml.Button == nil {
		return 0, false
	}
	return *c.toml.Button, true
}

func (c *Config) LogLevel() zerolog.Level {
	l, _ := zerolog.ParseLevel(c.toml.LogLevel)
	return l
}

func (c *Config) HistorySize() int {
	return c.toml.HistorySize
}

func (c *Config) MQTT() MQTTConfig {
	return c.toml.MQTT
}
