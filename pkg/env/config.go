// Package env builds the sniffer from its fixed capture parameters.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/robotalks/sniff.go/pkg/bus"
	"github.com/robotalks/sniff.go/pkg/port"
)

// Config provides the capture parameters.
type Config struct {
	// ID identifies the sniffer on mirrors.
	ID string `toml:"id"`
	// BusPort is the serial port attached to the observed bus.
	BusPort string `toml:"bus"`
	BusBaud int    `toml:"bus_baud"`
	// HostPort is the host link, "-" for stdout.
	HostPort string `toml:"host"`
	HostBaud int    `toml:"host_baud"`
	// LED is the kernel LED name, empty for none.
	LED        string `toml:"led"`
	BufferSize int    `toml:"buffer_size"`

	// MQTTBrokerURL enables mirroring frames to MQTT.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `toml:"mqtt"`
	// WebsocketAddr enables streaming frames to websocket clients.
	WebsocketAddr string `toml:"ws"`
}

// Defaults of the capture parameters.
const (
	DefaultBusBaud  = 4800
	DefaultHostBaud = 115200
)

var defaultConfig = Config{
	BusBaud:    DefaultBusBaud,
	HostPort:   port.Stdio,
	HostBaud:   DefaultHostBaud,
	BufferSize: bus.DefaultCapacity,
}

var configFile string

func init() {
	defaultConfig.ID = MachineID()
	applyEnv(&defaultConfig, os.Getenv)
}

func applyEnv(c *Config, getenv func(string) string) {
	setString := func(key string, dst *string) {
		if val := getenv(key); val != "" {
			*dst = val
		}
	}
	setInt := func(key string, dst *int) {
		if val, err := strconv.Atoi(getenv(key)); err == nil {
			*dst = val
		}
	}
	setString("SNIFF_ID", &c.ID)
	setString("SNIFF_BUS", &c.BusPort)
	setInt("SNIFF_BUS_BAUD", &c.BusBaud)
	setString("SNIFF_HOST", &c.HostPort)
	setInt("SNIFF_HOST_BAUD", &c.HostBaud)
	setString("SNIFF_LED", &c.LED)
	setString("SNIFF_MQTT_URL", &c.MQTTBrokerURL)
	setString("SNIFF_WS_ADDR", &c.WebsocketAddr)
	setString("SNIFF_CONFIG", &configFile)
}

// SetupFlags sets command line flags.
func SetupFlags() {
	SetupFlagSet(flag.CommandLine, &defaultConfig)
}

// SetupFlagSet registers flags for c on fs.
func SetupFlagSet(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&configFile, "config", configFile, "TOML config file.")
	fs.StringVar(&c.ID, "id", c.ID, "Sniffer ID used on mirrors.")
	fs.StringVar(&c.BusPort, "bus", c.BusPort, "Serial port of the observed bus.")
	fs.IntVar(&c.BusBaud, "bus-baud", c.BusBaud, "Baud rate of the observed bus.")
	fs.StringVar(&c.HostPort, "host", c.HostPort, "Serial port of the host link, - for stdout.")
	fs.IntVar(&c.HostBaud, "host-baud", c.HostBaud, "Baud rate of the host link.")
	fs.StringVar(&c.LED, "led", c.LED, "LED name under /sys/class/leds, e.g. led0.")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL to mirror frames.")
	fs.StringVar(&c.WebsocketAddr, "ws", c.WebsocketAddr, "Address to stream frames over websocket.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations. The config
// file named by -config is applied underneath explicitly set flags.
func NewConfig() *Config {
	conf := defaultConfig
	if configFile != "" {
		set := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if err := conf.ApplyFile(configFile, set); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	return &conf
}

// LoadFile reads a TOML config file. Fields absent from the file are zero.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %v", err)
	}
	var fc Config
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %v", path, err)
	}
	return &fc, nil
}

// ApplyFile loads a TOML file into c, skipping fields whose flag is in skip.
func (c *Config) ApplyFile(path string, skip map[string]bool) error {
	fc, err := LoadFile(path)
	if err != nil {
		return err
	}
	c.merge(fc, skip)
	return nil
}

func (c *Config) merge(fc *Config, skip map[string]bool) {
	str := func(name, val string, dst *string) {
		if val != "" && !skip[name] {
			*dst = val
		}
	}
	num := func(name string, val int, dst *int) {
		if val != 0 && !skip[name] {
			*dst = val
		}
	}
	str("id", fc.ID, &c.ID)
	str("bus", fc.BusPort, &c.BusPort)
	num("bus-baud", fc.BusBaud, &c.BusBaud)
	str("host", fc.HostPort, &c.HostPort)
	num("host-baud", fc.HostBaud, &c.HostBaud)
	str("led", fc.LED, &c.LED)
	num("buffer-size", fc.BufferSize, &c.BufferSize)
	str("mqtt", fc.MQTTBrokerURL, &c.MQTTBrokerURL)
	str("ws", fc.WebsocketAddr, &c.WebsocketAddr)
}

// Validate checks the parameters.
func (c *Config) Validate() error {
	if c.BusPort == "" {
		return fmt.Errorf("bus port must be specified")
	}
	if c.HostPort == "" {
		return fmt.Errorf("host port must be specified")
	}
	if c.BusBaud <= 0 || c.HostBaud <= 0 {
		return fmt.Errorf("invalid baud rate")
	}
	if c.MQTTBrokerURL != "" && c.ID == "" {
		return fmt.Errorf("id is required for MQTT")
	}
	return nil
}
