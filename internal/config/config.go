// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/kirsle/configdir"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Client configuration (the tablet side)
	Client ClientConfig `mapstructure:"client"`

	// Receiver configuration (the host side)
	Receiver ReceiverConfig `mapstructure:"receiver"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// ClientConfig contains client-specific settings
type ClientConfig struct {
	Host           string `mapstructure:"host"`
	Port           uint16 `mapstructure:"port"`
	Source         string `mapstructure:"source"`          // "demo", "script" or "stdin"
	ScriptPath     string `mapstructure:"script_path"`     // Used by the script source
	MetricsAddress string `mapstructure:"metrics_address"` // Empty disables the HTTP endpoint
}

// ReceiverConfig contains receiver-specific settings
type ReceiverConfig struct {
	BindAddress  string `mapstructure:"bind_address"`
	Port         uint16 `mapstructure:"port"`
	Inject       bool   `mapstructure:"inject"` // Drive a uinput virtual pointer
	ScreenWidth  int    `mapstructure:"screen_width"`
	ScreenHeight int    `mapstructure:"screen_height"`
	HTTPAddress  string `mapstructure:"http_address"` // Empty disables metrics and the event monitor
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	FileLogging bool   `mapstructure:"file_logging"` // Log to a file while the TUI runs
	LogLevel    string `mapstructure:"log_level"`    // Override LOG_LEVEL env var
}

// Destination is the configured target of the event stream.
type Destination struct {
	Host string
	Port uint16
}

func (d Destination) String() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

const (
	configName = "waytablet"
	configType = "toml"

	// DefaultPort is the default UDP port of the receiver.
	DefaultPort uint16 = 40118
)

// Keys that trigger a reconfigure when they change.
const (
	KeyClientHost = "client.host"
	KeyClientPort = "client.port"
)

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Client: ClientConfig{
			Host:           "",
			Port:           DefaultPort,
			Source:         "demo",
			ScriptPath:     "",
			MetricsAddress: "",
		},
		Receiver: ReceiverConfig{
			BindAddress:  "0.0.0.0",
			Port:         DefaultPort,
			Inject:       false,
			ScreenWidth:  1920,
			ScreenHeight: 1080,
			HTTPAddress:  "",
		},
		Logging: LoggingConfig{
			FileLogging: true,
			LogLevel:    "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance, replaced as a whole on every load
	cfgMu sync.RWMutex
	cfg   *Config

	// serializes reads of the config file
	reloadMu sync.Mutex

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName(configName)
	viper.SetConfigType(configType)

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath(configdir.LocalConfig(configName))
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	setDefaults()

	return Reload()
}

// Reload re-reads the config file and replaces the current configuration.
// A missing file keeps the defaults; a file that fails to parse leaves the
// current configuration untouched.
func Reload() error {
	reloadMu.Lock()
	defer reloadMu.Unlock()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load()
}

// load unmarshals viper's current state into the global config.
func load() error {
	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	Set(c)
	return nil
}

func setDefaults() {
	viper.SetDefault(KeyClientHost, DefaultConfig.Client.Host)
	viper.SetDefault(KeyClientPort, DefaultConfig.Client.Port)
	viper.SetDefault("client.source", DefaultConfig.Client.Source)
	viper.SetDefault("client.script_path", DefaultConfig.Client.ScriptPath)
	viper.SetDefault("client.metrics_address", DefaultConfig.Client.MetricsAddress)

	viper.SetDefault("receiver.bind_address", DefaultConfig.Receiver.BindAddress)
	viper.SetDefault("receiver.port", DefaultConfig.Receiver.Port)
	viper.SetDefault("receiver.inject", DefaultConfig.Receiver.Inject)
	viper.SetDefault("receiver.screen_width", DefaultConfig.Receiver.ScreenWidth)
	viper.SetDefault("receiver.screen_height", DefaultConfig.Receiver.ScreenHeight)
	viper.SetDefault("receiver.http_address", DefaultConfig.Receiver.HTTPAddress)

	viper.SetDefault("logging.file_logging", DefaultConfig.Logging.FileLogging)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)
}

// Get returns a copy of the current configuration
func Get() *Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()

	if cfg == nil {
		// Return defaults if not initialized
		d := DefaultConfig
		return &d
	}
	c := *cfg
	return &c
}

// Set replaces the current configuration. Nil restores the defaults.
func Set(c *Config) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	cfg = c
}

// CurrentDestination returns the configured client destination.
func CurrentDestination() Destination {
	c := Get()
	port := c.Client.Port
	if port == 0 {
		port = DefaultPort
	}
	return Destination{Host: c.Client.Host, Port: port}
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	return filepath.Join(configdir.LocalConfig(configName), configName+"."+configType)
}

// UpdateClient updates client configuration
func UpdateClient(clientCfg ClientConfig) error {
	viper.Set(KeyClientHost, clientCfg.Host)
	viper.Set(KeyClientPort, clientCfg.Port)
	viper.Set("client.source", clientCfg.Source)
	viper.Set("client.script_path", clientCfg.ScriptPath)
	viper.Set("client.metrics_address", clientCfg.MetricsAddress)

	c := Get()
	c.Client = clientCfg
	Set(c)
	return Save()
}

// SetDestination stores a new client destination and saves it.
func SetDestination(host string, port uint16) error {
	clientCfg := Get().Client
	clientCfg.Host = host
	clientCfg.Port = port
	return UpdateClient(clientCfg)
}

type valueKind int

const (
	kindString valueKind = iota
	kindPort
	kindInt
	kindBool
)

// settable lists the keys `config set` accepts
var settable = map[string]valueKind{
	KeyClientHost:            kindString,
	KeyClientPort:            kindPort,
	"client.source":          kindString,
	"client.script_path":     kindString,
	"client.metrics_address": kindString,
	"receiver.bind_address":  kindString,
	"receiver.port":          kindPort,
	"receiver.inject":        kindBool,
	"receiver.screen_width":  kindInt,
	"receiver.screen_height": kindInt,
	"receiver.http_address":  kindString,
	"logging.file_logging":   kindBool,
	"logging.log_level":      kindString,
}

// Keys returns every key SetValue accepts, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settable))
	for k := range settable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetValue parses value for key, stores it and saves the config file.
func SetValue(key, value string) error {
	kind, ok := settable[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}

	var parsed any
	switch kind {
	case kindString:
		parsed = value
	case kindPort:
		p, err := strconv.ParseUint(value, 10, 16)
		if err != nil || p == 0 {
			return fmt.Errorf("invalid port %q for %s", value, key)
		}
		parsed = uint16(p)
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid positive integer %q for %s", value, key)
		}
		parsed = n
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q for %s", value, key)
		}
		parsed = b
	}

	viper.Set(key, parsed)
	if err := load(); err != nil {
		return err
	}
	return Save()
}
