// Package config loads settings from configs/config.yml, ROASTER_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "ROASTER"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Auth      AuthConfig      `mapstructure:"auth"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Roaster   RoasterConfig   `mapstructure:"roaster"`
	Roast     RoastConfig     `mapstructure:"roast"`
	Export    ExportConfig    `mapstructure:"export"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// MQTTConfig points at the relay broker. Enabled=false keeps telemetry on
// the console and in SQLite only.
type MQTTConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Broker    string        `mapstructure:"broker"`
	ClientID  string        `mapstructure:"client_id"`
	Topic     string        `mapstructure:"topic"`
	Timeout   time.Duration `mapstructure:"timeout"`
	QueueSize int           `mapstructure:"queue_size"`
	// Buffer is how many relay messages the dashboard keeps for polling.
	Buffer int `mapstructure:"buffer"`
}

// RoasterConfig is the Modbus/TCP endpoint of the roaster controller.
type RoasterConfig struct {
	Address string        `mapstructure:"address"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RoastConfig struct {
	Name          string  `mapstructure:"name"`
	Minutes       float64 `mapstructure:"minutes"`
	Setup         string  `mapstructure:"setup"`
	Automatic     bool    `mapstructure:"automatic"`
	Control       string  `mapstructure:"control"`
	FinalBeanTemp int     `mapstructure:"final_bean_temp"`
	// StartMixerRemaining starts mixer and cooler this many degrees before
	// the final bean temperature.
	StartMixerRemaining int `mapstructure:"start_mixer_remaining"`
	// Interval is the spacing, in seconds, of the setup rows that are kept.
	Interval int `mapstructure:"interval"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type SimulatorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BeanTemp float64       `mapstructure:"bean_temp"`
	FireTemp float64       `mapstructure:"fire_temp"`
	Step     time.Duration `mapstructure:"step"`
}

// Duration is the roast length.
func (r RoastConfig) Duration() time.Duration {
	return time.Duration(r.Minutes * float64(time.Minute))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", "data/roaster.db")
	v.SetDefault("http.port", "8080")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "carmomaq10")
	v.SetDefault("mqtt.topic", "carmomaq10")
	v.SetDefault("mqtt.timeout", 5*time.Second)
	v.SetDefault("mqtt.queue_size", 256)
	v.SetDefault("mqtt.buffer", 1000)
	v.SetDefault("roaster.address", "192.168.0.1:502")
	v.SetDefault("roaster.timeout", 3*time.Second)
	v.SetDefault("roast.control", "fire-temperature")
	v.SetDefault("roast.start_mixer_remaining", 5)
	v.SetDefault("roast.interval", 1)
	v.SetDefault("export.dir", "data")
	v.SetDefault("simulator.bean_temp", 25.0)
	v.SetDefault("simulator.fire_temp", 25.0)
	v.SetDefault("simulator.step", 50*time.Millisecond)
}

// RoastFlags registers the roast command-line flags on fs.
func RoastFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to the config file")
	fs.Bool("auto", false, "control the roast from the setup file")
	fs.Bool("fake", false, "run against the built-in roaster simulator")
	fs.Bool("mqtt", false, "publish telemetry to the MQTT relay")
	fs.String("control-type", "", "bean-temperature, fire-temperature or servo-position")
	fs.Int("last-bean-temperature", 0, "discharge bean temperature (default: from the setup file)")
	fs.String("address", "", "roaster Modbus/TCP address host:port")
	fs.String("log-level", "", "debug, info, warn or error")
}

// MonitorFlags registers the dashboard command-line flags on fs.
func MonitorFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to the config file")
	fs.String("port", "", "HTTP listen port")
	fs.String("broker", "", "MQTT broker URL")
	fs.String("log-level", "", "debug, info, warn or error")
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"auto":                  "roast.automatic",
	"fake":                  "simulator.enabled",
	"mqtt":                  "mqtt.enabled",
	"control-type":          "roast.control",
	"last-bean-temperature": "roast.final_bean_temp",
	"address":               "roaster.address",
	"log-level":             "log.level",
	"port":                  "http.port",
	"broker":                "mqtt.broker",
}

// Load reads the configuration. Only flags the user actually set override
// file and environment values.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	if err := readFile(v, path); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func readFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	v.AddConfigPath("configs") // configs/config.yml
	v.AddConfigPath(".")
	v.SetConfigName("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	if err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	return nil
}

// ErrUsage reports malformed positional arguments.
var ErrUsage = errors.New("usage: roaster [flags] <numero_torra> <minutos_totais> <setup>")

// ApplyRoastArgs takes the roast name, its length in minutes and the setup
// file from the positional arguments.
func (c *Config) ApplyRoastArgs(args []string) error {
	if len(args) != 3 {
		return ErrUsage
	}
	// the name ends up in the export file name
	name := strings.TrimSpace(args[0])
	if name == "" || strings.ContainsAny(name, `/\`) || strings.ContainsFunc(name, unicode.IsSpace) {
		return fmt.Errorf("%w: roast number must not contain spaces or path separators, got %q", ErrUsage, args[0])
	}
	minutes, err := strconv.ParseFloat(args[1], 64)
	if err != nil || math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes <= 0 {
		return fmt.Errorf("%w: invalid total minutes %q", ErrUsage, args[1])
	}
	c.Roast.Name = name
	c.Roast.Minutes = minutes
	c.Roast.Setup = args[2]
	return nil
}
