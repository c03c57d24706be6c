// Package config loads runtime settings for the crane rig tools.
//
// Settings come from an optional JSON or YAML file, overridden by
// TECHNOCRANE_* environment variables (TECHNOCRANE_BRIDGE_URL for
// bridge.url).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TECHNOCRANE"

// Defaults for the command tools.
const (
	DefaultConfigName  = "technocrane"
	DefaultMonitorPort = "8090"
	DefaultMonitorURL  = "http://localhost:" + DefaultMonitorPort
)

// Vector is a config-file point or offset.
type Vector struct {
	X float64 `mapstructure:"x" json:"x"`
	Y float64 `mapstructure:"y" json:"y"`
	Z float64 `mapstructure:"z" json:"z"`
}

// BridgeConfig locates the telemetry stream.
type BridgeConfig struct {
	URL               string        `mapstructure:"url"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

// MonitorConfig configures the HTTP monitor.
type MonitorConfig struct {
	Port string `mapstructure:"port"`
}

// RecorderConfig configures take recording.
type RecorderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MotionConfig shapes the scripted orbit used without a telemetry stream.
type MotionConfig struct {
	Radius float64       `mapstructure:"radius"`
	Height float64       `mapstructure:"height"`
	Lap    time.Duration `mapstructure:"lap"`
}

// Config is the full runtime configuration.
type Config struct {
	LogLevel    string  `mapstructure:"log_level"`
	Preset      string  `mapstructure:"preset"`
	PresetsFile string  `mapstructure:"presets_file"`
	Strategy    string  `mapstructure:"strategy"`
	TickRate    float64 `mapstructure:"tick_rate"`

	LiveByDefault                      bool    `mapstructure:"live_by_default"`
	PortID                             int     `mapstructure:"port_id"`
	SpaceScale                         float64 `mapstructure:"space_scale"`
	PacketContainsRawAndCalibratedData bool    `mapstructure:"packet_contains_raw_and_calibrated_data"`
	CameraFrameRate                    string  `mapstructure:"camera_frame_rate"`
	CameraPivotOffset                  Vector  `mapstructure:"camera_pivot_offset"`

	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Motion   MotionConfig   `mapstructure:"motion"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("preset", "TechnoDolly")
	v.SetDefault("presets_file", "")
	v.SetDefault("strategy", "closed-form")
	v.SetDefault("tick_rate", 60.0)

	v.SetDefault("live_by_default", true)
	v.SetDefault("port_id", 0)
	v.SetDefault("space_scale", 1.0)
	v.SetDefault("packet_contains_raw_and_calibrated_data", false)
	v.SetDefault("camera_frame_rate", "pal-25")
	v.SetDefault("camera_pivot_offset.x", -70.0)
	v.SetDefault("camera_pivot_offset.y", 0.0)
	v.SetDefault("camera_pivot_offset.z", 0.0)

	v.SetDefault("bridge.url", "")
	v.SetDefault("bridge.reconnect_interval", "1s")

	v.SetDefault("monitor.port", DefaultMonitorPort)

	v.SetDefault("recorder.enabled", false)
	v.SetDefault("recorder.path", "takes.db")

	v.SetDefault("motion.radius", 400.0)
	v.SetDefault("motion.height", 150.0)
	v.SetDefault("motion.lap", "20s")
}

// Load reads the file at path, or technocrane.{json,yaml} from the working
// directory when path is empty. A missing default file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Validate returns a list of problems, empty when the config is usable.
func (c Config) Validate() []string {
	var errs []string
	if c.TickRate <= 0 {
		errs = append(errs, "tick_rate must be positive")
	}
	if c.SpaceScale <= 0 {
		errs = append(errs, "space_scale must be positive")
	}
	if c.Preset == "" {
		errs = append(errs, "preset is required")
	}
	if c.Recorder.Enabled && c.Recorder.Path == "" {
		errs = append(errs, "recorder.path is required when recording")
	}
	if c.Motion.Lap <= 0 {
		errs = append(errs, "motion.lap must be positive")
	}
	return errs
}

// TickInterval returns the period between rig ticks.
func (c Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.TickRate)
}

// MonitorURL returns the monitor base URL from TECHNOCRANE_MONITOR_URL.
// Falls back to the provided default if not set.
func MonitorURL(defaultURL string) string {
	if url := os.Getenv(EnvPrefix + "_MONITOR_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return defaultURL
}
