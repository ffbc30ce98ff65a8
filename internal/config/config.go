package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/audiolibrelab/loopcap/internal/audio"
	"github.com/audiolibrelab/loopcap/internal/flagstore"
)

const (
	// AppName names the flag directory and the default config file.
	AppName = "loopcap"

	envPrefix = "LOOPCAP"
)

type Config struct {
	Audio      AudioConfig      `mapstructure:"audio" yaml:"audio"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Continuous ContinuousConfig `mapstructure:"continuous" yaml:"continuous"`
	Flag       FlagConfig       `mapstructure:"flag" yaml:"flag"`
	Helpers    HelpersConfig    `mapstructure:"helpers" yaml:"helpers"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

type AudioConfig struct {
	Backend         string        `mapstructure:"backend" yaml:"backend"` // "miniaudio", "auto"
	SampleRate      int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels        int           `mapstructure:"channels" yaml:"channels"`
	BitsPerSample   int           `mapstructure:"bits_per_sample" yaml:"bits_per_sample"`
	SampleKind      string        `mapstructure:"sample_kind" yaml:"sample_kind"` // "float", "int"
	SessionDuration time.Duration `mapstructure:"session_duration" yaml:"session_duration"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

type OutputConfig struct {
	// Directory receives recordings. Empty means the working directory.
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type ContinuousConfig struct {
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
}

type FlagConfig struct {
	AppName string `mapstructure:"app_name" yaml:"app_name"`
	Path    string `mapstructure:"path" yaml:"path"` // overrides the per-user cache location
}

type HelperConfig struct {
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
	Command     string   `mapstructure:"command" yaml:"command"`
	Args        []string `mapstructure:"args" yaml:"args"`
	Visible     bool     `mapstructure:"visible" yaml:"visible"`
	Required    bool     `mapstructure:"required" yaml:"required"`
	ProcessName string   `mapstructure:"process_name" yaml:"process_name"` // used for by-name cleanup
}

type HelpersConfig struct {
	// Release marks a packaged build, where a required helper that fails to
	// start is reported as an error rather than a warning.
	Release     bool         `mapstructure:"release" yaml:"release"`
	Backend     HelperConfig `mapstructure:"backend" yaml:"backend"`
	FileMonitor HelperConfig `mapstructure:"file_monitor" yaml:"file_monitor"`
	MonitorGUI  HelperConfig `mapstructure:"monitor_gui" yaml:"monitor_gui"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

type LogConfig struct {
	File      string `mapstructure:"file" yaml:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		Backend:         "auto",
		SampleRate:      44100,
		Channels:        2,
		BitsPerSample:   32,
		SampleKind:      "float",
		SessionDuration: audio.DefaultSessionDuration,
		PollInterval:    audio.DefaultPollInterval,
	},
	Flag: FlagConfig{
		AppName: AppName,
	},
	Helpers: HelpersConfig{
		Backend: HelperConfig{
			Enabled:     true,
			Command:     "loopcap-backend",
			Required:    true,
			ProcessName: "loopcap-backend",
		},
		FileMonitor: HelperConfig{
			Enabled:     true,
			Command:     "loopcap-transcriber",
			Visible:     true,
			ProcessName: "loopcap-transcriber",
		},
		MonitorGUI: HelperConfig{
			Enabled:     true,
			Command:     "loopcap-monitor-gui",
			Visible:     true,
			ProcessName: "loopcap-monitor-gui",
		},
	},
	Server: ServerConfig{
		Port: 8090,
	},
	Log: LogConfig{
		MaxSizeMB: 10,
	},
}

// Default returns a copy of the built-in configuration
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// DefaultConfigFile is $HOME/.config/loopcap.yaml
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppName+".yaml")
}

// Load reads configFile over the built-in defaults and LOOPCAP_* environment
// variables. An empty configFile means the default location, which may be
// absent; an explicitly named file must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := configFile != ""
	if !explicit {
		configFile = DefaultConfigFile()
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	cfg.Flag.Path = expandPath(cfg.Flag.Path)
	cfg.Log.File = expandPath(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig

	v.SetDefault("audio.backend", d.Audio.Backend)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.bits_per_sample", d.Audio.BitsPerSample)
	v.SetDefault("audio.sample_kind", d.Audio.SampleKind)
	v.SetDefault("audio.session_duration", d.Audio.SessionDuration)
	v.SetDefault("audio.poll_interval", d.Audio.PollInterval)

	v.SetDefault("output.directory", d.Output.Directory)
	v.SetDefault("continuous.max_consecutive_failures", d.Continuous.MaxConsecutiveFailures)
	v.SetDefault("flag.app_name", d.Flag.AppName)
	v.SetDefault("flag.path", d.Flag.Path)

	v.SetDefault("helpers.release", d.Helpers.Release)
	for key, h := range map[string]HelperConfig{
		"backend":      d.Helpers.Backend,
		"file_monitor": d.Helpers.FileMonitor,
		"monitor_gui":  d.Helpers.MonitorGUI,
	} {
		prefix := "helpers." + key + "."
		v.SetDefault(prefix+"enabled", h.Enabled)
		v.SetDefault(prefix+"command", h.Command)
		v.SetDefault(prefix+"args", h.Args)
		v.SetDefault(prefix+"visible", h.Visible)
		v.SetDefault(prefix+"required", h.Required)
		v.SetDefault(prefix+"process_name", h.ProcessName)
	}

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := audio.ParseBackendType(c.Audio.Backend); err != nil {
		return fmt.Errorf("audio.backend: %w", err)
	}
	if _, err := c.Format(); err != nil {
		return err
	}
	if c.Audio.SessionDuration <= 0 {
		return fmt.Errorf("audio.session_duration must be > 0, got: %s", c.Audio.SessionDuration)
	}
	if c.Audio.PollInterval <= 0 {
		return fmt.Errorf("audio.poll_interval must be > 0, got: %s", c.Audio.PollInterval)
	}
	if c.Audio.PollInterval > c.Audio.SessionDuration {
		return fmt.Errorf("audio.poll_interval (%s) must not exceed audio.session_duration (%s)",
			c.Audio.PollInterval, c.Audio.SessionDuration)
	}

	if c.Continuous.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("continuous.max_consecutive_failures must be >= 0, got: %d", c.Continuous.MaxConsecutiveFailures)
	}

	if c.Flag.AppName == "" && c.Flag.Path == "" {
		return fmt.Errorf("flag.app_name is required when flag.path is not set")
	}

	for name, h := range map[string]HelperConfig{
		"backend":      c.Helpers.Backend,
		"file_monitor": c.Helpers.FileMonitor,
		"monitor_gui":  c.Helpers.MonitorGUI,
	} {
		if h.Enabled && strings.TrimSpace(h.Command) == "" {
			return fmt.Errorf("helpers.%s.command is required when the helper is enabled", name)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("log.max_size_mb must be >= 0, got: %d", c.Log.MaxSizeMB)
	}
	return nil
}

// Format builds the capture format from the audio section.
func (c *Config) Format() (audio.AudioFormat, error) {
	kind, err := audio.ParseSampleKind(c.Audio.SampleKind)
	if err != nil {
		return audio.AudioFormat{}, fmt.Errorf("audio.sample_kind: %w", err)
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 || c.Audio.Channels > 0xffff || c.Audio.BitsPerSample <= 0 {
		return audio.AudioFormat{}, fmt.Errorf("audio: sample_rate, channels and bits_per_sample must be > 0")
	}

	format := audio.AudioFormat{
		SampleRate:    uint32(c.Audio.SampleRate),
		Channels:      uint16(c.Audio.Channels),
		BitsPerSample: uint16(c.Audio.BitsPerSample),
		SampleKind:    kind,
	}
	if err := format.Validate(); err != nil {
		return audio.AudioFormat{}, fmt.Errorf("audio: %w", err)
	}
	return format, nil
}

// RecorderConfig is the per-session policy for audio.NewRecorder.
func (c *Config) RecorderConfig() (audio.RecorderConfig, error) {
	format, err := c.Format()
	if err != nil {
		return audio.RecorderConfig{}, err
	}
	return audio.RecorderConfig{
		Format:          format,
		SessionDuration: c.Audio.SessionDuration,
		PollInterval:    c.Audio.PollInterval,
		OutputDir:       c.Output.Directory,
	}, nil
}

// FlagPath is flag.path when set, the per-user default otherwise.
func (c *Config) FlagPath() string {
	if c.Flag.Path != "" {
		return c.Flag.Path
	}
	return flagstore.DefaultPath(c.Flag.AppName)
}

// HelperProcessNames lists the executable names the shutdown path kills by
// name.
func (c *Config) HelperProcessNames() []string {
	var names []string
	for _, h := range []HelperConfig{c.Helpers.Backend, c.Helpers.FileMonitor, c.Helpers.MonitorGUI} {
		name := h.ProcessName
		if name == "" && h.Command != "" {
			name = filepath.Base(h.Command)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
