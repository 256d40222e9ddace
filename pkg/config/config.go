// Package config handles configuration loading and management
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigName is the base name viper searches for in the project root
const ConfigName = "slnstrip.config"

// EnvPrefix prefixes every environment override, e.g. SLNSTRIP_WAIT_MAXRETRIES
const EnvPrefix = "SLNSTRIP"

// Config is the complete slnstrip configuration
type Config struct {
	ProjectFile       string             `json:"projectFile" yaml:"projectFile" mapstructure:"projectFile"`
	OutputDir         string             `json:"outputDir" yaml:"outputDir" mapstructure:"outputDir"`
	SolutionExtension string             `json:"solutionExtension" yaml:"solutionExtension" mapstructure:"solutionExtension"`
	Marker            string             `json:"marker" yaml:"marker" mapstructure:"marker"`
	BlockLength       int                `json:"blockLength" yaml:"blockLength" mapstructure:"blockLength"`
	LockFile          string             `json:"lockFile" yaml:"lockFile" mapstructure:"lockFile"`
	LogFile           string             `json:"logFile,omitempty" yaml:"logFile,omitempty" mapstructure:"logFile"`
	LogLevel          string             `json:"logLevel" yaml:"logLevel" mapstructure:"logLevel"`
	Wait              WaitConfig         `json:"wait" yaml:"wait" mapstructure:"wait"`
	Watch             WatchConfig        `json:"watch" yaml:"watch" mapstructure:"watch"`
	Notifications     NotificationConfig `json:"notifications" yaml:"notifications" mapstructure:"notifications"`
	Revision          RevisionConfig     `json:"revision" yaml:"revision" mapstructure:"revision"`
}

// WaitConfig controls the cleaner's bounded wait for the solution file.
// Delays are in milliseconds.
type WaitConfig struct {
	InitialDelay int `json:"initialDelay" yaml:"initialDelay" mapstructure:"initialDelay"`
	RetryDelay   int `json:"retryDelay" yaml:"retryDelay" mapstructure:"retryDelay"`
	MaxRetries   int `json:"maxRetries" yaml:"maxRetries" mapstructure:"maxRetries"`
}

// WatchConfig controls watch mode
type WatchConfig struct {
	SettlingDelay int `json:"settlingDelay" yaml:"settlingDelay" mapstructure:"settlingDelay"`
}

// NotificationConfig controls desktop notifications
type NotificationConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// RevisionConfig controls the revision header writer
type RevisionConfig struct {
	HeaderPath string `json:"headerPath" yaml:"headerPath" mapstructure:"headerPath"`
	Length     int    `json:"length" yaml:"length" mapstructure:"length"`
}

// InitialDelayDuration returns the initial delay as a time.Duration
func (w WaitConfig) InitialDelayDuration() time.Duration {
	return time.Duration(w.InitialDelay) * time.Millisecond
}

// RetryDelayDuration returns the retry delay as a time.Duration
func (w WaitConfig) RetryDelayDuration() time.Duration {
	return time.Duration(w.RetryDelay) * time.Millisecond
}

// Window returns the worst-case time the cleaner waits before giving up
func (w WaitConfig) Window() time.Duration {
	return w.InitialDelayDuration() + time.Duration(w.MaxRetries)*w.RetryDelayDuration()
}

// SettlingDuration returns the watch settling delay as a time.Duration
func (w WatchConfig) SettlingDuration() time.Duration {
	return time.Duration(w.SettlingDelay) * time.Millisecond
}

// Default returns the configuration matching the tool's historical behavior
func Default() *Config {
	return &Config{
		ProjectFile:       "CMakeLists.txt",
		OutputDir:         "out",
		SolutionExtension: ".sln",
		Marker:            "ALL_BUILD",
		BlockLength:       5,
		LockFile:          ".cmake_config_fix.lock",
		LogLevel:          "info",
		Wait: WaitConfig{
			InitialDelay: 5000,
			RetryDelay:   5000,
			MaxRetries:   5,
		},
		Watch: WatchConfig{
			SettlingDelay: 500,
		},
		Notifications: NotificationConfig{
			Enabled: true,
		},
		Revision: RevisionConfig{
			HeaderPath: filepath.Join("src", "gitinfo.h"),
			Length:     10,
		},
	}
}

// SetDefaults registers every default with v so that environment variables
// can override keys that no config file mentions.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("projectFile", d.ProjectFile)
	v.SetDefault("outputDir", d.OutputDir)
	v.SetDefault("solutionExtension", d.SolutionExtension)
	v.SetDefault("marker", d.Marker)
	v.SetDefault("blockLength", d.BlockLength)
	v.SetDefault("lockFile", d.LockFile)
	v.SetDefault("logFile", d.LogFile)
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("wait.initialDelay", d.Wait.InitialDelay)
	v.SetDefault("wait.retryDelay", d.Wait.RetryDelay)
	v.SetDefault("wait.maxRetries", d.Wait.MaxRetries)
	v.SetDefault("watch.settlingDelay", d.Watch.SettlingDelay)
	v.SetDefault("notifications.enabled", d.Notifications.Enabled)
	v.SetDefault("revision.headerPath", d.Revision.HeaderPath)
	v.SetDefault("revision.length", d.Revision.Length)
}

// Load reads configuration into v from configFile, or from slnstrip.config.*
// in root when configFile is empty, applies SLNSTRIP_* environment overrides
// and validates the result. A missing config file is not an error.
func Load(v *viper.Viper, root string, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(root)
		v.SetConfigName(ConfigName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates a configuration
func Validate(cfg *Config) error {
	if cfg.ProjectFile == "" {
		return fmt.Errorf("projectFile is required")
	}
	if cfg.SolutionExtension == "" {
		return fmt.Errorf("solutionExtension is required")
	}
	if cfg.Marker == "" {
		return fmt.Errorf("marker must not be empty")
	}
	if cfg.BlockLength < 1 {
		return fmt.Errorf("blockLength must be at least 1, got %d", cfg.BlockLength)
	}
	if cfg.LockFile == "" {
		return fmt.Errorf("lockFile is required")
	}
	if cfg.Wait.InitialDelay < 0 || cfg.Wait.RetryDelay < 0 {
		return fmt.Errorf("wait delays must not be negative")
	}
	if cfg.Wait.MaxRetries < 0 {
		return fmt.Errorf("wait.maxRetries must not be negative, got %d", cfg.Wait.MaxRetries)
	}
	if cfg.Watch.SettlingDelay < 0 {
		return fmt.Errorf("watch.settlingDelay must not be negative")
	}
	if cfg.Revision.Length < 1 {
		return fmt.Errorf("revision.length must be at least 1, got %d", cfg.Revision.Length)
	}
	return nil
}

// Save writes cfg as YAML to path. An existing file is never overwritten.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
