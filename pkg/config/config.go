// Package config loads and validates the sftpbridge configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete sftpbridge configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SFTPBRIDGE_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Auth Configuration Pattern:
// The Auth section selects one method via its Method field and carries
// a method-specific map for each supported method; only the section
// matching the selected method is decoded (see factories.go).
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// SSH describes the remote endpoint and how to reach it
	SSH SSHConfig `mapstructure:"ssh"`

	// Client contains bridge-side settings
	Client ClientConfig `mapstructure:"client"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// SSHConfig describes the SSH endpoint and authentication.
type SSHConfig struct {
	// Host is the remote host name or address
	Host string `mapstructure:"host" validate:"required"`

	// Port is the SSH port
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// User is the login user name
	User string `mapstructure:"user" validate:"required"`

	// StrictHostKey enables known_hosts verification
	// Disable only for development setups
	StrictHostKey bool `mapstructure:"strict_host_key"`

	// KnownHostsFile overrides the default ~/.ssh/known_hosts path
	// Only used when StrictHostKey is true
	KnownHostsFile string `mapstructure:"known_hosts_file"`

	// ConnTimeout bounds TCP dial and SSH handshake
	ConnTimeout time.Duration `mapstructure:"conn_timeout" validate:"min=0"`

	// Auth selects and parameterizes the authentication method
	Auth AuthConfig `mapstructure:"auth"`
}

// AuthConfig specifies SSH authentication configuration.
//
// The Method field determines which method-specific section is used.
type AuthConfig struct {
	// Method specifies which authentication method to use
	// Valid values: key, agent, password
	Method string `mapstructure:"method" validate:"required,oneof=key agent password"`

	// Key contains key-file-specific configuration
	// Only used when Method = "key"
	Key map[string]any `mapstructure:"key"`

	// Agent contains ssh-agent-specific configuration
	// Only used when Method = "agent"
	Agent map[string]any `mapstructure:"agent"`

	// Password contains password-specific configuration
	// Only used when Method = "password"
	Password map[string]any `mapstructure:"password"`
}

// ClientConfig contains bridge-side settings.
type ClientConfig struct {
	// CloseTimeout is the maximum time the demo binary waits for the
	// in-flight operation to drain at shutdown
	CloseTimeout time.Duration `mapstructure:"close_timeout" validate:"min=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variables and config file search.
func setupViper(v *viper.Viper, configPath string) {
	// Example: SFTPBRIDGE_SSH_HOST=files.example.com
	v.SetEnvPrefix("SFTPBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(defaultConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
//
// A missing file is only an error when it was requested explicitly;
// the default search location may legitimately be empty because every
// setting can come from the environment.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configPath == "" {
			return nil
		}
		if configPath != "" {
			if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
				return fmt.Errorf("config file not found: %s", configPath)
			}
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// defaultConfigDir returns $XDG_CONFIG_HOME/sftpbridge or the
// equivalent under the home directory.
func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sftpbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "sftpbridge")
}
