package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/sftpbridge/pkg/transport"
)

// BuildTransportConfig converts the loaded configuration into the
// transport's dial configuration, assembling authentication methods
// and the host-key verifier.
//
// This is the factory boundary: the method-specific auth maps are
// decoded here and nowhere else, so adding an auth method touches only
// this file and the transport.
func BuildTransportConfig(cfg *Config) (*transport.Config, error) {
	authOpts, err := buildAuthOptions(&cfg.SSH.Auth)
	if err != nil {
		return nil, err
	}

	methods, err := transport.BuildAuthMethods(authOpts)
	if err != nil {
		return nil, fmt.Errorf("ssh auth: %w", err)
	}

	hostKey, err := transport.HostKeyCallback(cfg.SSH.StrictHostKey, cfg.SSH.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("host key verification: %w", err)
	}

	return &transport.Config{
		Host:            cfg.SSH.Host,
		Port:            cfg.SSH.Port,
		User:            cfg.SSH.User,
		Auth:            methods,
		HostKeyCallback: hostKey,
		ConnTimeout:     cfg.SSH.ConnTimeout,
	}, nil
}

// buildAuthOptions decodes the method-specific configuration section
// selected by Method.
func buildAuthOptions(cfg *AuthConfig) (*transport.AuthOptions, error) {
	switch cfg.Method {
	case "key":
		return buildKeyAuthOptions(cfg.Key)
	case "agent":
		return &transport.AuthOptions{UseAgent: true}, nil
	case "password":
		return buildPasswordAuthOptions(cfg.Password)
	default:
		return nil, fmt.Errorf("unknown auth method: %q", cfg.Method)
	}
}

// buildKeyAuthOptions decodes key-file auth configuration.
func buildKeyAuthOptions(options map[string]any) (*transport.AuthOptions, error) {
	type KeyAuthConfig struct {
		Path       string `mapstructure:"path"`
		Passphrase string `mapstructure:"passphrase"`
	}

	var keyCfg KeyAuthConfig
	if err := mapstructure.Decode(options, &keyCfg); err != nil {
		return nil, fmt.Errorf("failed to decode key auth config: %w", err)
	}

	if keyCfg.Path == "" {
		return nil, fmt.Errorf("key auth: path is required")
	}

	return &transport.AuthOptions{
		KeyPath:       keyCfg.Path,
		KeyPassphrase: keyCfg.Passphrase,
	}, nil
}

// buildPasswordAuthOptions decodes password auth configuration.
func buildPasswordAuthOptions(options map[string]any) (*transport.AuthOptions, error) {
	type PasswordAuthConfig struct {
		Secret string `mapstructure:"secret"`
		Prompt bool   `mapstructure:"prompt"`
	}

	var passCfg PasswordAuthConfig
	if err := mapstructure.Decode(options, &passCfg); err != nil {
		return nil, fmt.Errorf("failed to decode password auth config: %w", err)
	}

	if passCfg.Secret == "" && !passCfg.Prompt {
		return nil, fmt.Errorf("password auth: secret or prompt is required")
	}

	return &transport.AuthOptions{
		Password:       passCfg.Secret,
		PromptPassword: passCfg.Prompt,
	}, nil
}
