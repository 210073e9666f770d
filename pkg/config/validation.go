package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom
// rules.
//
// Struct-tag validation covers the declarative rules; custom rules
// cover cross-field constraints that cannot be expressed in tags.
// Log level normalization is handled in ApplyDefaults, not here.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The selected auth method must have a usable section.
	switch cfg.SSH.Auth.Method {
	case "key":
		if len(cfg.SSH.Auth.Key) == 0 {
			return fmt.Errorf("ssh.auth: method %q requires an auth.key section", cfg.SSH.Auth.Method)
		}
	case "password":
		if len(cfg.SSH.Auth.Password) == 0 {
			return fmt.Errorf("ssh.auth: method %q requires an auth.password section", cfg.SSH.Auth.Method)
		}
	}

	return nil
}

// formatValidationError converts validator errors into readable
// messages naming the offending field path.
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var messages []string
	for _, fieldErr := range validationErrors {
		// Strip the leading "Config." from the namespace.
		field := fieldErr.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}

		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s: required", field))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s: must be one of [%s]", field, fieldErr.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s: failed %s validation", field, fieldErr.Tag()))
		}
	}

	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}
