package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/internal/logging"
	"github.com/spf13/viper"
)

// Supported router adapters.
const (
	RouterMux = "mux"
	RouterChi = "chi"
)

// Validate checks the configuration and returns the first problem as a
// config error.
func (c *Config) Validate() error {
	if c.Controllers.Path == "" {
		return fieldError("controllers.path", "must not be empty")
	}
	if c.Controllers.Pattern != "" {
		if _, err := regexp.Compile(c.Controllers.Pattern); err != nil {
			return fieldError("controllers.pattern", "does not compile: "+err.Error())
		}
	} else {
		if len(c.Controllers.Suffixes) == 0 {
			return fieldError("controllers.suffixes", "at least one suffix is required")
		}
		if len(c.Controllers.Extensions) == 0 {
			return fieldError("controllers.extensions", "at least one extension is required")
		}
	}

	if c.Development.Debounce < 0 {
		return fieldError("development.debounce", "must not be negative")
	}

	// Port 0 lets the system pick one.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fieldError("server.port", fmt.Sprintf("%d is not in valid range 0-65535", c.Server.Port))
	}
	if strings.ContainsAny(c.Server.Host, " /;&|$`<>\"'\\") {
		return fieldError("server.host", fmt.Sprintf("invalid host %q", c.Server.Host))
	}
	switch c.Server.Router {
	case RouterMux, RouterChi:
	default:
		return fieldError("server.router", fmt.Sprintf("unknown router %q (want %s or %s)", c.Server.Router, RouterMux, RouterChi))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fieldError("log.level", err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fieldError("log.format", fmt.Sprintf("unknown format %q (want text or json)", c.Log.Format))
	}

	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoggerConfig converts the log settings.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format
	return cfg
}

func fieldError(field, message string) error {
	return gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, field+": "+message).
		WithContext("field", field)
}

func newConfigError(message string, cause error) error {
	err := gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, message)
	err.Cause = cause
	return err
}

func asNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	return errors.As(err, target)
}
