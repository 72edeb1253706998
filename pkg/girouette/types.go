package girouette

import (
	"github.com/conneroisu/girouette/internal/config"
	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/internal/logging"
	"github.com/conneroisu/girouette/internal/registry"
	"github.com/spf13/viper"
)

// Event reports a controller change or a reconciliation, as delivered by
// Subscribe.
type Event = registry.Event

// EventType distinguishes the events delivered by Subscribe.
type EventType = registry.EventType

const (
	EventAdded      = registry.EventTypeAdded
	EventUpdated    = registry.EventTypeUpdated
	EventReconciled = registry.EventTypeReconciled
)

// Entry is a cached controller with its materialized routes.
type Entry = registry.Entry

// Failure records why a controller file was skipped.
type Failure = gerrors.Failure

// ErrorType classifies a Failure by the stage it failed in.
type ErrorType = gerrors.ErrorType

const (
	ErrorFilesystem   = gerrors.ErrorTypeFilesystem
	ErrorModuleLoad   = gerrors.ErrorTypeModuleLoad
	ErrorMetadata     = gerrors.ErrorTypeMetadata
	ErrorRegistration = gerrors.ErrorTypeRegistration
	ErrorConfig       = gerrors.ErrorTypeConfig
)

// Logger is the structured logger accepted by WithLogger.
type Logger = logging.Logger

// Config is the settings file read by LoadConfig and applied by FromConfig.
type Config = config.Config

// LoadConfig reads a Config from v, falling back to the defaults for every
// unset key.
func LoadConfig(v *viper.Viper) (*Config, error) {
	config.SetDefaults(v)
	return config.LoadFrom(v)
}

// ErrorTypeOf reports the stage err failed in.
func ErrorTypeOf(err error) ErrorType {
	return gerrors.TypeOf(err)
}
