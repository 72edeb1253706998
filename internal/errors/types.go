package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the granularity a failure is isolated at.
type ErrorType string

const (
	// ErrorTypeFilesystem is fatal for the scan that produced it.
	ErrorTypeFilesystem ErrorType = "filesystem"
	// ErrorTypeModuleLoad is isolated to one controller file.
	ErrorTypeModuleLoad ErrorType = "module_load"
	// ErrorTypeMetadata is isolated to one controller.
	ErrorTypeMetadata ErrorType = "metadata"
	// ErrorTypeRegistration is isolated to one controller.
	ErrorTypeRegistration ErrorType = "registration"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeInternal     ErrorType = "internal"
)

// GirouetteError is a structured error type with context.
type GirouetteError struct {
	Type       ErrorType
	Code       string
	Message    string
	Cause      error
	Context    map[string]interface{}
	Controller string
	Path       string
}

// Error implements the error interface.
func (e *GirouetteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Controller != "" {
		parts = append(parts, "controller:"+e.Controller)
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *GirouetteError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *GirouetteError) Is(target error) bool {
	var t *GirouetteError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *GirouetteError) WithContext(key string, value interface{}) *GirouetteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the controller file the error belongs to.
func (e *GirouetteError) WithPath(path string) *GirouetteError {
	e.Path = path

	return e
}

// WithController records the controller identity the error belongs to.
func (e *GirouetteError) WithController(controller string) *GirouetteError {
	e.Controller = controller

	return e
}

// Error creation functions

// NewFilesystemError creates a filesystem error.
func NewFilesystemError(code, message string, cause error) *GirouetteError {
	return &GirouetteError{
		Type:    ErrorTypeFilesystem,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewModuleLoadError creates a module load error.
func NewModuleLoadError(code, message string, cause error) *GirouetteError {
	return &GirouetteError{
		Type:    ErrorTypeModuleLoad,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewMetadataError creates a metadata read error.
func NewMetadataError(code, message string) *GirouetteError {
	return &GirouetteError{
		Type:    ErrorTypeMetadata,
		Code:    code,
		Message: message,
	}
}

// NewRegistrationError creates a registration error.
func NewRegistrationError(code, message string, cause error) *GirouetteError {
	return &GirouetteError{
		Type:    ErrorTypeRegistration,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *GirouetteError {
	return &GirouetteError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *GirouetteError {
	return &GirouetteError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the ErrorType of err, or the empty type when err carries none.
func TypeOf(err error) ErrorType {
	var ge *GirouetteError
	if errors.As(err, &ge) {
		return ge.Type
	}

	return ""
}

// IsFilesystemError checks if an error is filesystem-related.
func IsFilesystemError(err error) bool {
	return TypeOf(err) == ErrorTypeFilesystem
}

// IsModuleLoadError checks if an error came from importing a controller file.
func IsModuleLoadError(err error) bool {
	return TypeOf(err) == ErrorTypeModuleLoad
}

// IsMetadataError checks if an error came from reading controller annotations.
func IsMetadataError(err error) bool {
	return TypeOf(err) == ErrorTypeMetadata
}

// IsRegistrationError checks if the router rejected a controller.
func IsRegistrationError(err error) bool {
	return TypeOf(err) == ErrorTypeRegistration
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return TypeOf(err) == ErrorTypeConfig
}

// IsIsolated reports whether err is scoped to a single file or controller and
// must not abort the surrounding load.
func IsIsolated(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeModuleLoad, ErrorTypeMetadata, ErrorTypeRegistration:
		return true
	default:
		return false
	}
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at the level its granularity calls for. Isolated failures
// are debug entries; everything else is an error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var ge *GirouetteError
	if !errors.As(err, &ge) {
		h.logger.Error(ctx, err, "Unhandled error occurred")

		return
	}

	if IsIsolated(ge) {
		h.logger.Debug(ctx, "Controller skipped",
			"type", ge.Type,
			"code", ge.Code,
			"controller", ge.Controller,
			"file", ge.Path,
			"error", ge.Error())

		return
	}

	h.logger.Error(ctx, ge, "Error occurred",
		"type", ge.Type,
		"code", ge.Code,
		"file", ge.Path)
}

// Common error codes.
const (
	ErrCodeRootNotFound         = "ERR_ROOT_NOT_FOUND"
	ErrCodeWalkFailed           = "ERR_WALK_FAILED"
	ErrCodeReadFailed           = "ERR_READ_FAILED"
	ErrCodeDecodeFailed         = "ERR_DECODE_FAILED"
	ErrCodeUnsupportedExtension = "ERR_UNSUPPORTED_EXTENSION"
	ErrCodeUnknownController    = "ERR_UNKNOWN_CONTROLLER"
	ErrCodeIncompleteRoute      = "ERR_INCOMPLETE_ROUTE"
	ErrCodeUnknownAction        = "ERR_UNKNOWN_ACTION"
	ErrCodeUnknownVerb          = "ERR_UNKNOWN_VERB"
	ErrCodeInvalidMatcher       = "ERR_INVALID_MATCHER"
	ErrCodeHandlerNotFound      = "ERR_HANDLER_NOT_FOUND"
	ErrCodeMiddlewareNotFound   = "ERR_MIDDLEWARE_NOT_FOUND"
	ErrCodeRouteRejected        = "ERR_ROUTE_REJECTED"
	ErrCodeConfigInvalid        = "ERR_CONFIG_INVALID"
	ErrCodeServiceNotFound      = "ERR_SERVICE_NOT_FOUND"
	ErrCodeCircularDependency   = "ERR_CIRCULAR_DEPENDENCY"
	ErrCodeInternalError        = "ERR_INTERNAL"
)

// Helper functions for common errors

// ErrRootNotFound creates the fatal error for a missing controllers directory.
func ErrRootNotFound(root string, cause error) *GirouetteError {
	return NewFilesystemError(ErrCodeRootNotFound, "controllers directory not found", cause).
		WithPath(root)
}

// ErrIncompleteRoute creates the error for a route annotation lacking a verb or pattern.
func ErrIncompleteRoute(controller, method string) *GirouetteError {
	return NewMetadataError(ErrCodeIncompleteRoute, "route annotation needs a method and a pattern").
		WithController(controller).
		WithContext("method", method)
}

// ErrUnknownAction creates the error for a resource action name outside the standard set.
func ErrUnknownAction(controller, action string) *GirouetteError {
	return NewMetadataError(ErrCodeUnknownAction, "unknown resource action: "+action).
		WithController(controller)
}
