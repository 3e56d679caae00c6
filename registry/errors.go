package registry

import "errors"

// Sentinel errors for consistent error handling.
var (
	ErrClosed          = errors.New("registry closed")
	ErrToolNotFound    = errors.New("tool not found")
	ErrHandlerNotFound = errors.New("handler not found")
	ErrExecutionFailed = errors.New("tool execution failed")
	ErrInvalidConfig   = errors.New("invalid registry config")
)
