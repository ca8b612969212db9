package render

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported reports that the provider has no usable graphics
	// backend for the surface.
	ErrUnsupported = errors.New("render: graphics context not supported")

	// ErrAbandoned is returned by Setup after Teardown or after the retry
	// budget has been spent.
	ErrAbandoned = errors.New("render: pipeline abandoned")

	// ErrSourceFailed reports that a texture source could not be decoded.
	ErrSourceFailed = errors.New("render: texture source failed")
)

// ContextAcquisitionError reports that no rendering context could be
// obtained. It is fatal for the pipeline that hit it only.
type ContextAcquisitionError struct {
	Effect string
	Err    error
}

func (e *ContextAcquisitionError) Error() string {
	return fmt.Sprintf("render: %s: acquire context: %v", e.Effect, e.Err)
}

func (e *ContextAcquisitionError) Unwrap() error { return e.Err }

// ShaderCompileError reports a program that failed to compile.
// Diagnostics holds the compiler output.
type ShaderCompileError struct {
	Label       string
	Diagnostics string
	Err         error
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("render: compile %s: %s", e.Label, e.Diagnostics)
}

func (e *ShaderCompileError) Unwrap() error { return e.Err }

// ShaderLinkError reports compiled stages that could not be combined into
// a pipeline.
type ShaderLinkError struct {
	Label       string
	Diagnostics string
	Err         error
}

func (e *ShaderLinkError) Error() string {
	return fmt.Sprintf("render: link %s: %s", e.Label, e.Diagnostics)
}

func (e *ShaderLinkError) Unwrap() error { return e.Err }

// ContextLostError reports that the graphics subsystem invalidated the
// context. Contexts return it from Draw and other calls made after loss.
type ContextLostError struct {
	Err error
}

func (e *ContextLostError) Error() string {
	if e.Err == nil {
		return "render: context lost"
	}
	return fmt.Sprintf("render: context lost: %v", e.Err)
}

func (e *ContextLostError) Unwrap() error { return e.Err }

// IsContextLost reports whether err is or wraps a *ContextLostError.
func IsContextLost(err error) bool {
	var lost *ContextLostError
	return errors.As(err, &lost)
}
