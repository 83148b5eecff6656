package prims

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrContextUnavailable is matched by every context acquisition failure.
	ErrContextUnavailable = errors.New("prims: rendering context unavailable")

	// ErrEmptyGeometry is returned when uploading an empty value sequence.
	ErrEmptyGeometry = errors.New("prims: empty geometry")

	// ErrClosed is returned when a closed context or destroyed object is used.
	ErrClosed = errors.New("prims: use of released object")
)

// ContextUnavailableError reports why a rendering context could not be
// obtained for a surface. It matches ErrContextUnavailable with errors.Is.
type ContextUnavailableError struct {
	Surface string
	Err     error
}

func (e *ContextUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("prims: surface %q: rendering context unavailable", e.Surface)
	}
	return fmt.Sprintf("prims: surface %q: rendering context unavailable: %v", e.Surface, e.Err)
}

func (e *ContextUnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is ErrContextUnavailable.
func (e *ContextUnavailableError) Is(target error) bool {
	return target == ErrContextUnavailable
}

// ShaderStage identifies a programmable pipeline stage.
type ShaderStage uint8

const (
	// StageVertex is the vertex stage.
	StageVertex ShaderStage = iota
	// StageFragment is the fragment stage.
	StageFragment
)

// String returns the stage name.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderStage(%d)", s)
	}
}

// ShaderCompileError is returned when a shader stage fails to compile.
// Log holds the compiler diagnostics.
type ShaderCompileError struct {
	Stage ShaderStage
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("prims: %s shader compile failed: %s", e.Stage, e.Log)
}

// ProgramLinkError is returned when two compiled stages cannot be linked
// into a usable program. Log holds the linker diagnostics.
type ProgramLinkError struct {
	Log string
}

func (e *ProgramLinkError) Error() string {
	return "prims: program link failed: " + e.Log
}

func unavailable(surfaceID string, err error) error {
	return &ContextUnavailableError{Surface: surfaceID, Err: err}
}
