package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrContextLost means every handle issued by the device is gone.
	ErrContextLost = errors.New("gpu: context lost")
	// ErrOutOfMemory is returned when an allocation cannot be satisfied.
	ErrOutOfMemory = errors.New("gpu: out of memory")
	// ErrInvalidHandle is returned for operations on unknown handles.
	ErrInvalidHandle = errors.New("gpu: invalid handle")
)

// CompileError carries the driver log of a failed shader stage or link.
type CompileError struct {
	Stage string
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gpu: %s failed: %s", e.Stage, e.Log)
}
