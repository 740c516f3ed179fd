package stamper

import (
	"errors"
	"fmt"
)

// Sentinel errors for the stamping engine. Callers match them with errors.Is.
var (
	// Input validation.
	ErrInvalidFileType = errors.New("stamper: unsupported file type")
	ErrInvalidParam    = errors.New("stamper: invalid parameter")

	// Capacity and lookup.
	ErrCapacity    = errors.New("stamper: stamp limit reached")
	ErrNotFound    = errors.New("stamper: not found")
	ErrDuplicate   = errors.New("stamper: duplicate id")
	ErrInvalidPage = errors.New("stamper: page out of range")
	ErrNoSelection = errors.New("stamper: no stamp selected")

	// Rendering and export.
	ErrNoDocument = errors.New("stamper: no document loaded")
	ErrDecode     = errors.New("stamper: image decode failed")
	ErrCorrupted  = errors.New("stamper: document is corrupted")

	// Lifecycle.
	ErrDisposed = errors.New("stamper: editing surface disposed")
	ErrClosed   = errors.New("stamper: session is closed")
)

// StampError represents an error that occurred during a specific operation.
// It wraps an underlying error and includes the operation name for context.
type StampError struct {
	Op  string // operation name, e.g. "Export", "AddStampDefinition"
	Err error  // underlying error
}

func (e *StampError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stamper.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("stamper.%s: unknown error", e.Op)
}

func (e *StampError) Unwrap() error {
	return e.Err
}

// NewError wraps err with operation context. A nil err yields nil.
func NewError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StampError{Op: op, Err: err}
}
