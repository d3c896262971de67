package errors

import "fmt"

// ErrorCode identifies a specific failure class in the boot controller.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001

	// Hardware access
	ErrCodeGPIOSetup ErrorCode = 2001

	// Module supervision
	ErrCodeCatalogQuery  ErrorCode = 3001
	ErrCodeModuleLaunch  ErrorCode = 3002
	ErrCodeModulesMissed ErrorCode = 3003

	// Recovery fallback
	ErrCodeRecoveryLaunch ErrorCode = 4001
)

// BootError is the controller's structured error type: a code, the operation
// being performed, and the underlying cause when there is one.
type BootError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *BootError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *BootError) Unwrap() error {
	return e.Err
}

// New creates a BootError with the specified code, operation, message, and
// underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &BootError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}
