package errors

import (
	stderrors "errors"
	"fmt"
)

// error codes, one per way a refresh cycle can degrade a node
const (
	NotAnExecutableImage uint32 = iota + 1
	ExportTableUnusable
	SymbolNotFound
	ForeignReadFailed
	NullOrUnresolvedPointer
)

var codeNames = map[uint32]string{
	NotAnExecutableImage:    "not an executable image",
	ExportTableUnusable:     "export table unusable",
	SymbolNotFound:          "symbol not found",
	ForeignReadFailed:       "foreign read failed",
	NullOrUnresolvedPointer: "null or unresolved pointer",
}

type EEMemError struct {
	Code uint32
	Op   string
	Err  error
}

func (e *EEMemError) Error() string {
	msg, ok := codeNames[e.Code]
	if !ok {
		msg = fmt.Sprintf("error %d", e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EEMemError) Unwrap() error {
	return e.Err
}

// Is matches any *EEMemError carrying the same code, so callers can write
// errors.Is(err, errors.New(errors.SymbolNotFound)).
func (e *EEMemError) Is(target error) bool {
	t, ok := target.(*EEMemError)
	return ok && t.Code == e.Code
}

// New creates a new EEMemError
func New(code uint32) error {
	return &EEMemError{Code: code}
}

// Newf creates an EEMemError for the named operation with a formatted cause.
func Newf(code uint32, op string, format string, args ...interface{}) error {
	return &EEMemError{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a code and operation to an existing error.
func Wrap(code uint32, op string, err error) error {
	return &EEMemError{Code: code, Op: op, Err: err}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code uint32) bool {
	var e *EEMemError
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Code returns the code carried by err, or 0.
func Code(err error) uint32 {
	var e *EEMemError
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}
