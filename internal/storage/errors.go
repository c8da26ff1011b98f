package storage

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// FatalIOError wraps a disk I/O failure with a stack trace. Per the error
// handling design (§7), I/O errors on page read/write are a process-level
// failure: they are never recovered from inside BufferPool, HeapFile, or
// BPTree, only reported up to the caller (typically the CLI's top level).
type FatalIOError struct {
	cause error
}

func (e *FatalIOError) Error() string { return e.cause.Error() }
func (e *FatalIOError) Unwrap() error { return e.cause }

func wrapIO(op string, filename string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalIOError{cause: errors.Wrapf(err, "minisql: fatal I/O error during %s on %q", op, filename)}
}

// IsFatalIO reports whether err (or something it wraps) is a FatalIOError.
func IsFatalIO(err error) bool {
	var fatal *FatalIOError
	return stderrors.As(err, &fatal)
}
