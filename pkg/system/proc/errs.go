//go:build linux

package proc

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

var (
	// ErrNotFound indicates that the /proc entry does not exist, typically
	// because the process or thread exited between enumeration and read.
	ErrNotFound = errors.New("proc: not found")

	// ErrPermission indicates that the /proc entry exists but is not readable
	// by the current credentials (e.g. /proc/<pid>/io under hidepid or ptrace
	// restrictions).
	ErrPermission = errors.New("proc: permission denied")

	// ErrMalformed indicates that the /proc entry was read but could not be
	// parsed (missing fields, non-numeric values).
	ErrMalformed = errors.New("proc: malformed")
)

// Kind classifies a ReadError.
type Kind int

const (
	NotFound Kind = iota
	PermissionDenied
	Malformed
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ReadError is returned by every Reader method. Op names the /proc file that
// failed (e.g. "stat", "task/123/stat").
type ReadError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("proc: read %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is matches the package sentinels against the error kind so callers can
// write errors.Is(err, proc.ErrNotFound).
func (e *ReadError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrPermission:
		return e.Kind == PermissionDenied
	case ErrMalformed:
		return e.Kind == Malformed
	}
	return false
}

// classify wraps err into a ReadError. ESRCH is reported by the kernel when a
// task goes away while its files are being read and counts as NotFound.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *ReadError
	if errors.As(err, &re) {
		return err
	}
	kind := Malformed
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, unix.ESRCH):
		kind = NotFound
	case errors.Is(err, fs.ErrPermission):
		kind = PermissionDenied
	}
	return &ReadError{Op: op, Kind: kind, Err: err}
}
