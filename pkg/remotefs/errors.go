package remotefs

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
)

// ErrorCode is the category of a remote filesystem error.
//
// Callers receive a specific code sufficient to decide between "retry",
// "treat as absent" and "surface to operator" without inspecting raw
// protocol status values.
type ErrorCode int

const (
	// ErrNotFound indicates the target path, or a required ancestor,
	// does not exist.
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a create-style operation targeted an
	// existing path where overwrite is disallowed.
	ErrAlreadyExists

	// ErrNotADirectory indicates the operation requires a directory
	// but the path is something else.
	ErrNotADirectory

	// ErrIsADirectory indicates the operation requires a non-directory
	// but the path is a directory.
	ErrIsADirectory

	// ErrNotEmpty indicates rmdir targeted a non-empty directory.
	ErrNotEmpty

	// ErrNotASymlink indicates readlink targeted a path that is not a
	// symbolic link.
	ErrNotASymlink

	// ErrPermissionDenied indicates a remote access-control rejection.
	ErrPermissionDenied

	// ErrConnectionClosed indicates the request was submitted to, or
	// was draining from, a closed or closing connection.
	ErrConnectionClosed

	// ErrProtocol indicates a malformed or undecodable response.
	ErrProtocol

	// ErrUnknown indicates a remote status with no more specific
	// mapping. The raw status is preserved via Unwrap.
	ErrUnknown
)

// String returns the canonical name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not found"
	case ErrAlreadyExists:
		return "already exists"
	case ErrNotADirectory:
		return "not a directory"
	case ErrIsADirectory:
		return "is a directory"
	case ErrNotEmpty:
		return "directory not empty"
	case ErrNotASymlink:
		return "not a symlink"
	case ErrPermissionDenied:
		return "permission denied"
	case ErrConnectionClosed:
		return "connection closed"
	case ErrProtocol:
		return "protocol error"
	case ErrUnknown:
		return "unknown error"
	default:
		return "invalid error code"
	}
}

// Error is the typed failure every operation surfaces to its caller.
//
// It carries the offending operation and path for diagnostics and the
// underlying transport error (if any) for Unwrap.
type Error struct {
	// Code is the error category.
	Code ErrorCode

	// Op is the operation that failed ("stat", "rename", ...).
	Op string

	// Path is the remote path involved, empty when not applicable.
	Path string

	// Message is an optional human-readable detail.
	Message string

	// Err is the underlying cause, nil when the error originates here.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	switch {
	case e.Op != "" && e.Path != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	default:
		return msg
	}
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the ErrorCode from err, returning ErrUnknown for nil
// or foreign errors.
func CodeOf(err error) ErrorCode {
	var fsErr *Error
	if errors.As(err, &fsErr) {
		return fsErr.Code
	}
	return ErrUnknown
}

// Operation names attached to translated errors and debug logs.
const (
	OpReadDir   = "readdir"
	OpMkdir     = "mkdir"
	OpRmdir     = "rmdir"
	OpStat      = "stat"
	OpLstat     = "lstat"
	OpSymlink   = "symlink"
	OpReadLink  = "readlink"
	OpRealPath  = "realpath"
	OpRename    = "rename"
	OpUnlink    = "unlink"
	OpReadFile  = "readfile"
	OpWriteFile = "writefile"
)

// Translate maps a raw connection-handle failure to the domain error
// taxonomy, attaching operation and path.
//
// It is a pure function of (op, path, err): no retries, no logging.
// The mapping covers the os sentinel errors the SFTP library
// normalizes to, raw SFTP status codes, and transport teardown
// signals. Errors that already carry a domain code pass through with
// op and path filled in where missing.
func Translate(op, path string, err error) error {
	if err == nil {
		return nil
	}

	// Already translated: the in-memory test handle and the transport
	// both may return domain errors directly.
	var fsErr *Error
	if errors.As(err, &fsErr) {
		out := *fsErr
		if out.Op == "" {
			out.Op = op
		}
		if out.Path == "" {
			out.Path = path
		}
		return &out
	}

	code := classify(op, err)
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

// classify picks the taxonomy entry for a raw error.
func classify(op string, err error) ErrorCode {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, os.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, os.ErrExist):
		return ErrAlreadyExists
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// The channel died underneath a blocking call.
		return ErrConnectionClosed
	}

	var status *sftp.StatusError
	if errors.As(err, &status) {
		return classifyStatus(op, status)
	}

	return ErrUnknown
}

// classifyStatus maps a raw SFTP status to the taxonomy.
//
// SFTP version 3 collapses most POSIX failures into SSH_FX_FAILURE, so
// the generic failure code is disambiguated per operation: the only
// failure mkdir can hit once its parent exists is EEXIST, the dominant
// rmdir failure is ENOTEMPTY, and so on. Statuses that stay ambiguous
// map to ErrUnknown with the raw status preserved by the caller.
func classifyStatus(op string, status *sftp.StatusError) ErrorCode {
	switch status.FxCode() {
	case sftp.ErrSSHFxNoSuchFile:
		return ErrNotFound
	case sftp.ErrSSHFxPermissionDenied:
		return ErrPermissionDenied
	case sftp.ErrSSHFxBadMessage:
		return ErrProtocol
	case sftp.ErrSSHFxNoConnection, sftp.ErrSSHFxConnectionLost:
		return ErrConnectionClosed
	case sftp.ErrSSHFxFailure:
		switch op {
		case OpMkdir, OpSymlink, OpRename:
			return ErrAlreadyExists
		case OpRmdir:
			return ErrNotEmpty
		case OpUnlink:
			return ErrIsADirectory
		case OpReadLink:
			return ErrNotASymlink
		default:
			return ErrUnknown
		}
	default:
		return ErrUnknown
	}
}
