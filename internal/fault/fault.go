package fault

import (
	"errors"
	"fmt"
)

// Kind classifies why a rotation request failed.
type Kind int

const (
	Unknown Kind = iota
	InvalidPath
	BackupDirUnavailable
	BackupFailed
	ToolNotFound
	RotationFailed
	ValidationFailed
	ReplaceFailed
)

var kindNames = map[Kind]string{
	Unknown:              "unknown failure",
	InvalidPath:          "invalid path",
	BackupDirUnavailable: "backup directory unavailable",
	BackupFailed:         "backup failed",
	ToolNotFound:         "tool not found",
	RotationFailed:       "rotation failed",
	ValidationFailed:     "validation failed",
	ReplaceFailed:        "replace failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ExitCode is the process exit status reported for a failure of this kind.
func (k Kind) ExitCode() int {
	if k == Unknown {
		return 1
	}
	return int(k) + 1
}

// Sentinels for errors.Is matching against a *Error of the same kind.
var (
	ErrInvalidPath          = &Error{Kind: InvalidPath}
	ErrBackupDirUnavailable = &Error{Kind: BackupDirUnavailable}
	ErrBackupFailed         = &Error{Kind: BackupFailed}
	ErrToolNotFound         = &Error{Kind: ToolNotFound}
	ErrRotationFailed       = &Error{Kind: RotationFailed}
	ErrValidationFailed     = &Error{Kind: ValidationFailed}
	ErrReplaceFailed        = &Error{Kind: ReplaceFailed}
)

// Error is a classified failure. Op names the step that failed and Path the
// file or directory it was working on.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}
