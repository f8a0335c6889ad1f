package rtypes

import "fmt"

// NodeErrorCode is the closed taxonomy of host-visible error kinds (spec §7).
type NodeErrorCode int

const (
	ErrInvalidConfig NodeErrorCode = iota
	ErrIO
	ErrNetwork
	ErrReticulum
	ErrAlreadyRunning
	ErrNotRunning
	ErrTimeout
	ErrInternal
)

func (c NodeErrorCode) String() string {
	switch c {
	case ErrInvalidConfig:
		return "InvalidConfig"
	case ErrIO:
		return "IoError"
	case ErrNetwork:
		return "NetworkError"
	case ErrReticulum:
		return "ReticulumError"
	case ErrAlreadyRunning:
		return "AlreadyRunning"
	case ErrNotRunning:
		return "NotRunning"
	case ErrTimeout:
		return "Timeout"
	default:
		return "InternalError"
	}
}

// NodeError is the single error type every host-facing operation returns.
// It carries a closed code plus a human-readable message, exactly the shape
// the LastError slot (component H) stores.
type NodeError struct {
	Code    NodeErrorCode
	Message string
	cause   error
}

func NewError(code NodeErrorCode, format string, args ...any) *NodeError {
	return &NodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func WrapError(code NodeErrorCode, cause error, format string, args ...any) *NodeError {
	return &NodeError{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *NodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *NodeError) Unwrap() error { return e.cause }

// AsNodeError extracts a *NodeError from err, synthesizing an InternalError
// wrapper for anything else. Used at the command-dispatch/façade boundary so
// every reply carries a well-formed NodeError.
func AsNodeError(err error) *NodeError {
	if err == nil {
		return nil
	}
	var ne *NodeError
	if As(err, &ne) {
		return ne
	}
	return WrapError(ErrInternal, err, "unclassified error")
}

// As is a tiny local alias of errors.As to avoid importing errors in callers
// that only need this one helper; kept here to keep the taxonomy
// self-contained.
func As(err error, target **NodeError) bool {
	for err != nil {
		if ne, ok := err.(*NodeError); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
