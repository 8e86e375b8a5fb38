package netcore

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the outcome of a core operation. Every token's Status
// field and every public method's returned error is reducible to one of
// these, per the error taxonomy the core's callers are written against.
type Kind int

const (
	// KindOk indicates success; not used as an error Kind but as a token status.
	KindOk Kind = iota
	KindInvalidParameter
	KindNotStarted
	KindAlreadyStarted
	KindAccessDenied
	KindUnsupported
	KindNotFound
	KindNotReady
	KindTimeout
	KindAborted
	KindOutOfResources
	KindDeviceError
	KindProtocolError
	KindNoMapping
	KindNoMedia
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "Ok"
	case KindInvalidParameter:
		return "InvalidParameter"
	case KindNotStarted:
		return "NotStarted"
	case KindAlreadyStarted:
		return "AlreadyStarted"
	case KindAccessDenied:
		return "AccessDenied"
	case KindUnsupported:
		return "Unsupported"
	case KindNotFound:
		return "NotFound"
	case KindNotReady:
		return "NotReady"
	case KindTimeout:
		return "Timeout"
	case KindAborted:
		return "Aborted"
	case KindOutOfResources:
		return "OutOfResources"
	case KindDeviceError:
		return "DeviceError"
	case KindProtocolError:
		return "ProtocolError"
	case KindNoMapping:
		return "NoMapping"
	case KindNoMedia:
		return "NoMedia"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// CoreError is the error type returned at the core's public boundary. It
// carries a Kind from the taxonomy above and, where the error originates
// from a collaborator (transport, TLS engine), wraps the underlying cause
// so callers can inspect it with errors.Cause.
type CoreError struct {
	Kind Kind
	msg  string
	err  error
}

// NewError builds a CoreError with no underlying cause.
func NewError(kind Kind, msg string) *CoreError {
	return &CoreError{Kind: kind, msg: msg}
}

// WrapError builds a CoreError that preserves an underlying collaborator
// error as its cause.
func WrapError(kind Kind, cause error, msg string) *CoreError {
	if cause == nil {
		return NewError(kind, msg)
	}
	return &CoreError{Kind: kind, msg: msg, err: errors.Wrap(cause, msg)}
}

func (e *CoreError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *CoreError) Unwrap() error { return e.err }

// Cause returns the wrapped collaborator error, or nil if there is none.
func (e *CoreError) Cause() error {
	if e.err == nil {
		return nil
	}
	return errors.Cause(e.err)
}

// KindOf extracts the Kind from err if it is (or wraps) a *CoreError,
// otherwise returns KindDeviceError as the conservative default for an
// opaque collaborator failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindOk
	}
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindDeviceError
}
