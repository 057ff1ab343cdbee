package paging

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/osa030/swingdeck/internal/domain/catalog"
)

// ErrorKind classifies a failed load.
type ErrorKind int

const (
	// KindTransport covers connectivity failures and timeouts. The caller may
	// retry the same key.
	KindTransport ErrorKind = iota
	// KindRemoteRejected covers non-2xx statuses and malformed responses.
	// Retrying the same key only helps after external state changes
	// (re-authentication, server fix).
	KindRemoteRejected
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRemoteRejected:
		return "remote_rejected"
	default:
		return "unknown"
	}
}

var (
	// ErrTransport matches any LoadError of kind KindTransport.
	ErrTransport = errors.New("transport failure")
	// ErrRemoteRejected matches any LoadError of kind KindRemoteRejected.
	ErrRemoteRejected = errors.New("remote rejected request")
	// ErrSuperseded is the cause of a load abandoned in favour of a newer
	// load of the same key.
	ErrSuperseded = errors.New("load superseded by a newer request")
)

// LoadError is the typed failure returned by Source.Load.
type LoadError struct {
	Kind ErrorKind
	Key  Key
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load page %d: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransport) and errors.Is(err, ErrRemoteRejected)
// match by kind.
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrRemoteRejected:
		return e.Kind == KindRemoteRejected
	}
	return false
}

// Retryable reports whether the caller may retry the same key as-is.
func (e *LoadError) Retryable() bool {
	return e.Kind == KindTransport
}

// AsLoadError extracts the LoadError from err, if any.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	le, ok := AsLoadError(err)
	return ok && le.Kind == KindTransport
}

// IsRemoteRejected reports whether err is a remote rejection.
func IsRemoteRejected(err error) bool {
	le, ok := AsLoadError(err)
	return ok && le.Kind == KindRemoteRejected
}

// KindOf classifies a remote catalog failure. Cancellation and timeouts are
// transport failures even when wrapped around a rejection.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	case catalog.IsRejected(err):
		return KindRemoteRejected
	default:
		return KindTransport
	}
}

// classify maps a fetch failure onto the load error taxonomy.
func classify(key Key, err error) *LoadError {
	return &LoadError{Kind: KindOf(err), Key: key, Err: err}
}
