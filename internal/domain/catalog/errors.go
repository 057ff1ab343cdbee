package catalog

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrMalformedResponse is returned when the server answered 2xx but the body
// could not be decoded.
var ErrMalformedResponse = errors.New("malformed catalog response")

// RemoteError is returned when the remote catalog rejected a request
// (non-2xx status).
type RemoteError struct {
	Status  int    // HTTP status code
	Message string // Server message, if any
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog request rejected: status %d", e.Status)
	}
	return fmt.Sprintf("catalog request rejected: status %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether the rejection requires re-authentication.
func (e *RemoteError) IsUnauthorized() bool {
	return e.Status == 401 || e.Status == 403
}

// IsRejected reports whether err (or any cause) is a server-side rejection
// or a malformed response.
func IsRejected(err error) bool {
	if err == nil {
		return false
	}
	var re *RemoteError
	return errors.As(err, &re) || errors.Is(err, ErrMalformedResponse)
}
