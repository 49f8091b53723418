package portal

import "fmt"

// TransportError wraps a network or HTTP-level failure against the
// portal. Idempotent GETs may be retried by callers; login POSTs are
// never retried at this layer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("portal: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LoginFailedError is terminal for the current query: either the
// credentials were rejected or the CAPTCHA retry budget ran out.
type LoginFailedError struct {
	Reason string
}

func (e *LoginFailedError) Error() string {
	return fmt.Sprintf("portal: login failed: %s", e.Reason)
}
