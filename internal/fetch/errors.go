package fetch

import "fmt"

// ErrorKind classifies terminal fetch failures.
type ErrorKind string

const (
	// KindRetriesExhausted means every attempt failed and the retry
	// ceiling was reached.
	KindRetriesExhausted ErrorKind = "retries_exhausted"

	// KindMalformedPayload means the server answered 200 but the body
	// could not be used. Never retried: the same request would produce
	// the same body.
	KindMalformedPayload ErrorKind = "malformed_payload"

	// KindFatalStatus means a 4xx status other than 429 was returned
	// while RetryAllStatuses is disabled.
	KindFatalStatus ErrorKind = "fatal_status"
)

// Error is the terminal failure value returned by Client.Fetch. The
// client never retries indefinitely and never swallows a failure: callers
// always receive either a payload or one of these.
type Error struct {
	Kind       ErrorKind
	Endpoint   string
	Attempts   int // attempts actually performed
	LastStatus int // last HTTP status observed, 0 for transport failures
	Err        error
}

func (e *Error) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("fetch %s: %s after %d attempt(s), last status %d", e.Endpoint, e.Kind, e.Attempts, e.LastStatus)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s after %d attempt(s): %v", e.Endpoint, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s after %d attempt(s)", e.Endpoint, e.Kind, e.Attempts)
}

func (e *Error) Unwrap() error {
	return e.Err
}
