package classifier

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned for 2xx bodies that are not a JSON object.
var ErrMalformedResponse = errors.New("malformed classifier response")

// TransportError is a failed attempt: network failure, timeout, non-2xx
// status, malformed body or a refusal by the circuit breaker. It never
// escapes FetchDecision, which retries until an attempt settles.
type TransportError struct {
	Attempt    int
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("classifier attempt %d: status %d: %v", e.Attempt, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("classifier attempt %d: %v", e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
