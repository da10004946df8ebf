package queue

import "fmt"

// TransportError reports a broker operation that failed after all retries.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
