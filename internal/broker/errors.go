package broker

import (
	"errors"
	"fmt"
)

// TransientError is a retryable broker failure (network hiccup,
// throttling). The engine retries these with fixed backoff up to a
// bounded attempt count.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("broker: transient %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError is a non-retryable broker failure. The engine logs it and
// continues after a fixed delay without crashing the process.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("broker: fatal %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable broker failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
