package tendof

import (
	"errors"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

var (
	ErrTransport            = errors.New("i2c transport failure")
	ErrArbitrationTimeout   = errors.New("timed out waiting for bus ownership")
	ErrNotOwner             = errors.New("transaction does not own the bus")
	ErrNoActiveAddress      = errors.New("no device address has been active on the bus")
	ErrInvalidConfiguration = errors.New("invalid register configuration")
)

// TransportError reports a failed primitive on the physical bus. It matches
// ErrTransport as well as the underlying cause.
type TransportError struct {
	Op       string
	Address  byte
	Register byte
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("i2c %s %#02x@%#02x: %v", e.Op, e.Register, e.Address, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Retryable tells whether repeating the primitive may succeed. A busy engine is
// transient; anything else (missing device, NACK, closed bus) is fatal.
func (e *TransportError) Retryable() bool {
	return errors.Is(e.Err, ErrBusBusy)
}

// IsRetryable reports whether err carries a retryable transport failure.
func IsRetryable(err error) bool {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr.Retryable()
	}
	return errors.Is(err, ErrBusBusy)
}
