package asyncpub

import "fmt"

// ConnectionError reports a failed connect attempt made by the worker.
type ConnectionError struct {
	Broker string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect %s: %v", e.Broker, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrorConnection
}

// TransmitError reports a publish that the broker client refused or could
// not complete.
type TransmitError struct {
	Broker      string
	Destination string
	Err         error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("failed to publish to %s via %s: %v", e.Destination, e.Broker, e.Err)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}

func (e *TransmitError) Is(target error) bool {
	return target == ErrorTransmit
}
