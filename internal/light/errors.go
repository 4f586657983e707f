package light

import "errors"

// Failure kinds. Integrations wrap the underlying cause with one of these so
// callers can classify with errors.Is.
var (
	// ErrConfigIncomplete means an integration lacks the settings to run at all
	ErrConfigIncomplete = errors.New("configuration incomplete")
	// ErrTransport covers connect/read/write/send failures and timeouts
	ErrTransport = errors.New("transport failure")
	// ErrDecode means a payload arrived but did not have the expected shape
	ErrDecode = errors.New("protocol decode failure")
	// ErrDevice means the device answered with an explicit failure
	ErrDevice = errors.New("device rejected command")
	// ErrOutOfRange means an argument was rejected before any I/O
	ErrOutOfRange = errors.New("argument out of range")
)
