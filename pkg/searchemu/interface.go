package searchemu

import "errors"

// ErrNoDataDirectory is returned when attempting to create a Client
// without a data directory configured.
var ErrNoDataDirectory = errors.New("data directory is required")

// ErrClientClosed is returned by Client methods called after Close.
var ErrClientClosed = errors.New("client is closed")
