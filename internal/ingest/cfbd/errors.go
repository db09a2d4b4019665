package cfbd

import "errors"

// Sentinel errors returned by the client.
var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrDecode           = errors.New("decode response")
)
