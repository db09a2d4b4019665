package metrics

import "errors"

// ErrPush wraps Pushgateway failures.
var ErrPush = errors.New("metrics push failed")
