package export

import "errors"

// ErrWrite wraps every failure to stage or publish an output file.
var ErrWrite = errors.New("export: write failed")
