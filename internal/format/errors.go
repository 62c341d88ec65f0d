package format

import "errors"

// ErrTruncated indicates the arena lacked the bytes required for a header.
var ErrTruncated = errors.New("format: truncated header")
