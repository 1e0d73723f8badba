package messaging

import "errors"

// ErrSendFailed is the generic provider-level send failure used by test
// doubles.
var ErrSendFailed = errors.New("message send failed")
