package common

import "errors"

// Standard errors for use with errors.Is.
var (
	ErrAcceptFailed    = errors.New("accept failed")
	ErrInvalidPort     = errors.New("invalid port")
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrServerClosed    = errors.New("server closed")
)
