package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNotSwapLog     = errors.New("log is not a Swap event")
	ErrMalformedLog   = errors.New("malformed log payload")
	ErrEmptyBook      = errors.New("order book side is empty")
	ErrInvalidAddress = errors.New("invalid address")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrSigningFailed  = errors.New("signing failed")
	ErrLockHeld       = errors.New("lock already held")
)
