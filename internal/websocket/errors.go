package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrInvalidJSON      = errors.New("invalid JSON payload")
)
