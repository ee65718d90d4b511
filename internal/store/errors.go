package store

import "errors"

var (
	ErrStoreClosed          = errors.New("store is closed")
	ErrNotificationNotFound = errors.New("notification not found")
)
