package worker

import "errors"

var (
	ErrPoolAlreadyRunning = errors.New("worker pool is already running")
	ErrPoolNotRunning     = errors.New("worker pool is not running")
	ErrQueueFull          = errors.New("worker queue is full")
)
