package storage

import "errors"

// ErrTaskNotFound is returned when no task has the requested ID.
var ErrTaskNotFound = errors.New("task not found")

// ErrClosed is returned by a storage used after Close.
var ErrClosed = errors.New("storage is closed")
