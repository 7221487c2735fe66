package task

import "errors"

var (
	// ErrManagerClosed indicates that a submission arrived after the manager
	// began draining. Items accepted before that point still run.
	ErrManagerClosed = errors.New("task manager is closed")

	// ErrNilTask indicates that a submission carried a nil task function.
	ErrNilTask = errors.New("task function cannot be nil")

	// ErrNoWorkers indicates a non-positive worker bound at construction.
	ErrNoWorkers = errors.New("maxWorkers must be greater than zero")
)
