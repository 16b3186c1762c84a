package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidJobKind is returned for unknown job kinds
	ErrInvalidJobKind = errors.New("invalid job kind")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
