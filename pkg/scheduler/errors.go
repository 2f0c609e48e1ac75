package scheduler

import "errors"

var (
	ErrNotConfigured        = errors.New("scheduler has no jobs")
	ErrAlreadyRunning       = errors.New("scheduler is already running")
	ErrJobAlreadyRegistered = errors.New("job already registered")
	ErrInvalidJob           = errors.New("invalid job")
	ErrInvalidSchedule      = errors.New("invalid schedule")
	ErrJobPanicked          = errors.New("job panicked")
)
