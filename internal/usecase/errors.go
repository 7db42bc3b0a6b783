package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("match not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrLockBusy              = errors.New("match is locked by another writer")
	ErrNoEffectiveChange     = errors.New("no updates survived resolution")
	ErrShutdown              = errors.New("orchestrator is shut down")
)
