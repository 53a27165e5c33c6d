package sesslib

import "errors"

var (
	// ErrEmptyProfile is returned when a profile entry carries neither a
	// proxy nor a user-agent.
	ErrEmptyProfile = errors.New("profile must set at least one of proxy or user-agent")

	// ErrProfilesUnavailable is returned when profile information is
	// requested but profile sync is disabled or no pool is configured.
	ErrProfilesUnavailable = errors.New("profile sync is not enabled")

	// ErrFutureStamp is returned when a response carries a jar version
	// stamp newer than the jar's current version. This indicates broken
	// stamp propagation, never normal operation.
	ErrFutureStamp = errors.New("response stamped with a version newer than the live jar")

	ErrEmptyProxyURL     = errors.New("proxy URL cannot be empty")
	ErrInvalidProxyURL   = errors.New("invalid proxy URL")
	ErrUnsupportedScheme = errors.New("unsupported proxy scheme")
)
