package app

import (
	"github.com/juju/errors"
)

const (
	// ErrMailerNotConfigured is a configuration error: nothing can be sent
	// this tick. Evaluators stop dispatching but other evaluators still run.
	ErrMailerNotConfigured = errors.ConstError("mail sender is not configured")

	// ErrProviderUnavailable wraps transient provider failures. No log is
	// written, so the next evaluation can retry.
	ErrProviderUnavailable = errors.ConstError("mail provider unavailable")
)

// IsConfigurationError reports whether err must abort the dispatch step.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMailerNotConfigured)
}
