package domain

import (
	"errors"
	"fmt"

	perr "sarbatch/internal/platform/errors"
)

// Sentinels for errors.Is. Returned errors also carry a perr code
var (
	// ErrMissingReferenceData means the precise orbit tier is empty; the site aborts
	ErrMissingReferenceData = errors.New("missing reference data")

	// ErrUnknownSite means the catalog has no site for the derived key; the site aborts
	ErrUnknownSite = errors.New("unknown site")

	// ErrRegistryQuery means the registry selection failed; the site aborts,
	// and the dispatcher retries it when the cause is transient
	ErrRegistryQuery = errors.New("registry query failed")

	// ErrSceneProcessing means the sink failed one scene; counted, never fatal to the site
	ErrSceneProcessing = errors.New("scene processing failed")

	// ErrLeaseHeld means another dispatcher owns the site right now
	ErrLeaseHeld = errors.New("site lease held")

	// ErrLeaseLost means another dispatcher took the site while this one ran it
	ErrLeaseLost = errors.New("site lease lost")
)

// Classify wraps cause so that errors.Is matches sentinel and perr.CodeOf returns code
func Classify(sentinel error, code perr.ErrorCode, cause error, format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	if cause == nil {
		return perr.Wrap(sentinel, code, msg)
	}
	return perr.Wrap(fmt.Errorf("%w: %w", sentinel, cause), code, msg)
}
